package querykey

import (
	"bytes"
	"encoding/json"
)

const (
	listSegment   = "list"
	detailSegment = "detail"
)

// Keys builds the key family of one resource
type Keys struct {
	resource string
}

// For returns the key family of a resource
func For(resource string) Keys {
	return Keys{resource: resource}
}

// Resource returns the resource name
func (k Keys) Resource() string {
	return k.resource
}

// All is the root key of the resource
func (k Keys) All() Key {
	return New(k.resource)
}

// Lists matches every list of the resource
func (k Keys) Lists() Key {
	return k.All().Append(listSegment)
}

// List addresses one filtered list. A nil filter is the same slot as an empty one.
func (k Keys) List(filter any) Key {
	if filter == nil {
		filter = map[string]any{}
	}
	return k.Lists().Append(filter)
}

// Details matches every single-entity key of the resource
func (k Keys) Details() Key {
	return k.All().Append(detailSegment)
}

// Detail addresses one entity
func (k Keys) Detail(id string) Key {
	return k.Details().Append(id)
}

// IsList reports whether key is a list key of any resource
func IsList(key Key) bool {
	return key.Len() == 3 && key.encoded[1] == `"`+listSegment+`"`
}

// IsDetail reports whether key is a detail key of any resource
func IsDetail(key Key) bool {
	return key.Len() == 3 && key.encoded[1] == `"`+detailSegment+`"`
}

// FilterOf returns the filter of a list key as a fresh map.
// The result is structurally equal to the filter the key was built from.
func FilterOf(key Key) (map[string]any, error) {
	if !IsList(key) {
		return nil, ErrNotListKey
	}
	filter, ok := key.Part(2).(map[string]any)
	if !ok {
		return nil, ErrNotListKey
	}
	return filter, nil
}

// DecodeFilter decodes the filter of a list key into out, typically a pointer
// to the filter struct the key was built from.
func DecodeFilter(key Key, out any) error {
	if !IsList(key) {
		return ErrNotListKey
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(key.encoded[2])))
	return dec.Decode(out)
}

// IDOf returns the entity id of a detail key
func IDOf(key Key) (string, bool) {
	if !IsDetail(key) {
		return "", false
	}
	id, ok := key.parts[2].(string)
	return id, ok
}
