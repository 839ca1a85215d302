// Package querykey builds the hierarchical keys that address cached query results.
//
// A Key is an ordered list of parts. Parts are canonicalized through JSON, so
// two filters that hold the same values compare equal no matter how they were
// built (map or tagged struct) or in which order their fields were inserted.
// Keys for narrower queries extend the keys of broader ones:
//
//	[expenses]                            All
//	[expenses, list]                      Lists
//	[expenses, list, {"category":"FOOD"}] List(filter)
//	[expenses, detail]                    Details
//	[expenses, detail, "e1"]              Detail(id)
//
// so invalidating a prefix reaches every descendant.
package querykey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// Key identifies one cached result set. The zero Key has no parts.
type Key struct {
	parts   []any
	encoded []string
}

// New builds a key from the given parts.
// It panics if a part cannot be encoded as JSON; key parts are built by code, not user input.
func New(parts ...any) Key {
	k, err := TryNew(parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// TryNew is New without the panic
func TryNew(parts ...any) (Key, error) {
	return Key{}.tryAppend(parts...)
}

// Append returns a new key with parts added after k's parts
func (k Key) Append(parts ...any) Key {
	out, err := k.tryAppend(parts...)
	if err != nil {
		panic(err)
	}
	return out
}

func (k Key) tryAppend(parts ...any) (Key, error) {
	out := Key{
		parts:   make([]any, len(k.parts), len(k.parts)+len(parts)),
		encoded: make([]string, len(k.encoded), len(k.encoded)+len(parts)),
	}
	copy(out.parts, k.parts)
	copy(out.encoded, k.encoded)

	for i, p := range parts {
		canon, enc, err := canonicalize(p)
		if err != nil {
			return Key{}, ErrInvalidPart(len(k.parts)+i, err)
		}
		out.parts = append(out.parts, canon)
		out.encoded = append(out.encoded, enc)
	}
	return out, nil
}

// Len returns the number of parts
func (k Key) Len() int {
	return len(k.parts)
}

// Parts returns a deep copy of the canonical parts
func (k Key) Parts() []any {
	out := make([]any, len(k.parts))
	for i, enc := range k.encoded {
		out[i] = decodePart(enc)
	}
	return out
}

// Part returns a deep copy of the i-th canonical part
func (k Key) Part(i int) any {
	return decodePart(k.encoded[i])
}

// Resource returns the first part when it is a string, which by convention names the resource
func (k Key) Resource() string {
	if len(k.parts) == 0 {
		return ""
	}
	s, _ := k.parts[0].(string)
	return s
}

// String returns the canonical JSON array form, used as the cache slot id
func (k Key) String() string {
	return "[" + strings.Join(k.encoded, ",") + "]"
}

// Equal reports structural equality
func (k Key) Equal(other Key) bool {
	if len(k.encoded) != len(other.encoded) {
		return false
	}
	for i := range k.encoded {
		if k.encoded[i] != other.encoded[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's parts are the leading parts of k.
// Every key has the empty key as prefix, and every key is a prefix of itself.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.encoded) > len(k.encoded) {
		return false
	}
	for i := range prefix.encoded {
		if k.encoded[i] != prefix.encoded[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the key as its canonical array
func (k Key) MarshalJSON() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalJSON decodes a key from a JSON array
func (k *Key) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parse decodes the canonical form produced by String
func Parse(s string) (Key, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var parts []any
	if err := dec.Decode(&parts); err != nil {
		return Key{}, ErrParse(s, err)
	}
	return TryNew(parts...)
}

// canonicalize round-trips a part through JSON so structs, maps and numbers of
// any Go type collapse into one representation. Map keys come out sorted.
func canonicalize(p any) (any, string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", err
	}
	// json.Marshal folds invalid bytes into U+FFFD, which would merge distinct parts
	if !validStrings(reflect.ValueOf(p)) {
		return nil, "", ErrInvalidUTF8
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var canon any
	if err := dec.Decode(&canon); err != nil {
		return nil, "", err
	}

	enc, err := json.Marshal(canon)
	if err != nil {
		return nil, "", err
	}
	return canon, string(enc), nil
}

func validStrings(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())
	case reflect.Pointer, reflect.Interface:
		return v.IsNil() || validStrings(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := 0; i < v.Len(); i++ {
			if !validStrings(v.Index(i)) {
				return false
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validStrings(iter.Key()) || !validStrings(iter.Value()) {
				return false
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() && !validStrings(v.Field(i)) {
				return false
			}
		}
	}
	return true
}

func decodePart(enc string) any {
	dec := json.NewDecoder(strings.NewReader(enc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		// encoded parts always come from json.Marshal
		panic(fmt.Sprintf("querykey: corrupt part %q: %v", enc, err))
	}
	return v
}
