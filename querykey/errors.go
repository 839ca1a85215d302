package querykey

import "fmt"

// ErrNotListKey is returned by FilterOf for keys that are not list keys
var ErrNotListKey = fmt.Errorf("querykey: not a list key")

// ErrInvalidUTF8 is returned for key parts holding strings that are not valid UTF-8
var ErrInvalidUTF8 = fmt.Errorf("querykey: string is not valid utf-8")

// ErrInvalidPart is returned when a key part cannot be canonicalized
func ErrInvalidPart(index int, err error) error {
	return fmt.Errorf("querykey: part %d cannot be encoded: %w", index, err)
}

// ErrParse is returned when a serialized key cannot be decoded
func ErrParse(s string, err error) error {
	return fmt.Errorf("querykey: cannot parse %q: %w", s, err)
}
