package extract

import "fmt"

var (
	// ErrInvalidJSON is returned when a candidate is not valid JSON
	ErrInvalidJSON = fmt.Errorf("extract: invalid json")

	// ErrNotObject is returned when the JSON is not an object
	ErrNotObject = fmt.Errorf("extract: json is not an object")

	// ErrNoFence is returned when the text has no code fence
	ErrNoFence = fmt.Errorf("extract: no code fence")

	// ErrNoJSON is returned when the text has no object fragment
	ErrNoJSON = fmt.Errorf("extract: no json object found")

	// ErrMissingRoot is returned when a mind map has no root node
	ErrMissingRoot = fmt.Errorf("extract: mind map has no root")
)

// ErrMissingKey is returned when a required top-level key is absent
func ErrMissingKey(key string) error {
	return fmt.Errorf("extract: missing required key %q", key)
}

// ErrExtract wraps the failure of the last tier
func ErrExtract(err error) error {
	return fmt.Errorf("extract: no usable json in response: %w", err)
}
