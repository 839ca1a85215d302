package resource

import "fmt"

// Predefined errors
var (
	// ErrUnsupported is returned without network activity when a resource has no endpoint for an operation
	ErrUnsupported = fmt.Errorf("resource: operation not supported")
	// ErrEmptyID is returned when an operation that addresses one entity gets no id
	ErrEmptyID = fmt.Errorf("resource: empty id")
	// ErrUnknownResource is returned by lookups of undefined resources
	ErrUnknownResource = fmt.Errorf("resource: unknown resource")
)

// ErrNotSupported returns ErrUnsupported annotated with the resource and operation
func ErrNotSupported(resource string, op Op) error {
	return fmt.Errorf("%w: %s %s", ErrUnsupported, op, resource)
}

// ErrNotFound returns ErrUnknownResource annotated with the name
func ErrNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownResource, name)
}
