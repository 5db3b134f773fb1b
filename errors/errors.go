// Package errors holds shared sentinels and helpers for accumulating and
// normalizing errors across the module.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPanicRecovery marks an error that was produced from a recovered panic.
	ErrPanicRecovery = errors.New("recovered from panic")
	// ErrWrongType is returned when a dynamically typed value has an unexpected type.
	ErrWrongType = errors.New("wrong type")
)

// Collection is a thread-unsafe accumulator for multiple errors.
// Use it when several independent checks run and every failure should be
// reported together instead of stopping at the first one.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// Addf wraps base with a formatted prefix and appends it.
// The result still matches base with errors.Is.
func (c *Collection) Addf(base error, format string, args ...any) {
	if base == nil {
		return
	}

	c.errors = append(c.errors, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), base))
}

// Clear removes all errors from the collection.
func (c *Collection) Clear() {
	c.errors = nil
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errors)
}

// Errors returns a copy of the collected errors in insertion order.
func (c *Collection) Errors() []error {
	out := make([]error, len(c.errors))
	copy(out, c.errors)

	return out
}

// GetError returns nil for an empty collection, the error itself when there is
// exactly one, and an errors.Join of everything otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}

// FromPanic converts a recovered panic value into an error wrapping
// ErrPanicRecovery. When the value is itself an error it stays reachable
// through errors.Is and errors.As. A nil value yields nil.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	var err error

	if e, ok := recovered.(error); ok {
		err = fmt.Errorf("%w: %w", ErrPanicRecovery, e)
	} else {
		err = fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
	}

	if len(stack) > 0 {
		return fmt.Errorf("%w\nstack trace:\n%s", err, string(stack))
	}

	return err
}
