package future

// Result holds the outcome of an asynchronous computation: either a value or an error.
type Result[T any] struct {
	Value T
	Error error
}

// IsSuccess reports whether the computation produced a value.
func (r Result[T]) IsSuccess() bool {
	return r.Error == nil
}

// Get unpacks the result in the usual (value, error) form. The value is the
// zero value of T whenever Error is set.
func (r Result[T]) Get() (T, error) { //nolint:ireturn
	if r.Error != nil {
		var zero T

		return zero, r.Error
	}

	return r.Value, nil
}
