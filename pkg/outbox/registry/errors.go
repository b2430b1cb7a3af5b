package registry

import "errors"

// NonRetryableError marks a failure that retrying cannot fix. The publisher
// dead-letters such rows immediately.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
