package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller errors. They are never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFitFailure marks a model that could not be fitted.
	ErrFitFailure = errors.New("fit failure")
	// ErrNonFinite marks a forecast holding NaN or Inf values.
	ErrNonFinite = errors.New("forecast has non-finite values")
)

// InvalidInput returns an error wrapping ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// FitError reports which model failed to fit and why.
type FitError struct {
	Model string
	Err   error
}

// NewFitError wraps err as a fit failure of model.
func NewFitError(model string, err error) *FitError {
	return &FitError{Model: model, Err: err}
}

func (e *FitError) Error() string {
	if e.Err == nil {
		return e.Model + ": fit failure"
	}
	return fmt.Sprintf("%s: fit failure: %v", e.Model, e.Err)
}

// Unwrap exposes both ErrFitFailure and the underlying cause.
func (e *FitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFitFailure}
	}
	return []error{ErrFitFailure, e.Err}
}
