package attention

import (
	"errors"
	"fmt"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Common errors.
var (
	// ErrConfiguration is wrapped by every ConfigurationError.
	ErrConfiguration = errors.New("invalid attention configuration")

	// ErrShapeMismatch is wrapped by every ShapeMismatchError.
	ErrShapeMismatch = errors.New("input shape mismatch")

	// ErrDeviceMismatch is returned when an input lives on a different device
	// than the model parameters.
	ErrDeviceMismatch = errors.New("input device does not match model device")
)

// ConfigurationError reports an invalid construction argument.
type ConfigurationError struct {
	Field  string // Config field at fault (e.g., "NumHeads")
	Reason string // What is wrong with it
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("attention: invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports a forward input whose shape does not fit the model.
type ShapeMismatchError struct {
	Input  string       // Input name ("H" or "kv")
	Shape  tensor.Shape // Offending shape
	Reason string
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("attention: shape mismatch: %s %v: %s", e.Input, e.Shape, e.Reason)
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}
