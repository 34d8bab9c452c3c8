package unet

import "fmt"

// ConfigError reports an invalid model configuration. It is returned at
// construction time and is fatal to model creation.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unet: invalid configuration: %v", e.Reason)
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ShapeError reports a malformed input tensor passed to a forward pass.
// The caller may reshape or pad the input and retry.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unet: bad input shape: %v", e.Reason)
}

func shapeErrorf(format string, args ...interface{}) *ShapeError {
	return &ShapeError{Reason: fmt.Sprintf(format, args...)}
}
