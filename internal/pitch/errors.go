package pitch

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidConfig = errors.New("invalid pitch detector configuration")
	ErrShapeMismatch = errors.New("sample count does not match window size")
	ErrAlgorithm     = errors.New("pitch detection failed")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func configError(field string, value any, reason string, args ...any) error {
	return &ConfigError{Field: field, Value: value, Reason: fmt.Sprintf(reason, args...)}
}
