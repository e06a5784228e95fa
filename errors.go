package crossing

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a single invalid configuration field
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError checks if an error is, or wraps, a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ErrAlreadyRunning is returned when Run is called on a simulation that has already been started.
var ErrAlreadyRunning = errors.New("simulation already started")
