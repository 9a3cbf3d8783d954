package config

import (
	"errors"
	"strings"
)

var ErrMissing = errors.New("missing required configuration")

// ConfigError lists every missing or invalid key found while loading.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrMissing) match when keys are missing.
func (e *ConfigError) Unwrap() error {
	if len(e.Missing) > 0 {
		return ErrMissing
	}
	return nil
}
