package validation

import (
	"errors"
	"strings"
)

// ValidateName validates profile name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if len(trimmed) > 50 {
		return errors.New("name is too long (max 50 characters)")
	}

	return nil
}
