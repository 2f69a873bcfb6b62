package validation

import (
	"errors"
	"regexp"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateUsername validates username length and allowed characters
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}

	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}

	if len(username) > 30 {
		return errors.New("username is too long (max 30 characters)")
	}

	if !usernamePattern.MatchString(username) {
		return errors.New("username may only contain letters, digits, dots, dashes and underscores")
	}

	return nil
}
