package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidName  = errors.New("invalid name")
	ErrWeakPassword = errors.New("weak password")
)

const (
	maxEmailLength    = 254 // RFC 5321 path limit
	maxNameLength     = 100
	minPasswordLength = 12
	maxPasswordLength = 72 // bcrypt ignores anything beyond 72 bytes
)

// Substrings that make a password trivially guessable
var weakPasswordPatterns = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine",
}

// ValidateEmail accepts a bare RFC 5322 address. Display-name forms such as
// "Ann <ann@example.com>" are rejected so the stored value is the address itself.
func ValidateEmail(email string) error {
	switch {
	case email == "":
		return fmt.Errorf("%w: required", ErrInvalidEmail)
	case len(email) > maxEmailLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidEmail, maxEmailLength)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: required", ErrInvalidName)
	case len(trimmed) > maxNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePassword enforces length bounds and rejects common patterns.
func ValidatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLength)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: must not exceed %d bytes", ErrWeakPassword, maxPasswordLength)
	}

	lower := strings.ToLower(password)
	for _, pattern := range weakPasswordPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: contains %q", ErrWeakPassword, pattern)
		}
	}
	return nil
}
