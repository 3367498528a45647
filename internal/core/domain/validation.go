package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Field length limits for account records.
const (
	MinNameLength     = 3
	MaxNameLength     = 100
	MinUsernameLength = 4
	MaxUsernameLength = 50
	MinSecretLength   = 5
	MaxSecretLength   = 50
)

// ValidationError reports a single field failing its predicate. It is always
// recoverable: the caller corrects the input and retries.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateFullName checks a display name: non-empty, 3-100 characters, letters
// and spaces only. Accented letters count as letters.
func ValidateFullName(name string) *ValidationError {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newValidationError("name", "name must not be empty")
	}
	runes := []rune(name)
	if len(runes) < MinNameLength {
		return newValidationError("name", "name must be at least %d characters", MinNameLength)
	}
	if len(runes) > MaxNameLength {
		return newValidationError("name", "name must not exceed %d characters", MaxNameLength)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return newValidationError("name", "name may only contain letters and spaces")
		}
	}
	return nil
}

// ValidateUsername checks a login handle: non-empty, 4-50 characters, lowercase
// letters, digits and underscore, and must not start with a digit.
func ValidateUsername(username string) *ValidationError {
	if strings.TrimSpace(username) == "" {
		return newValidationError("username", "username must not be empty")
	}
	if len(username) < MinUsernameLength {
		return newValidationError("username", "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return newValidationError("username", "username must not exceed %d characters", MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return newValidationError("username", "username may only contain lowercase letters, digits and underscore")
	}
	if username[0] >= '0' && username[0] <= '9' {
		return newValidationError("username", "username must not start with a digit")
	}
	return nil
}

// ValidateSecret checks a raw login credential: non-empty, 5-50 characters,
// containing at least one letter and one digit.
func ValidateSecret(secret string) *ValidationError {
	if secret == "" {
		return newValidationError("password", "password must not be empty")
	}
	runes := []rune(secret)
	if len(runes) < MinSecretLength {
		return newValidationError("password", "password must be at least %d characters", MinSecretLength)
	}
	if len(runes) > MaxSecretLength {
		return newValidationError("password", "password must not exceed %d characters", MaxSecretLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range secret {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return newValidationError("password", "password must contain at least one letter and one digit")
	}
	return nil
}

// ParseRole normalises and validates a raw role string against the closed
// enumeration.
func ParseRole(raw string) (Role, *ValidationError) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.IsValid() {
		names := make([]string, 0, len(ValidRoles()))
		for _, r := range ValidRoles() {
			names = append(names, string(r))
		}
		return "", newValidationError("role", "invalid role; valid roles: %s", strings.Join(names, ", "))
	}
	return role, nil
}

// NormalizeUsername lowercases and trims a login handle so lookups and
// uniqueness checks are case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
