// Package validation checks identifiers and credentials supplied by
// operators.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	// Fleet IDs appear in URLs, metric labels and redis channels
	fleetIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,62}$`)

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)
)

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	// drop control characters except newline and tab
	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

func ValidateFleetID(id string) error {
	if id == "" {
		return errors.New("fleet id cannot be empty")
	}
	if len(id) > 63 {
		return errors.New("fleet id must not exceed 63 characters")
	}
	if !fleetIDRegex.MatchString(id) {
		return errors.New("fleet id must start with alphanumeric and contain only letters, numbers, dots, hyphens, and underscores")
	}
	return nil
}

func ValidateUsername(username string) error {
	if username != SanitizeString(username) {
		return errors.New("username must not contain whitespace or control characters at its ends")
	}

	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return errors.New("username must not exceed 50 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username must contain only letters, numbers, and . _ @ -")
	}

	return nil
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return errors.New("password must not exceed 72 bytes")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSpecial {
		return errors.New("password must contain at least one special character")
	}

	return nil
}
