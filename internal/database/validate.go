package database

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// RequireText trims value and checks it is non-empty and at most maxLen
// characters long.
func RequireText(op, field, value string, maxLen int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", Invalid(op, field, "is required")
	}
	if utf8.RuneCountInString(value) > maxLen {
		return "", Invalid(op, field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return value, nil
}

// OptionalText trims value and maps blank input to nil.
func OptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
