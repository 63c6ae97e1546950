package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.\-]+$`)

// bcrypt ignores anything past 72 bytes
const maxSecretBytes = 72

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ValidationError{Field: "username", Message: "username is required"}
	}
	if utf8.RuneCountInString(username) > 32 {
		return ValidationError{Field: "username", Message: "username must be at most 32 characters"}
	}
	if !usernameRegex.MatchString(username) {
		return ValidationError{Field: "username", Message: "username may only contain letters, digits, '.', '-' and '_'"}
	}
	return nil
}

// ValidatePassword checks if a credential secret can be stored
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) > maxSecretBytes {
		return ValidationError{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", maxSecretBytes)}
	}
	return nil
}

// ValidateAge checks that age lies within [min, max]
func ValidateAge(age, min, max int) error {
	if age < min || age > max {
		return ValidationError{Field: "age", Message: fmt.Sprintf("age must be between %d and %d", min, max)}
	}
	return nil
}

// ValidatePurchase checks the item identifier and its cost
func ValidatePurchase(itemID string, cost int) error {
	if strings.TrimSpace(itemID) == "" {
		return ValidationError{Field: "itemName", Message: "item is required"}
	}
	if cost <= 0 {
		return ValidationError{Field: "itemCost", Message: "cost must be positive"}
	}
	return nil
}
