package auth

import (
	"fmt"
	"net/mail"
	"strings"
)

// DefaultMinPasswordLength is the shortest password accepted.
const DefaultMinPasswordLength = 8

// ValidationError is a problem with form input, shown next to the field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateLogin checks sign in input.
func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return &ValidationError{Field: "form", Message: "Please fill in all fields"}
	}
	return validateEmail(email)
}

// ValidateRegistration checks sign up input.
func ValidateRegistration(email, password, confirm string, minLength int) error {
	if strings.TrimSpace(email) == "" || password == "" || confirm == "" {
		return &ValidationError{Field: "form", Message: "Please fill in all fields"}
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return ValidateNewPassword(password, confirm, minLength)
}

// ValidateNewPassword checks a new password and its confirmation.
func ValidateNewPassword(password, confirm string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	if password != confirm {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	if len([]rune(password)) < minLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", minLength),
		}
	}
	return nil
}

// ValidateEmail checks a password reset request.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "Please enter your email"}
	}
	return validateEmail(email)
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return &ValidationError{Field: "email", Message: "Please enter a valid email"}
	}
	return nil
}
