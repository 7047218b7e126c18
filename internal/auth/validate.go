package auth

import (
	"regexp"
	"strings"
)

// MinPasswordLen is the shortest password the signup form accepts.
const MinPasswordLen = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FormError is a form-level validation failure shown to the user as is.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

// SignupForm is the raw input of the signup view.
type SignupForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginForm is the raw input of the sign-in view.
type LoginForm struct {
	Email    string
	Password string
}

// ValidateSignup checks the form before any storage access.
func ValidateSignup(f SignupForm) error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" ||
		f.Password == "" || f.ConfirmPassword == "" {
		return &FormError{Message: "Please fill in all fields"}
	}
	if !emailPattern.MatchString(f.Email) {
		return &FormError{Message: "Please enter a valid email address"}
	}
	if len(f.Password) < MinPasswordLen {
		return &FormError{Message: "Password must be at least 6 characters"}
	}
	if f.Password != f.ConfirmPassword {
		return &FormError{Message: "Passwords do not match"}
	}
	return nil
}

// ValidateLogin checks the sign-in form before any storage access.
func ValidateLogin(f LoginForm) error {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return &FormError{Message: "Please fill in all fields"}
	}
	return nil
}
