package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

var (
	lowerRegex = regexp.MustCompile(`[a-z]`)
	upperRegex = regexp.MustCompile(`[A-Z]`)
	digitRegex = regexp.MustCompile(`[0-9]`)
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterRequest mirrors the fields needed for registration validation.
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginRequest mirrors the fields needed for sign-in validation.
type LoginRequest struct {
	Email    string
	Password string
}

// ValidateRegisterRequest validates the fields of a registration request.
// Returns a slice of field errors; empty slice means valid.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError

	errs = appendEmailErrors(errs, req.Email)

	switch {
	case req.Password == "":
		errs = append(errs, FieldError{Field: "password", Message: "Please input your password!"})
	case len(req.Password) < MinPasswordLength:
		errs = append(errs, FieldError{Field: "password", Message: "Password must be at least 8 characters long"})
	case !lowerRegex.MatchString(req.Password) || !upperRegex.MatchString(req.Password) || !digitRegex.MatchString(req.Password):
		errs = append(errs, FieldError{Field: "password", Message: "Password must contain at least one uppercase letter, one lowercase letter, and one number"})
	}

	if req.ConfirmPassword == "" {
		errs = append(errs, FieldError{Field: "confirmPassword", Message: "Please confirm your password!"})
	} else if req.ConfirmPassword != req.Password {
		errs = append(errs, FieldError{Field: "confirmPassword", Message: "The passwords do not match!"})
	}

	return errs
}

// ValidateLoginRequest validates the fields of a sign-in request.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError

	errs = appendEmailErrors(errs, req.Email)
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "Please input your password!"})
	}

	return errs
}

func appendEmailErrors(errs []FieldError, email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(errs, FieldError{Field: "email", Message: "Please input your email!"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return append(errs, FieldError{Field: "email", Message: "Please enter a valid email address"})
	}
	return errs
}
