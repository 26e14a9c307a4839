// Package validation holds the explicit input checks run before any store access.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/models"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	validate     = newValidator()
)

// Registration is the input of a patient or doctor sign-up.
type Registration struct {
	Role       models.Role `validate:"required,oneof=patient doctor"`
	Name       string      `validate:"name"`
	Email      string      `validate:"required,email"`
	Phone      string      `validate:"phone"`
	Password   string      `validate:"password"`
	Speciality string      `validate:"speciality"`
}

// ProfileUpdate is the input of an authenticated profile change. Nil fields are left alone.
type ProfileUpdate struct {
	Name  *string `validate:"omitempty,name"`
	Phone *string `validate:"omitempty,phone"`
}

var messages = map[string]string{
	"Role":       "Role must be patient or doctor",
	"Name":       "Name must be at least 3 characters long",
	"Email":      "Invalid email format",
	"Phone":      "Invalid phone number format",
	"Password":   "Password must be at least 8 characters long and include at least one letter and one number",
	"Speciality": "Speciality is required for doctors",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("name", func(fl validator.FieldLevel) bool {
		return len([]rune(strings.TrimSpace(fl.Field().String()))) >= 3
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("speciality", func(fl validator.FieldLevel) bool {
		if fl.Parent().FieldByName("Role").String() != string(models.RoleDoctor) {
			return true
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// StrongPassword requires at least 8 characters with one letter and one digit,
// and no more than maxPasswordBytes bytes.
func StrongPassword(pw string) bool {
	if len([]rune(pw)) < 8 || len(pw) > maxPasswordBytes {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// ValidateRegistration checks a sign-up request. The returned error is a VALIDATION_FAILED
// domain error whose message names the first failing field and whose details list all of them.
func ValidateRegistration(r Registration) error {
	r.Email = strings.TrimSpace(r.Email)
	return toDomainError(validate.Struct(r))
}

// ValidateProfileUpdate checks a profile change and rejects an empty one.
func ValidateProfileUpdate(u ProfileUpdate) error {
	if u.Name == nil && u.Phone == nil {
		return apperrors.NewValidationError("No update fields provided", nil)
	}
	return toDomainError(validate.Struct(u))
}

// Required rejects a blank value with message.
func Required(value, message string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(message, nil)
	}
	return nil
}

func toDomainError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError("Invalid request", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldKey(fe.Field())] = messageFor(fe.Field())
	}
	return apperrors.NewValidationError(messageFor(fieldErrs[0].Field()), details)
}

func messageFor(field string) string {
	if msg, ok := messages[field]; ok {
		return msg
	}
	return field + " is invalid"
}

func fieldKey(field string) string {
	switch field {
	case "Name":
		return "username"
	case "Phone":
		return "number"
	default:
		return strings.ToLower(field)
	}
}
