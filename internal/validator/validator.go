// Package validator checks form input before anything reaches the
// identity service. Every function is pure and safe to call repeatedly.
package validator

import (
	"regexp"

	"fdss/internal/domain"

	"github.com/go-playground/validator/v10"
)

// local@domain.tld with no whitespace and at least one dot after the @.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	return v
}

// Rules are ranked; when several fields fail, the lowest rank wins.
var rank = map[domain.ValidationKind]int{
	domain.MissingFields:    0,
	domain.InvalidEmail:     1,
	domain.PasswordTooShort: 2,
	domain.PasswordMismatch: 3,
}

func ValidateLogin(creds domain.Credentials) error {
	return check(&creds)
}

func ValidateRegistration(req domain.Registration) error {
	return check(&req)
}

func ValidateResetRequest(req domain.ResetRequest) error {
	return check(&req)
}

func ValidateReset(req domain.ResetConfirmation) error {
	return check(&req)
}

func ValidateProfile(req domain.ProfileUpdate) error {
	return check(&req)
}

func check(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ErrMissingFields
	}

	var worst *domain.ValidationError
	for _, fe := range validationErrors {
		kind := kindOf(fe)
		if worst == nil || rank[kind.Kind] < rank[worst.Kind] {
			worst = kind
		}
	}

	return worst
}

func kindOf(fe validator.FieldError) *domain.ValidationError {
	switch fe.Tag() {
	case "required":
		return domain.ErrMissingFields
	case "emailshape":
		return domain.ErrInvalidEmail
	case "min":
		return domain.ErrPasswordTooShort
	case "eqfield":
		return domain.ErrPasswordMismatch
	default:
		return domain.ErrMissingFields
	}
}
