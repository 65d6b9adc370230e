package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/cinex-booking/internal/domain"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_number", validateSeatNumber)
	validator.RegisterValidation("ticket_type", validateTicketType)

	return validator
}

func validateSeatNumber(fl validator.FieldLevel) bool {
	_, _, err := domain.ParseSeatNumber(fl.Field().String())
	return err == nil
}

func validateTicketType(fl validator.FieldLevel) bool {
	_, err := domain.ParseTicketType(fl.Field().String())
	return err == nil
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", err.Param())
	case "unique":
		return "must not contain duplicates"
	case "seat_number":
		return "must be a row letter followed by a column number, e.g. A5"
	case "ticket_type":
		return "must be one of Regular, VIP, Student"
	default:
		return "is invalid"
	}
}

// Describe flattens validation errors into one line, "field message; ...".
// Errors of other kinds are returned as their message.
func Describe(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		parts = append(parts, fmt.Sprintf("%s %s", fieldName(fe), ValidationMessage(fe)))
	}

	return strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}

	return fe.Field()
}
