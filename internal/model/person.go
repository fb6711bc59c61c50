// Package model holds the phonebook's internal domain types and the field
// rules every persisted record must satisfy.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// MinNameLength is the minimum number of characters in a name.
	MinNameLength = 3

	// MinNumberLength is the minimum total length of a phone number.
	MinNumberLength = 9

	// NumberPattern accepts two or three leading digits, a hyphen and at
	// least one more digit. The length rule is checked separately.
	NumberPattern = `^\d{2,3}-\d+$`

	entityName = "Person"

	phoneTag = "phone"
)

var (
	numberPattern = regexp.MustCompile(NumberPattern)
	validate      = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return ValidNumber(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("registering %s validation: %v", phoneTag, err))
	}
	return v
}

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Person is a phonebook entry as stored. Revision, CreatedAt and UpdatedAt
// are store bookkeeping and never leave the service.
type Person struct {
	ID     string
	Name   string `validate:"required,min=3"`
	Number string `validate:"required,phone"`

	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldError describes one failed field rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field rule a Person failed.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(parts, ", "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks name and number against the field rules and returns a
// *ValidationError when any of them fails.
func (p Person) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return fmt.Errorf("validating %s: %w", strings.ToLower(entityName), err)
	}

	fields := make([]FieldError, 0, len(failed))
	for _, fe := range failed {
		fields = append(fields, FieldError{
			Field:   strings.ToLower(fe.StructField()),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationError{Entity: entityName, Fields: fields}
}

// fieldMessage renders the message clients see for one failed rule.
func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Path `%s` is required.", field)
	case "min":
		return fmt.Sprintf("Path `%s` (`%v`) is shorter than the minimum allowed length (%s).",
			field, fe.Value(), fe.Param())
	case phoneTag:
		return fmt.Sprintf("%v is not a valid phone number! Format should be XX-XXXXXXX or XXX-XXXXXX with minimum length of %d.",
			fe.Value(), MinNumberLength)
	default:
		return fmt.Sprintf("Path `%s` failed the %s rule.", field, fe.Tag())
	}
}

// ValidNumber reports whether number satisfies both the pattern and the
// minimum length rule.
func ValidNumber(number string) bool {
	return numberPattern.MatchString(number) && len(number) >= MinNumberLength
}
