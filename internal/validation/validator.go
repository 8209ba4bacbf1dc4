// Package validation checks caller-supplied structs against their
// validate struct tags.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions and descriptors such
// as @hourly or @every 15m.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New returns a validator with the custom rules registered:
//
//	cronspec  string parses as a cron schedule
//	nonempty  string is non-blank after trimming
func New() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		return ValidCron(fl.Field().String())
	})
	_ = v.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// ValidCron reports whether expr is an accepted cron schedule.
func ValidCron(expr string) bool {
	_, err := cronParser.Parse(expr)
	return err == nil
}

// ParseCron parses expr with the same rules ValidCron applies.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Struct validates s and flattens any field errors into a single error.
func Struct(v *validator.Validate, s any) error {
	if v == nil {
		v = New()
	}
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
	}
	return &Error{Messages: messages}
}

// Error reports every failed rule from one validation pass.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
