// Package validation validates boundary requests with go-playground/validator.
//
// Besides the built-in tags it registers:
//
//	column          a known column name
//	numeric_column  a known integer or measure column
//	group_column    a known categorical or integer column
//	pollutant       one of PM2.5, PM10, SO2, NO2, CO, O3
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"airquality-go/internal/state"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// RequestError collects every failed field of one request.
type RequestError struct {
	Fields []FieldError
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister("column", func(fl validator.FieldLevel) bool {
			return state.Column(fl.Field().String()).IsKnown()
		})
		mustRegister("numeric_column", func(fl validator.FieldLevel) bool {
			return state.Column(fl.Field().String()).IsNumeric()
		})
		mustRegister("group_column", func(fl validator.FieldLevel) bool {
			return state.Column(fl.Field().String()).IsGroupable()
		})
		mustRegister("pollutant", func(fl validator.FieldLevel) bool {
			return state.Column(fl.Field().String()).IsPollutant()
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Struct validates s and returns a *RequestError on failure.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprint(fe.Value()),
			Message: translate(fe),
		}
	}
	return &RequestError{Fields: fields}
}

var messages = map[string]string{
	"required":       "%s is required",
	"column":         "%s: unknown column %q",
	"numeric_column": "%s: %q is not a numeric column",
	"group_column":   "%s: %q cannot be used as a grouping key",
	"pollutant":      "%s: %q is not a pollutant",
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf(messages["required"], fe.Field())
	case "column", "numeric_column", "group_column", "pollutant":
		return fmt.Sprintf(messages[fe.Tag()], fe.Field(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
