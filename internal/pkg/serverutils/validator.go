package serverutils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// ValidationError carries one message per invalid field, keyed by its JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func ValidateRequest(req interface{}) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return "is invalid"
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		for _, key := range []string{"query", "params"} {
			if v := strings.SplitN(f.Tag.Get(key), ",", 2)[0]; v != "" {
				return v
			}
		}
		return f.Name
	}
	return name
}
