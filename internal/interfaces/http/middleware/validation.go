package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rowens2025/powervisualize/internal/interfaces/http/dto"
)

var setupValidator sync.Once

// SetupValidator makes gin's validator name fields by their JSON keys, so
// details read "history[0].content" rather than Go field names. Safe to
// call more than once.
func SetupValidator() {
	setupValidator.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonName)
	})
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ValidationDetails lists the failed fields of a binding error, or nil when
// err did not come from the validator.
func ValidationDetails(err error) []dto.ValidationDetail {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return nil
	}
	out := make([]dto.ValidationDetail, len(fields))
	for i, fe := range fields {
		out[i] = dto.ValidationDetail{Field: fieldPath(fe), Message: describe(fe)}
	}
	return out
}

// fieldPath drops the root struct from the namespace.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "max":
		return fmt.Sprintf("Must be at most %s%s", fe.Param(), unitOf(fe.Kind()))
	}
	return "Invalid value"
}

func unitOf(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	}
	return ""
}
