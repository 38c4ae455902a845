package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	validate.RegisterValidation("shoesize", func(fl validator.FieldLevel) bool {
		return domain.IsKnownSize(fl.Field().String())
	})
}

// validateStruct turns validator failures into a store.ValidationError keyed
// by the JSON path of each failing field.
func validateStruct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return store.Invalid("request", err.Error())
	}

	fields := make(map[string]string, len(failures))
	for _, failure := range failures {
		fields[fieldPath(failure.Namespace())] = describe(failure)
	}
	return &store.ValidationError{Fields: fields}
}

func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(failure validator.FieldError) string {
	switch failure.Tag() {
	case "required":
		return "required"
	case "min":
		return "must have at least " + failure.Param()
	case "gte":
		return "must be at least " + failure.Param()
	case "ne":
		return "must not be " + failure.Param()
	case "oneof":
		return "must be one of " + failure.Param()
	case "datetime":
		return "must be a date formatted " + failure.Param()
	case "shoesize":
		return "unknown size"
	}
	return "failed " + failure.Tag()
}
