package services

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"handyconnect-server/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.ServiceCategory(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
		return models.Urgency(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return models.InterventionStatus(fl.Field().String()).IsValid()
	})

	return v
}

// validateStruct runs struct validation and converts failures into a field map.
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return ValidationError("Invalid data", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "category":
		return "Unknown service category"
	case "urgency":
		return "Must be one of: low, medium, high, emergency"
	case "status":
		return "Unknown intervention status"
	default:
		return fmt.Sprintf("Invalid value (failed on '%s' tag)", fe.Tag())
	}
}
