package handlers

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParseValidationErrors converts validator errors to user-friendly format
func ParseValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			out = append(out, ValidationError{
				Field:   fieldError.Field(),
				Message: getErrorMessage(fieldError),
			})
		}
	}

	return out
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " é obrigatório"
	case "email":
		return "Formato de email inválido"
	case "min":
		if isNumeric(fe.Kind()) {
			return fe.Field() + " deve ser no mínimo " + fe.Param()
		}
		return fe.Field() + " deve ter pelo menos " + fe.Param() + " caracteres"
	case "max":
		if isNumeric(fe.Kind()) {
			return fe.Field() + " deve ser no máximo " + fe.Param()
		}
		return fe.Field() + " não pode exceder " + fe.Param() + " caracteres"
	case "oneof":
		return fe.Field() + " deve ser um de: " + fe.Param()
	default:
		return fe.Field() + " é inválido"
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
