package http

import (
	"github.com/go-playground/validator/v10"
)

// requestValidator подключает go-playground/validator к echo.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate реализует echo.Validator.
func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
