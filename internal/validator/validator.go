// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cogi/internal/password"
)

// DateLayout is the accepted layout for date-only request fields.
const DateLayout = "2006-01-02"

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("strong_password", validateStrongPassword)
		_ = v.RegisterValidation("iso_date", validateISODate)
		_ = v.RegisterValidation("gender", validateGender)
		_ = v.RegisterValidation("notblank", validateNotBlank)
	}
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return password.IsStrong(fl.Field().String())
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func validateGender(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "male", "female", "other", "prefer_not_to_say":
		return true
	}
	return false
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
