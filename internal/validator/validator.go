// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"tribune/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("action_type", validateActionType)
		_ = v.RegisterValidation("resource_type", validateResourceType)
		_ = v.RegisterValidation("outcome", validateOutcome)
		_ = v.RegisterValidation("export_format", validateExportFormat)
	}
}

func validateActionType(fl validator.FieldLevel) bool {
	_, err := models.ParseActionType(fl.Field().String())
	return err == nil
}

func validateResourceType(fl validator.FieldLevel) bool {
	_, err := models.ParseResourceType(fl.Field().String())
	return err == nil
}

func validateOutcome(fl validator.FieldLevel) bool {
	_, err := models.ParseOutcome(fl.Field().String())
	return err == nil
}

func validateExportFormat(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "csv", "json":
		return true
	}
	return false
}
