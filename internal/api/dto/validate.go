package dto

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

var validate = validator.New()

// Validate checks struct tags and converts failures into the
// INVALID_ARGUMENT taxonomy.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	details := map[string]any{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return apperrors.NewInvalidArgument("invalid payload", details)
}
