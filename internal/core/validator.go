package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"airwatch/internal/types"
)

// Validator wraps go-playground/validator with the AirWatch rules:
//
//	nodeid  letters, digits, '_' and '-', at most 64 characters
//
// Field names in error details use the json tag, so clients see the names
// they sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("nodeid", func(fl validator.FieldLevel) bool {
		return types.ValidateNodeID(fl.Field().String()) == nil
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and converts failures into an AppError with
// code code. Details map each failing field to the rule it broke.
func (v *Validator) ValidateStruct(s any, code types.ErrorCode) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	details := make(map[string]any, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe)
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[field] = rule
		names = append(names, field)
	}

	return types.NewAppErrorWithDetails(code, "invalid fields: "+strings.Join(names, ", "), nil, details)
}

// fieldPath drops the top-level struct name from the namespace, so
// "Payload.pm2_5" becomes "pm2_5" and "readings[1].node_id" is kept.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
