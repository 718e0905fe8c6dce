package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"github.com/go-playground/validator/v10"
)

var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// SwapValidator validates all inbound swap and slot payloads.
type SwapValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSwapValidator(log *logger.Logger) *SwapValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock_time", validateClockTime); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}

	return &SwapValidator{
		validate: v,
		logger:   log,
	}
}

func validateClockTime(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func (v *SwapValidator) ValidateProposal(proposal *model.SwapProposal) error {
	return v.validateStruct(proposal)
}

func (v *SwapValidator) ValidateDecision(decision *model.SwapDecision) error {
	return v.validateStruct(decision)
}

func (v *SwapValidator) ValidateSlot(slot *model.Slot) error {
	if err := v.validateStruct(slot); err != nil {
		return err
	}

	if slot.Start != "" && slot.End != "" && slot.End <= slot.Start {
		return ValidationErrors{
			ValidationError{
				Field:   "End",
				Message: "end must be after start",
			},
		}
	}

	return nil
}

func (v *SwapValidator) ValidateStatusUpdate(update *model.SlotStatusUpdate) error {
	return v.validateStruct(update)
}

func (v *SwapValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SwapValidator) translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, fieldErr := range errs {
		out = append(out, ValidationError{
			Field:   fieldErr.Field(),
			Message: describeTag(fieldErr),
		})
	}
	return out
}

func describeTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "mongodb":
		return "must be a valid object id"
	case "clock_time":
		return "must be in HH:MM format"
	case "datetime":
		return "must be in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fieldErr.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", fieldErr.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed '%s' validation", fieldErr.Tag())
	}
}
