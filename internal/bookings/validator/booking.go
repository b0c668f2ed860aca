package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

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

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log,
	}
}

func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	start, err := model.MinutesFromClock(req.Time)
	if err != nil {
		return ValidationErrors{
			ValidationError{Field: "Time", Message: "time must be in HH:MM format"},
		}
	}

	snapshot := req.ServiceSnapshot
	end := start + snapshot.Duration + snapshot.BufferAfter
	if end > model.MinutesPerDay {
		return ValidationErrors{
			ValidationError{
				Field:   "Time",
				Message: "booking and its trailing buffer must end within the same day",
			},
		}
	}
	if start-snapshot.BufferBefore < 0 {
		return ValidationErrors{
			ValidationError{
				Field:   "Time",
				Message: "leading buffer must not reach before midnight",
			},
		}
	}

	if (req.ClientEmailEncrypted == "") != (req.ClientEmailHash == "") {
		return ValidationErrors{
			ValidationError{
				Field:   "ClientEmailHash",
				Message: "encrypted email and its hash must be provided together",
			},
		}
	}
	if (req.ClientPhoneEncrypted == "") != (req.ClientPhoneHash == "") {
		return ValidationErrors{
			ValidationError{
				Field:   "ClientPhoneHash",
				Message: "encrypted phone and its hash must be provided together",
			},
		}
	}

	return nil
}

func (v *BookingValidator) ValidateStatusPatch(patch *model.StatusPatch) error {
	if err := v.validate.Struct(patch); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if patch.Status == model.StatusCancelled && patch.CancellationReason == "" {
		return ValidationErrors{
			ValidationError{
				Field:   "CancellationReason",
				Message: "cancellation_reason is required when cancelling",
			},
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must match the format %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "hexadecimal":
			message = fmt.Sprintf("%s must be a hex-encoded digest", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
