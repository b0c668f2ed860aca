package validator

import (
	"strings"
	"testing"

	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

func newValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"}))
}

func validRequest() *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "507f1f77bcf86cd799439012",
		Date:       "2030-06-10",
		Time:       "10:00",
		ServiceSnapshot: model.ServiceSnapshot{
			Name:        "Consultation",
			Duration:    60,
			BufferAfter: 15,
		},
		ClientName: "Dana Levi",
	}
}

func TestValidateCreate(t *testing.T) {
	v := newValidator()

	if err := v.ValidateCreate(validRequest()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestValidateCreateFieldErrors(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	tests := []struct {
		name   string
		mutate func(req *model.CreateBookingRequest)
		field  string
	}{
		{"missing business", func(r *model.CreateBookingRequest) { r.BusinessID = "" }, "BusinessID"},
		{"bad provider id", func(r *model.CreateBookingRequest) { r.ProviderID = "nope" }, "ProviderID"},
		{"bad date", func(r *model.CreateBookingRequest) { r.Date = "10/06/2030" }, "Date"},
		{"bad time", func(r *model.CreateBookingRequest) { r.Time = "25:00" }, "Time"},
		{"short duration", func(r *model.CreateBookingRequest) { r.ServiceSnapshot.Duration = 2 }, "Duration"},
		{"missing client", func(r *model.CreateBookingRequest) { r.ClientName = "" }, "ClientName"},
		{"short email hash", func(r *model.CreateBookingRequest) {
			r.ClientEmailEncrypted = "ciphertext"
			r.ClientEmailHash = "abc"
		}, "ClientEmailHash"},
		{"hash without ciphertext", func(r *model.CreateBookingRequest) { r.ClientPhoneHash = hash }, "ClientPhoneHash"},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := v.ValidateCreate(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			vErrs, ok := err.(ValidationErrors)
			if !ok {
				t.Fatalf("unexpected error type: %v", err)
			}
			found := false
			for _, e := range vErrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, vErrs)
			}
		})
	}
}

func TestValidateCreateWindowMustFitDay(t *testing.T) {
	v := newValidator()

	req := validRequest()
	req.Time = "23:30"
	req.ServiceSnapshot.Duration = 45

	if err := v.ValidateCreate(req); err == nil {
		t.Fatal("booking spilling past midnight must be rejected")
	}

	req = validRequest()
	req.Time = "00:05"
	req.ServiceSnapshot.BufferBefore = 30

	if err := v.ValidateCreate(req); err == nil {
		t.Fatal("leading buffer reaching before midnight must be rejected")
	}
}

func TestValidateStatusPatch(t *testing.T) {
	v := newValidator()

	if err := v.ValidateStatusPatch(&model.StatusPatch{
		Status:          model.StatusArrived,
		ExpectedVersion: 1,
	}); err != nil {
		t.Fatalf("valid patch rejected: %v", err)
	}

	if err := v.ValidateStatusPatch(&model.StatusPatch{
		Status:          model.StatusCancelled,
		ExpectedVersion: 1,
	}); err == nil {
		t.Fatal("cancellation without a reason must be rejected")
	}

	if err := v.ValidateStatusPatch(&model.StatusPatch{
		Status:          "pending",
		ExpectedVersion: 1,
	}); err == nil {
		t.Fatal("unknown status must be rejected")
	}

	if err := v.ValidateStatusPatch(&model.StatusPatch{
		Status: model.StatusArrived,
	}); err == nil {
		t.Fatal("missing expected version must be rejected")
	}
}
