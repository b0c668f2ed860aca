package model

import (
	"time"
)

// BookingStatus values are stored lowercase; "cancelled" and "no-show" are
// terminal and excluded from availability arbitration.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusArrived   BookingStatus = "arrived"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no-show"
	StatusCancelled BookingStatus = "cancelled"
)

// LeadSource records which channel produced a booking.
type LeadSource string

const (
	SourceDashboard LeadSource = "dashboard"
	SourceProvider  LeadSource = "provider"
	SourceChat      LeadSource = "chat"
	SourceEcommerce LeadSource = "ecommerce"
)

// ServiceSnapshot freezes the service's policy at booking time. Later edits
// to the service must not retroactively change the blocked window of
// bookings made under the old policy.
type ServiceSnapshot struct {
	Name         string `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Duration     int    `json:"duration" bson:"duration" validate:"required,min=5,max=480"`
	Price        int    `json:"price" bson:"price" validate:"min=0"`
	BufferBefore int    `json:"buffer_before" bson:"buffer_before" validate:"min=0,max=240"`
	BufferAfter  int    `json:"buffer_after" bson:"buffer_after" validate:"min=0,max=240"`
}

type Booking struct {
	ID         int64  `json:"id" bson:"_id"`
	BusinessID string `json:"business_id" bson:"business_id" validate:"required,mongodb"`
	ProviderID string `json:"provider_id" bson:"provider_id" validate:"required,mongodb"`

	Date string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" bson:"time" validate:"required,datetime=15:04"`

	ServiceID       string          `json:"service_id,omitempty" bson:"service_id,omitempty" validate:"omitempty,mongodb"`
	ServiceSnapshot ServiceSnapshot `json:"service_snapshot" bson:"service_snapshot" validate:"required"`

	ProviderName string `json:"provider_name,omitempty" bson:"provider_name,omitempty" validate:"omitempty,max=100"`

	// Client contact is opaque to the core: values arrive encrypted, with a
	// deterministic hash for lookups.
	ClientName           string `json:"client_name" bson:"client_name" validate:"required,min=1,max=100"`
	ClientEmailEncrypted string `json:"-" bson:"client_email_encrypted,omitempty"`
	ClientEmailHash      string `json:"client_email_hash,omitempty" bson:"client_email_hash,omitempty"`
	ClientPhoneEncrypted string `json:"-" bson:"client_phone_encrypted,omitempty"`
	ClientPhoneHash      string `json:"client_phone_hash,omitempty" bson:"client_phone_hash,omitempty"`

	Status     BookingStatus `json:"status" bson:"status" validate:"required,oneof=confirmed arrived completed no-show cancelled"`
	LeadSource LeadSource    `json:"lead_source" bson:"lead_source" validate:"omitempty,oneof=dashboard provider chat ecommerce"`
	Notes      string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`

	CancelToken        string     `json:"-" bson:"cancel_token,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`

	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Active reports whether the booking occupies its window for availability
// purposes. Cancelled and no-show bookings free their slot.
func (b *Booking) Active() bool {
	return b.Status != StatusCancelled && b.Status != StatusNoShow
}

// Terminal reports whether no further status transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusNoShow || s == StatusCompleted
}

// BlockedWindow is the booking's actual occupancy including the frozen
// buffer margins from its service snapshot.
func (b *Booking) BlockedWindow() (Window, error) {
	start, err := MinutesFromClock(b.Time)
	if err != nil {
		return Window{}, err
	}
	return Window{
		Start: start - b.ServiceSnapshot.BufferBefore,
		End:   start + b.ServiceSnapshot.Duration + b.ServiceSnapshot.BufferAfter,
	}, nil
}

// CreateBookingRequest is the write payload for a new booking. Contact
// fields arrive pre-encrypted; the core never sees plaintext email or phone.
type CreateBookingRequest struct {
	BusinessID string `json:"business_id" validate:"required,mongodb"`
	ProviderID string `json:"provider_id" validate:"required,mongodb"`

	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,datetime=15:04"`

	ServiceID       string          `json:"service_id,omitempty" validate:"omitempty,mongodb"`
	ServiceSnapshot ServiceSnapshot `json:"service_snapshot" validate:"required"`

	ProviderName string `json:"provider_name,omitempty" validate:"omitempty,max=100"`

	ClientName           string `json:"client_name" validate:"required,min=1,max=100"`
	ClientEmailEncrypted string `json:"client_email_encrypted,omitempty"`
	ClientEmailHash      string `json:"client_email_hash,omitempty" validate:"omitempty,len=64,hexadecimal"`
	ClientPhoneEncrypted string `json:"client_phone_encrypted,omitempty"`
	ClientPhoneHash      string `json:"client_phone_hash,omitempty" validate:"omitempty,len=64,hexadecimal"`

	LeadSource LeadSource `json:"lead_source,omitempty" validate:"omitempty,oneof=dashboard provider chat ecommerce"`
	Notes      string     `json:"notes,omitempty" validate:"omitempty,max=2000"`

	RoomIDs []string `json:"room_ids,omitempty" validate:"omitempty,dive,mongodb"`

	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// StatusPatch carries the optimistic-concurrency status mutation contract:
// the caller must present the version it last read.
type StatusPatch struct {
	Status             BookingStatus `json:"status" validate:"required,oneof=confirmed arrived completed no-show cancelled"`
	ExpectedVersion    int64         `json:"version" validate:"required,min=1"`
	CancellationReason string        `json:"cancellation_reason,omitempty" validate:"omitempty,max=500"`
	CancelledBy        string        `json:"cancelled_by,omitempty" validate:"omitempty,max=100"`
	Notes              string        `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
