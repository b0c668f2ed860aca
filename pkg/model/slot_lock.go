package model

import "time"

// SlotLock is a short-lived, TTL-based exclusive claim on a provider/date/
// window. The unique index on IdempotencyKey is the atomic primitive that
// serializes concurrent acquisition attempts; the overlap pre-check alone is
// advisory.
type SlotLock struct {
	ID         string   `json:"id,omitempty" bson:"_id,omitempty"`
	BusinessID string   `json:"business_id" bson:"business_id" validate:"required,mongodb"`
	ProviderID string   `json:"provider_id" bson:"provider_id" validate:"required,mongodb"`
	Date       string   `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Window     Window   `json:"window" bson:"window"`
	RoomIDs    []string `json:"room_ids,omitempty" bson:"room_ids,omitempty" validate:"omitempty,dive,mongodb"`

	CreatedBy      string `json:"created_by" bson:"created_by" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" bson:"idempotency_key" validate:"required"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired locks are transparent to contention checks.
func (l *SlotLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
