package model

// BlockReason is the stable, closed set of reason codes the core returns to
// callers. These strings are part of the wire contract and must not change
// across versions.
type BlockReason string

const (
	ReasonExistingBooking     BlockReason = "EXISTING_BOOKING"
	ReasonLeadTimeViolation   BlockReason = "LEAD_TIME_VIOLATION"
	ReasonMaxAdvanceExceeded  BlockReason = "MAX_ADVANCE_EXCEEDED"
	ReasonOutsideWorkingHours BlockReason = "OUTSIDE_WORKING_HOURS"
	ReasonSlotLocked          BlockReason = "SLOT_LOCKED"
	ReasonVersionConflict     BlockReason = "VERSION_CONFLICT"
)
