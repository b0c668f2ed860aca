package availability

import (
	"context"
	"time"

	"slotwise/internal/locks"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

// BookingSource supplies the active bookings the engine arbitrates over.
// Implemented by the booking repository; narrowed here so this package never
// depends on storage details.
type BookingSource interface {
	FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error)
}

// CheckParams describes a single candidate slot. Zero Duration and nil
// buffers fall back to the configured defaults.
type CheckParams struct {
	BusinessID       string
	ProviderID       string
	Date             string
	Time             string
	Duration         int
	BufferBefore     *int
	BufferAfter      *int
	ExcludeBookingID int64
}

// SlotsParams asks for the annotated slot grid of one day.
type SlotsParams struct {
	BusinessID   string
	ProviderID   string
	Date         string
	Duration     int
	BufferBefore *int
	BufferAfter  *int
	SlotsPerHour int
}

// Slot is one grid entry of a day listing.
type Slot struct {
	Time      string            `json:"time"`
	Available bool              `json:"available"`
	Reason    model.BlockReason `json:"reason,omitempty"`
}

// Verdict is the combined lock-plus-availability outcome used by the booking
// creation flow. When CanProceed is false no lock is left behind.
type Verdict struct {
	CanProceed bool
	LockID     string
	LockKey    string
	ExpiresAt  time.Time
	Result     Result
}

type Service interface {
	Check(ctx context.Context, params CheckParams) (*Result, error)
	Recheck(ctx context.Context, params CheckParams) (*Result, error)
	Slots(ctx context.Context, params SlotsParams) ([]Slot, error)
	ValidateBookingRequest(ctx context.Context, params CheckParams, createdBy, idempotencyKey string) (*Verdict, error)
}

type availabilityService struct {
	source BookingSource
	locks  locks.Manager
	cfg    *config.Config
	policy Policy
}

func NewService(source BookingSource, lockManager locks.Manager, cfg *config.Config) (Service, error) {
	hours, err := cfg.WorkingHours()
	if err != nil {
		return nil, err
	}
	return &availabilityService{
		source: source,
		locks:  lockManager,
		cfg:    cfg,
		policy: Policy{
			MinLeadTime:    cfg.MinLeadTime,
			MaxAdvanceDays: cfg.MaxAdvanceDays,
			WorkingHours:   hours,
			Location:       cfg.Location,
		},
	}, nil
}

// Check evaluates one candidate against a fresh booking fetch and, when the
// engine allows it, probes for an overlapping slot lock held by another
// in-flight attempt.
func (s *availabilityService) Check(ctx context.Context, params CheckParams) (*Result, error) {
	candidate, err := s.candidate(params)
	if err != nil {
		return nil, err
	}

	bookings, err := s.source.FindActiveByBusinessAndDate(ctx, params.BusinessID, params.Date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings for availability check", err)
	}

	result := Check(candidate, bookings, s.policy, time.Now())
	if !result.Available {
		return &result, nil
	}

	locked, err := s.locks.IsLocked(ctx, params.ProviderID, params.Date, candidate.BlockedWindow())
	if err != nil {
		return nil, err
	}
	if locked {
		return &Result{
			Available: false,
			Reason:    model.ReasonSlotLocked,
			Details:   "Another booking attempt is in progress for this slot",
		}, nil
	}
	return &result, nil
}

// Recheck re-runs the booking arbitration without the lock probe. Used for
// the final verification inside the booking write transaction, where the
// caller holds the slot lock itself and must not be blocked by it.
func (s *availabilityService) Recheck(ctx context.Context, params CheckParams) (*Result, error) {
	candidate, err := s.candidate(params)
	if err != nil {
		return nil, err
	}
	bookings, err := s.source.FindActiveByBusinessAndDate(ctx, params.BusinessID, params.Date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings for availability recheck", err)
	}
	result := Check(candidate, bookings, s.policy, time.Now())
	return &result, nil
}

// Slots returns the annotated grid for one day. The day's bookings are
// fetched once and reused for every grid candidate; a closed day yields an
// empty grid.
func (s *availabilityService) Slots(ctx context.Context, params SlotsParams) ([]Slot, error) {
	duration, bufferBefore, bufferAfter := s.effective(params.Duration, params.BufferBefore, params.BufferAfter)

	slotsPerHour := params.SlotsPerHour
	if slotsPerHour <= 0 {
		slotsPerHour = s.cfg.DefaultSlotsPerHour
	}
	if 60%slotsPerHour != 0 {
		return nil, apperrors.InvalidInput("slots_per_hour must divide 60 evenly")
	}
	step := 60 / slotsPerHour

	day, err := model.ParseDate(params.Date, s.cfg.Location)
	if err != nil {
		return nil, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
	}
	hours, open := s.policy.WorkingHours[day.Weekday()]
	if !open {
		return []Slot{}, nil
	}

	bookings, err := s.source.FindActiveByBusinessAndDate(ctx, params.BusinessID, params.Date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings for slot listing", err)
	}

	now := time.Now()
	grid := make([]Slot, 0, (hours.End-hours.Start)/step)
	for start := hours.Start; start+duration <= hours.End; start += step {
		candidate := Candidate{
			BusinessID:   params.BusinessID,
			ProviderID:   params.ProviderID,
			Date:         params.Date,
			Start:        start,
			Duration:     duration,
			BufferBefore: bufferBefore,
			BufferAfter:  bufferAfter,
		}
		result := Check(candidate, bookings, s.policy, now)
		grid = append(grid, Slot{
			Time:      model.ClockFromMinutes(start),
			Available: result.Available,
			Reason:    result.Reason,
		})
	}
	return grid, nil
}

// ValidateBookingRequest is the write-path gate: claim the slot lock first,
// then run the availability check under its protection. A failed check
// releases the lock immediately so the slot is not pinned by a doomed
// attempt.
func (s *availabilityService) ValidateBookingRequest(ctx context.Context, params CheckParams, createdBy, idempotencyKey string) (*Verdict, error) {
	candidate, err := s.candidate(params)
	if err != nil {
		return nil, err
	}

	acquired, err := s.locks.Acquire(ctx, locks.AcquireParams{
		BusinessID:     params.BusinessID,
		ProviderID:     params.ProviderID,
		Date:           params.Date,
		Window:         candidate.BlockedWindow(),
		CreatedBy:      createdBy,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if !acquired.Granted {
		return &Verdict{
			Result: Result{
				Available: false,
				Reason:    model.ReasonSlotLocked,
				BlockedBy: acquired.HeldBy,
				Details:   "Another booking attempt holds this slot",
			},
		}, nil
	}

	bookings, err := s.source.FindActiveByBusinessAndDate(ctx, params.BusinessID, params.Date)
	if err != nil {
		releaseErr := s.locks.Release(ctx, acquired.LockID)
		if releaseErr != nil {
			s.cfg.Log.Error("Failed to release slot lock after fetch error", "lock_id", acquired.LockID, "error", releaseErr)
		}
		return nil, apperrors.Internal("Failed to load bookings for booking validation", err)
	}

	result := Check(candidate, bookings, s.policy, time.Now())
	if !result.Available {
		if releaseErr := s.locks.Release(ctx, acquired.LockID); releaseErr != nil {
			s.cfg.Log.Error("Failed to release slot lock after denial", "lock_id", acquired.LockID, "error", releaseErr)
		}
		return &Verdict{Result: result}, nil
	}

	return &Verdict{
		CanProceed: true,
		LockID:     acquired.LockID,
		LockKey:    idempotencyKey,
		ExpiresAt:  acquired.ExpiresAt,
		Result:     result,
	}, nil
}

func (s *availabilityService) candidate(params CheckParams) (Candidate, error) {
	start, err := model.MinutesFromClock(params.Time)
	if err != nil {
		return Candidate{}, apperrors.InvalidInput("time must be in HH:MM format")
	}
	duration, bufferBefore, bufferAfter := s.effective(params.Duration, params.BufferBefore, params.BufferAfter)
	return Candidate{
		BusinessID:       params.BusinessID,
		ProviderID:       params.ProviderID,
		Date:             params.Date,
		Start:            start,
		Duration:         duration,
		BufferBefore:     bufferBefore,
		BufferAfter:      bufferAfter,
		ExcludeBookingID: params.ExcludeBookingID,
	}, nil
}

func (s *availabilityService) effective(duration int, bufferBefore, bufferAfter *int) (int, int, int) {
	if duration <= 0 {
		duration = s.cfg.DefaultDurationMin
	}
	before := s.cfg.DefaultBufferBeforeMin
	if bufferBefore != nil {
		before = *bufferBefore
	}
	after := s.cfg.DefaultBufferAfterMin
	if bufferAfter != nil {
		after = *bufferAfter
	}
	return duration, before, after
}
