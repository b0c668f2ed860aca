package availability

import (
	"fmt"
	"time"

	"slotwise/pkg/model"
)

// Policy is the booking-policy value object supplied on every check. The
// engine itself is a pure function of (candidate, existing bookings, policy,
// now); it holds no defaults and reads no globals. Weekdays absent from
// WorkingHours are closed.
type Policy struct {
	MinLeadTime    time.Duration
	MaxAdvanceDays int
	WorkingHours   map[time.Weekday]model.Window
	Location       *time.Location
}

// Candidate is the slot under evaluation. Times are integer minutes since
// midnight in business-local civil time; the engine does no timezone math.
type Candidate struct {
	BusinessID       string
	ProviderID       string
	Date             string
	Start            int
	Duration         int
	BufferBefore     int
	BufferAfter      int
	ExcludeBookingID int64
}

// BlockedWindow is the candidate's occupancy including its buffers.
func (c Candidate) BlockedWindow() model.Window {
	return model.Window{
		Start: c.Start - c.BufferBefore,
		End:   c.Start + c.Duration + c.BufferAfter,
	}
}

// Result is the engine's verdict. Reason is set only when blocked.
type Result struct {
	Available bool              `json:"available"`
	Reason    model.BlockReason `json:"reason,omitempty"`
	BlockedBy string            `json:"blocked_by,omitempty"`
	Details   string            `json:"details,omitempty"`
}

// Check decides whether the candidate slot may be booked given the current
// set of bookings. First failing check wins. Callers must pass freshly
// fetched bookings; verdicts are never cacheable.
//
// Decision order: business-wide overlap, provider-scoped overlap, lead time,
// max advance, working hours.
func Check(c Candidate, existing []*model.Booking, p Policy, now time.Time) Result {
	candidateWindow := c.BlockedWindow()

	if r := checkOverlap(c, candidateWindow, existing, false); !r.Available {
		return r
	}

	if c.ProviderID != "" {
		if r := checkOverlap(c, candidateWindow, existing, true); !r.Available {
			return r
		}
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	day, err := model.ParseDate(c.Date, loc)
	if err != nil {
		return Result{
			Available: false,
			Reason:    model.ReasonOutsideWorkingHours,
			Details:   err.Error(),
		}
	}
	candidateTime := day.Add(time.Duration(c.Start) * time.Minute)

	if candidateTime.Sub(now) < p.MinLeadTime {
		return Result{
			Available: false,
			Reason:    model.ReasonLeadTimeViolation,
			Details:   fmt.Sprintf("Booking must be at least %s in advance", p.MinLeadTime),
		}
	}

	horizon := now.In(loc)
	horizonDay := time.Date(horizon.Year(), horizon.Month(), horizon.Day(), 0, 0, 0, 0, loc).
		AddDate(0, 0, p.MaxAdvanceDays)
	if day.After(horizonDay) {
		return Result{
			Available: false,
			Reason:    model.ReasonMaxAdvanceExceeded,
			Details:   fmt.Sprintf("Cannot book more than %d days in advance", p.MaxAdvanceDays),
		}
	}

	// Working hours constrain the service time itself, not the buffers.
	serviceWindow := model.Window{Start: c.Start, End: c.Start + c.Duration}
	hours, open := p.WorkingHours[day.Weekday()]
	if !open || !hours.Contains(serviceWindow) {
		return Result{
			Available: false,
			Reason:    model.ReasonOutsideWorkingHours,
			Details:   workingHoursDetail(hours, open),
		}
	}

	return Result{Available: true}
}

// checkOverlap scans for blocked-window conflicts. Each booking's window
// comes from its frozen service snapshot, so later service edits never
// retroactively invalidate it. providerScoped restricts the scan to the
// candidate's provider for per-provider exclusivity.
func checkOverlap(c Candidate, candidateWindow model.Window, existing []*model.Booking, providerScoped bool) Result {
	for _, booking := range existing {
		if !booking.Active() {
			continue
		}
		if c.ExcludeBookingID != 0 && booking.ID == c.ExcludeBookingID {
			continue
		}
		if providerScoped && booking.ProviderID != c.ProviderID {
			continue
		}

		window, err := booking.BlockedWindow()
		if err != nil {
			// Malformed stored time; the write-path validator prevents this.
			continue
		}

		if candidateWindow.Overlaps(window) {
			return Result{
				Available: false,
				Reason:    model.ReasonExistingBooking,
				BlockedBy: fmt.Sprintf("Booking #%d", booking.ID),
				Details:   fmt.Sprintf("Conflict with existing booking at %s", booking.Time),
			}
		}
	}
	return Result{Available: true}
}

func workingHoursDetail(hours model.Window, open bool) string {
	if !open {
		return "The business is closed on this day"
	}
	return fmt.Sprintf("Requested time is outside working hours (%s - %s)",
		model.ClockFromMinutes(hours.Start), model.ClockFromMinutes(hours.End))
}
