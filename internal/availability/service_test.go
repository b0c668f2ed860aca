package availability

import (
	"context"
	"testing"
	"time"

	"slotwise/internal/locks"
	"slotwise/pkg/config"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

type fakeBookingSource struct {
	findActiveFunc func(ctx context.Context, businessID, date string) ([]*model.Booking, error)
	calls          int
}

func (f *fakeBookingSource) FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error) {
	f.calls++
	if f.findActiveFunc != nil {
		return f.findActiveFunc(ctx, businessID, date)
	}
	return nil, nil
}

type fakeLockManager struct {
	acquireFunc  func(ctx context.Context, params locks.AcquireParams) (*locks.AcquireResult, error)
	releaseFunc  func(ctx context.Context, lockID string) error
	isLockedFunc func(ctx context.Context, providerID, date string, window model.Window) (bool, error)
	released     []string
}

func (f *fakeLockManager) Acquire(ctx context.Context, params locks.AcquireParams) (*locks.AcquireResult, error) {
	if f.acquireFunc != nil {
		return f.acquireFunc(ctx, params)
	}
	return &locks.AcquireResult{Granted: true, LockID: "lock-1", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeLockManager) Release(ctx context.Context, lockID string) error {
	f.released = append(f.released, lockID)
	if f.releaseFunc != nil {
		return f.releaseFunc(ctx, lockID)
	}
	return nil
}

func (f *fakeLockManager) ReleaseByKey(ctx context.Context, idempotencyKey string) error {
	return nil
}

func (f *fakeLockManager) Extend(ctx context.Context, lockID string, additional time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLockManager) IsLocked(ctx context.Context, providerID, date string, window model.Window) (bool, error) {
	if f.isLockedFunc != nil {
		return f.isLockedFunc(ctx, providerID, date, window)
	}
	return false, nil
}

func (f *fakeLockManager) Cleanup(ctx context.Context) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MinLeadTime:            2 * time.Hour,
		MaxAdvanceDays:         30,
		WorkingDayStart:        "09:00",
		WorkingDayEnd:          "17:00",
		WorkingDays:            []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Location:               time.UTC,
		DefaultDurationMin:     60,
		DefaultBufferBeforeMin: 0,
		DefaultBufferAfterMin:  15,
		DefaultSlotsPerHour:    1,
		Log:                    logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"}),
	}
}

// nextWeekday returns the date string of the next occurrence of day at least
// three days out, keeping lead-time checks out of the way.
func nextWeekday(day time.Weekday) string {
	d := time.Now().UTC().AddDate(0, 0, 3)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(model.DateLayout)
}

func newTestService(t *testing.T, source *fakeBookingSource, lockMgr *fakeLockManager) Service {
	t.Helper()
	svc, err := NewService(source, lockMgr, testConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCheckProbesSlotLocks(t *testing.T) {
	source := &fakeBookingSource{}
	lockMgr := &fakeLockManager{
		isLockedFunc: func(ctx context.Context, providerID, date string, window model.Window) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(t, source, lockMgr)

	result, err := svc.Check(context.Background(), CheckParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       nextWeekday(time.Monday),
		Time:       "10:00",
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Available {
		t.Fatal("expected the held lock to block the slot")
	}
	if result.Reason != model.ReasonSlotLocked {
		t.Errorf("reason = %s, want %s", result.Reason, model.ReasonSlotLocked)
	}
}

func TestSlotsClosedDayIsEmpty(t *testing.T) {
	source := &fakeBookingSource{}
	svc := newTestService(t, source, &fakeLockManager{})

	grid, err := svc.Slots(context.Background(), SlotsParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       nextWeekday(time.Saturday),
	})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(grid) != 0 {
		t.Errorf("closed day grid should be empty, got %d slots", len(grid))
	}
	if source.calls != 0 {
		t.Errorf("closed day should not fetch bookings, got %d fetches", source.calls)
	}
}

func TestSlotsFetchesBookingsOnce(t *testing.T) {
	date := nextWeekday(time.Monday)
	source := &fakeBookingSource{
		findActiveFunc: func(ctx context.Context, businessID, d string) ([]*model.Booking, error) {
			return []*model.Booking{{
				ID:         1,
				BusinessID: businessID,
				ProviderID: "prov-1",
				Date:       d,
				Time:       "10:00",
				ServiceSnapshot: model.ServiceSnapshot{
					Name:        "Cut",
					Duration:    60,
					BufferAfter: 15,
				},
				Status: model.StatusConfirmed,
			}}, nil
		},
	}
	svc := newTestService(t, source, &fakeLockManager{})

	grid, err := svc.Slots(context.Background(), SlotsParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       date,
	})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("expected exactly one booking fetch for the whole grid, got %d", source.calls)
	}

	// Hour grid 09:00 through 16:00 for a 60 minute default duration.
	if len(grid) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(grid))
	}
	byTime := make(map[string]Slot, len(grid))
	for _, s := range grid {
		byTime[s.Time] = s
	}
	if byTime["10:00"].Available {
		t.Error("10:00 should be blocked by the existing booking")
	}
	// The 10:00 booking's buffer runs to 11:15, colliding with 11:00.
	if byTime["11:00"].Available {
		t.Error("11:00 should be blocked by the buffer tail")
	}
	if !byTime["12:00"].Available {
		t.Errorf("12:00 should be free, got %s", byTime["12:00"].Reason)
	}
}

func TestValidateBookingRequestDeniedLock(t *testing.T) {
	source := &fakeBookingSource{}
	lockMgr := &fakeLockManager{
		acquireFunc: func(ctx context.Context, params locks.AcquireParams) (*locks.AcquireResult, error) {
			return &locks.AcquireResult{Granted: false, HeldBy: "someone-else"}, nil
		},
	}
	svc := newTestService(t, source, lockMgr)

	verdict, err := svc.ValidateBookingRequest(context.Background(), CheckParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       nextWeekday(time.Monday),
		Time:       "10:00",
	}, "client-1", "key-1")
	if err != nil {
		t.Fatalf("ValidateBookingRequest: %v", err)
	}
	if verdict.CanProceed {
		t.Fatal("denied lock must not proceed")
	}
	if verdict.Result.Reason != model.ReasonSlotLocked {
		t.Errorf("reason = %s, want %s", verdict.Result.Reason, model.ReasonSlotLocked)
	}
	if source.calls != 0 {
		t.Error("bookings must not be fetched when the lock is denied")
	}
}

func TestValidateBookingRequestReleasesOnDenial(t *testing.T) {
	date := nextWeekday(time.Monday)
	source := &fakeBookingSource{
		findActiveFunc: func(ctx context.Context, businessID, d string) ([]*model.Booking, error) {
			return []*model.Booking{{
				ID:         1,
				BusinessID: businessID,
				ProviderID: "prov-1",
				Date:       d,
				Time:       "10:00",
				ServiceSnapshot: model.ServiceSnapshot{
					Name:     "Cut",
					Duration: 60,
				},
				Status: model.StatusConfirmed,
			}}, nil
		},
	}
	lockMgr := &fakeLockManager{}
	svc := newTestService(t, source, lockMgr)

	verdict, err := svc.ValidateBookingRequest(context.Background(), CheckParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       date,
		Time:       "10:00",
	}, "client-1", "key-1")
	if err != nil {
		t.Fatalf("ValidateBookingRequest: %v", err)
	}
	if verdict.CanProceed {
		t.Fatal("conflicting slot must not proceed")
	}
	if len(lockMgr.released) != 1 || lockMgr.released[0] != "lock-1" {
		t.Errorf("lock must be released after denial, released = %v", lockMgr.released)
	}
}

func TestValidateBookingRequestGrantKeepsLock(t *testing.T) {
	lockMgr := &fakeLockManager{}
	svc := newTestService(t, &fakeBookingSource{}, lockMgr)

	verdict, err := svc.ValidateBookingRequest(context.Background(), CheckParams{
		BusinessID: "507f1f77bcf86cd799439011",
		ProviderID: "prov-1",
		Date:       nextWeekday(time.Monday),
		Time:       "10:00",
	}, "client-1", "key-1")
	if err != nil {
		t.Fatalf("ValidateBookingRequest: %v", err)
	}
	if !verdict.CanProceed {
		t.Fatalf("expected grant, got %s", verdict.Result.Reason)
	}
	if verdict.LockID != "lock-1" {
		t.Errorf("lock id = %q, want lock-1", verdict.LockID)
	}
	if len(lockMgr.released) != 0 {
		t.Errorf("granted lock must survive validation, released = %v", lockMgr.released)
	}
}
