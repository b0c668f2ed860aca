package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/internal/availability"
	"slotwise/internal/bookings/repository"
	"slotwise/internal/bookings/validator"
	"slotwise/internal/locks"
	"slotwise/pkg/config"
	dbmongo "slotwise/pkg/db/mongo"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

const (
	testBusinessID = "507f1f77bcf86cd799439011"
	testProviderID = "507f1f77bcf86cd799439012"
)

type fakeBookingRepository struct {
	insertFunc              func(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	findByIDFunc            func(ctx context.Context, id int64) (*model.Booking, error)
	compareAndSetStatusFunc func(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error)
	findAllFunc             func(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc               func(ctx context.Context, filter repository.ListFilter) (int64, error)
}

func (f *fakeBookingRepository) Insert(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	if f.insertFunc != nil {
		return f.insertFunc(ctx, booking)
	}
	booking.ID = 1
	booking.Version = 1
	return booking, nil
}

func (f *fakeBookingRepository) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	if f.findByIDFunc != nil {
		return f.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (f *fakeBookingRepository) FindByCancelToken(ctx context.Context, token string) (*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepository) FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepository) FindAll(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	if f.findAllFunc != nil {
		return f.findAllFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (f *fakeBookingRepository) Count(ctx context.Context, filter repository.ListFilter) (int64, error) {
	if f.countFunc != nil {
		return f.countFunc(ctx, filter)
	}
	return 0, nil
}

func (f *fakeBookingRepository) CompareAndSetStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
	if f.compareAndSetStatusFunc != nil {
		return f.compareAndSetStatusFunc(ctx, id, patch)
	}
	return nil, nil
}

func (f *fakeBookingRepository) ExecuteTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

type fakeAvailability struct {
	validateFunc func(ctx context.Context, params availability.CheckParams, createdBy, idempotencyKey string) (*availability.Verdict, error)
	recheckFunc  func(ctx context.Context, params availability.CheckParams) (*availability.Result, error)
}

func (f *fakeAvailability) Check(ctx context.Context, params availability.CheckParams) (*availability.Result, error) {
	return &availability.Result{Available: true}, nil
}

func (f *fakeAvailability) Recheck(ctx context.Context, params availability.CheckParams) (*availability.Result, error) {
	if f.recheckFunc != nil {
		return f.recheckFunc(ctx, params)
	}
	return &availability.Result{Available: true}, nil
}

func (f *fakeAvailability) Slots(ctx context.Context, params availability.SlotsParams) ([]availability.Slot, error) {
	return nil, nil
}

func (f *fakeAvailability) ValidateBookingRequest(ctx context.Context, params availability.CheckParams, createdBy, idempotencyKey string) (*availability.Verdict, error) {
	if f.validateFunc != nil {
		return f.validateFunc(ctx, params, createdBy, idempotencyKey)
	}
	return &availability.Verdict{
		CanProceed: true,
		LockID:     "lock-1",
		ExpiresAt:  time.Now().Add(time.Minute),
		Result:     availability.Result{Available: true},
	}, nil
}

type fakeLockManager struct {
	released []string
}

func (f *fakeLockManager) Acquire(ctx context.Context, params locks.AcquireParams) (*locks.AcquireResult, error) {
	return &locks.AcquireResult{Granted: true, LockID: "lock-1"}, nil
}

func (f *fakeLockManager) Release(ctx context.Context, lockID string) error {
	f.released = append(f.released, lockID)
	return nil
}

func (f *fakeLockManager) ReleaseByKey(ctx context.Context, idempotencyKey string) error { return nil }

func (f *fakeLockManager) Extend(ctx context.Context, lockID string, additional time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLockManager) IsLocked(ctx context.Context, providerID, date string, window model.Window) (bool, error) {
	return false, nil
}

func (f *fakeLockManager) Cleanup(ctx context.Context) (int64, error) { return 0, nil }

type recordedEvent struct {
	eventType string
	bookingID int64
	previous  model.BookingStatus
}

type fakePublisher struct {
	events []recordedEvent
}

func (f *fakePublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	f.events = append(f.events, recordedEvent{eventType: "created", bookingID: booking.ID})
}

func (f *fakePublisher) StatusChanged(ctx context.Context, booking *model.Booking, previous model.BookingStatus) {
	f.events = append(f.events, recordedEvent{eventType: "status", bookingID: booking.ID, previous: previous})
}

func (f *fakePublisher) Close() error { return nil }

func serviceConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"}),
	}
}

type testDeps struct {
	repo         *fakeBookingRepository
	availability *fakeAvailability
	locks        *fakeLockManager
	publisher    *fakePublisher
}

func newTestService(deps testDeps) BookingService {
	if deps.repo == nil {
		deps.repo = &fakeBookingRepository{}
	}
	if deps.availability == nil {
		deps.availability = &fakeAvailability{}
	}
	if deps.locks == nil {
		deps.locks = &fakeLockManager{}
	}
	if deps.publisher == nil {
		deps.publisher = &fakePublisher{}
	}
	cfg := serviceConfig()
	return NewBookingService(
		deps.repo,
		validator.NewBookingValidator(cfg.Log),
		deps.availability,
		deps.locks,
		deps.publisher,
		cfg,
	)
}

func validCreateRequest() *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		BusinessID: testBusinessID,
		ProviderID: testProviderID,
		Date:       "2030-06-10",
		Time:       "10:00",
		ServiceSnapshot: model.ServiceSnapshot{
			Name:        "Consultation",
			Duration:    60,
			Price:       5000,
			BufferAfter: 15,
		},
		ClientName:     "  Dana   Levi ",
		IdempotencyKey: "key-1",
	}
}

func TestCreateBooking(t *testing.T) {
	lockMgr := &fakeLockManager{}
	publisher := &fakePublisher{}
	svc := newTestService(testDeps{locks: lockMgr, publisher: publisher})

	booking, err := svc.Create(context.Background(), validCreateRequest(), "client-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if booking.ID != 1 {
		t.Errorf("id = %d, want 1", booking.ID)
	}
	if booking.Status != model.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", booking.Status)
	}
	if booking.ClientName != "Dana Levi" {
		t.Errorf("client name not sanitized: %q", booking.ClientName)
	}
	if booking.LeadSource != model.SourceDashboard {
		t.Errorf("lead source = %s, want dashboard default", booking.LeadSource)
	}
	if booking.CancelToken == "" {
		t.Error("cancel token must be generated")
	}
	if len(lockMgr.released) != 1 || lockMgr.released[0] != "lock-1" {
		t.Errorf("lock must be released after commit, released = %v", lockMgr.released)
	}
	if len(publisher.events) != 1 || publisher.events[0].eventType != "created" {
		t.Errorf("events = %+v, want one created event", publisher.events)
	}
}

func TestCreateBookingValidationFailure(t *testing.T) {
	svc := newTestService(testDeps{})

	req := validCreateRequest()
	req.ProviderID = "not-an-object-id"

	_, err := svc.Create(context.Background(), req, "client-1")
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeValidation)
	}
}

func TestCreateBookingSlotContention(t *testing.T) {
	avail := &fakeAvailability{
		validateFunc: func(ctx context.Context, params availability.CheckParams, createdBy, idempotencyKey string) (*availability.Verdict, error) {
			return &availability.Verdict{
				Result: availability.Result{
					Available: false,
					Reason:    model.ReasonSlotLocked,
					BlockedBy: "someone-else",
				},
			}, nil
		},
	}
	publisher := &fakePublisher{}
	svc := newTestService(testDeps{availability: avail, publisher: publisher})

	_, err := svc.Create(context.Background(), validCreateRequest(), "client-1")
	if err == nil {
		t.Fatal("expected contention error")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != string(model.ReasonSlotLocked) {
		t.Errorf("code = %s, want %s", appErr.Code, model.ReasonSlotLocked)
	}
	if len(publisher.events) != 0 {
		t.Errorf("no events expected on denial, got %+v", publisher.events)
	}
}

func TestCreateBookingRecheckDenialReleasesLock(t *testing.T) {
	avail := &fakeAvailability{
		recheckFunc: func(ctx context.Context, params availability.CheckParams) (*availability.Result, error) {
			return &availability.Result{
				Available: false,
				Reason:    model.ReasonExistingBooking,
				BlockedBy: "Booking #9",
			}, nil
		},
	}
	lockMgr := &fakeLockManager{}
	inserted := false
	repo := &fakeBookingRepository{
		insertFunc: func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
			inserted = true
			return booking, nil
		},
	}
	svc := newTestService(testDeps{availability: avail, locks: lockMgr, repo: repo})

	_, err := svc.Create(context.Background(), validCreateRequest(), "client-1")
	if err == nil {
		t.Fatal("expected conflict from the transactional recheck")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != string(model.ReasonExistingBooking) {
		t.Errorf("code = %s, want %s", appErr.Code, model.ReasonExistingBooking)
	}
	if inserted {
		t.Error("booking must not be inserted after a failed recheck")
	}
	if len(lockMgr.released) != 1 {
		t.Errorf("lock must be released after the failed transaction, released = %v", lockMgr.released)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    model.BookingStatus
		to      model.BookingStatus
		allowed bool
	}{
		{"confirmed to arrived", model.StatusConfirmed, model.StatusArrived, true},
		{"confirmed to no-show", model.StatusConfirmed, model.StatusNoShow, true},
		{"confirmed to cancelled", model.StatusConfirmed, model.StatusCancelled, true},
		{"confirmed to completed skips arrival", model.StatusConfirmed, model.StatusCompleted, false},
		{"arrived to completed", model.StatusArrived, model.StatusCompleted, true},
		{"arrived to no-show", model.StatusArrived, model.StatusNoShow, true},
		{"completed is terminal", model.StatusCompleted, model.StatusCancelled, false},
		{"cancelled is terminal", model.StatusCancelled, model.StatusConfirmed, false},
		{"no-show is terminal", model.StatusNoShow, model.StatusArrived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeBookingRepository{
				findByIDFunc: func(ctx context.Context, id int64) (*model.Booking, error) {
					return &model.Booking{ID: id, Status: tt.from, Version: 3}, nil
				},
				compareAndSetStatusFunc: func(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
					return &model.Booking{ID: id, Status: patch.Status, Version: 4}, nil
				},
			}
			svc := newTestService(testDeps{repo: repo})

			patch := &model.StatusPatch{Status: tt.to, ExpectedVersion: 3}
			if tt.to == model.StatusCancelled {
				patch.CancellationReason = "client request"
			}

			_, err := svc.UpdateStatus(context.Background(), 1, patch)
			if tt.allowed && err != nil {
				t.Fatalf("transition should be allowed, got %v", err)
			}
			if !tt.allowed {
				if err == nil {
					t.Fatal("transition should be rejected")
				}
				appErr := apperrors.AsAppError(err)
				if appErr.Code != apperrors.CodeConflict {
					t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeConflict)
				}
			}
		})
	}
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	repo := &fakeBookingRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusConfirmed, Version: 5}, nil
		},
		compareAndSetStatusFunc: func(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
			return nil, apperrors.VersionConflict("Booking", patch.ExpectedVersion, 5)
		},
	}
	publisher := &fakePublisher{}
	svc := newTestService(testDeps{repo: repo, publisher: publisher})

	_, err := svc.UpdateStatus(context.Background(), 1, &model.StatusPatch{
		Status:          model.StatusArrived,
		ExpectedVersion: 4,
	})
	if err == nil {
		t.Fatal("expected version conflict")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeVersionConflict {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeVersionConflict)
	}
	if len(publisher.events) != 0 {
		t.Errorf("no events expected on conflict, got %+v", publisher.events)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := newTestService(testDeps{repo: &fakeBookingRepository{}})

	_, err := svc.UpdateStatus(context.Background(), 42, &model.StatusPatch{
		Status:          model.StatusArrived,
		ExpectedVersion: 1,
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Errorf("code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeNotFound)
	}
}

func TestCancelPublishesStatusEvent(t *testing.T) {
	repo := &fakeBookingRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusConfirmed, Version: 2, CancelToken: "tok-1"}, nil
		},
		compareAndSetStatusFunc: func(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusCancelled, Version: 3}, nil
		},
	}
	publisher := &fakePublisher{}
	svc := newTestService(testDeps{repo: repo, publisher: publisher})

	booking, err := svc.Cancel(context.Background(), 1, "can't make it", "client", "tok-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if booking.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelled", booking.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].previous != model.StatusConfirmed {
		t.Errorf("events = %+v, want one status event from confirmed", publisher.events)
	}
}

func TestCancelRejectsWrongToken(t *testing.T) {
	repo := &fakeBookingRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusConfirmed, Version: 2, CancelToken: "tok-1"}, nil
		},
	}
	svc := newTestService(testDeps{repo: repo})

	_, err := svc.Cancel(context.Background(), 1, "reason", "client", "wrong-token")
	if err == nil {
		t.Fatal("expected token rejection")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != 403 {
		t.Errorf("status = %d, want 403", appErr.StatusCode())
	}
}

func TestCancelWithoutTokenIsDashboardPath(t *testing.T) {
	repo := &fakeBookingRepository{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusArrived, Version: 2, CancelToken: "tok-1"}, nil
		},
		compareAndSetStatusFunc: func(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
			if patch.ExpectedVersion != 2 {
				t.Errorf("expected version = %d, want 2", patch.ExpectedVersion)
			}
			return &model.Booking{ID: id, Status: model.StatusCancelled, Version: 3}, nil
		},
	}
	svc := newTestService(testDeps{repo: repo})

	if _, err := svc.Cancel(context.Background(), 1, "provider sick", "dashboard", ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}
