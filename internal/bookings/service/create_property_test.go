package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/internal/availability"
	"slotwise/internal/bookings/repository"
	"slotwise/internal/bookings/validator"
	"slotwise/pkg/config"
	dbmongo "slotwise/pkg/db/mongo"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

// memoryBookingRepository keeps inserted bookings in a slice so availability
// rechecks see every booking created earlier in the same test run. It backs
// both the booking repository and the availability booking source.
type memoryBookingRepository struct {
	bookings []*model.Booking
	nextID   int64
}

func (m *memoryBookingRepository) Insert(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	m.nextID++
	booking.ID = m.nextID
	booking.Version = 1
	m.bookings = append(m.bookings, booking)
	return booking, nil
}

func (m *memoryBookingRepository) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	for _, b := range m.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (m *memoryBookingRepository) FindByCancelToken(ctx context.Context, token string) (*model.Booking, error) {
	for _, b := range m.bookings {
		if b.CancelToken == token {
			return b, nil
		}
	}
	return nil, nil
}

func (m *memoryBookingRepository) FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error) {
	var active []*model.Booking
	for _, b := range m.bookings {
		if b.BusinessID == businessID && b.Date == date && b.Active() {
			active = append(active, b)
		}
	}
	return active, nil
}

func (m *memoryBookingRepository) FindAll(ctx context.Context, filter repository.ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	return m.bookings, nil
}

func (m *memoryBookingRepository) Count(ctx context.Context, filter repository.ListFilter) (int64, error) {
	return int64(len(m.bookings)), nil
}

func (m *memoryBookingRepository) CompareAndSetStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
	for _, b := range m.bookings {
		if b.ID != id {
			continue
		}
		if b.Version != patch.ExpectedVersion {
			return nil, apperrors.VersionConflict("Booking", patch.ExpectedVersion, b.Version)
		}
		b.Status = patch.Status
		b.Version++
		return b, nil
	}
	return nil, apperrors.NotFoundWithID("Booking", fmt.Sprintf("%d", id))
}

func (m *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

func propertyConfig() *config.Config {
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

// nextOpenMonday returns the next Monday at least three days out, so lead
// time and max advance never interfere with the overlap property.
func nextOpenMonday() string {
	d := time.Now().UTC().AddDate(0, 0, 3)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(model.DateLayout)
}

// TestCreateNeverDoubleBooks hammers the full create path with random
// candidates against a shared in-memory store and asserts the core safety
// property: no two active bookings ever hold overlapping blocked windows.
// A quarter of successful creates are cancelled along the way, so freed
// slots re-enter circulation.
func TestCreateNeverDoubleBooks(t *testing.T) {
	repo := &memoryBookingRepository{}
	cfg := propertyConfig()
	lockMgr := &fakeLockManager{}

	availSvc, err := availability.NewService(repo, lockMgr, cfg)
	if err != nil {
		t.Fatalf("availability.NewService: %v", err)
	}
	svc := NewBookingService(
		repo,
		validator.NewBookingValidator(cfg.Log),
		availSvc,
		lockMgr,
		&fakePublisher{},
		cfg,
	)

	rng := rand.New(rand.NewSource(7))
	date := nextOpenMonday()
	durations := []int{30, 45, 60}
	buffersBefore := []int{0, 10}
	buffersAfter := []int{0, 15}

	created, denied := 0, 0
	for i := 0; i < 150; i++ {
		duration := durations[rng.Intn(len(durations))]
		bufferBefore := buffersBefore[rng.Intn(len(buffersBefore))]
		bufferAfter := buffersAfter[rng.Intn(len(buffersAfter))]
		start := 540 + 5*rng.Intn((1020-540-duration)/5+1)

		booking, err := svc.Create(context.Background(), &model.CreateBookingRequest{
			BusinessID: testBusinessID,
			ProviderID: testProviderID,
			Date:       date,
			Time:       model.ClockFromMinutes(start),
			ServiceSnapshot: model.ServiceSnapshot{
				Name:         "Consultation",
				Duration:     duration,
				BufferBefore: bufferBefore,
				BufferAfter:  bufferAfter,
			},
			ClientName:     fmt.Sprintf("Client %d", i),
			IdempotencyKey: fmt.Sprintf("seq-key-%d", i),
		}, "client-1")
		if err != nil {
			appErr := apperrors.AsAppError(err)
			if appErr.StatusCode() >= 500 {
				t.Fatalf("attempt %d: unexpected failure: %v", i, err)
			}
			denied++
			continue
		}
		created++

		if rng.Intn(4) == 0 {
			if _, err := svc.Cancel(context.Background(), booking.ID, "changed plans", "client", booking.CancelToken); err != nil {
				t.Fatalf("attempt %d: cancel: %v", i, err)
			}
		}
	}

	if created == 0 {
		t.Fatal("no booking was ever created")
	}
	if denied == 0 {
		t.Fatal("the day never saturated; the conflict path went unexercised")
	}

	active, err := repo.FindActiveByBusinessAndDate(context.Background(), testBusinessID, date)
	if err != nil {
		t.Fatalf("FindActiveByBusinessAndDate: %v", err)
	}
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			wi, err := active[i].BlockedWindow()
			if err != nil {
				t.Fatalf("booking %d: %v", active[i].ID, err)
			}
			wj, err := active[j].BlockedWindow()
			if err != nil {
				t.Fatalf("booking %d: %v", active[j].ID, err)
			}
			if wi.Overlaps(wj) {
				t.Fatalf("bookings %d (%s) and %d (%s) hold overlapping windows [%d,%d) and [%d,%d)",
					active[i].ID, active[i].Time, active[j].ID, active[j].Time,
					wi.Start, wi.End, wj.Start, wj.End)
			}
		}
	}
}
