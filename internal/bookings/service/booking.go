package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/internal/availability"
	bookingerrors "slotwise/internal/bookings/errors"
	"slotwise/internal/bookings/events"
	"slotwise/internal/bookings/repository"
	"slotwise/internal/bookings/validator"
	"slotwise/internal/locks"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
	"slotwise/pkg/sanitizer"
)

// transitions is the booking status state machine. Terminal statuses have no
// outgoing edges.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusConfirmed: {model.StatusArrived, model.StatusNoShow, model.StatusCancelled},
	model.StatusArrived:   {model.StatusCompleted, model.StatusNoShow, model.StatusCancelled},
}

func transitionAllowed(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ListParams narrows and pages a booking listing.
type ListParams struct {
	Filter repository.ListFilter
	Limit  int
	Offset int64
}

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest, createdBy string) (*model.Booking, error)
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	List(ctx context.Context, params ListParams) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error)
	Cancel(ctx context.Context, id int64, reason, cancelledBy, cancelToken string) (*model.Booking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	validator    *validator.BookingValidator
	availability availability.Service
	locks        locks.Manager
	publisher    events.Publisher
	cfg          *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	bookingValidator *validator.BookingValidator,
	availabilityService availability.Service,
	lockManager locks.Manager,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		validator:    bookingValidator,
		availability: availabilityService,
		locks:        lockManager,
		publisher:    publisher,
		cfg:          cfg,
	}
}

/// Create runs the full reservation flow: sanitize, validate, claim the slot
// lock, verify availability, then commit the booking under a transaction
// that re-verifies against any write that slipped in between. The lock is
// always released before returning, success or not.
func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest, createdBy string) (*model.Booking, error) {
	req.ClientName = sanitizer.NormalizeName(req.ClientName)
	req.ProviderName = sanitizer.NormalizeName(req.ProviderName)
	req.Notes = sanitizer.NormalizeNote(req.Notes)
	req.ServiceSnapshot.Name = sanitizer.TrimAndNormalize(req.ServiceSnapshot.Name)

	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, validationError(err)
	}

	checkParams := availability.CheckParams{
		BusinessID:   req.BusinessID,
		ProviderID:   req.ProviderID,
		Date:         req.Date,
		Time:         req.Time,
		Duration:     req.ServiceSnapshot.Duration,
		BufferBefore: &req.ServiceSnapshot.BufferBefore,
		BufferAfter:  &req.ServiceSnapshot.BufferAfter,
	}

	verdict, err := s.availability.ValidateBookingRequest(ctx, checkParams, createdBy, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !verdict.CanProceed {
		return nil, bookingerrors.SlotUnavailable(verdict.Result.Reason, verdict.Result.BlockedBy, verdict.Result.Details)
	}

	booking := s.newBooking(req)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Final check under the lock: a booking committed after the first
		// verification would otherwise double-book the slot.
		result, err := s.availability.Recheck(sessCtx, checkParams)
		if err != nil {
			return err
		}
		if !result.Available {
			return bookingerrors.SlotUnavailable(result.Reason, result.BlockedBy, result.Details)
		}

		_, err = s.repo.Insert(sessCtx, booking)
		return err
	})

	if releaseErr := s.locks.Release(ctx, verdict.LockID); releaseErr != nil {
		s.cfg.Log.Error("Failed to release slot lock after booking write",
			"lock_id", verdict.LockID, "error", releaseErr)
	}

	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"business_id", booking.BusinessID,
		"provider_id", booking.ProviderID,
		"date", booking.Date,
		"time", booking.Time,
	)
	s.publisher.BookingCreated(ctx, booking)
	return booking, nil
}

func (s *bookingService) newBooking(req *model.CreateBookingRequest) *model.Booking {
	leadSource := req.LeadSource
	if leadSource == "" {
		leadSource = model.SourceDashboard
	}
	return &model.Booking{
		BusinessID:           req.BusinessID,
		ProviderID:           req.ProviderID,
		Date:                 req.Date,
		Time:                 req.Time,
		ServiceID:            req.ServiceID,
		ServiceSnapshot:      req.ServiceSnapshot,
		ProviderName:         req.ProviderName,
		ClientName:           req.ClientName,
		ClientEmailEncrypted: req.ClientEmailEncrypted,
		ClientEmailHash:      req.ClientEmailHash,
		ClientPhoneEncrypted: req.ClientPhoneEncrypted,
		ClientPhoneHash:      req.ClientPhoneHash,
		Status:               model.StatusConfirmed,
		LeadSource:           leadSource,
		Notes:                req.Notes,
		CancelToken:          uuid.New().String(),
	}
}

func (s *bookingService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch booking", err)
	}
	if booking == nil {
		return nil, bookingerrors.BookingNotFound(id)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, params ListParams) ([]*model.Booking, int64, error) {
	limit := config.NormalizePaginationLimit(params.Limit)
	offset := config.NormalizeOffset(params.Offset)

	bookings, err := s.repo.FindAll(ctx, params.Filter, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}
	total, err := s.repo.Count(ctx, params.Filter)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}
	return bookings, total, nil
}

// UpdateStatus applies a state-machine transition under optimistic
// concurrency. A stale ExpectedVersion is rejected with the actual version;
// the caller refetches and retries.
func (s *bookingService) UpdateStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
	patch.CancellationReason = sanitizer.NormalizeReason(patch.CancellationReason)
	patch.Notes = sanitizer.NormalizeNote(patch.Notes)

	if err := s.validator.ValidateStatusPatch(patch); err != nil {
		return nil, validationError(err)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(current.Status, patch.Status) {
		return nil, bookingerrors.InvalidStatusTransition(current.Status, patch.Status)
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, id, patch)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to update booking status", err)
	}

	s.cfg.Log.Info("Booking status changed",
		"booking_id", id,
		"from", current.Status,
		"to", updated.Status,
		"version", updated.Version,
	)
	s.publisher.StatusChanged(ctx, updated, current.Status)
	return updated, nil
}

// Cancel is the dedicated cancellation path. When cancelToken is set the
// request is self-service and the token must match; dashboard callers pass
// an empty token.
func (s *bookingService) Cancel(ctx context.Context, id int64, reason, cancelledBy, cancelToken string) (*model.Booking, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cancelToken != "" && cancelToken != current.CancelToken {
		return nil, bookingerrors.InvalidCancelToken()
	}

	return s.UpdateStatus(ctx, id, &model.StatusPatch{
		Status:             model.StatusCancelled,
		ExpectedVersion:    current.Version,
		CancellationReason: reason,
		CancelledBy:        cancelledBy,
	})
}

// validationError converts validator failures into the API error shape.
func validationError(err error) error {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		details := make(map[string]any, len(vErrs))
		for _, v := range vErrs {
			details[v.Field] = v.Message
		}
		return apperrors.Validation("Booking validation failed", details)
	}
	return apperrors.InvalidInput(err.Error())
}
