package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

// AcquireParams identifies the slot being claimed and the attempt claiming
// it. An empty IdempotencyKey gets a generated one, making the attempt
// non-retryable by key.
type AcquireParams struct {
	BusinessID     string
	ProviderID     string
	Date           string
	Window         model.Window
	RoomIDs        []string
	CreatedBy      string
	IdempotencyKey string
}

// AcquireResult is the immediate verdict of an acquisition attempt. Acquire
// never blocks or queues; a denial carries the holder and expiry so callers
// can present a "try another time" UX.
type AcquireResult struct {
	Granted   bool      `json:"granted"`
	LockID    string    `json:"lock_id,omitempty"`
	HeldBy    string    `json:"held_by,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Manager is the slot lock arbiter. Mutual exclusion rests entirely on the
// storage layer's unique-index enforcement; the overlap pre-read only
// provides fast-path denials and idempotent retries.
type Manager interface {
	Acquire(ctx context.Context, params AcquireParams) (*AcquireResult, error)
	Release(ctx context.Context, lockID string) error
	ReleaseByKey(ctx context.Context, idempotencyKey string) error
	Extend(ctx context.Context, lockID string, additional time.Duration) (bool, error)
	IsLocked(ctx context.Context, providerID, date string, window model.Window) (bool, error)
	Cleanup(ctx context.Context) (int64, error)
}

type lockManager struct {
	repo SlotLockRepository
	cfg  *config.Config
}

func NewManager(repo SlotLockRepository, cfg *config.Config) Manager {
	return &lockManager{
		repo: repo,
		cfg:  cfg,
	}
}

func (m *lockManager) Acquire(ctx context.Context, params AcquireParams) (*AcquireResult, error) {
	if !params.Window.Valid() {
		return nil, apperrors.InvalidInput("lock window start must be before end and within the day")
	}
	if params.ProviderID == "" || params.Date == "" {
		return nil, apperrors.InvalidInput("provider_id and date are required to acquire a slot lock")
	}

	key := params.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	now := time.Now()

	existing, err := m.repo.FindOverlapping(ctx, params.ProviderID, params.Date, params.Window, now)
	if err != nil {
		return nil, apperrors.Internal("Failed to check for conflicting slot locks", err)
	}
	if existing != nil {
		if existing.IdempotencyKey == key {
			// Retry of the same logical attempt.
			return &AcquireResult{
				Granted:   true,
				LockID:    existing.ID,
				ExpiresAt: existing.ExpiresAt,
			}, nil
		}
		return &AcquireResult{
			Granted:   false,
			HeldBy:    existing.CreatedBy,
			ExpiresAt: existing.ExpiresAt,
		}, nil
	}

	lock := &model.SlotLock{
		BusinessID:     params.BusinessID,
		ProviderID:     params.ProviderID,
		Date:           params.Date,
		Window:         params.Window,
		RoomIDs:        params.RoomIDs,
		CreatedBy:      params.CreatedBy,
		IdempotencyKey: key,
		ExpiresAt:      now.Add(m.cfg.LockTTL),
	}

	inserted, err := m.repo.Insert(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return m.resolveInsertConflict(ctx, params, key, now)
		}
		return nil, apperrors.Internal("Failed to acquire slot lock", err)
	}

	return &AcquireResult{
		Granted:   true,
		LockID:    inserted.ID,
		ExpiresAt: inserted.ExpiresAt,
	}, nil
}

// resolveInsertConflict arbitrates a storage-level duplicate-key violation.
// This is the path that makes Acquire safe under true concurrent writers:
// the pre-read race has already been lost, and the unique index decided the
// winner.
func (m *lockManager) resolveInsertConflict(ctx context.Context, params AcquireParams, key string, now time.Time) (*AcquireResult, error) {
	// Same idempotency key already inserted: a literally-identical retry
	// (browser double-submit) landed first. Return its lock.
	winner, err := m.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, apperrors.Internal("Failed to resolve slot lock conflict", err)
	}
	if winner != nil {
		return &AcquireResult{
			Granted:   true,
			LockID:    winner.ID,
			ExpiresAt: winner.ExpiresAt,
		}, nil
	}

	// Exact-window collision with a different key. If the holder already
	// expired but has not been reaped yet, take over its slot; expired locks
	// must stay transparent to contention checks.
	holder, err := m.repo.FindByWindow(ctx, params.ProviderID, params.Date, params.Window)
	if err != nil {
		return nil, apperrors.Internal("Failed to resolve slot lock conflict", err)
	}
	if holder != nil && holder.Expired(now) {
		if err := m.repo.DeleteByID(ctx, holder.ID); err != nil {
			return nil, apperrors.Internal("Failed to reap expired slot lock", err)
		}
		lock := &model.SlotLock{
			BusinessID:     params.BusinessID,
			ProviderID:     params.ProviderID,
			Date:           params.Date,
			Window:         params.Window,
			RoomIDs:        params.RoomIDs,
			CreatedBy:      params.CreatedBy,
			IdempotencyKey: key,
			ExpiresAt:      now.Add(m.cfg.LockTTL),
		}
		inserted, err := m.repo.Insert(ctx, lock)
		if err != nil {
			// Lost the takeover race too.
			return &AcquireResult{Granted: false}, nil
		}
		return &AcquireResult{
			Granted:   true,
			LockID:    inserted.ID,
			ExpiresAt: inserted.ExpiresAt,
		}, nil
	}

	result := &AcquireResult{Granted: false}
	if holder != nil {
		result.HeldBy = holder.CreatedBy
		result.ExpiresAt = holder.ExpiresAt
	}
	return result, nil
}

func (m *lockManager) Release(ctx context.Context, lockID string) error {
	if lockID == "" {
		return nil
	}
	if err := m.repo.DeleteByID(ctx, lockID); err != nil {
		return apperrors.Internal("Failed to release slot lock", err)
	}
	return nil
}

func (m *lockManager) ReleaseByKey(ctx context.Context, idempotencyKey string) error {
	if idempotencyKey == "" {
		return nil
	}
	if err := m.repo.DeleteByKey(ctx, idempotencyKey); err != nil {
		return apperrors.Internal("Failed to release slot lock", err)
	}
	return nil
}

// Extend pushes the lock's expiry forward for long-running flows (e.g.
// awaiting payment confirmation). A false return means the lock is already
// gone; callers must re-validate availability before committing.
func (m *lockManager) Extend(ctx context.Context, lockID string, additional time.Duration) (bool, error) {
	if additional <= 0 {
		additional = m.cfg.LockExtendIncrement
	}
	extended, err := m.repo.Extend(ctx, lockID, time.Now().Add(additional))
	if err != nil {
		return false, apperrors.Internal("Failed to extend slot lock", err)
	}
	return extended, nil
}

func (m *lockManager) IsLocked(ctx context.Context, providerID, date string, window model.Window) (bool, error) {
	lock, err := m.repo.FindOverlapping(ctx, providerID, date, window, time.Now())
	if err != nil {
		return false, apperrors.Internal("Failed to check slot lock", err)
	}
	return lock != nil, nil
}

// Cleanup reaps crash-abandoned locks. Deleting an already-expired lock is
// harmless, so any process may run this on an interval.
func (m *lockManager) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := m.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, apperrors.Internal("Failed to clean up expired slot locks", err)
	}
	if deleted > 0 {
		m.cfg.Log.Info("Reaped expired slot locks", "count", deleted)
	}
	return deleted, nil
}
