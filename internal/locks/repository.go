package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/pkg/config"
	"slotwise/pkg/model"
)

const CollectionName = "Slot_locks"

// SlotLockRepository is the narrow storage contract for slot locks. Insert
// surfaces storage duplicate-key violations unchanged; the manager maps them
// to contention semantics.
type SlotLockRepository interface {
	Insert(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	FindOverlapping(ctx context.Context, providerID, date string, window model.Window, now time.Time) (*model.SlotLock, error)
	FindByKey(ctx context.Context, idempotencyKey string) (*model.SlotLock, error)
	FindByWindow(ctx context.Context, providerID, date string, window model.Window) (*model.SlotLock, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByKey(ctx context.Context, idempotencyKey string) error
	Extend(ctx context.Context, id string, until time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type mongoSlotLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSlotLockRepository) Insert(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	lock.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	doc := bson.M{
		"business_id":     lock.BusinessID,
		"provider_id":     lock.ProviderID,
		"date":            lock.Date,
		"window":          lock.Window,
		"room_ids":        lock.RoomIDs,
		"created_by":      lock.CreatedBy,
		"idempotency_key": lock.IdempotencyKey,
		"created_at":      lock.CreatedAt,
		"expires_at":      lock.ExpiresAt,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		// Duplicate-key violations pass through for the manager to arbitrate.
		return nil, err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		lock.ID = oid.Hex()
	}
	return lock, nil
}

func (r *mongoSlotLockRepository) FindOverlapping(ctx context.Context, providerID, date string, window model.Window, now time.Time) (*model.SlotLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id":  providerID,
		"date":         date,
		"window.start": bson.M{"$lt": window.End},
		"window.end":   bson.M{"$gt": window.Start},
		"expires_at":   bson.M{"$gt": now},
	}

	return r.findOne(ctx, filter)
}

func (r *mongoSlotLockRepository) FindByKey(ctx context.Context, idempotencyKey string) (*model.SlotLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"idempotency_key": idempotencyKey})
}

func (r *mongoSlotLockRepository) FindByWindow(ctx context.Context, providerID, date string, window model.Window) (*model.SlotLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id":  providerID,
		"date":         date,
		"window.start": window.Start,
		"window.end":   window.End,
	}

	return r.findOne(ctx, filter)
}

func (r *mongoSlotLockRepository) findOne(ctx context.Context, filter bson.M) (*model.SlotLock, error) {
	var doc struct {
		ID             primitive.ObjectID `bson:"_id"`
		BusinessID     string             `bson:"business_id"`
		ProviderID     string             `bson:"provider_id"`
		Date           string             `bson:"date"`
		Window         model.Window       `bson:"window"`
		RoomIDs        []string           `bson:"room_ids"`
		CreatedBy      string             `bson:"created_by"`
		IdempotencyKey string             `bson:"idempotency_key"`
		CreatedAt      time.Time          `bson:"created_at"`
		ExpiresAt      time.Time          `bson:"expires_at"`
	}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find slot lock: %w", err)
	}
	return &model.SlotLock{
		ID:             doc.ID.Hex(),
		BusinessID:     doc.BusinessID,
		ProviderID:     doc.ProviderID,
		Date:           doc.Date,
		Window:         doc.Window,
		RoomIDs:        doc.RoomIDs,
		CreatedBy:      doc.CreatedBy,
		IdempotencyKey: doc.IdempotencyKey,
		CreatedAt:      doc.CreatedAt,
		ExpiresAt:      doc.ExpiresAt,
	}, nil
}

func (r *mongoSlotLockRepository) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid lock id %q: %w", id, err)
	}

	// Deleting a missing lock is not an error: release is idempotent.
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete slot lock: %w", err)
	}
	return nil
}

func (r *mongoSlotLockRepository) DeleteByKey(ctx context.Context, idempotencyKey string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"idempotency_key": idempotencyKey})
	if err != nil {
		return fmt.Errorf("failed to delete slot lock by key: %w", err)
	}
	return nil
}

func (r *mongoSlotLockRepository) Extend(ctx context.Context, id string, until time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("invalid lock id %q: %w", id, err)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"expires_at": until}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to extend slot lock: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoSlotLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired slot locks: %w", err)
	}
	return result.DeletedCount, nil
}
