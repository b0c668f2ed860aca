package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/pkg/config"
	dbmongo "slotwise/pkg/db/mongo"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

const (
	CollectionName         = "Bookings"
	CountersCollectionName = "Counters"

	bookingCounterID = "bookings"
)

// ListFilter narrows FindAll and Count. Zero-valued fields are ignored.
type ListFilter struct {
	BusinessID      string
	ProviderID      string
	Date            string
	Status          model.BookingStatus
	ClientEmailHash string
}

// BookingRepository is the storage contract for bookings. CompareAndSetStatus
// is the only mutation path for status; it enforces the version check at the
// storage layer so two racing patches can never both win.
type BookingRepository interface {
	Insert(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	FindByID(ctx context.Context, id int64) (*model.Booking, error)
	FindByCancelToken(ctx context.Context, token string) (*model.Booking, error)
	FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error)
	FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	CompareAndSetStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	counters   *mongo.Collection
	txManager  dbmongo.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config, txManager dbmongo.TransactionManager) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		counters:   db.Collection(CountersCollectionName),
		txManager:  txManager,
	}
}

// nextID draws the next value of the monotonically increasing booking id
// sequence. The upsert makes the first draw create the counter document.
func (r *mongoBookingRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": bookingCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to draw booking id: %w", err)
	}
	return counter.Seq, nil
}

func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.ID = id
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}
	return booking, nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find booking %d: %w", id, err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByCancelToken(ctx context.Context, token string) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"cancel_token": token}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find booking by cancel token: %w", err)
	}
	return &booking, nil
}

// FindActiveByBusinessAndDate returns every booking still occupying its slot
// on the given day, across all of the business's providers.
func (r *mongoBookingRepository) FindActiveByBusinessAndDate(ctx context.Context, businessID, date string) ([]*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"business_id": businessID,
		"date":        date,
		"status":      bson.M{"$nin": bson.A{model.StatusCancelled, model.StatusNoShow}},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode active bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter ListFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, listFilterQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, listFilterQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CompareAndSetStatus applies the patch only when the stored version still
// matches the caller's expected version, bumping the version in the same
// write. A mismatch is reported as a version conflict with the actual
// version so the caller can refetch.
func (r *mongoBookingRepository) CompareAndSetStatus(ctx context.Context, id int64, patch *model.StatusPatch) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"status":     patch.Status,
		"updated_at": now,
	}
	if patch.Notes != "" {
		set["notes"] = patch.Notes
	}
	if patch.Status == model.StatusCancelled {
		set["cancellation_reason"] = patch.CancellationReason
		set["cancelled_by"] = patch.CancelledBy
		set["cancelled_at"] = now
	}

	var updated model.Booking
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "version": patch.ExpectedVersion},
		bson.M{"$set": set, "$inc": bson.M{"version": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// Distinguish a missing booking from a stale version.
	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if current == nil {
		return nil, apperrors.NotFoundWithID("Booking", fmt.Sprintf("%d", id))
	}
	return nil, apperrors.VersionConflict("Booking", patch.ExpectedVersion, current.Version)
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn dbmongo.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func listFilterQuery(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.BusinessID != "" {
		query["business_id"] = filter.BusinessID
	}
	if filter.ProviderID != "" {
		query["provider_id"] = filter.ProviderID
	}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ClientEmailHash != "" {
		query["client_email_hash"] = filter.ClientEmailHash
	}
	return query
}
