package events

import (
	"context"
	"fmt"

	"slotwise/pkg/config"
	"slotwise/pkg/kafka"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingCancelled     = "booking.cancelled"

	source = "bookings-service"
)

// Payload is the event body shared by all booking events. PreviousStatus is
// set only on transitions.
type Payload struct {
	BookingID      int64               `json:"booking_id"`
	BusinessID     string              `json:"business_id"`
	ProviderID     string              `json:"provider_id"`
	Date           string              `json:"date"`
	Time           string              `json:"time"`
	Status         model.BookingStatus `json:"status"`
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
	Version        int64               `json:"version"`
}

// Publisher emits booking lifecycle events. Publishing is best-effort: the
// booking write has already committed, so a broker failure is logged and
// swallowed rather than surfaced to the client.
type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	StatusChanged(ctx context.Context, booking *model.Booking, previous model.BookingStatus)
	Close() error
}

// NewPublisher returns a Kafka-backed publisher, or a no-op one when Kafka
// is disabled in configuration.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return &noopPublisher{}, nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create booking event producer: %w", err)
	}
	return &kafkaPublisher{producer: producer, log: cfg.Log}, nil
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCreated, booking, "")
}

func (p *kafkaPublisher) StatusChanged(ctx context.Context, booking *model.Booking, previous model.BookingStatus) {
	eventType := EventBookingStatusChanged
	if booking.Status == model.StatusCancelled {
		eventType = EventBookingCancelled
	}
	p.publish(ctx, eventType, booking, previous)
}

func (p *kafkaPublisher) publish(ctx context.Context, eventType string, booking *model.Booking, previous model.BookingStatus) {
	msg := kafka.NewMessage().
		WithKey(fmt.Sprintf("%d", booking.ID)).
		WithEventType(eventType).
		WithSource(source).
		WithValue(Payload{
			BookingID:      booking.ID,
			BusinessID:     booking.BusinessID,
			ProviderID:     booking.ProviderID,
			Date:           booking.Date,
			Time:           booking.Time,
			Status:         booking.Status,
			PreviousStatus: previous,
			Version:        booking.Version,
		}).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

func (*noopPublisher) BookingCreated(context.Context, *model.Booking)                     {}
func (*noopPublisher) StatusChanged(context.Context, *model.Booking, model.BookingStatus) {}
func (*noopPublisher) Close() error                                                      { return nil }
