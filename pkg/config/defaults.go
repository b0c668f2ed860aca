package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotwise"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Slot lock lifecycle. A crash between acquire and release self-heals
	// through the TTL; the reaper sweep is the backstop.
	DefaultLockTTL             = 60 * time.Second
	DefaultLockExtendIncrement = 30 * time.Second
	DefaultLockCleanupInterval = 1 * time.Minute

	// Booking policy defaults, overridable per business by callers.
	DefaultMinLeadTime     = 2 * time.Hour
	DefaultMaxAdvanceDays  = 30
	DefaultWorkingDayStart = "09:00"
	DefaultWorkingDayEnd   = "17:00"

	DefaultDurationMin     = 60
	DefaultBufferBeforeMin = 0
	DefaultBufferAfterMin  = 15
	DefaultSlotsPerHour    = 1

	DefaultPaginationLimit = 100

	DefaultKafkaTopic = "booking.events"
)

var DefaultWorkingDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
