package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLockTTL             = "LOCK_TTL"
	EnvLockExtendIncrement = "LOCK_EXTEND_INCREMENT"
	EnvLockCleanupInterval = "LOCK_CLEANUP_INTERVAL"

	EnvMinLeadTime       = "MIN_LEAD_TIME"
	EnvMaxAdvanceDays    = "MAX_ADVANCE_DAYS"
	EnvWorkingDayStart   = "WORKING_DAY_START"
	EnvWorkingDayEnd     = "WORKING_DAY_END"
	EnvWorkingDays       = "WORKING_DAYS"
	EnvBusinessTimeZone  = "BUSINESS_TIME_ZONE"
	EnvDefaultDuration   = "DEFAULT_DURATION_MIN"
	EnvDefaultBufBefore  = "DEFAULT_BUFFER_BEFORE_MIN"
	EnvDefaultBufAfter   = "DEFAULT_BUFFER_AFTER_MIN"
	EnvDefaultSlotsHour  = "DEFAULT_SLOTS_PER_HOUR"
	EnvPaginationLimit   = "PAGINATION_LIMIT"

	EnvKafkaEnabled = "KAFKA_ENABLED"
	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"
)
