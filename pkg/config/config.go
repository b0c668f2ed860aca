package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"slotwise/pkg/client"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
)

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LockTTL             time.Duration
	LockExtendIncrement time.Duration
	LockCleanupInterval time.Duration

	MinLeadTime      time.Duration
	MaxAdvanceDays   int
	WorkingDayStart  string
	WorkingDayEnd    string
	WorkingDays      []string
	BusinessTimeZone string
	Location         *time.Location

	DefaultDurationMin     int
	DefaultBufferBeforeMin int
	DefaultBufferAfterMin  int
	DefaultSlotsPerHour    int

	PaginationLimit int

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// Best-effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LockTTL:             getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockExtendIncrement: getEnvDuration(EnvLockExtendIncrement, DefaultLockExtendIncrement),
		LockCleanupInterval: getEnvDuration(EnvLockCleanupInterval, DefaultLockCleanupInterval),

		MinLeadTime:      getEnvDuration(EnvMinLeadTime, DefaultMinLeadTime),
		MaxAdvanceDays:   getEnvNum(EnvMaxAdvanceDays, DefaultMaxAdvanceDays),
		WorkingDayStart:  getEnvStr(EnvWorkingDayStart, DefaultWorkingDayStart),
		WorkingDayEnd:    getEnvStr(EnvWorkingDayEnd, DefaultWorkingDayEnd),
		WorkingDays:      getEnvList(EnvWorkingDays, DefaultWorkingDays),
		BusinessTimeZone: getEnvStr(EnvBusinessTimeZone, ""),

		DefaultDurationMin:     getEnvNum(EnvDefaultDuration, DefaultDurationMin),
		DefaultBufferBeforeMin: getEnvNum(EnvDefaultBufBefore, DefaultBufferBeforeMin),
		DefaultBufferAfterMin:  getEnvNum(EnvDefaultBufAfter, DefaultBufferAfterMin),
		DefaultSlotsPerHour:    getEnvNum(EnvDefaultSlotsHour, DefaultSlotsPerHour),

		PaginationLimit: getEnvNum(EnvPaginationLimit, DefaultPaginationLimit),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, false),
		KafkaBrokers: getEnvList(EnvKafkaBrokers, nil),
		KafkaTopic:   getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	cfg.Location = time.Local
	if cfg.BusinessTimeZone != "" {
		loc, err := time.LoadLocation(cfg.BusinessTimeZone)
		if err != nil {
			cfg.Log.Fatal("Invalid BUSINESS_TIME_ZONE", "value", cfg.BusinessTimeZone, "error", err)
		}
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// WorkingHours expands the configured default day window over the configured
// working weekdays. Days absent from the map are closed.
func (cfg *Config) WorkingHours() (map[time.Weekday]model.Window, error) {
	start, err := model.MinutesFromClock(cfg.WorkingDayStart)
	if err != nil {
		return nil, err
	}
	end, err := model.MinutesFromClock(cfg.WorkingDayEnd)
	if err != nil {
		return nil, err
	}
	hours := make(map[time.Weekday]model.Window, len(cfg.WorkingDays))
	for _, name := range cfg.WorkingDays {
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		hours[day] = model.Window{Start: start, End: end}
	}
	return hours, nil
}

func (cfg *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		problems = append(problems, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		problems = append(problems, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		problems = append(problems, "MongoDatabaseName cannot be empty")
	}

	timeRegex := regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	if !timeRegex.MatchString(cfg.WorkingDayStart) {
		problems = append(problems, fmt.Sprintf("WorkingDayStart must be in HH:MM format, got: %s", cfg.WorkingDayStart))
	}
	if !timeRegex.MatchString(cfg.WorkingDayEnd) {
		problems = append(problems, fmt.Sprintf("WorkingDayEnd must be in HH:MM format, got: %s", cfg.WorkingDayEnd))
	}
	if cfg.WorkingDayStart >= cfg.WorkingDayEnd {
		problems = append(problems, fmt.Sprintf("WorkingDayStart (%s) must be before WorkingDayEnd (%s)", cfg.WorkingDayStart, cfg.WorkingDayEnd))
	}
	for _, name := range cfg.WorkingDays {
		if _, ok := weekdayNames[name]; !ok {
			problems = append(problems, fmt.Sprintf("WorkingDays contains unknown weekday: %s", name))
		}
	}

	durations := map[string]time.Duration{
		"MongoConnTimeout":    cfg.MongoConnTimeout,
		"RateLimitWindow":     cfg.RateLimitWindow,
		"RequestTimeout":      cfg.RequestTimeout,
		"IdempotencyTTL":      cfg.IdempotencyTTL,
		"ReadTimeout":         cfg.ReadTimeout,
		"WriteTimeout":        cfg.WriteTimeout,
		"IdleTimeout":         cfg.IdleTimeout,
		"ShutdownTimeout":     cfg.ShutdownTimeout,
		"LockTTL":             cfg.LockTTL,
		"LockExtendIncrement": cfg.LockExtendIncrement,
		"LockCleanupInterval": cfg.LockCleanupInterval,
		"MinLeadTime":         cfg.MinLeadTime,
	}
	for name, d := range durations {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		problems = append(problems, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		problems = append(problems, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxAdvanceDays <= 0 {
		problems = append(problems, fmt.Sprintf("MaxAdvanceDays must be positive, got: %d", cfg.MaxAdvanceDays))
	}
	if cfg.DefaultDurationMin <= 0 {
		problems = append(problems, fmt.Sprintf("DefaultDurationMin must be positive, got: %d", cfg.DefaultDurationMin))
	}
	if cfg.DefaultBufferBeforeMin < 0 {
		problems = append(problems, fmt.Sprintf("DefaultBufferBeforeMin cannot be negative, got: %d", cfg.DefaultBufferBeforeMin))
	}
	if cfg.DefaultBufferAfterMin < 0 {
		problems = append(problems, fmt.Sprintf("DefaultBufferAfterMin cannot be negative, got: %d", cfg.DefaultBufferAfterMin))
	}
	if cfg.DefaultSlotsPerHour < 1 || cfg.DefaultSlotsPerHour > 12 || 60%cfg.DefaultSlotsPerHour != 0 {
		problems = append(problems, fmt.Sprintf("DefaultSlotsPerHour must divide 60 evenly (1-12), got: %d", cfg.DefaultSlotsPerHour))
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, "KafkaBrokers cannot be empty when KafkaEnabled is true")
	}

	if len(problems) > 0 {
		msg := "Configuration validation failed:\n"
		for i, p := range problems {
			msg += fmt.Sprintf("  %d. %s\n", i+1, p)
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"lock_ttl", cfg.LockTTL,
		"lock_extend_increment", cfg.LockExtendIncrement,
		"lock_cleanup_interval", cfg.LockCleanupInterval,
		"min_lead_time", cfg.MinLeadTime,
		"max_advance_days", cfg.MaxAdvanceDays,
		"working_day_start", cfg.WorkingDayStart,
		"working_day_end", cfg.WorkingDayEnd,
		"working_days", strings.Join(cfg.WorkingDays, ","),
		"default_duration_min", cfg.DefaultDurationMin,
		"default_buffer_before_min", cfg.DefaultBufferBeforeMin,
		"default_buffer_after_min", cfg.DefaultBufferAfterMin,
		"default_slots_per_hour", cfg.DefaultSlotsPerHour,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_topic", cfg.KafkaTopic,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
