package main

import (
	availabilityhandler "slotwise/internal/availability/handler"
	lockshandler "slotwise/internal/locks/handler"

	"slotwise/internal/availability"
	"slotwise/internal/bookings/events"
	"slotwise/internal/bookings/handler"
	"slotwise/internal/bookings/repository"
	"slotwise/internal/bookings/service"
	"slotwise/internal/bookings/validator"
	"slotwise/internal/locks"
	"slotwise/pkg/app"
	"slotwise/pkg/config"
	dbmongo "slotwise/pkg/db/mongo"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")

	bookingService, availabilityService, lockManager, publisher := initServices(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		handler.NewBookingHandler(bookingService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		lockshandler.NewHoldHandler(lockManager, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.BookingService, availability.Service, locks.Manager, events.Publisher) {
	txManager := dbmongo.NewTransactionManager(cfg.Client.Mongo)
	bookingRepo := repository.NewMongoBookingRepository(cfg, txManager)
	lockRepo := locks.NewMongoSlotLockRepository(cfg)
	lockManager := locks.NewManager(lockRepo, cfg)

	availabilityService, err := availability.NewService(bookingRepo, lockManager, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize availability service", "error", err)
	}

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingService := service.NewBookingService(
		bookingRepo,
		bookingValidator,
		availabilityService,
		lockManager,
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, availabilityService, lockManager, publisher
}
