package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"slotwise/internal/locks"
	"slotwise/pkg/config"
)

const ServiceName = "lock-reaper"

// The reaper sweeps expired slot locks on an interval, covering locks
// abandoned by crashed clients before the storage TTL monitor gets to them.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	lockRepo := locks.NewMongoSlotLockRepository(cfg)
	lockManager := locks.NewManager(lockRepo, cfg)

	scheduler := cron.New()
	schedule := fmt.Sprintf("@every %s", cfg.LockCleanupInterval)
	if _, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
		defer cancel()

		if _, err := lockManager.Cleanup(ctx); err != nil {
			cfg.Log.Error("Slot lock cleanup failed", "error", err)
		}
	}); err != nil {
		cfg.Log.Fatal("Failed to schedule lock cleanup", "error", err, "schedule", schedule)
	}

	cfg.Log.Info("Starting slot lock reaper", "interval", cfg.LockCleanupInterval)
	scheduler.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown

	cfg.Log.Info("Shutdown signal received", "signal", sig)
	<-scheduler.Stop().Done()
	cfg.Log.Info("Slot lock reaper stopped")
}
