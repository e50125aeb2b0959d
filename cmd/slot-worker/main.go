package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/scheduling-service/internal/config"
	"github.com/clinicore/scheduling-service/internal/db"
	redisclient "github.com/clinicore/scheduling-service/internal/redis"
	"github.com/clinicore/scheduling-service/internal/scheduling"
)

// slot-worker keeps the rolling slot horizon filled for every doctor and
// sweeps overdue confirmed appointments into no_show.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot worker in env=%s interval=%s horizon_days=%d", cfg.Env, cfg.WorkerInterval, cfg.HorizonDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	cache := redisclient.NewSlotCache(rdb, cfg.SlotCacheTTL)
	notifier := redisclient.NewEventNotifier(rdb, cfg.NotifyChannel)

	slots := scheduling.NewSlotService(repo, cache, cfg.HorizonDays)
	bookings := scheduling.NewBookingService(repo, locker, cache, notifier, scheduling.NoopVisitRecorder{}, cfg)

	// Run once at startup
	runOnce(rootCtx, cfg, slots, bookings)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, cfg, slots, bookings)
		}
	}
}

func runOnce(ctx context.Context, cfg config.Config, slots *scheduling.SlotService, bookings *scheduling.BookingService) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()

	generated, err := slots.GenerateUpcoming(runCtx, cfg.HorizonDays)
	if err != nil {
		log.Printf("slot generation run error: %v", err)
	} else {
		log.Printf("slot generation complete: %d slots in %s", generated, time.Since(start))
	}

	swept, err := bookings.MarkOverdueNoShows(runCtx)
	if err != nil {
		log.Printf("no-show sweep error: %v", err)
	} else if swept > 0 {
		log.Printf("no-show sweep marked %d appointments", swept)
	}
}
