package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/emergency-dispatch/internal/booking"
	"github.com/example/emergency-dispatch/internal/config"
	httpapi "github.com/example/emergency-dispatch/internal/http"
	"github.com/example/emergency-dispatch/internal/identity"
	"github.com/example/emergency-dispatch/internal/ingest"
	"github.com/example/emergency-dispatch/internal/logging"
	"github.com/example/emergency-dispatch/internal/matcher"
	"github.com/example/emergency-dispatch/internal/registry"
	"github.com/example/emergency-dispatch/internal/routing"
	"github.com/example/emergency-dispatch/internal/service"
	"github.com/example/emergency-dispatch/internal/storage"
	"github.com/example/emergency-dispatch/internal/tracking"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
		}
	}

	regOpts := []registry.Option{}
	if cfg.RedisAddr != "" {
		regOpts = append(regOpts, registry.WithMirror(
			registry.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, logger)))
	}
	units := registry.New(logger, regOpts...)

	var store storage.BookingStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Error("postgres unavailable, falling back to memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var provider routing.Provider
	if cfg.OSRMEndpoint != "" {
		provider = &routing.Cached{
			Provider: routing.NewOSRMClient(cfg.OSRMEndpoint),
			Cache:    routing.NewCache(cfg.RouteCacheTTL),
		}
	}

	hub := tracking.NewHub(logger)
	trk := tracking.NewManager(provider, cfg.RefreshInterval, cfg.AvgSpeedKmh, hub, logger)
	machine := booking.NewMachine(matcher.New(units, cfg.AvgSpeedKmh, logger), units, trk, store, logger)

	var publisher service.PositionPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	svc := service.New(machine, units, trk, publisher, logger)

	var id identity.Identity
	if cfg.JWTSecret != "" {
		var challenger identity.Challenger
		if cfg.TwilioAccountSID != "" {
			challenger = identity.NewTwilioChallenger(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		}
		id = identity.NewProvider(cfg.JWTSecret, challenger)
	} else {
		logger.Warn("JWT_SECRET not set, bearer auth disabled")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(svc, id, hub, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("emergency-dispatch listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_bookings.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
