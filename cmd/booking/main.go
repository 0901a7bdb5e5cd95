package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/config"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/database"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/logger"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/tracing"
	"github.com/hollanddz228/ComputerClubBookingg/internal/events"
	"github.com/hollanddz228/ComputerClubBookingg/internal/metrics"
	"github.com/hollanddz228/ComputerClubBookingg/internal/projection"
	"github.com/hollanddz228/ComputerClubBookingg/internal/repository"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/batch"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/booking"
	"github.com/hollanddz228/ComputerClubBookingg/internal/transport/rest"
	"github.com/hollanddz228/ComputerClubBookingg/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	lg := logger.New(cfg.Env)
	slog.SetDefault(lg)

	if err := tracing.Setup(cfg.EnableTracing); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	defer db.Close()

	if err := migrations.Up(ctx, db.DB.DB); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	cat, err := catalog.LoadFile(cfg.Booking.CatalogFile)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	var publisher booking.EventPublisher = events.Nop{}
	if cfg.Events.RabbitURL != "" {
		p, err := events.NewPublisher(cfg.Events.RabbitURL, cfg.Events.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect event broker: %v", err)
		}
		defer p.Close()
		publisher = p
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collectorSet := metrics.New(reg)

	repoDB := repository.NewDB(db.DB)
	store := repository.NewStore(repoDB)
	clk := clock.NewStore(repoDB)

	service := booking.NewService(store, cat, clk,
		booking.WithNightStartHour(cfg.Booking.NightStartHour),
		booking.WithLocation(cfg.Location()),
		booking.WithRetry(booking.RetryPolicy{
			Attempts:  cfg.Booking.RetryAttempts,
			BaseDelay: cfg.Booking.RetryBaseDelay,
		}),
		booking.WithPublisher(publisher),
		booking.WithRecorder(collectorSet),
		booking.WithLogger(lg),
	)

	reclaimer := batch.NewReclaimer(store, clk,
		batch.WithReclaimPublisher(publisher),
		batch.WithReclaimRecorder(collectorSet),
		batch.WithReclaimLogger(lg),
	)
	go reclaimer.Run(ctx, cfg.Booking.ReclaimInterval)

	proj := projection.New(store, clk,
		projection.WithResources(store),
		projection.WithRecorder(collectorSet),
		projection.WithLogger(lg),
	)
	var changes <-chan string
	listener, err := repository.NewListener(cfg.DB.DSN(), repository.ReservationsChannel, lg)
	if err != nil {
		// 通知が使えない場合は定期的な再構築だけで追従する
		lg.Warn("reservation listener unavailable, falling back to periodic rebuilds", "error", err)
	} else {
		defer listener.Close()
		changes = listener.Changes(ctx)
	}
	go proj.Run(ctx, changes, cfg.Booking.ProjectionTick)

	if cfg.HTTP.JWTSecret == "" {
		lg.Warn("JWT_SECRET is empty, authenticated endpoints will reject every request")
	}
	deps := rest.Deps{
		Bookings:      service,
		Availability:  proj,
		Notifications: repository.NewNotificationRepository(repoDB),
		Catalog:       cat,
		JWTSecret:     []byte(cfg.HTTP.JWTSecret),
		Logger:        lg,
	}
	if cfg.HTTP.MetricsEnabled {
		deps.Metrics = metrics.Handler(reg)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           rest.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		lg.Info("booking service listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-errChan:
		lg.Error("http server failed", "error", err)
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", "error", err)
	}
}
