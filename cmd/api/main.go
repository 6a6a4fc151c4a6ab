package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/delgadoservices/fieldstock-backend/api/routes"
	"github.com/delgadoservices/fieldstock-backend/internal/audit"
	"github.com/delgadoservices/fieldstock-backend/internal/inventory"
	"github.com/delgadoservices/fieldstock-backend/internal/jobs"
	"github.com/delgadoservices/fieldstock-backend/internal/labor"
	"github.com/delgadoservices/fieldstock-backend/internal/reservations"
	"github.com/delgadoservices/fieldstock-backend/internal/variance"
	"github.com/delgadoservices/fieldstock-backend/pkg/config"
	"github.com/delgadoservices/fieldstock-backend/pkg/db"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
	"github.com/delgadoservices/fieldstock-backend/pkg/metrics"
	"github.com/delgadoservices/fieldstock-backend/pkg/migrate"
	"github.com/delgadoservices/fieldstock-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:    inventoryRepo,
		Tx:      dbClient,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	auditRecorder, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()), ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	reservationRepo := reservations.NewRepository(dbClient.DB())
	jobsRepo := jobs.NewRepository(dbClient.DB())

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		Repo:     reservationRepo,
		Items:    inventoryRepo,
		Ledger:   inventoryService,
		Jobs:     jobsRepo,
		Recorder: auditRecorder,
		Tx:       dbClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	varianceService, err := variance.NewService(variance.ServiceParams{
		Jobs:         jobsRepo,
		Reservations: reservationRepo,
		Labor:        labor.NewRepository(dbClient.DB()),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create variance service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			reservationService,
			inventoryService,
			varianceService,
			auditRecorder,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
