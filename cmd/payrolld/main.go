package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quantapay/payrolld/internal/config"
	"github.com/quantapay/payrolld/internal/feed"
	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/repository"
	"github.com/quantapay/payrolld/internal/server"
	"github.com/quantapay/payrolld/internal/services/rates"
)

const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the payroll daemon. The daemon keeps the rate
// cache fresh and serves the monitoring endpoints; ledger operations are
// driven through payrollctl against the same database.
func main() {
	var wgr sync.WaitGroup
	delta := 2

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg := config.MustLoad()

	logger := setupLogger(cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	dtb, err := repository.NewDatabase(
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Dbname)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer stop()
	defer dtb.Close()

	rateRepo := repository.NewRateRepository(dtb, appMetrics)
	settingsRepo := repository.NewSettingsRepository(dtb, appMetrics)

	grd := guard.New(cfg.Payroll.Admin, settingsRepo)
	scraper := feed.NewScraper(cfg.Feed.URL)

	rateService := rates.NewService(logger, rateRepo, settingsRepo, grd, scraper, appMetrics, cfg.Feed.Interval)

	wgr.Add(delta)

	go func() {
		defer wgr.Done()
		serverPort := 8080
		server.StartMonitoringServer(ctx, logger, reg, dtb, serverPort, cfg.Feed.URL)
	}()

	go func() {
		defer wgr.Done()
		logger.InfoContext(ctx, "Starting Rate Service")
		rateService.Run(ctx)
		logger.InfoContext(ctx, "Rate Service stopped.")
	}()

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	wgr.Wait()

	logger.InfoContext(ctx, "Application stopped gracefully...")
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{Key: "", Value: slog.Value{}}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{Key: "", Value: slog.Value{}}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified, or was invalid. Logging will be minimal, by default." +
				" Please specify the value of `env`: local, development, production")
	}

	return log
}
