// Package rates maintains the exchange-rate cache: manual oracle updates,
// oracle rotation and the periodic feed scrape.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantapay/payrolld/internal/feed"
	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/lib/logger/sl"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
)

type Service struct {
	log      *slog.Logger
	rates    repository.RateRepoIface
	settings repository.SettingsRepoIface
	guard    *guard.Guard
	source   feed.Source
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time
}

func NewService(
	log *slog.Logger,
	rates repository.RateRepoIface,
	settings repository.SettingsRepoIface,
	grd *guard.Guard,
	source feed.Source,
	appMetrics *metrics.Metrics,
	interval time.Duration,
) *Service {
	return &Service{
		log:      log,
		rates:    rates,
		settings: settings,
		guard:    grd,
		source:   source,
		metrics:  appMetrics,
		interval: interval,
		now:      time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) initLogger(opn string) *slog.Logger {
	return s.log.With(
		slog.String("op", opn),
		slog.String("division", "rates"),
	)
}

func (s *Service) observe(opn string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.metrics.Operations.WithLabelValues(opn, status).Inc()
}

// SetExchangeRate stores a rate, in asset units per USD. Only the oracle
// account may call it. USD itself is implicit and never carries a rate.
func (s *Service) SetExchangeRate(ctx context.Context, caller, asset string, rate int64) (err error) {
	const opn = "rates.set_exchange_rate"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireOracle(ctx, caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}
	if rate <= 0 || asset == models.DefaultAsset || asset == "" {
		return models.ErrInvalidRate
	}

	if err = s.rates.UpsertRate(ctx, asset, rate, s.now()); err != nil {
		log.ErrorContext(ctx, "Failed to set rate", "asset", asset, sl.Err(err))
		return fmt.Errorf("failed to set rate: %w", err)
	}

	log.InfoContext(ctx, "Rate updated", "asset", asset, "rate", rate)

	return nil
}

// SetOracle rotates the account allowed to publish rates.
func (s *Service) SetOracle(ctx context.Context, caller, account string) (err error) {
	const opn = "rates.set_oracle"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}

	if err = s.settings.SetOracle(ctx, account); err != nil {
		log.ErrorContext(ctx, "Failed to set oracle", sl.Err(err))
		return fmt.Errorf("failed to set oracle: %w", err)
	}

	log.InfoContext(ctx, "Oracle rotated", "account", account)

	return nil
}

// Rates returns every cached rate.
func (s *Service) Rates(ctx context.Context) ([]models.Rate, error) {
	rates, err := s.rates.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}

	return rates, nil
}

// Run scrapes the feed once immediately and then on every tick until the
// context is cancelled. Scrapes are skipped while the ledger is suspended.
func (s *Service) Run(ctx context.Context) {
	log := s.initLogger("rates.run")
	log.InfoContext(ctx, "Starting rate feed loop", "interval", s.interval.String())

	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "Rate feed loop stopped")
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// Refresh performs one feed scrape and stores every parsed quote.
func (s *Service) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	log := s.initLogger("rates.refresh")

	cfg, err := s.settings.GetSettings(ctx)
	if err != nil {
		s.metrics.FeedRuns.WithLabelValues("failure").Inc()
		log.ErrorContext(ctx, "Failed to load settings", sl.Err(err))
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if cfg.Suspended {
		log.WarnContext(ctx, "Ledger suspended, skipping feed run")
		return models.ErrSuspended
	}

	quotes, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.FeedRuns.WithLabelValues("failure").Inc()
		log.ErrorContext(ctx, "Feed fetch failed", sl.Err(err))
		return fmt.Errorf("feed fetch failed: %w", err)
	}

	// The feed publishes as the configured oracle, so every quote goes
	// through the same checks as a manual rate update.
	for _, quote := range quotes {
		if quote.Asset == models.DefaultAsset {
			continue
		}
		if err := s.SetExchangeRate(ctx, cfg.OracleAccount, quote.Asset, quote.UnitsPerUSD); err != nil {
			s.metrics.FeedRuns.WithLabelValues("failure").Inc()
			log.ErrorContext(ctx, "Failed to store quote", "asset", quote.Asset, sl.Err(err))
			return fmt.Errorf("failed to store quote: %w", err)
		}
		s.metrics.RatesParsed.Inc()
	}

	s.metrics.FeedRuns.WithLabelValues("success").Inc()
	s.metrics.LastSuccessfulRun.SetToCurrentTime()
	log.InfoContext(ctx, "Feed run complete", "quotes", len(quotes))

	return nil
}
