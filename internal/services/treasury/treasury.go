// Package treasury manages the pooled funds: deposits, USD valuation,
// burn rate and runway, the runway deposit limit, suspension and the
// emergency sweep.
package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/lib/logger/sl"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
	"github.com/quantapay/payrolld/internal/settlement"
)

// Burn rate is expressed in USD per 28-day period, salaries in USD per
// 365-day year.
const (
	PeriodDays = 28
	YearDays   = 365
)

// RunwayForever is the runway reported while the roster is empty: with no
// salaries to pay the treasury lasts indefinitely.
const RunwayForever = int64(math.MaxInt64)

type Service struct {
	log        *slog.Logger
	treasury   repository.TreasuryRepoIface
	employees  repository.EmployeeRepoIface
	rates      repository.RateRepoIface
	settings   repository.SettingsRepoIface
	guard      *guard.Guard
	transferor settlement.Transferor
	metrics    *metrics.Metrics
	native     string
	now        func() time.Time
}

func NewService(
	log *slog.Logger,
	treasuryRepo repository.TreasuryRepoIface,
	employees repository.EmployeeRepoIface,
	rates repository.RateRepoIface,
	settings repository.SettingsRepoIface,
	grd *guard.Guard,
	transferor settlement.Transferor,
	appMetrics *metrics.Metrics,
	nativeAsset string,
) *Service {
	return &Service{
		log:        log,
		treasury:   treasuryRepo,
		employees:  employees,
		rates:      rates,
		settings:   settings,
		guard:      grd,
		transferor: transferor,
		metrics:    appMetrics,
		native:     nativeAsset,
		now:        time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) initLogger(opn string) *slog.Logger {
	return s.log.With(
		slog.String("op", opn),
		slog.String("division", "treasury"),
	)
}

func (s *Service) observe(opn string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.metrics.Operations.WithLabelValues(opn, status).Inc()
}

// DepositNative credits the configured native asset to the treasury.
func (s *Service) DepositNative(ctx context.Context, caller string, amount int64) error {
	return s.deposit(ctx, caller, s.native, amount)
}

// DepositAsset credits a tracked fungible asset to the treasury.
func (s *Service) DepositAsset(ctx context.Context, caller, asset string, amount int64) error {
	return s.deposit(ctx, caller, asset, amount)
}

// deposit credits the treasury after projecting the post-deposit runway
// against the configured limit. Anyone may deposit; the limit exists so a
// funder cannot park more value than the ledger is allowed to hold.
func (s *Service) deposit(ctx context.Context, caller, asset string, amount int64) (err error) {
	const opn = "treasury.deposit"
	log := s.initLogger(opn)
	defer func() {
		s.observe(opn, err)
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.DepositsTotal.WithLabelValues(status).Inc()
	}()

	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	depositUSD, err := s.usdValue(ctx, asset, amount)
	if err != nil {
		return err
	}

	burn, err := s.burnRate(ctx)
	if err != nil {
		return err
	}

	// An empty roster burns nothing, so any deposit keeps runway infinite
	// and the limit cannot be exceeded.
	if burn > 0 {
		treasuryUSD, valErr := s.treasuryUSD(ctx)
		if valErr != nil {
			return valErr
		}

		cfg, cfgErr := s.settings.GetSettings(ctx)
		if cfgErr != nil {
			return fmt.Errorf("failed to load settings: %w", cfgErr)
		}

		// Compare runway to the limit without truncating the quotient:
		// (treasuryUSD * 28) / burn > limitDays.
		if (treasuryUSD+depositUSD)*PeriodDays > cfg.RunwayLimitDays*burn {
			return models.ErrRunwayExceeded
		}
	}

	if err = s.treasury.Credit(ctx, asset, amount, caller, s.now()); err != nil {
		log.ErrorContext(ctx, "Failed to credit treasury", "asset", asset, sl.Err(err))
		return fmt.Errorf("failed to credit treasury: %w", err)
	}

	log.InfoContext(ctx, "Deposit accepted", "asset", asset, "amount", amount, "usd", depositUSD, sl.Caller(caller))

	return nil
}

// BurnRate reports the USD spent on salaries per 28-day period.
func (s *Service) BurnRate(ctx context.Context, caller string) (int64, error) {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return 0, err
	}

	return s.burnRate(ctx)
}

// Runway reports how many days the current treasury covers at the current
// burn rate. It returns RunwayForever while the roster is empty.
func (s *Service) Runway(ctx context.Context, caller string) (int64, error) {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return 0, err
	}

	burn, err := s.burnRate(ctx)
	if err != nil {
		return 0, err
	}
	if burn == 0 {
		return RunwayForever, nil
	}

	treasuryUSD, err := s.treasuryUSD(ctx)
	if err != nil {
		return 0, err
	}

	return treasuryUSD * PeriodDays / burn, nil
}

// SetRunwayLimit replaces the maximum runway, in days, a deposit may extend
// the treasury to.
func (s *Service) SetRunwayLimit(ctx context.Context, caller string, days int64) (err error) {
	const opn = "treasury.set_runway_limit"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}
	if days <= 0 {
		return models.ErrInvalidLimit
	}

	if err = s.settings.SetRunwayLimit(ctx, days); err != nil {
		log.ErrorContext(ctx, "Failed to set runway limit", sl.Err(err))
		return fmt.Errorf("failed to set runway limit: %w", err)
	}

	log.InfoContext(ctx, "Runway limit updated", "days", days)

	return nil
}

// RunwayLimit returns the configured deposit ceiling in days of runway.
func (s *Service) RunwayLimit(ctx context.Context) (int64, error) {
	cfg, err := s.settings.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings: %w", err)
	}

	return cfg.RunwayLimitDays, nil
}

// Balances returns every treasury balance.
func (s *Service) Balances(ctx context.Context) ([]models.Balance, error) {
	balances, err := s.treasury.ListBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	return balances, nil
}

// Suspend halts every mutating operation until Resume.
func (s *Service) Suspend(ctx context.Context, caller string) (err error) {
	const opn = "treasury.suspend"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}

	if err = s.settings.SetSuspended(ctx, true); err != nil {
		log.ErrorContext(ctx, "Failed to suspend", sl.Err(err))
		return fmt.Errorf("failed to suspend: %w", err)
	}

	log.WarnContext(ctx, "Ledger suspended", sl.Caller(caller))

	return nil
}

// Resume lifts a suspension.
func (s *Service) Resume(ctx context.Context, caller string) (err error) {
	const opn = "treasury.resume"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireSuspended(ctx); err != nil {
		return err
	}

	if err = s.settings.SetSuspended(ctx, false); err != nil {
		log.ErrorContext(ctx, "Failed to resume", sl.Err(err))
		return fmt.Errorf("failed to resume: %w", err)
	}

	log.InfoContext(ctx, "Ledger resumed", sl.Caller(caller))

	return nil
}

// Sweep transfers every remaining balance to the administrator and zeroes
// the treasury. It is only available while the ledger is suspended.
func (s *Service) Sweep(ctx context.Context, caller string) (err error) {
	const opn = "treasury.sweep"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireSuspended(ctx); err != nil {
		return err
	}

	admin := s.guard.Admin()

	err = s.treasury.Drain(ctx, func(asset string, amount int64) error {
		log.WarnContext(ctx, "Sweeping balance", "asset", asset, "amount", amount)
		return s.transferor.Transfer(ctx, asset, admin, amount)
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to sweep treasury", sl.Err(err))
		return fmt.Errorf("failed to sweep treasury: %w", err)
	}

	log.WarnContext(ctx, "Treasury swept", "recipient", admin)

	return nil
}

// burnRate sums active yearly salaries and scales the total to one 28-day
// period, truncating once at the end.
func (s *Service) burnRate(ctx context.Context) (int64, error) {
	total, err := s.employees.SumActiveSalaries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sum salaries: %w", err)
	}

	return total * PeriodDays / YearDays, nil
}

// treasuryUSD values every balance in whole USD, truncating per asset.
func (s *Service) treasuryUSD(ctx context.Context) (int64, error) {
	balances, err := s.treasury.ListBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list balances: %w", err)
	}

	var total int64
	for _, balance := range balances {
		value, err := s.usdValue(ctx, balance.Asset, balance.Amount)
		if err != nil {
			return 0, err
		}
		total += value
	}

	return total, nil
}

// usdValue converts an asset amount to whole USD using the cached rate,
// expressed as asset units per USD.
func (s *Service) usdValue(ctx context.Context, asset string, amount int64) (int64, error) {
	if asset == models.DefaultAsset {
		return amount, nil
	}

	rate, err := s.rates.GetRate(ctx, asset)
	if err != nil {
		return 0, err
	}

	return amount / rate, nil
}
