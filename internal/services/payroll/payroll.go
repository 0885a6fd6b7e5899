// Package payroll implements the employee-facing operations: choosing a
// salary split across assets and claiming accrued salary on payday.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/lib/logger/sl"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
	"github.com/quantapay/payrolld/internal/services/registry"
	"github.com/quantapay/payrolld/internal/settlement"
)

const yearSeconds = 365 * 24 * 60 * 60

type Service struct {
	log         *slog.Logger
	employees   repository.EmployeeRepoIface
	allocations repository.AllocationRepoIface
	treasury    repository.TreasuryRepoIface
	rates       repository.RateRepoIface
	guard       *guard.Guard
	transferor  settlement.Transferor
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(
	log *slog.Logger,
	employees repository.EmployeeRepoIface,
	allocations repository.AllocationRepoIface,
	treasuryRepo repository.TreasuryRepoIface,
	rates repository.RateRepoIface,
	grd *guard.Guard,
	transferor settlement.Transferor,
	appMetrics *metrics.Metrics,
) *Service {
	return &Service{
		log:         log,
		employees:   employees,
		allocations: allocations,
		treasury:    treasuryRepo,
		rates:       rates,
		guard:       grd,
		transferor:  transferor,
		metrics:     appMetrics,
		now:         time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) initLogger(opn string) *slog.Logger {
	return s.log.With(
		slog.String("op", opn),
		slog.String("division", "payroll"),
	)
}

func (s *Service) observe(opn string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.metrics.Operations.WithLabelValues(opn, status).Inc()
}

// DetermineAllocation replaces the caller's salary split. The first call is
// free; after that the split is locked for 180 days. Empty lists reset the
// split to 100% USD.
func (s *Service) DetermineAllocation(ctx context.Context, caller string, assets []string, percents []int64) (err error) {
	const opn = "payroll.determine_allocation"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}

	employee, err := s.activeEmployee(ctx, caller)
	if err != nil {
		return err
	}

	if !employee.LastAllocationAt.IsZero() &&
		s.now().Sub(employee.LastAllocationAt) < registry.AllocationCooldown {
		return models.ErrAllocationLocked
	}

	lines, err := s.buildLines(ctx, employee, assets, percents)
	if err != nil {
		return err
	}

	if err = s.allocations.ReplaceAllocation(ctx, employee.ID, lines, s.now()); err != nil {
		log.ErrorContext(ctx, "Failed to store allocation", "id", employee.ID, sl.Err(err))
		return fmt.Errorf("failed to store allocation: %w", err)
	}

	log.InfoContext(ctx, "Allocation updated", "id", employee.ID, "lines", len(lines), sl.Caller(caller))

	return nil
}

// Allocation returns the effective salary split for an employee. An employee
// who never chose a split is paid entirely in USD.
func (s *Service) Allocation(ctx context.Context, employeeID int64) ([]models.AllocationLine, error) {
	lines, err := s.allocations.GetAllocation(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	if len(lines) == 0 {
		return []models.AllocationLine{{Asset: models.DefaultAsset, Percent: 100}}, nil
	}

	return lines, nil
}

// History returns an employee's recorded payouts, newest first.
func (s *Service) History(ctx context.Context, employeeID int64) ([]models.Payout, error) {
	payouts, err := s.treasury.ListPayouts(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}

	return payouts, nil
}

// Payday pays the caller everything accrued since their last payout,
// converted per their allocation at the cached rates. Balance debits and
// outbound transfers commit together; any failed line aborts the whole
// payout.
func (s *Service) Payday(ctx context.Context, caller string) (lines []models.PayoutLine, err error) {
	const opn = "payroll.payday"
	log := s.initLogger(opn)
	defer func() {
		s.observe(opn, err)
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.PayoutsTotal.WithLabelValues(status).Inc()
	}()

	if err = s.guard.RequireLive(ctx); err != nil {
		return nil, err
	}

	employee, err := s.activeEmployee(ctx, caller)
	if err != nil {
		return nil, err
	}

	payoutAt := s.now()
	elapsed := int64(payoutAt.Sub(employee.LastPayoutAt).Seconds())
	owedUSD := employee.YearlySalary * elapsed / yearSeconds
	if owedUSD <= 0 {
		return nil, models.ErrPayoutTooSoon
	}

	allocation, err := s.Allocation(ctx, employee.ID)
	if err != nil {
		return nil, err
	}

	lines = make([]models.PayoutLine, 0, len(allocation))
	for _, part := range allocation {
		rate := int64(1)
		if part.Asset != models.DefaultAsset {
			if rate, err = s.rates.GetRate(ctx, part.Asset); err != nil {
				return nil, err
			}
		}

		lines = append(lines, models.PayoutLine{
			Asset:     part.Asset,
			Amount:    rate * owedUSD * part.Percent / 100,
			UsdAmount: owedUSD * part.Percent / 100,
		})
	}

	reference := uuid.New()

	err = s.treasury.ApplyPayout(ctx, employee.ID, reference, lines, payoutAt, func(line models.PayoutLine) error {
		if line.Amount == 0 {
			return nil
		}
		return s.transferor.Transfer(ctx, line.Asset, employee.Account, line.Amount)
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to apply payout", "id", employee.ID, sl.Err(err))
		return nil, fmt.Errorf("failed to apply payout: %w", err)
	}

	log.InfoContext(ctx, "Payout dispatched",
		"id", employee.ID, "reference", reference.String(), "usd", owedUSD, sl.Caller(caller))

	return lines, nil
}

func (s *Service) activeEmployee(ctx context.Context, account string) (models.Employee, error) {
	employee, err := s.employees.GetEmployeeByAccount(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrEmployeeNotFound) {
			return models.Employee{}, models.ErrNotSelf
		}
		return models.Employee{}, err
	}
	if !employee.Active {
		return models.Employee{}, models.ErrEmployeeInactive
	}

	return employee, nil
}

// buildLines validates a requested split and pairs it into allocation lines.
func (s *Service) buildLines(
	ctx context.Context,
	employee models.Employee,
	assets []string,
	percents []int64,
) ([]models.AllocationLine, error) {
	if len(assets) != len(percents) {
		return nil, models.ErrInvalidAllocation
	}
	if len(assets) == 0 {
		return nil, nil
	}

	lines := make([]models.AllocationLine, 0, len(assets))

	var total int64
	for i, asset := range assets {
		percent := percents[i]
		if percent < 0 || percent > 100 {
			return nil, models.ErrInvalidAllocation
		}
		if asset != models.DefaultAsset {
			if _, err := s.rates.GetRate(ctx, asset); err != nil {
				return nil, err
			}
			if !employee.AllowedAsset(asset) {
				return nil, models.ErrAssetNotAllowed
			}
		}

		total += percent
		lines = append(lines, models.AllocationLine{Asset: asset, Percent: percent})
	}

	if total != 100 {
		return nil, models.ErrInvalidAllocation
	}

	return lines, nil
}
