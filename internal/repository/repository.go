package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
)

type Repository struct {
	db      Database
	metrics *metrics.Metrics
}

// EmployeeRepoIface represents the interface for interacting with roster data in the repository.
type EmployeeRepoIface interface {
	CreateEmployee(
		ctx context.Context,
		account, fullname, email string,
		allowedAssets []string,
		yearlySalary int64,
		now time.Time,
	) (int64, error)
	GetEmployeeByID(ctx context.Context, id int64) (models.Employee, error)
	GetEmployeeByAccount(ctx context.Context, account string) (models.Employee, error)
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	CountActiveEmployees(ctx context.Context) (int64, error)
	SumActiveSalaries(ctx context.Context) (int64, error)
	UpdateSalary(ctx context.Context, id, salary int64) error
	DeactivateEmployee(ctx context.Context, id int64) error
	SetAllowedAsset(ctx context.Context, id int64, asset string, allowed bool) error
}

func NewEmployeeRepository(db Database, metrics *metrics.Metrics) EmployeeRepoIface {
	return &Repository{db: db, metrics: metrics}
}

// AllocationRepoIface represents the interface for an employee's salary split.
type AllocationRepoIface interface {
	GetAllocation(ctx context.Context, employeeID int64) ([]models.AllocationLine, error)
	ReplaceAllocation(ctx context.Context, employeeID int64, lines []models.AllocationLine, at time.Time) error
}

func NewAllocationRepository(db Database, metrics *metrics.Metrics) AllocationRepoIface {
	return &Repository{db: db, metrics: metrics}
}

// TreasuryRepoIface represents the interface for the pooled treasury balances.
// ApplyPayout and Drain run their dispatch callbacks inside the same transaction
// as the balance updates, so a failed transfer rolls the whole operation back.
type TreasuryRepoIface interface {
	GetBalance(ctx context.Context, asset string) (int64, error)
	ListBalances(ctx context.Context) ([]models.Balance, error)
	Credit(ctx context.Context, asset string, amount int64, source string, at time.Time) error
	ApplyPayout(
		ctx context.Context,
		employeeID int64,
		reference uuid.UUID,
		lines []models.PayoutLine,
		at time.Time,
		dispatch func(models.PayoutLine) error,
	) error
	Drain(ctx context.Context, dispatch func(asset string, amount int64) error) error
	ListPayouts(ctx context.Context, employeeID int64) ([]models.Payout, error)
}

func NewTreasuryRepository(db Database, metrics *metrics.Metrics) TreasuryRepoIface {
	return &Repository{db: db, metrics: metrics}
}

// RateRepoIface represents the interface for the exchange-rate cache.
type RateRepoIface interface {
	GetRate(ctx context.Context, asset string) (int64, error)
	ListRates(ctx context.Context) ([]models.Rate, error)
	UpsertRate(ctx context.Context, asset string, rate int64, at time.Time) error
}

func NewRateRepository(db Database, metrics *metrics.Metrics) RateRepoIface {
	return &Repository{db: db, metrics: metrics}
}

// SettingsRepoIface represents the interface for the single global settings row.
type SettingsRepoIface interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	SetSuspended(ctx context.Context, suspended bool) error
	SetRunwayLimit(ctx context.Context, days int64) error
	SetOracle(ctx context.Context, account string) error
}

func NewSettingsRepository(db Database, metrics *metrics.Metrics) SettingsRepoIface {
	return &Repository{db: db, metrics: metrics}
}

// observe returns a function that records the query duration when called.
func (r *Repository) observe(queryType string) func() {
	startTime := time.Now()
	return func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration)
	}
}
