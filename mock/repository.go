// Package mocks provides testify mocks for the repository and settlement
// interfaces used by the service tests.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/quantapay/payrolld/internal/models"
)

// EmployeeRepoIface is a mock of repository.EmployeeRepoIface.
type EmployeeRepoIface struct {
	mock.Mock
}

func NewEmployeeRepoIface(t *testing.T) *EmployeeRepoIface {
	m := &EmployeeRepoIface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *EmployeeRepoIface) CreateEmployee(
	ctx context.Context,
	account, fullname, email string,
	allowedAssets []string,
	yearlySalary int64,
	now time.Time,
) (int64, error) {
	args := m.Called(ctx, account, fullname, email, allowedAssets, yearlySalary, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EmployeeRepoIface) GetEmployeeByID(ctx context.Context, id int64) (models.Employee, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Employee), args.Error(1)
}

func (m *EmployeeRepoIface) GetEmployeeByAccount(ctx context.Context, account string) (models.Employee, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(models.Employee), args.Error(1)
}

func (m *EmployeeRepoIface) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Employee), args.Error(1)
}

func (m *EmployeeRepoIface) CountActiveEmployees(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EmployeeRepoIface) SumActiveSalaries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EmployeeRepoIface) UpdateSalary(ctx context.Context, id, salary int64) error {
	args := m.Called(ctx, id, salary)
	return args.Error(0)
}

func (m *EmployeeRepoIface) DeactivateEmployee(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *EmployeeRepoIface) SetAllowedAsset(ctx context.Context, id int64, asset string, allowed bool) error {
	args := m.Called(ctx, id, asset, allowed)
	return args.Error(0)
}

// AllocationRepoIface is a mock of repository.AllocationRepoIface.
type AllocationRepoIface struct {
	mock.Mock
}

func NewAllocationRepoIface(t *testing.T) *AllocationRepoIface {
	m := &AllocationRepoIface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *AllocationRepoIface) GetAllocation(ctx context.Context, employeeID int64) ([]models.AllocationLine, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AllocationLine), args.Error(1)
}

func (m *AllocationRepoIface) ReplaceAllocation(
	ctx context.Context,
	employeeID int64,
	lines []models.AllocationLine,
	at time.Time,
) error {
	args := m.Called(ctx, employeeID, lines, at)
	return args.Error(0)
}

// TreasuryRepoIface is a mock of repository.TreasuryRepoIface.
type TreasuryRepoIface struct {
	mock.Mock
}

func NewTreasuryRepoIface(t *testing.T) *TreasuryRepoIface {
	m := &TreasuryRepoIface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TreasuryRepoIface) GetBalance(ctx context.Context, asset string) (int64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TreasuryRepoIface) ListBalances(ctx context.Context) ([]models.Balance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Balance), args.Error(1)
}

func (m *TreasuryRepoIface) Credit(ctx context.Context, asset string, amount int64, source string, at time.Time) error {
	args := m.Called(ctx, asset, amount, source, at)
	return args.Error(0)
}

func (m *TreasuryRepoIface) ApplyPayout(
	ctx context.Context,
	employeeID int64,
	reference uuid.UUID,
	lines []models.PayoutLine,
	at time.Time,
	dispatch func(models.PayoutLine) error,
) error {
	args := m.Called(ctx, employeeID, reference, lines, at, dispatch)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	for _, line := range lines {
		if err := dispatch(line); err != nil {
			return err
		}
	}
	return nil
}

func (m *TreasuryRepoIface) ListPayouts(ctx context.Context, employeeID int64) ([]models.Payout, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payout), args.Error(1)
}

func (m *TreasuryRepoIface) Drain(ctx context.Context, dispatch func(asset string, amount int64) error) error {
	args := m.Called(ctx, dispatch)
	return args.Error(0)
}

// RateRepoIface is a mock of repository.RateRepoIface.
type RateRepoIface struct {
	mock.Mock
}

func NewRateRepoIface(t *testing.T) *RateRepoIface {
	m := &RateRepoIface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *RateRepoIface) GetRate(ctx context.Context, asset string) (int64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RateRepoIface) ListRates(ctx context.Context) ([]models.Rate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rate), args.Error(1)
}

func (m *RateRepoIface) UpsertRate(ctx context.Context, asset string, rate int64, at time.Time) error {
	args := m.Called(ctx, asset, rate, at)
	return args.Error(0)
}

// SettingsRepoIface is a mock of repository.SettingsRepoIface.
type SettingsRepoIface struct {
	mock.Mock
}

func NewSettingsRepoIface(t *testing.T) *SettingsRepoIface {
	m := &SettingsRepoIface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SettingsRepoIface) GetSettings(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Settings), args.Error(1)
}

func (m *SettingsRepoIface) SetSuspended(ctx context.Context, suspended bool) error {
	args := m.Called(ctx, suspended)
	return args.Error(0)
}

func (m *SettingsRepoIface) SetRunwayLimit(ctx context.Context, days int64) error {
	args := m.Called(ctx, days)
	return args.Error(0)
}

func (m *SettingsRepoIface) SetOracle(ctx context.Context, account string) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// Transferor is a mock of settlement.Transferor.
type Transferor struct {
	mock.Mock
}

func NewTransferor(t *testing.T) *Transferor {
	m := &Transferor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Transferor) Transfer(ctx context.Context, asset, to string, amount int64) error {
	args := m.Called(ctx, asset, to, amount)
	return args.Error(0)
}
