// Package registry owns the employee roster: creation, salary edits,
// termination and the per-employee allowed-asset set.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/lib/logger/sl"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
)

// AllocationCooldown is the minimum time between allocation writes. The same
// cooldown gates administrator edits to an employee's allowed-asset set.
const AllocationCooldown = 180 * 24 * time.Hour

type Service struct {
	log       *slog.Logger
	employees repository.EmployeeRepoIface
	guard     *guard.Guard
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	log *slog.Logger,
	employees repository.EmployeeRepoIface,
	grd *guard.Guard,
	appMetrics *metrics.Metrics,
) *Service {
	return &Service{log: log, employees: employees, guard: grd, metrics: appMetrics, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) initLogger(opn string) *slog.Logger {
	return s.log.With(
		slog.String("op", opn),
		slog.String("division", "registry"),
	)
}

func (s *Service) observe(opn string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.metrics.Operations.WithLabelValues(opn, status).Inc()
}

// AddEmployee inserts a new active roster record. The id is allocated by the
// registry and never reused; the last payout time starts at creation so salary
// accrues from day one.
func (s *Service) AddEmployee(
	ctx context.Context,
	caller, account, fullname, email string,
	allowedAssets []string,
	yearlySalary int64,
) (id int64, err error) {
	const opn = "registry.add_employee"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return 0, err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return 0, err
	}
	if yearlySalary <= 0 {
		return 0, models.ErrInvalidSalary
	}

	id, err = s.employees.CreateEmployee(ctx, account, fullname, email, allowedAssets, yearlySalary, s.now())
	if err != nil {
		log.ErrorContext(ctx, "Failed to add employee", sl.Err(err))
		return 0, fmt.Errorf("failed to add employee: %w", err)
	}

	log.InfoContext(ctx, "Employee added", "id", id, "account", account, "salary", yearlySalary)

	return id, nil
}

// Employee returns the full roster record for an id, active or not.
func (s *Service) Employee(ctx context.Context, id int64) (models.Employee, error) {
	employee, err := s.employees.GetEmployeeByID(ctx, id)
	if err != nil {
		return models.Employee{}, fmt.Errorf("failed to get employee: %w", err)
	}

	return employee, nil
}

// Count returns the number of currently active employees.
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.employees.CountActiveEmployees(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count employees: %w", err)
	}

	return count, nil
}

// List returns the whole roster, including terminated records.
func (s *Service) List(ctx context.Context) ([]models.Employee, error) {
	employees, err := s.employees.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	return employees, nil
}

// SetSalary updates the yearly USD salary of an active employee.
func (s *Service) SetSalary(ctx context.Context, caller string, id, yearlySalary int64) (err error) {
	const opn = "registry.set_salary"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}
	if yearlySalary <= 0 {
		return models.ErrInvalidSalary
	}
	if _, err = s.requireActiveEmployee(ctx, id); err != nil {
		return err
	}

	if err = s.employees.UpdateSalary(ctx, id, yearlySalary); err != nil {
		log.ErrorContext(ctx, "Failed to set salary", "id", id, sl.Err(err))
		return fmt.Errorf("failed to set salary: %w", err)
	}

	log.InfoContext(ctx, "Salary updated", "id", id, "salary", yearlySalary)

	return nil
}

// RemoveEmployee terminates an active employee. The record stays for audit;
// a terminated id can never be reactivated or removed again.
func (s *Service) RemoveEmployee(ctx context.Context, caller string, id int64) (err error) {
	const opn = "registry.remove_employee"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}
	if _, err = s.requireActiveEmployee(ctx, id); err != nil {
		return err
	}

	if err = s.employees.DeactivateEmployee(ctx, id); err != nil {
		log.ErrorContext(ctx, "Failed to remove employee", "id", id, sl.Err(err))
		return fmt.Errorf("failed to remove employee: %w", err)
	}

	log.InfoContext(ctx, "Employee removed", "id", id)

	return nil
}

// SetAllowedAsset adds or removes an asset from an active employee's allowed
// set. The edit shares the allocation cooldown: it is rejected until 180 days
// after the employee's last allocation, measured from creation when the
// employee never allocated.
func (s *Service) SetAllowedAsset(ctx context.Context, caller string, id int64, asset string, allowed bool) (err error) {
	const opn = "registry.set_allowed_asset"
	log := s.initLogger(opn)
	defer func() { s.observe(opn, err) }()

	if err = s.guard.RequireAdmin(caller); err != nil {
		return err
	}
	if err = s.guard.RequireLive(ctx); err != nil {
		return err
	}

	employee, err := s.requireActiveEmployee(ctx, id)
	if err != nil {
		return err
	}

	since := employee.LastAllocationAt
	if since.IsZero() {
		since = employee.CreatedAt
	}
	if s.now().Sub(since) < AllocationCooldown {
		return models.ErrAllocationLocked
	}

	if err = s.employees.SetAllowedAsset(ctx, id, asset, allowed); err != nil {
		log.ErrorContext(ctx, "Failed to set allowed asset", "id", id, "asset", asset, sl.Err(err))
		return fmt.Errorf("failed to set allowed asset: %w", err)
	}

	log.InfoContext(ctx, "Allowed asset updated", "id", id, "asset", asset, "allowed", allowed)

	return nil
}

func (s *Service) requireActiveEmployee(ctx context.Context, id int64) (models.Employee, error) {
	employee, err := s.employees.GetEmployeeByID(ctx, id)
	if err != nil {
		return models.Employee{}, err
	}
	if !employee.Active {
		return models.Employee{}, models.ErrEmployeeInactive
	}

	return employee, nil
}
