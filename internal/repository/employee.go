package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantapay/payrolld/internal/models"
)

const pgUniqueViolation = "23505"

// CreateEmployee inserts a new roster record together with its allowed-asset
// set. The id is allocated by the database sequence and is never reused.
func (r *Repository) CreateEmployee(
	ctx context.Context,
	account, fullname, email string,
	allowedAssets []string,
	yearlySalary int64,
	now time.Time,
) (int64, error) {
	defer r.observe("create_employee")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO employees (account, full_name, email, yearly_salary, last_payout_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id;
	`

	var id int64
	err = tx.QueryRow(ctx, query, account, fullname, email, yearlySalary, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, fmt.Errorf("failed to create employee: %w", models.ErrDuplicateAccount)
		}
		return 0, fmt.Errorf("failed to create employee: %w", err)
	}

	for _, asset := range allowedAssets {
		_, err = tx.Exec(ctx,
			`INSERT INTO employee_allowed_assets (employee_id, asset) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			id, asset)
		if err != nil {
			return 0, fmt.Errorf("failed to save allowed asset '%s': %w", asset, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit employee creation: %w", err)
	}

	return id, nil
}

// GetEmployeeByID retrieves the full roster record, active or not.
func (r *Repository) GetEmployeeByID(ctx context.Context, id int64) (models.Employee, error) {
	defer r.observe("get_employee_by_id")()

	query := `
		SELECT id, account, full_name, email, active, yearly_salary, last_payout_at, last_allocation_at, created_at
		FROM employees WHERE id = $1`

	employee, err := r.scanEmployee(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, fmt.Errorf("failed to get employee by id: %w", models.ErrEmployeeNotFound)
		}
		return models.Employee{}, fmt.Errorf("failed to get employee by id: %w", err)
	}

	employee.AllowedAssets, err = r.getAllowedAssets(ctx, employee.ID)
	if err != nil {
		return models.Employee{}, err
	}

	return employee, nil
}

// GetEmployeeByAccount retrieves the active roster record for a payee account.
func (r *Repository) GetEmployeeByAccount(ctx context.Context, account string) (models.Employee, error) {
	defer r.observe("get_employee_by_account")()

	query := `
		SELECT id, account, full_name, email, active, yearly_salary, last_payout_at, last_allocation_at, created_at
		FROM employees WHERE account = $1 AND active`

	employee, err := r.scanEmployee(r.db.QueryRow(ctx, query, account))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, fmt.Errorf("failed to get employee by account: %w", models.ErrEmployeeNotFound)
		}
		return models.Employee{}, fmt.Errorf("failed to get employee by account: %w", err)
	}

	employee.AllowedAssets, err = r.getAllowedAssets(ctx, employee.ID)
	if err != nil {
		return models.Employee{}, err
	}

	return employee, nil
}

// ListEmployees returns the whole roster ordered by id, without allowed-asset sets.
func (r *Repository) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	defer r.observe("list_employees")()

	query := `
		SELECT id, account, full_name, email, active, yearly_salary, last_payout_at, last_allocation_at, created_at
		FROM employees ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		employee, scanErr := r.scanEmployee(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan employee row: %w", scanErr)
		}
		employees = append(employees, employee)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read employee rows: %w", err)
	}

	return employees, nil
}

// CountActiveEmployees returns the number of currently active employees,
// not the total of ids ever issued.
func (r *Repository) CountActiveEmployees(ctx context.Context) (int64, error) {
	defer r.observe("count_active_employees")()

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active employees: %w", err)
	}

	return count, nil
}

// SumActiveSalaries returns the aggregate yearly USD salary of the active roster.
func (r *Repository) SumActiveSalaries(ctx context.Context) (int64, error) {
	defer r.observe("sum_active_salaries")()

	var sum int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(yearly_salary), 0) FROM employees WHERE active`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active salaries: %w", err)
	}

	return sum, nil
}

// UpdateSalary updates an employee's yearly salary.
func (r *Repository) UpdateSalary(ctx context.Context, id, salary int64) error {
	defer r.observe("update_salary")()

	query := `UPDATE employees SET yearly_salary = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1;`

	_, err := r.db.Exec(ctx, query, id, salary)
	if err != nil {
		return fmt.Errorf("failed to update employee salary: %w", err)
	}

	return nil
}

// DeactivateEmployee flips the record to inactive. The row itself is kept for audit.
func (r *Repository) DeactivateEmployee(ctx context.Context, id int64) error {
	defer r.observe("deactivate_employee")()

	query := `UPDATE employees SET active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1;`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", err)
	}

	return nil
}

// SetAllowedAsset adds or removes one asset from an employee's allowed set.
func (r *Repository) SetAllowedAsset(ctx context.Context, id int64, asset string, allowed bool) error {
	defer r.observe("set_allowed_asset")()

	var err error
	if allowed {
		_, err = r.db.Exec(ctx,
			`INSERT INTO employee_allowed_assets (employee_id, asset) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			id, asset)
	} else {
		_, err = r.db.Exec(ctx,
			`DELETE FROM employee_allowed_assets WHERE employee_id = $1 AND asset = $2;`,
			id, asset)
	}
	if err != nil {
		return fmt.Errorf("failed to set allowed asset: %w", err)
	}

	return nil
}

func (r *Repository) getAllowedAssets(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT asset FROM employee_allowed_assets WHERE employee_id = $1 ORDER BY asset`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowed assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var asset string
		if err = rows.Scan(&asset); err != nil {
			return nil, fmt.Errorf("failed to scan allowed asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allowed asset rows: %w", err)
	}

	return assets, nil
}

func (r *Repository) scanEmployee(row pgx.Row) (models.Employee, error) {
	var employee models.Employee
	var lastAllocation *time.Time

	err := row.Scan(
		&employee.ID, &employee.Account, &employee.FullName, &employee.Email, &employee.Active,
		&employee.YearlySalary, &employee.LastPayoutAt, &lastAllocation, &employee.CreatedAt)
	if err != nil {
		return models.Employee{}, err
	}

	if lastAllocation != nil {
		employee.LastAllocationAt = *lastAllocation
	}

	return employee, nil
}
