package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/quantapay/payrolld/internal/models"
)

// GetAllocation returns the employee's salary split in its stored order.
// An employee who never allocated has no rows.
func (r *Repository) GetAllocation(ctx context.Context, employeeID int64) ([]models.AllocationLine, error) {
	defer r.observe("get_allocation")()

	query := `SELECT asset, percent FROM allocations WHERE employee_id = $1 ORDER BY position`

	rows, err := r.db.Query(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	defer rows.Close()

	var lines []models.AllocationLine
	for rows.Next() {
		var line models.AllocationLine
		if err = rows.Scan(&line.Asset, &line.Percent); err != nil {
			return nil, fmt.Errorf("failed to scan allocation line: %w", err)
		}
		lines = append(lines, line)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allocation rows: %w", err)
	}

	return lines, nil
}

// ReplaceAllocation swaps the employee's salary split and stamps the allocation
// time in one transaction, so a failing insert leaves the prior split intact.
func (r *Repository) ReplaceAllocation(
	ctx context.Context,
	employeeID int64,
	lines []models.AllocationLine,
	at time.Time,
) error {
	defer r.observe("replace_allocation")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `DELETE FROM allocations WHERE employee_id = $1;`, employeeID)
	if err != nil {
		return fmt.Errorf("failed to clear previous allocation: %w", err)
	}

	for position, line := range lines {
		_, err = tx.Exec(ctx,
			`INSERT INTO allocations (employee_id, position, asset, percent) VALUES ($1, $2, $3, $4);`,
			employeeID, position, line.Asset, line.Percent)
		if err != nil {
			return fmt.Errorf("failed to insert allocation line '%s': %w", line.Asset, err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE employees SET last_allocation_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1;`,
		employeeID, at)
	if err != nil {
		return fmt.Errorf("failed to stamp allocation time: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit allocation: %w", err)
	}

	return nil
}
