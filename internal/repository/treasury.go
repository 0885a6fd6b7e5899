package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quantapay/payrolld/internal/models"
)

// GetBalance returns the pooled holding for one asset; an untracked asset has balance zero.
func (r *Repository) GetBalance(ctx context.Context, asset string) (int64, error) {
	defer r.observe("get_balance")()

	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM treasury_balances WHERE asset = $1`, asset).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get treasury balance: %w", err)
	}

	return balance, nil
}

// ListBalances returns every tracked asset balance ordered by asset code.
func (r *Repository) ListBalances(ctx context.Context) ([]models.Balance, error) {
	defer r.observe("list_balances")()

	rows, err := r.db.Query(ctx, `SELECT asset, balance FROM treasury_balances ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list treasury balances: %w", err)
	}
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		var balance models.Balance
		if err = rows.Scan(&balance.Asset, &balance.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan treasury balance: %w", err)
		}
		balances = append(balances, balance)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read treasury balance rows: %w", err)
	}

	return balances, nil
}

// Credit adds an accepted deposit to the pooled balance and records it in the
// deposit audit trail, in one transaction.
func (r *Repository) Credit(ctx context.Context, asset string, amount int64, source string, at time.Time) error {
	defer r.observe("credit_treasury")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO treasury_balances (asset, balance)
		VALUES ($1, $2)
		ON CONFLICT (asset) DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance;
	`

	_, err = tx.Exec(ctx, query, asset, amount)
	if err != nil {
		return fmt.Errorf("failed to credit treasury: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO deposits (asset, amount, source_account, created_at) VALUES ($1, $2, $3, $4);`,
		asset, amount, source, at)
	if err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}

	return nil
}

// ApplyPayout debits every payout line, dispatches each transfer, records the
// audit rows and stamps the payout time, all in one transaction. A short
// balance or a failed dispatch rolls everything back.
func (r *Repository) ApplyPayout(
	ctx context.Context,
	employeeID int64,
	reference uuid.UUID,
	lines []models.PayoutLine,
	at time.Time,
	dispatch func(models.PayoutLine) error,
) error {
	defer r.observe("apply_payout")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	debitQuery := `UPDATE treasury_balances SET balance = balance - $2 WHERE asset = $1 AND balance >= $2;`

	for _, line := range lines {
		tag, execErr := tx.Exec(ctx, debitQuery, line.Asset, line.Amount)
		if execErr != nil {
			return fmt.Errorf("failed to debit treasury for '%s': %w", line.Asset, execErr)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("failed to debit treasury for '%s': %w", line.Asset, models.ErrInsufficientFunds)
		}

		if dispatchErr := dispatch(line); dispatchErr != nil {
			return fmt.Errorf("failed to dispatch transfer for '%s': %w", line.Asset, dispatchErr)
		}

		_, execErr = tx.Exec(ctx,
			`INSERT INTO payouts (reference, employee_id, asset, amount, usd_amount, paid_at)
			 VALUES ($1, $2, $3, $4, $5, $6);`,
			reference, employeeID, line.Asset, line.Amount, line.UsdAmount, at)
		if execErr != nil {
			return fmt.Errorf("failed to record payout line for '%s': %w", line.Asset, execErr)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE employees SET last_payout_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1;`,
		employeeID, at)
	if err != nil {
		return fmt.Errorf("failed to stamp payout time: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}

	return nil
}

// ListPayouts returns the recorded payout lines for one employee, newest first.
func (r *Repository) ListPayouts(ctx context.Context, employeeID int64) ([]models.Payout, error) {
	defer r.observe("list_payouts")()

	query := `
		SELECT id, reference, employee_id, asset, amount, usd_amount, paid_at
		FROM payouts WHERE employee_id = $1 ORDER BY paid_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []models.Payout
	for rows.Next() {
		var payout models.Payout
		err = rows.Scan(&payout.ID, &payout.Reference, &payout.EmployeeID,
			&payout.Asset, &payout.Amount, &payout.UsdAmount, &payout.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		payouts = append(payouts, payout)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payout rows: %w", err)
	}

	return payouts, nil
}

// Drain zeroes every tracked balance, dispatching each holding in the same
// transaction. Used only by the emergency sweep.
func (r *Repository) Drain(ctx context.Context, dispatch func(asset string, amount int64) error) error {
	defer r.observe("drain_treasury")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.Query(ctx, `SELECT asset, balance FROM treasury_balances WHERE balance > 0 FOR UPDATE`)
	if err != nil {
		return fmt.Errorf("failed to lock treasury balances: %w", err)
	}

	var holdings []models.Balance
	for rows.Next() {
		var holding models.Balance
		if err = rows.Scan(&holding.Asset, &holding.Amount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan treasury holding: %w", err)
		}
		holdings = append(holdings, holding)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("failed to read treasury holdings: %w", err)
	}

	for _, holding := range holdings {
		if err = dispatch(holding.Asset, holding.Amount); err != nil {
			return fmt.Errorf("failed to dispatch sweep transfer for '%s': %w", holding.Asset, err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE treasury_balances SET balance = 0 WHERE balance > 0;`)
	if err != nil {
		return fmt.Errorf("failed to zero treasury balances: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sweep: %w", err)
	}

	return nil
}
