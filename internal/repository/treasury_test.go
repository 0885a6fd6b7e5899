package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
)

const creditQuery = `
	INSERT INTO treasury_balances (asset, balance)
	VALUES ($1, $2)
	ON CONFLICT (asset) DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance;
`

const recordDepositQuery = `INSERT INTO deposits (asset, amount, source_account, created_at) VALUES ($1, $2, $3, $4);`

const debitQuery = `UPDATE treasury_balances SET balance = balance - $2 WHERE asset = $1 AND balance >= $2;`

const recordPayoutQuery = `INSERT INTO payouts (reference, employee_id, asset, amount, usd_amount, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6);`

const stampPayoutQuery = `UPDATE employees SET last_payout_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1;`

func TestGetBalance_UntrackedAssetIsZero(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM treasury_balances WHERE asset = $1`)).
		WithArgs("DOGE").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}))

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	balance, err := repo.GetBalance(context.Background(), "DOGE")

	require.NoError(t, err)
	assert.Zero(t, balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredit_Success(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(creditQuery)).
		WithArgs("ETH", int64(500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(recordDepositQuery)).
		WithArgs("ETH", int64(500), "0xfunder", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.Credit(context.Background(), "ETH", 500, "0xfunder", now)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredit_AuditFailureRollsBack(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(creditQuery)).
		WithArgs("ETH", int64(500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(recordDepositQuery)).
		WithArgs("ETH", int64(500), "0xfunder", now).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.Credit(context.Background(), "ETH", 500, "0xfunder", now)

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayout_Success(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reference := uuid.New()
	lines := []models.PayoutLine{
		{Asset: "USD", Amount: 5753, UsdAmount: 5753},
		{Asset: "BTC", Amount: 575300, UsdAmount: 5753},
	}

	mock.ExpectBegin()
	for _, line := range lines {
		mock.ExpectExec(regexp.QuoteMeta(debitQuery)).
			WithArgs(line.Asset, line.Amount).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(regexp.QuoteMeta(recordPayoutQuery)).
			WithArgs(reference, int64(1), line.Asset, line.Amount, line.UsdAmount, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec(regexp.QuoteMeta(stampPayoutQuery)).
		WithArgs(int64(1), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var dispatched []models.PayoutLine
	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.ApplyPayout(context.Background(), 1, reference, lines, now, func(line models.PayoutLine) error {
		dispatched = append(dispatched, line)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, lines, dispatched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayout_InsufficientFunds(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reference := uuid.New()
	lines := []models.PayoutLine{
		{Asset: "USD", Amount: 5753, UsdAmount: 5753},
		{Asset: "BTC", Amount: 575300, UsdAmount: 5753},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(debitQuery)).
		WithArgs("USD", int64(5753)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(recordPayoutQuery)).
		WithArgs(reference, int64(1), "USD", int64(5753), int64(5753), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(debitQuery)).
		WithArgs("BTC", int64(575300)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0)) // balance too short
	mock.ExpectRollback()

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.ApplyPayout(context.Background(), 1, reference, lines, now, func(models.PayoutLine) error {
		return nil
	})

	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayout_DispatchFailureRollsBack(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reference := uuid.New()
	lines := []models.PayoutLine{{Asset: "USD", Amount: 5753, UsdAmount: 5753}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(debitQuery)).
		WithArgs("USD", int64(5753)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.ApplyPayout(context.Background(), 1, reference, lines, now, func(models.PayoutLine) error {
		return assert.AnError
	})

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDrain_Success(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT asset, balance FROM treasury_balances WHERE balance > 0 FOR UPDATE`)).
		WillReturnRows(pgxmock.NewRows([]string{"asset", "balance"}).
			AddRow("ETH", int64(5000)).
			AddRow("USD", int64(1200)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE treasury_balances SET balance = 0 WHERE balance > 0;`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	swept := map[string]int64{}
	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.Drain(context.Background(), func(asset string, amount int64) error {
		swept[asset] = amount
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"ETH": 5000, "USD": 1200}, swept)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDrain_DispatchFailureRollsBack(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT asset, balance FROM treasury_balances WHERE balance > 0 FOR UPDATE`)).
		WillReturnRows(pgxmock.NewRows([]string{"asset", "balance"}).AddRow("ETH", int64(5000)))
	mock.ExpectRollback()

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	err = repo.Drain(context.Background(), func(string, int64) error {
		return assert.AnError
	})

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPayouts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	paidAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reference := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, reference, employee_id, asset, amount, usd_amount, paid_at
		FROM payouts WHERE employee_id = $1 ORDER BY paid_at DESC, id DESC`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "reference", "employee_id", "asset", "amount", "usd_amount", "paid_at"}).
			AddRow(int64(2), reference, int64(1), "BTC", int64(575300), int64(5753), paidAt).
			AddRow(int64(1), reference, int64(1), "USD", int64(5753), int64(5753), paidAt))

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	payouts, err := repo.ListPayouts(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, payouts, 2)
	assert.Equal(t, models.Payout{
		ID: 2, Reference: reference, EmployeeID: 1,
		Asset: "BTC", Amount: 575300, UsdAmount: 5753, PaidAt: paidAt,
	}, payouts[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBalances(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT asset, balance FROM treasury_balances ORDER BY asset`)).
		WillReturnRows(pgxmock.NewRows([]string{"asset", "balance"}).
			AddRow("BTC", int64(100)).
			AddRow("ETH", int64(5000)))

	repo := repository.NewTreasuryRepository(mock, testMetrics())
	balances, err := repo.ListBalances(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.Balance{{Asset: "BTC", Amount: 100}, {Asset: "ETH", Amount: 5000}}, balances)
	require.NoError(t, mock.ExpectationsWereMet())
}
