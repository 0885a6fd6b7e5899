package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
)

const getSettingsQuery = `SELECT suspended, runway_limit_days, oracle_account FROM ledger_settings WHERE id = 1`

func TestGetSettings_Success(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(getSettingsQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"suspended", "runway_limit_days", "oracle_account"}).
			AddRow(false, int64(365), "0xoracle"))

	repo := repository.NewSettingsRepository(mock, testMetrics())
	settings, err := repo.GetSettings(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.Settings{Suspended: false, RunwayLimitDays: 365, OracleAccount: "0xoracle"}, settings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettings_QueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(getSettingsQuery)).
		WillReturnError(assert.AnError)

	repo := repository.NewSettingsRepository(mock, testMetrics())
	_, err = repo.GetSettings(context.Background())

	require.Error(t, err)
	assert.Equal(t, "failed to get ledger settings: "+assert.AnError.Error(), err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSuspended(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE ledger_settings SET suspended = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`)).
		WithArgs(true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := repository.NewSettingsRepository(mock, testMetrics())
	err = repo.SetSuspended(context.Background(), true)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRunwayLimit(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE ledger_settings SET runway_limit_days = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`)).
		WithArgs(int64(700)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := repository.NewSettingsRepository(mock, testMetrics())
	err = repo.SetRunwayLimit(context.Background(), 700)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOracle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE ledger_settings SET oracle_account = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`)).
		WithArgs("0xneworacle").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := repository.NewSettingsRepository(mock, testMetrics())
	err = repo.SetOracle(context.Background(), "0xneworacle")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
