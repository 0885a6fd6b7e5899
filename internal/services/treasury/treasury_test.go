package treasury_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/services/treasury"
	mocks "github.com/quantapay/payrolld/mock"
)

const (
	adminAccount = "0xadmin"
	nativeAsset  = "ETH"
)

type fixture struct {
	service    *treasury.Service
	treasury   *mocks.TreasuryRepoIface
	employees  *mocks.EmployeeRepoIface
	rates      *mocks.RateRepoIface
	settings   *mocks.SettingsRepoIface
	transferor *mocks.Transferor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		treasury:   mocks.NewTreasuryRepoIface(t),
		employees:  mocks.NewEmployeeRepoIface(t),
		rates:      mocks.NewRateRepoIface(t),
		settings:   mocks.NewSettingsRepoIface(t),
		transferor: mocks.NewTransferor(t),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())

	f.service = treasury.NewService(
		logger,
		f.treasury,
		f.employees,
		f.rates,
		f.settings,
		guard.New(adminAccount, f.settings),
		f.transferor,
		appMetrics,
		nativeAsset,
	)
	f.service.SetClock(func() time.Time {
		return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	})

	return f
}

func (f *fixture) expectSettings(suspended bool, limitDays int64) {
	f.settings.On("GetSettings", mock.Anything).
		Return(models.Settings{Suspended: suspended, RunwayLimitDays: limitDays}, nil)
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	t.Run("allowed while roster is empty", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		f.rates.On("GetRate", mock.Anything, "ETH").Return(int64(2), nil).Once()
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(0), nil).Once()
		f.treasury.On("Credit", mock.Anything, "ETH", int64(1_000_000), "0xfunder", mock.AnythingOfType("time.Time")).
			Return(nil).Once()

		require.NoError(t, f.service.DepositNative(context.Background(), "0xfunder", 1_000_000))
	})

	t.Run("allowed up to the runway limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		// One employee at 36500 USD/year burns 2800 USD per period, so a
		// 365-day treasury holds exactly 36500 USD. Rate is 2 units per USD.
		f.rates.On("GetRate", mock.Anything, "ETH").Return(int64(2), nil)
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(36_500), nil).Once()
		f.treasury.On("ListBalances", mock.Anything).Return([]models.Balance{}, nil).Once()
		f.treasury.On("Credit", mock.Anything, "ETH", int64(73_000), "0xfunder", mock.AnythingOfType("time.Time")).
			Return(nil).Once()

		require.NoError(t, f.service.DepositNative(context.Background(), "0xfunder", 73_000))
	})

	t.Run("rejected past the runway limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		f.rates.On("GetRate", mock.Anything, "ETH").Return(int64(2), nil)
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(36_500), nil).Once()
		f.treasury.On("ListBalances", mock.Anything).
			Return([]models.Balance{{Asset: "ETH", Amount: 73_000}}, nil).Once()

		err := f.service.DepositNative(context.Background(), "0xfunder", 2)
		require.ErrorIs(t, err, models.ErrRunwayExceeded)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)

		err := f.service.DepositAsset(context.Background(), "0xfunder", "USDT", 0)
		require.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("rejects untracked asset", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		f.rates.On("GetRate", mock.Anything, "SHADY").Return(int64(0), models.ErrUnknownAsset).Once()

		err := f.service.DepositAsset(context.Background(), "0xfunder", "SHADY", 100)
		require.ErrorIs(t, err, models.ErrUnknownAsset)
	})

	t.Run("rejected while suspended", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(true, 365)

		err := f.service.DepositNative(context.Background(), "0xfunder", 100)
		require.ErrorIs(t, err, models.ErrSuspended)
	})
}

func TestBurnRate(t *testing.T) {
	t.Parallel()

	t.Run("truncates once over the summed salaries", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		// 3 x 52000: 156000 * 28 / 365 = 11967 (not 3 x 3989).
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(156_000), nil).Once()

		burn, err := f.service.BurnRate(context.Background(), adminAccount)
		require.NoError(t, err)
		assert.Equal(t, int64(11_967), burn)
	})

	t.Run("admin only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.service.BurnRate(context.Background(), "0xmallory")
		require.ErrorIs(t, err, models.ErrNotAdmin)
	})
}

func TestRunway(t *testing.T) {
	t.Parallel()

	t.Run("reports days of cover", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(36_500), nil).Once()
		f.rates.On("GetRate", mock.Anything, "ETH").Return(int64(2), nil).Once()
		f.treasury.On("ListBalances", mock.Anything).
			Return([]models.Balance{{Asset: "ETH", Amount: 73_000}}, nil).Once()

		days, err := f.service.Runway(context.Background(), adminAccount)
		require.NoError(t, err)
		assert.Equal(t, int64(365), days)
	})

	t.Run("infinite with no employees", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.employees.On("SumActiveSalaries", mock.Anything).Return(int64(0), nil).Once()

		days, err := f.service.Runway(context.Background(), adminAccount)
		require.NoError(t, err)
		assert.Equal(t, treasury.RunwayForever, days)
	})
}

func TestSetRunwayLimit(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		f.settings.On("SetRunwayLimit", mock.Anything, int64(180)).Return(nil).Once()

		require.NoError(t, f.service.SetRunwayLimit(context.Background(), adminAccount, 180))
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)

		err := f.service.SetRunwayLimit(context.Background(), adminAccount, 0)
		require.ErrorIs(t, err, models.ErrInvalidLimit)
	})
}

func TestSuspendResume(t *testing.T) {
	t.Parallel()

	t.Run("suspend", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)
		f.settings.On("SetSuspended", mock.Anything, true).Return(nil).Once()

		require.NoError(t, f.service.Suspend(context.Background(), adminAccount))
	})

	t.Run("suspend twice fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(true, 365)

		err := f.service.Suspend(context.Background(), adminAccount)
		require.ErrorIs(t, err, models.ErrSuspended)
	})

	t.Run("resume", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(true, 365)
		f.settings.On("SetSuspended", mock.Anything, false).Return(nil).Once()

		require.NoError(t, f.service.Resume(context.Background(), adminAccount))
	})

	t.Run("resume while live fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)

		err := f.service.Resume(context.Background(), adminAccount)
		require.ErrorIs(t, err, models.ErrNotSuspended)
	})
}

func TestSweep(t *testing.T) {
	t.Parallel()

	t.Run("drains every balance to the admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(true, 365)
		f.treasury.On("Drain", mock.Anything, mock.AnythingOfType("func(string, int64) error")).
			Run(func(args mock.Arguments) {
				dispatch, ok := args.Get(1).(func(asset string, amount int64) error)
				require.True(t, ok)
				require.NoError(t, dispatch("ETH", 500))
				require.NoError(t, dispatch("USDT", 900))
			}).
			Return(nil).Once()
		f.transferor.On("Transfer", mock.Anything, "ETH", adminAccount, int64(500)).Return(nil).Once()
		f.transferor.On("Transfer", mock.Anything, "USDT", adminAccount, int64(900)).Return(nil).Once()

		require.NoError(t, f.service.Sweep(context.Background(), adminAccount))
	})

	t.Run("requires suspension", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.expectSettings(false, 365)

		err := f.service.Sweep(context.Background(), adminAccount)
		require.ErrorIs(t, err, models.ErrNotSuspended)
	})

	t.Run("admin only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		err := f.service.Sweep(context.Background(), "0xmallory")
		require.ErrorIs(t, err, models.ErrNotAdmin)
	})
}
