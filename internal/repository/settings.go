package repository

import (
	"context"
	"fmt"

	"github.com/quantapay/payrolld/internal/models"
)

// GetSettings reads the single global settings row seeded by the migrations.
func (r *Repository) GetSettings(ctx context.Context) (models.Settings, error) {
	defer r.observe("get_settings")()

	var settings models.Settings
	err := r.db.QueryRow(ctx,
		`SELECT suspended, runway_limit_days, oracle_account FROM ledger_settings WHERE id = 1`).
		Scan(&settings.Suspended, &settings.RunwayLimitDays, &settings.OracleAccount)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get ledger settings: %w", err)
	}

	return settings, nil
}

// SetSuspended toggles the process-wide suspension flag.
func (r *Repository) SetSuspended(ctx context.Context, suspended bool) error {
	defer r.observe("set_suspended")()

	_, err := r.db.Exec(ctx,
		`UPDATE ledger_settings SET suspended = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`, suspended)
	if err != nil {
		return fmt.Errorf("failed to set suspension flag: %w", err)
	}

	return nil
}

// SetRunwayLimit updates the deposit-gating runway ceiling, in days.
func (r *Repository) SetRunwayLimit(ctx context.Context, days int64) error {
	defer r.observe("set_runway_limit")()

	_, err := r.db.Exec(ctx,
		`UPDATE ledger_settings SET runway_limit_days = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`, days)
	if err != nil {
		return fmt.Errorf("failed to set runway limit: %w", err)
	}

	return nil
}

// SetOracle reconfigures the trusted rate-feed identity.
func (r *Repository) SetOracle(ctx context.Context, account string) error {
	defer r.observe("set_oracle")()

	_, err := r.db.Exec(ctx,
		`UPDATE ledger_settings SET oracle_account = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1;`, account)
	if err != nil {
		return fmt.Errorf("failed to set oracle account: %w", err)
	}

	return nil
}
