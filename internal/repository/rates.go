package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantapay/payrolld/internal/models"
)

// GetRate returns the cached USD rate for an asset. An absent entry means the
// asset is not accepted.
func (r *Repository) GetRate(ctx context.Context, asset string) (int64, error) {
	defer r.observe("get_rate")()

	var rate int64
	err := r.db.QueryRow(ctx, `SELECT usd_rate FROM exchange_rates WHERE asset = $1`, asset).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to get rate for '%s': %w", asset, models.ErrUnknownAsset)
		}
		return 0, fmt.Errorf("failed to get rate for '%s': %w", asset, err)
	}

	return rate, nil
}

// ListRates returns every cached exchange rate ordered by asset code.
func (r *Repository) ListRates(ctx context.Context) ([]models.Rate, error) {
	defer r.observe("list_rates")()

	rows, err := r.db.Query(ctx, `SELECT asset, usd_rate, updated_at FROM exchange_rates ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var rates []models.Rate
	for rows.Next() {
		var rate models.Rate
		if err = rows.Scan(&rate.Asset, &rate.UsdRate, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rate rows: %w", err)
	}

	return rates, nil
}

// UpsertRate writes an exchange rate into the cache.
func (r *Repository) UpsertRate(ctx context.Context, asset string, rate int64, at time.Time) error {
	defer r.observe("upsert_rate")()

	query := `
		INSERT INTO exchange_rates (asset, usd_rate, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset) DO UPDATE SET usd_rate = $2, updated_at = $3;
	`

	_, err := r.db.Exec(ctx, query, asset, rate, at)
	if err != nil {
		return fmt.Errorf("failed to upsert rate for '%s': %w", asset, err)
	}

	return nil
}
