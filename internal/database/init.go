package database

import (
	"context"
	"fmt"

	"github.com/yourusername/prop-edge/internal/config"
)

// Initialize creates a database connection pool and verifies the dedup
// constraints the pricing pipeline depends on. Valuation and prediction
// idempotence is enforced by unique indexes, not by application locking, so a
// schema missing them is refused outright.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	for _, index := range []string{
		"idx_valuations_valuation_hash",
		"idx_model_predictions_features_hash",
	} {
		var name string
		err := db.pool.QueryRow(ctx,
			"SELECT indexname FROM pg_indexes WHERE indexname = $1", index).Scan(&name)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("required unique index %s not found, run migrations first: %w", index, err)
		}
	}

	return db, nil
}
