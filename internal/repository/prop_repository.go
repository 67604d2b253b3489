package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// PostgresPropRepository implements PropRepository for PostgreSQL
type PostgresPropRepository struct {
	db *database.DB
}

// NewPostgresPropRepository creates a new prop repository
func NewPostgresPropRepository(db *database.DB) PropRepository {
	return &PostgresPropRepository{db: db}
}

// GetProp retrieves a prop by its external catalog ID
func (r *PostgresPropRepository) GetProp(ctx context.Context, propID int64) (*models.Prop, error) {
	query := `
		SELECT prop_id, player_id, sport, prop_type, offered_line, payout_schema, active
		FROM props WHERE prop_id = $1
	`

	prop := &models.Prop{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, propID).Scan(
		&prop.PropID, &prop.PlayerID, &prop.Sport, &prop.PropType,
		&prop.OfferedLine, &prop.PayoutSchema, &prop.Active,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prop: %w", err)
	}

	return prop, nil
}

// ListActiveBySport retrieves every active prop for a sport
func (r *PostgresPropRepository) ListActiveBySport(ctx context.Context, sport models.Sport) ([]*models.Prop, error) {
	query := `
		SELECT prop_id, player_id, sport, prop_type, offered_line, payout_schema, active
		FROM props
		WHERE sport = $1 AND active = true
		ORDER BY prop_id ASC
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, sport)
	if err != nil {
		return nil, fmt.Errorf("failed to query props by sport: %w", err)
	}
	defer rows.Close()

	var props []*models.Prop
	for rows.Next() {
		prop := &models.Prop{}
		err := rows.Scan(
			&prop.PropID, &prop.PlayerID, &prop.Sport, &prop.PropType,
			&prop.OfferedLine, &prop.PayoutSchema, &prop.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prop: %w", err)
		}
		props = append(props, prop)
	}

	return props, rows.Err()
}

// UpsertProp inserts or refreshes the local mirror of a catalog prop
func (r *PostgresPropRepository) UpsertProp(ctx context.Context, prop *models.Prop) error {
	query := `
		INSERT INTO props (prop_id, player_id, sport, prop_type, offered_line, payout_schema, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (prop_id) DO UPDATE SET
			offered_line = EXCLUDED.offered_line,
			payout_schema = EXCLUDED.payout_schema,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		prop.PropID, prop.PlayerID, prop.Sport, prop.PropType,
		prop.OfferedLine, prop.PayoutSchema, prop.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert prop: %w", err)
	}

	return nil
}

// RecentOfferedLines returns the most recent offered lines recorded for a
// player's prop type, newest first
func (r *PostgresPropRepository) RecentOfferedLines(ctx context.Context, playerID int64, propType models.PropType, limit int) ([]float64, error) {
	query := `
		SELECT offered_line
		FROM prop_line_history
		WHERE player_id = $1 AND prop_type = $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, playerID, propType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query line history: %w", err)
	}
	defer rows.Close()

	var lines []float64
	for rows.Next() {
		var line float64
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan offered line: %w", err)
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}
