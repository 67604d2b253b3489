package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// PostgresValuationRepository implements ValuationRepository for PostgreSQL
type PostgresValuationRepository struct {
	db *database.DB
}

// NewPostgresValuationRepository creates a new valuation repository
func NewPostgresValuationRepository(db *database.DB) ValuationRepository {
	return &PostgresValuationRepository{db: db}
}

const valuationColumns = `
	id, model_prediction_id, model_version_id, prop_id, offered_line, fair_line,
	prob_over, prob_under, expected_value, payout_schema, volatility_score,
	valuation_hash, created_at
`

// GetOrCreate inserts the valuation and reads back by hash, so an identical
// (prop, model, line, schema) combination always yields the original row.
func (r *PostgresValuationRepository) GetOrCreate(ctx context.Context, valuation *models.Valuation) (*models.Valuation, error) {
	if valuation.ID == uuid.Nil {
		valuation.ID = uuid.New()
	}

	insert := `
		INSERT INTO valuations (id, model_prediction_id, model_version_id, prop_id, offered_line,
		                        fair_line, prob_over, prob_under, expected_value, payout_schema,
		                        volatility_score, valuation_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (valuation_hash) DO NOTHING
	`

	_, err := r.db.Querier(ctx).Exec(ctx, insert,
		valuation.ID, valuation.ModelPredictionID, valuation.ModelVersionID, valuation.PropID,
		valuation.OfferedLine, valuation.FairLine, valuation.ProbOver, valuation.ProbUnder,
		valuation.ExpectedValue, valuation.PayoutSchema, valuation.VolatilityScore, valuation.ValuationHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert valuation: %w", err)
	}

	return r.GetByHash(ctx, valuation.ValuationHash)
}

// GetByID retrieves a valuation by ID
func (r *PostgresValuationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Valuation, error) {
	query := `SELECT ` + valuationColumns + ` FROM valuations WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByHash retrieves a valuation by its content hash
func (r *PostgresValuationRepository) GetByHash(ctx context.Context, hash string) (*models.Valuation, error) {
	query := `SELECT ` + valuationColumns + ` FROM valuations WHERE valuation_hash = $1`
	return r.scanOne(ctx, query, hash)
}

func (r *PostgresValuationRepository) scanOne(ctx context.Context, query string, arg interface{}) (*models.Valuation, error) {
	valuation := &models.Valuation{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, arg).Scan(
		&valuation.ID, &valuation.ModelPredictionID, &valuation.ModelVersionID, &valuation.PropID,
		&valuation.OfferedLine, &valuation.FairLine, &valuation.ProbOver, &valuation.ProbUnder,
		&valuation.ExpectedValue, &valuation.PayoutSchema, &valuation.VolatilityScore,
		&valuation.ValuationHash, &valuation.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation: %w", err)
	}

	return valuation, nil
}
