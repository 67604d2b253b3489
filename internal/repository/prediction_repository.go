package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

const predictionColumns = `
	id, model_version_id, prop_id, player_id, prop_type, mean, variance,
	distribution_family, sample_size, features_hash, created_at
`

// GetOrCreate inserts the prediction and reads back whichever row holds the
// features hash afterwards. Insert-then-read (rather than check-then-insert)
// leaves dedup races to the unique constraint.
func (r *PostgresPredictionRepository) GetOrCreate(ctx context.Context, prediction *models.ModelPrediction) (*models.ModelPrediction, error) {
	if prediction.ID == uuid.Nil {
		prediction.ID = uuid.New()
	}

	insert := `
		INSERT INTO model_predictions (id, model_version_id, prop_id, player_id, prop_type,
		                               mean, variance, distribution_family, sample_size, features_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (model_version_id, prop_id, features_hash) DO NOTHING
	`

	_, err := r.db.Querier(ctx).Exec(ctx, insert,
		prediction.ID, prediction.ModelVersionID, prediction.PropID, prediction.PlayerID,
		prediction.PropType, prediction.Mean, prediction.Variance, prediction.DistributionFamily,
		prediction.SampleSize, prediction.FeaturesHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prediction: %w", err)
	}

	query := `SELECT ` + predictionColumns + `
		FROM model_predictions
		WHERE model_version_id = $1 AND prop_id = $2 AND features_hash = $3
	`

	stored := &models.ModelPrediction{}
	err = r.db.Querier(ctx).QueryRow(ctx, query,
		prediction.ModelVersionID, prediction.PropID, prediction.FeaturesHash,
	).Scan(
		&stored.ID, &stored.ModelVersionID, &stored.PropID, &stored.PlayerID, &stored.PropType,
		&stored.Mean, &stored.Variance, &stored.DistributionFamily, &stored.SampleSize,
		&stored.FeaturesHash, &stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read back prediction: %w", err)
	}

	return stored, nil
}

// GetByID retrieves a prediction by ID
func (r *PostgresPredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelPrediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM model_predictions WHERE id = $1`

	prediction := &models.ModelPrediction{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&prediction.ID, &prediction.ModelVersionID, &prediction.PropID, &prediction.PlayerID,
		&prediction.PropType, &prediction.Mean, &prediction.Variance, &prediction.DistributionFamily,
		&prediction.SampleSize, &prediction.FeaturesHash, &prediction.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return prediction, nil
}
