package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// setupIntegration connects to the test database, or skips when no database
// is configured. Run migrations first: migrate -path migrations -database "$DSN" up
func setupIntegration(t *testing.T) *database.DB {
	if os.Getenv("PROP_EDGE_INTEGRATION") == "" {
		t.Skip("integration test - requires database, set PROP_EDGE_INTEGRATION=1")
	}
	return database.SetupTestDB(t)
}

func testPrediction(propID int64, featuresHash string) *models.ModelPrediction {
	return &models.ModelPrediction{
		ModelVersionID:     "baseline_poisson_v1",
		PropID:             propID,
		PlayerID:           100,
		PropType:           models.PropTypeAssists,
		Mean:               4.5,
		Variance:           4.5,
		DistributionFamily: models.DistributionPoisson,
		SampleSize:         12,
		FeaturesHash:       featuresHash,
	}
}

func TestPredictionRepositoryDedup(t *testing.T) {
	db := setupIntegration(t)
	defer database.TeardownTestDB(t, db)
	repos := NewRepositories(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash := models.HashKV(map[string]string{"test": uuid.NewString()})

	first, err := repos.Predictions.GetOrCreate(ctx, testPrediction(1, hash))
	require.NoError(t, err)

	second, err := repos.Predictions.GetOrCreate(ctx, testPrediction(1, hash))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestValuationRepositoryDedupByHash(t *testing.T) {
	db := setupIntegration(t)
	defer database.TeardownTestDB(t, db)
	repos := NewRepositories(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash := models.HashKV(map[string]string{"test": uuid.NewString()})
	prediction, err := repos.Predictions.GetOrCreate(ctx, testPrediction(2, hash))
	require.NoError(t, err)

	valuation := &models.Valuation{
		ModelPredictionID: prediction.ID,
		ModelVersionID:    prediction.ModelVersionID,
		PropID:            2,
		OfferedLine:       4.5,
		FairLine:          4.81,
		ProbOver:          0.55,
		ProbUnder:         0.45,
		ExpectedValue:     0.1,
		PayoutSchema:      models.PayoutSchemaStandard,
		VolatilityScore:   0.39,
		ValuationHash:     models.ComputeValuationHash(2, prediction.ModelVersionID, 4.5, models.PayoutSchemaStandard),
	}

	first, err := repos.Valuations.GetOrCreate(ctx, valuation)
	require.NoError(t, err)

	duplicate := *valuation
	duplicate.ID = uuid.Nil
	second, err := repos.Valuations.GetOrCreate(ctx, &duplicate)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ValuationHash, second.ValuationHash)
}

func TestEdgeRepositoryRetireByProp(t *testing.T) {
	db := setupIntegration(t)
	defer database.TeardownTestDB(t, db)
	repos := NewRepositories(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash := models.HashKV(map[string]string{"test": uuid.NewString()})
	prediction, err := repos.Predictions.GetOrCreate(ctx, testPrediction(3, hash))
	require.NoError(t, err)

	valuation, err := repos.Valuations.GetOrCreate(ctx, &models.Valuation{
		ModelPredictionID: prediction.ID,
		ModelVersionID:    prediction.ModelVersionID,
		PropID:            3,
		OfferedLine:       4.5,
		FairLine:          4.81,
		ProbOver:          0.55,
		ProbUnder:         0.45,
		ExpectedValue:     0.1,
		PayoutSchema:      models.PayoutSchemaStandard,
		VolatilityScore:   0.39,
		ValuationHash:     models.HashKV(map[string]string{"valuation": uuid.NewString()}),
	})
	require.NoError(t, err)

	edge := &models.Edge{
		ValuationID:    valuation.ID,
		PropID:         3,
		ModelVersionID: valuation.ModelVersionID,
		EdgeScore:      0.07,
		EV:             0.1,
		ProbOver:       0.55,
		OfferedLine:    4.5,
		FairLine:       4.81,
		Status:         models.EdgeStatusActive,
	}
	require.NoError(t, repos.Edges.Create(ctx, edge))

	retired, err := repos.Edges.RetireByPropID(ctx, 3, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retired, int64(1))

	stored, err := repos.Edges.GetByID(ctx, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusRetired, stored.Status)
	assert.NotNil(t, stored.RetiredAt)
}

func TestTicketRepositoryCreateWithLegs(t *testing.T) {
	db := setupIntegration(t)
	defer database.TeardownTestDB(t, db)
	repos := NewRepositories(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ticket := &models.Ticket{
		UserID:      uuid.New(),
		Status:      models.TicketStatusDraft,
		EstimatedEV: 0.2,
		LegsCount:   2,
	}
	legs := []*models.TicketLeg{
		{EdgeID: uuid.New(), PropID: 10, OfferedLineSnapshot: 24.5, ProbOverSnapshot: 0.6, FairLineSnapshot: 25.2, ValuationHashSnapshot: models.HashKV(map[string]string{"l": "1"})},
		{EdgeID: uuid.New(), PropID: 11, OfferedLineSnapshot: 6.5, ProbOverSnapshot: 0.58, FairLineSnapshot: 7.0, ValuationHashSnapshot: models.HashKV(map[string]string{"l": "2"})},
	}

	require.NoError(t, repos.Tickets.CreateWithLegs(ctx, ticket, legs))

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusDraft, stored.Status)

	storedLegs, err := repos.Tickets.GetLegs(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, storedLegs, 2)
}
