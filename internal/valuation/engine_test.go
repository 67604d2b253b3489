package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
)

// MockPropRepository is a mock implementation of repository.PropRepository
type MockPropRepository struct {
	mock.Mock
}

func (m *MockPropRepository) GetProp(ctx context.Context, propID int64) (*models.Prop, error) {
	args := m.Called(ctx, propID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prop), args.Error(1)
}

func (m *MockPropRepository) ListActiveBySport(ctx context.Context, sport models.Sport) ([]*models.Prop, error) {
	args := m.Called(ctx, sport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prop), args.Error(1)
}

func (m *MockPropRepository) UpsertProp(ctx context.Context, prop *models.Prop) error {
	args := m.Called(ctx, prop)
	return args.Error(0)
}

func (m *MockPropRepository) RecentOfferedLines(ctx context.Context, playerID int64, propType models.PropType, limit int) ([]float64, error) {
	args := m.Called(ctx, playerID, propType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

// FakePredictionRepository stores predictions in memory with features-hash
// dedup, mirroring the unique constraint.
type FakePredictionRepository struct {
	rows map[string]*models.ModelPrediction
}

func NewFakePredictionRepository() *FakePredictionRepository {
	return &FakePredictionRepository{rows: make(map[string]*models.ModelPrediction)}
}

func (f *FakePredictionRepository) GetOrCreate(ctx context.Context, p *models.ModelPrediction) (*models.ModelPrediction, error) {
	key := p.ModelVersionID + "|" + p.FeaturesHash
	if existing, ok := f.rows[key]; ok {
		return existing, nil
	}
	stored := *p
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.rows[key] = &stored
	return &stored, nil
}

func (f *FakePredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelPrediction, error) {
	for _, p := range f.rows {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

// FakeValuationRepository stores valuations in memory with hash dedup.
type FakeValuationRepository struct {
	rows map[string]*models.Valuation
}

func NewFakeValuationRepository() *FakeValuationRepository {
	return &FakeValuationRepository{rows: make(map[string]*models.Valuation)}
}

func (f *FakeValuationRepository) GetOrCreate(ctx context.Context, v *models.Valuation) (*models.Valuation, error) {
	if existing, ok := f.rows[v.ValuationHash]; ok {
		return existing, nil
	}
	stored := *v
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.rows[v.ValuationHash] = &stored
	return &stored, nil
}

func (f *FakeValuationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Valuation, error) {
	for _, v := range f.rows {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *FakeValuationRepository) GetByHash(ctx context.Context, hash string) (*models.Valuation, error) {
	if v, ok := f.rows[hash]; ok {
		return v, nil
	}
	return nil, models.ErrNotFound
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testRegistry(t *testing.T, samples map[int64][]float64) *modeling.Registry {
	t.Helper()
	registry := modeling.NewRegistry(time.Minute, testLogger())
	provider := &modeling.StaticProvider{Samples: samples}
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", func() (modeling.Model, error) {
		return modeling.NewPoissonModel("baseline_poisson_v1", provider, modeling.ModelParams{}), nil
	}))
	require.NoError(t, registry.SetDefaultForPropType(models.PropTypeAssists, "baseline_poisson_v1"))
	return registry
}

func assistsProp() *models.Prop {
	return &models.Prop{
		PropID:       1,
		PlayerID:     100,
		Sport:        models.SportNBA,
		PropType:     models.PropTypeAssists,
		OfferedLine:  4.5,
		PayoutSchema: models.PayoutSchemaStandard,
		Active:       true,
	}
}

func TestValuateProducesConsistentValuation(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(assistsProp(), nil)

	engine := NewEngine(props, NewFakePredictionRepository(), NewFakeValuationRepository(),
		testRegistry(t, map[int64][]float64{100: {5, 6, 4, 7, 5}}), testLogger())

	valuation, err := engine.Valuate(context.Background(), 1, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), valuation.PropID)
	assert.Equal(t, "baseline_poisson_v1", valuation.ModelVersionID)
	assert.True(t, valuation.ProbabilitiesConsistent(1e-9))
	assert.Len(t, valuation.ValuationHash, 64)
	assert.True(t, valuation.FairLine > 5.0)
	assert.True(t, valuation.VolatilityScore >= 0 && valuation.VolatilityScore <= 5)
}

func TestValuateRecordsMetrics(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(assistsProp(), nil)
	props.On("GetProp", mock.Anything, int64(404)).Return(nil, models.ErrNotFound)

	engine := NewEngine(props, NewFakePredictionRepository(), NewFakeValuationRepository(),
		testRegistry(t, map[int64][]float64{100: {5, 6, 4, 7, 5}}), testLogger())

	computed := testutil.ToFloat64(metrics.ValuationsComputedTotal)
	unavailable := testutil.ToFloat64(metrics.ValuationsUnavailableTotal)

	_, err := engine.Valuate(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, computed+1, testutil.ToFloat64(metrics.ValuationsComputedTotal))

	_, err = engine.Valuate(context.Background(), 404, "")
	require.ErrorIs(t, err, models.ErrPriceUnavailable)
	assert.Equal(t, unavailable+1, testutil.ToFloat64(metrics.ValuationsUnavailableTotal))
}

func TestValuateIsIdempotent(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(assistsProp(), nil)
	valuations := NewFakeValuationRepository()

	engine := NewEngine(props, NewFakePredictionRepository(), valuations,
		testRegistry(t, map[int64][]float64{100: {5, 6, 4, 7, 5}}), testLogger())

	first, err := engine.Valuate(context.Background(), 1, "")
	require.NoError(t, err)
	second, err := engine.Valuate(context.Background(), 1, "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ValuationHash, second.ValuationHash)
	assert.Len(t, valuations.rows, 1)
}

func TestValuateMissingPropIsPriceUnavailable(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(404)).Return(nil, models.ErrNotFound)

	engine := NewEngine(props, NewFakePredictionRepository(), NewFakeValuationRepository(),
		testRegistry(t, nil), testLogger())

	_, err := engine.Valuate(context.Background(), 404, "")
	assert.ErrorIs(t, err, models.ErrPriceUnavailable)
}

func TestValuateNoDefaultModelIsPriceUnavailable(t *testing.T) {
	prop := assistsProp()
	prop.PropType = models.PropTypePoints // registry has no default for POINTS
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(prop, nil)

	engine := NewEngine(props, NewFakePredictionRepository(), NewFakeValuationRepository(),
		testRegistry(t, nil), testLogger())

	_, err := engine.Valuate(context.Background(), 1, "")
	assert.ErrorIs(t, err, models.ErrPriceUnavailable)
}

func TestValuateExplicitModelVersion(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(assistsProp(), nil)

	engine := NewEngine(props, NewFakePredictionRepository(), NewFakeValuationRepository(),
		testRegistry(t, map[int64][]float64{100: {5, 6, 4}}), testLogger())

	valuation, err := engine.Valuate(context.Background(), 1, "baseline_poisson_v1")
	require.NoError(t, err)
	assert.Equal(t, "baseline_poisson_v1", valuation.ModelVersionID)

	_, err = engine.Valuate(context.Background(), 1, "missing_model_v9")
	assert.ErrorIs(t, err, models.ErrPriceUnavailable)
}

func TestValuateDefaultPredictionForUnknownPlayer(t *testing.T) {
	props := new(MockPropRepository)
	props.On("GetProp", mock.Anything, int64(1)).Return(assistsProp(), nil)
	predictions := NewFakePredictionRepository()

	engine := NewEngine(props, predictions, NewFakeValuationRepository(),
		testRegistry(t, map[int64][]float64{}), testLogger())

	valuation, err := engine.Valuate(context.Background(), 1, "")
	require.NoError(t, err)

	prediction, err := predictions.GetByID(context.Background(), valuation.ModelPredictionID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, prediction.Mean)
	assert.Equal(t, 4.0, prediction.Variance)
	assert.Equal(t, 0, prediction.SampleSize)
	assert.True(t, prediction.IsDefault())
}
