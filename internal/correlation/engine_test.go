package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
)

// fakePropRepository serves props from a map.
type fakePropRepository struct {
	props map[int64]*models.Prop
}

func (f *fakePropRepository) GetProp(ctx context.Context, propID int64) (*models.Prop, error) {
	prop, ok := f.props[propID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return prop, nil
}

func (f *fakePropRepository) ListActiveBySport(ctx context.Context, sport models.Sport) ([]*models.Prop, error) {
	var out []*models.Prop
	for _, p := range f.props {
		if p.Sport == sport && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePropRepository) UpsertProp(ctx context.Context, prop *models.Prop) error {
	f.props[prop.PropID] = prop
	return nil
}

func (f *fakePropRepository) RecentOfferedLines(ctx context.Context, playerID int64, propType models.PropType, limit int) ([]float64, error) {
	return nil, nil
}

// fakeCorrelationRepository stores records and clusters in memory, keyed the
// same way the unique constraints do.
type fakeCorrelationRepository struct {
	records  map[[2]int64]map[string]*models.CorrelationRecord
	clusters map[string]*models.CorrelationCluster
}

func newFakeCorrelationRepository() *fakeCorrelationRepository {
	return &fakeCorrelationRepository{
		records:  make(map[[2]int64]map[string]*models.CorrelationRecord),
		clusters: make(map[string]*models.CorrelationCluster),
	}
}

func (f *fakeCorrelationRepository) Upsert(ctx context.Context, record *models.CorrelationRecord) error {
	key := [2]int64{record.PropIDA, record.PropIDB}
	if f.records[key] == nil {
		f.records[key] = make(map[string]*models.CorrelationRecord)
	}
	stored := *record
	f.records[key][record.ContextHash] = &stored
	return nil
}

func (f *fakeCorrelationRepository) GetPair(ctx context.Context, propA, propB int64, contextHash string) (*models.CorrelationRecord, error) {
	if propA > propB {
		propA, propB = propB, propA
	}
	if byCtx, ok := f.records[[2]int64{propA, propB}]; ok {
		if record, ok := byCtx[contextHash]; ok {
			return record, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeCorrelationRepository) GetForProps(ctx context.Context, propIDs []int64, contextHash string) ([]*models.CorrelationRecord, error) {
	in := make(map[int64]bool, len(propIDs))
	for _, id := range propIDs {
		in[id] = true
	}
	var out []*models.CorrelationRecord
	for pair, byCtx := range f.records {
		if !in[pair[0]] || !in[pair[1]] {
			continue
		}
		if record, ok := byCtx[contextHash]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeCorrelationRepository) CreateCluster(ctx context.Context, cluster *models.CorrelationCluster) error {
	stored := *cluster
	f.clusters[cluster.ClusterKey] = &stored
	return nil
}

func (f *fakeCorrelationRepository) GetClusterByKey(ctx context.Context, clusterKey string) (*models.CorrelationCluster, error) {
	if cluster, ok := f.clusters[clusterKey]; ok {
		return cluster, nil
	}
	return nil, models.ErrNotFound
}

// fakeEdgeRepository tracks active edges per prop and cluster assignments.
type fakeEdgeRepository struct {
	byProp   map[int64][]*models.Edge
	assigned map[uuid.UUID]uuid.UUID
}

func newFakeEdgeRepository() *fakeEdgeRepository {
	return &fakeEdgeRepository{
		byProp:   make(map[int64][]*models.Edge),
		assigned: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeEdgeRepository) Create(ctx context.Context, edge *models.Edge) error {
	f.byProp[edge.PropID] = append(f.byProp[edge.PropID], edge)
	return nil
}

func (f *fakeEdgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Edge, error) {
	for _, edges := range f.byProp {
		for _, edge := range edges {
			if edge.ID == id {
				return edge, nil
			}
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeEdgeRepository) GetActiveByValuationHash(ctx context.Context, hash string) (*models.Edge, error) {
	return nil, models.ErrNotFound
}

func (f *fakeEdgeRepository) GetActiveEdges(ctx context.Context, filter repository.EdgeFilter) ([]*models.Edge, error) {
	var out []*models.Edge
	for _, edges := range f.byProp {
		out = append(out, edges...)
	}
	return out, nil
}

func (f *fakeEdgeRepository) GetActiveByPropID(ctx context.Context, propID int64) ([]*models.Edge, error) {
	return f.byProp[propID], nil
}

func (f *fakeEdgeRepository) Retire(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeEdgeRepository) RetireByPropID(ctx context.Context, propID int64, at time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeEdgeRepository) SetCluster(ctx context.Context, edgeID, clusterID uuid.UUID) error {
	f.assigned[edgeID] = clusterID
	return nil
}

// staticHistory returns fixed aligned vectors.
type staticHistory struct {
	series map[int64][]float64
}

func (s *staticHistory) GetAlignedHistory(ctx context.Context, props []*models.Prop, lookback int) (map[int64][]float64, error) {
	out := make(map[int64][]float64)
	for _, p := range props {
		if v, ok := s.series[p.PropID]; ok {
			out[p.PropID] = v
		}
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func propsFixture(ids ...int64) *fakePropRepository {
	repo := &fakePropRepository{props: make(map[int64]*models.Prop)}
	for _, id := range ids {
		repo.props[id] = &models.Prop{
			PropID:   id,
			PlayerID: 100 + id,
			Sport:    models.SportNBA,
			PropType: models.PropTypePoints,
			Active:   true,
		}
	}
	return repo
}

func ramp(n int, slope float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = slope * float64(i)
	}
	return out
}

func TestPearson(t *testing.T) {
	up := ramp(10, 1.0)
	down := ramp(10, -1.0)

	assert.InDelta(t, 1.0, pearson(up, up), 1e-12)
	assert.InDelta(t, -1.0, pearson(up, down), 1e-12)

	// zero variance clamps to 0
	flat := []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3}
	assert.Equal(t, 0.0, pearson(up, flat))
	assert.Equal(t, 0.0, pearson(nil, nil))
}

func TestComputePairwiseCorrelations(t *testing.T) {
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(12, 1.0),
		2: ramp(12, 2.0),
	}}
	repo := newFakeCorrelationRepository()
	engine := NewEngine(propsFixture(1, 2), repo, nil, history, DefaultConfig(), testLogger())

	pairsBefore := testutil.ToFloat64(metrics.CorrelationPairsComputedTotal)
	records, err := engine.ComputePairwiseCorrelations(context.Background(), []int64{1, 2}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pairsBefore+1, testutil.ToFloat64(metrics.CorrelationPairsComputedTotal))

	assert.Equal(t, int64(1), records[0].PropIDA)
	assert.Equal(t, int64(2), records[0].PropIDB)
	assert.InDelta(t, 1.0, records[0].PearsonR, 1e-9)
	assert.Equal(t, 12, records[0].SampleSize)
	assert.Equal(t, "global", records[0].ContextHash)

	// persisted under canonical order regardless of query order
	stored, err := repo.GetPair(context.Background(), 2, 1, "global")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, stored.PearsonR, 1e-9)
}

func TestComputePairwiseSkipsShortHistory(t *testing.T) {
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(5, 1.0),
		2: ramp(5, 2.0),
	}}
	engine := NewEngine(propsFixture(1, 2), newFakeCorrelationRepository(), nil, history, DefaultConfig(), testLogger())

	records, err := engine.ComputePairwiseCorrelations(context.Background(), []int64{1, 2}, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestComputePairwiseContextHash(t *testing.T) {
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(12, 1.0),
		2: ramp(12, 2.0),
	}}
	engine := NewEngine(propsFixture(1, 2), newFakeCorrelationRepository(), nil, history, DefaultConfig(), testLogger())

	records, err := engine.ComputePairwiseCorrelations(context.Background(), []int64{1, 2},
		map[string]string{"game_id": "20260101_BOS_NYK"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.NotEqual(t, "global", records[0].ContextHash)
	assert.Len(t, records[0].ContextHash, 64)
}

func TestBuildCorrelationMatrixSymmetry(t *testing.T) {
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(12, 1.0),
		2: ramp(12, 2.0),
		3: {5, 1, 4, 2, 5, 1, 3, 2, 4, 1, 5, 2},
	}}
	engine := NewEngine(propsFixture(1, 2, 3), newFakeCorrelationRepository(), nil, history, DefaultConfig(), testLogger())

	propIDs := []int64{1, 2, 3}
	_, err := engine.ComputePairwiseCorrelations(context.Background(), propIDs, nil)
	require.NoError(t, err)

	matrix, err := engine.BuildCorrelationMatrix(context.Background(), propIDs, nil)
	require.NoError(t, err)

	for i := range matrix {
		assert.Equal(t, 1.0, matrix[i][i])
		for j := range matrix {
			assert.Equal(t, matrix[i][j], matrix[j][i])
		}
	}
	assert.InDelta(t, 1.0, matrix[0][1], 1e-9)
}

func TestBuildCorrelationMatrixUnmeasuredPairsAreZero(t *testing.T) {
	engine := NewEngine(propsFixture(1, 2), newFakeCorrelationRepository(), nil, &staticHistory{}, DefaultConfig(), testLogger())

	matrix, err := engine.BuildCorrelationMatrix(context.Background(), []int64{1, 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, matrix[0][1])
	assert.Equal(t, 0.0, matrix[1][0])
	assert.Equal(t, 1.0, matrix[0][0])
}

func TestComputeClusters(t *testing.T) {
	// props 1 and 2 move together, 3 is independent noise
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(12, 1.0),
		2: ramp(12, 2.0),
		3: {5, 1, 4, 2, 5, 1, 3, 2, 4, 1, 5, 2},
	}}
	repo := newFakeCorrelationRepository()
	engine := NewEngine(propsFixture(1, 2, 3), repo, nil, history, DefaultConfig(), testLogger())

	propIDs := []int64{1, 2, 3}
	_, err := engine.ComputePairwiseCorrelations(context.Background(), propIDs, nil)
	require.NoError(t, err)

	clusters, err := engine.ComputeClusters(context.Background(), propIDs, 0.9, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	assert.Equal(t, []int64{1, 2}, clusters[0].MemberPropIDs)
	assert.InDelta(t, 1.0, clusters[0].AverageInternalR, 1e-9)
	assert.Len(t, clusters[0].ClusterKey, 16)
	assert.Len(t, repo.clusters, 1)
}

func TestComputeClustersTransitiveConnectivity(t *testing.T) {
	// 1-2 and 2-3 are linked, 1-3 only weakly: one transitive component
	a := ramp(12, 1.0)
	b := make([]float64, 12)
	c := make([]float64, 12)
	noise := []float64{0.3, -0.2, 0.5, -0.4, 0.1, -0.3, 0.4, -0.1, 0.2, -0.5, 0.3, -0.2}
	for i := range a {
		b[i] = a[i] + 2*noise[i]
		c[i] = b[i] + 2*noise[(i+5)%12]
	}
	history := &staticHistory{series: map[int64][]float64{1: a, 2: b, 3: c}}
	engine := NewEngine(propsFixture(1, 2, 3), newFakeCorrelationRepository(), nil, history, DefaultConfig(), testLogger())

	propIDs := []int64{1, 2, 3}
	_, err := engine.ComputePairwiseCorrelations(context.Background(), propIDs, nil)
	require.NoError(t, err)

	clusters, err := engine.ComputeClusters(context.Background(), propIDs, 0.4, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []int64{1, 2, 3}, clusters[0].MemberPropIDs)
}

func TestComputeClustersTagsActiveEdges(t *testing.T) {
	history := &staticHistory{series: map[int64][]float64{
		1: ramp(12, 1.0),
		2: ramp(12, 2.0),
		3: {5, 1, 4, 2, 5, 1, 3, 2, 4, 1, 5, 2},
	}}
	edges := newFakeEdgeRepository()
	edgeA := &models.Edge{ID: uuid.New(), PropID: 1, Status: models.EdgeStatusActive}
	edgeB := &models.Edge{ID: uuid.New(), PropID: 2, Status: models.EdgeStatusActive}
	edgeC := &models.Edge{ID: uuid.New(), PropID: 3, Status: models.EdgeStatusActive}
	for _, e := range []*models.Edge{edgeA, edgeB, edgeC} {
		require.NoError(t, edges.Create(context.Background(), e))
	}
	engine := NewEngine(propsFixture(1, 2, 3), newFakeCorrelationRepository(), edges, history, DefaultConfig(), testLogger())

	propIDs := []int64{1, 2, 3}
	_, err := engine.ComputePairwiseCorrelations(context.Background(), propIDs, nil)
	require.NoError(t, err)

	clusters, err := engine.ComputeClusters(context.Background(), propIDs, 0.9, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.NotEqual(t, uuid.Nil, clusters[0].ID)

	// member props' edges carry the cluster ID, the outsider stays untagged
	assert.Equal(t, clusters[0].ID, edges.assigned[edgeA.ID])
	assert.Equal(t, clusters[0].ID, edges.assigned[edgeB.ID])
	_, tagged := edges.assigned[edgeC.ID]
	assert.False(t, tagged)
}

func TestComputeClustersNoEdges(t *testing.T) {
	engine := NewEngine(propsFixture(1, 2), newFakeCorrelationRepository(), nil, &staticHistory{}, DefaultConfig(), testLogger())

	clusters, err := engine.ComputeClusters(context.Background(), []int64{1, 2}, 0.4, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}
