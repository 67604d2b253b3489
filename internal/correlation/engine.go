package correlation

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
)

// Config holds the correlation engine parameters.
type Config struct {
	MinSamples       int     // pairs with fewer aligned samples are skipped
	ClusterThreshold float64 // |r| at or above this connects two props
	LookbackGames    int
}

// DefaultConfig returns the standard parameters
func DefaultConfig() Config {
	return Config{
		MinSamples:       10,
		ClusterThreshold: 0.4,
		LookbackGames:    20,
	}
}

// Engine computes pairwise Pearson correlation between props' historical
// outcomes, persists the records, and groups correlated props into clusters.
type Engine struct {
	props        repository.PropRepository
	correlations repository.CorrelationRepository
	edges        repository.EdgeRepository
	history      HistoricalDataProvider
	cfg          Config
	log          *logrus.Entry
}

// NewEngine creates a correlation engine. edges may be nil when cluster
// membership should not be written back onto active edges.
func NewEngine(
	props repository.PropRepository,
	correlations repository.CorrelationRepository,
	edges repository.EdgeRepository,
	history HistoricalDataProvider,
	cfg Config,
	logger *logrus.Logger,
) *Engine {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = DefaultConfig().ClusterThreshold
	}
	if cfg.LookbackGames <= 0 {
		cfg.LookbackGames = DefaultConfig().LookbackGames
	}
	return &Engine{
		props:        props,
		correlations: correlations,
		edges:        edges,
		history:      history,
		cfg:          cfg,
		log:          logger.WithField("component", "correlation_engine"),
	}
}

// ComputePairwiseCorrelations computes and upserts Pearson r for every
// distinct pair in propIDs. Pairs whose aligned history falls below the
// minimum sample threshold are skipped, not zero-filled.
func (e *Engine) ComputePairwiseCorrelations(ctx context.Context, propIDs []int64, contextTags map[string]string) ([]*models.CorrelationRecord, error) {
	props, err := e.loadProps(ctx, propIDs)
	if err != nil {
		return nil, err
	}

	series, err := e.history.GetAlignedHistory(ctx, props, e.cfg.LookbackGames)
	if err != nil {
		return nil, err
	}

	contextHash := models.ComputeContextHash(contextTags)
	now := time.Now().UTC()

	var records []*models.CorrelationRecord
	for i := 0; i < len(propIDs); i++ {
		for j := i + 1; j < len(propIDs); j++ {
			a, b := propIDs[i], propIDs[j]
			if a == b {
				continue
			}

			seriesA, okA := series[a]
			seriesB, okB := series[b]
			if !okA || !okB || len(seriesA) < e.cfg.MinSamples {
				e.log.WithFields(logrus.Fields{
					"prop_id_a": a,
					"prop_id_b": b,
				}).Debug("insufficient aligned history, skipping pair")
				continue
			}

			r := pearson(seriesA, seriesB)
			record := models.NewCorrelationRecord(a, b, r, len(seriesA), contextHash)
			record.LastComputedAt = now
			if err := e.correlations.Upsert(ctx, &record); err != nil {
				return nil, err
			}
			metrics.RecordCorrelationPair()
			records = append(records, &record)
		}
	}

	return records, nil
}

// BuildCorrelationMatrix materializes the full symmetric matrix for propIDs
// from stored records: 1.0 on the diagonal and 0.0 for any unmeasured pair.
// Unknown is uncorrelated by policy, not a missing-value marker.
func (e *Engine) BuildCorrelationMatrix(ctx context.Context, propIDs []int64, contextTags map[string]string) ([][]float64, error) {
	contextHash := models.ComputeContextHash(contextTags)
	records, err := e.correlations.GetForProps(ctx, propIDs, contextHash)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(propIDs))
	for i, id := range propIDs {
		index[id] = i
	}

	matrix := make([][]float64, len(propIDs))
	for i := range matrix {
		matrix[i] = make([]float64, len(propIDs))
		matrix[i][i] = 1.0
	}

	for _, record := range records {
		i, okA := index[record.PropIDA]
		j, okB := index[record.PropIDB]
		if !okA || !okB {
			continue
		}
		matrix[i][j] = record.PearsonR
		matrix[j][i] = record.PearsonR
	}

	return matrix, nil
}

// ComputeClusters finds connected components of props linked by |r| at or
// above threshold (the configured threshold when threshold <= 0), keeps
// components with at least two members, and persists a snapshot of each.
func (e *Engine) ComputeClusters(ctx context.Context, propIDs []int64, threshold float64, contextTags map[string]string) ([]*models.CorrelationCluster, error) {
	if threshold <= 0 {
		threshold = e.cfg.ClusterThreshold
	}

	matrix, err := e.BuildCorrelationMatrix(ctx, propIDs, contextTags)
	if err != nil {
		return nil, err
	}

	adjacency := make([][]int, len(propIDs))
	for i := range propIDs {
		for j := i + 1; j < len(propIDs); j++ {
			if math.Abs(matrix[i][j]) >= threshold {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
			}
		}
	}

	contextHash := models.ComputeContextHash(contextTags)
	now := time.Now().UTC()
	visited := make([]bool, len(propIDs))

	var clusters []*models.CorrelationCluster
	for start := range propIDs {
		if visited[start] {
			continue
		}
		component := dfs(start, adjacency, visited)
		if len(component) < 2 {
			continue
		}

		members := make([]int64, len(component))
		for i, idx := range component {
			members[i] = propIDs[idx]
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		cluster := &models.CorrelationCluster{
			ID:               uuid.New(),
			ClusterKey:       models.ComputeClusterKey(contextHash, members, now),
			MemberPropIDs:    members,
			AverageInternalR: meanInternalAbsR(component, matrix),
		}
		if err := e.correlations.CreateCluster(ctx, cluster); err != nil {
			return nil, err
		}
		e.tagMemberEdges(ctx, cluster)
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

// tagMemberEdges writes the cluster ID onto every ACTIVE edge whose prop is a
// cluster member. Failures are logged, not propagated; the cluster snapshot is
// already persisted and the annotation is advisory.
func (e *Engine) tagMemberEdges(ctx context.Context, cluster *models.CorrelationCluster) {
	if e.edges == nil {
		return
	}
	for _, propID := range cluster.MemberPropIDs {
		active, err := e.edges.GetActiveByPropID(ctx, propID)
		if err != nil {
			e.log.WithError(err).WithField("prop_id", propID).Warn("failed to load edges for cluster tagging")
			continue
		}
		for _, edge := range active {
			if err := e.edges.SetCluster(ctx, edge.ID, cluster.ID); err != nil {
				e.log.WithError(err).WithFields(logrus.Fields{
					"edge_id":    edge.ID,
					"cluster_id": cluster.ID,
				}).Warn("failed to tag edge with cluster")
			}
		}
	}
}

func (e *Engine) loadProps(ctx context.Context, propIDs []int64) ([]*models.Prop, error) {
	props := make([]*models.Prop, 0, len(propIDs))
	for _, id := range propIDs {
		prop, err := e.props.GetProp(ctx, id)
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	return props, nil
}

// dfs walks one connected component iteratively and marks it visited.
func dfs(start int, adjacency [][]int, visited []bool) []int {
	stack := []int{start}
	visited[start] = true
	var component []int

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		component = append(component, node)

		for _, next := range adjacency[node] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}

	return component
}

// meanInternalAbsR averages |r| over every distinct pair inside a component.
func meanInternalAbsR(component []int, matrix [][]float64) float64 {
	total := 0.0
	pairs := 0
	for i := 0; i < len(component); i++ {
		for j := i + 1; j < len(component); j++ {
			total += math.Abs(matrix[component[i]][component[j]])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// pearson computes the correlation coefficient of two equal-length series.
// Either series having zero variance clamps the result to 0.
func pearson(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		return 0
	}
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
