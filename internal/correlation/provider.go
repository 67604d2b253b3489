package correlation

import (
	"context"
	"errors"

	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
)

// HistoricalDataProvider supplies aligned outcome vectors for a set of props.
// Vectors are aligned by sample index, not by calendar date: synthetic
// history has no dates, and Pearson correlation only needs consistent
// pairing.
type HistoricalDataProvider interface {
	GetAlignedHistory(ctx context.Context, props []*models.Prop, lookback int) (map[int64][]float64, error)
}

// StatsHistoryProvider adapts the modeling fallback chain into aligned
// vectors: each prop's player history is fetched and every series is
// truncated to the shortest one. Props with no history at all are omitted
// rather than zero-filled.
type StatsHistoryProvider struct {
	stats modeling.HistoricalStatsProvider
}

// NewStatsHistoryProvider creates the adapter
func NewStatsHistoryProvider(stats modeling.HistoricalStatsProvider) *StatsHistoryProvider {
	return &StatsHistoryProvider{stats: stats}
}

// GetAlignedHistory implements HistoricalDataProvider
func (p *StatsHistoryProvider) GetAlignedHistory(ctx context.Context, props []*models.Prop, lookback int) (map[int64][]float64, error) {
	series := make(map[int64][]float64, len(props))
	shortest := -1

	for _, prop := range props {
		samples, err := p.stats.GetPlayerStatHistory(ctx, prop.PlayerID, prop.PropType, lookback)
		if err != nil {
			if errors.Is(err, models.ErrDataUnavailable) {
				continue
			}
			return nil, err
		}
		series[prop.PropID] = samples
		if shortest < 0 || len(samples) < shortest {
			shortest = len(samples)
		}
	}

	for propID, samples := range series {
		series[propID] = samples[:shortest]
	}

	return series, nil
}
