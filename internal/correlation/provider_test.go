package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
)

func TestStatsHistoryProviderAlignsToShortest(t *testing.T) {
	stats := &modeling.StaticProvider{Samples: map[int64][]float64{
		101: {1, 2, 3, 4, 5},
		102: {10, 20, 30},
	}}
	provider := NewStatsHistoryProvider(stats)

	props := []*models.Prop{
		{PropID: 1, PlayerID: 101, PropType: models.PropTypePoints},
		{PropID: 2, PlayerID: 102, PropType: models.PropTypePoints},
	}

	aligned, err := provider.GetAlignedHistory(context.Background(), props, 20)
	require.NoError(t, err)
	require.Len(t, aligned, 2)

	assert.Equal(t, []float64{1, 2, 3}, aligned[1])
	assert.Equal(t, []float64{10, 20, 30}, aligned[2])
}

func TestStatsHistoryProviderOmitsMissingPlayers(t *testing.T) {
	stats := &modeling.StaticProvider{Samples: map[int64][]float64{
		101: {1, 2, 3, 4},
	}}
	provider := NewStatsHistoryProvider(stats)

	props := []*models.Prop{
		{PropID: 1, PlayerID: 101, PropType: models.PropTypePoints},
		{PropID: 2, PlayerID: 999, PropType: models.PropTypePoints},
	}

	aligned, err := provider.GetAlignedHistory(context.Background(), props, 20)
	require.NoError(t, err)
	require.Len(t, aligned, 1)
	assert.Contains(t, aligned, int64(1))
}
