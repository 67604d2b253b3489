package modeling

import (
	"context"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/models"
)

// HistoricalStatsProvider supplies per-player historical samples for a prop
// type. Providers return models.ErrDataUnavailable when they hold nothing for
// the player; callers treat that as "try the next source", not as a failure.
type HistoricalStatsProvider interface {
	GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error)
}

// LineHistorySource exposes recently offered market lines for a player/prop
// pair. The persistence layer implements it; the chain provider uses offered
// lines as proxy samples when no real stat history exists.
type LineHistorySource interface {
	RecentOfferedLines(ctx context.Context, playerID int64, propType models.PropType, limit int) ([]float64, error)
}

// ChainProvider tries an ordered list of sources and returns the first
// non-empty sample set. When every source comes up empty it returns
// models.ErrDataUnavailable, which the baseline models map to their static
// default prediction.
type ChainProvider struct {
	sources []HistoricalStatsProvider
	log     *logrus.Entry
}

// NewChainProvider builds a fallback chain over the given sources, tried in
// order.
func NewChainProvider(logger *logrus.Logger, sources ...HistoricalStatsProvider) *ChainProvider {
	return &ChainProvider{
		sources: sources,
		log:     logger.WithField("component", "stats_provider"),
	}
}

// GetPlayerStatHistory iterates the chain until a source yields samples.
func (p *ChainProvider) GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error) {
	for i, source := range p.sources {
		samples, err := source.GetPlayerStatHistory(ctx, playerID, propType, lookbackGames)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.WithFields(logrus.Fields{
				"player_id": playerID,
				"prop_type": propType,
				"source":    i,
			}).WithError(err).Debug("stat source unavailable, trying next")
			continue
		}
		if len(samples) > 0 {
			return samples, nil
		}
	}
	return nil, models.ErrDataUnavailable
}

// RecentLinesProvider adapts a LineHistorySource into the provider chain:
// offered market lines stand in for outcome samples when nothing better is
// available.
type RecentLinesProvider struct {
	source LineHistorySource
}

func NewRecentLinesProvider(source LineHistorySource) *RecentLinesProvider {
	return &RecentLinesProvider{source: source}
}

func (p *RecentLinesProvider) GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error) {
	lines, err := p.source.RecentOfferedLines(ctx, playerID, propType, lookbackGames)
	if err != nil {
		return nil, models.ErrDataUnavailable
	}
	if len(lines) == 0 {
		return nil, models.ErrDataUnavailable
	}
	return lines, nil
}

// SyntheticProvider draws samples from the prop type's prior distribution.
// The generator is seeded from (player, prop type) so repeated calls for the
// same player produce the same history, which keeps features hashes and the
// downstream dedup stable across sweeps.
type SyntheticProvider struct{}

func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{}
}

func (p *SyntheticProvider) GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error) {
	pr, ok := defaultPriors[propType]
	if !ok {
		return nil, models.ErrDataUnavailable
	}
	if lookbackGames <= 0 {
		lookbackGames = defaultLookbackGames
	}

	seed := playerID
	for _, c := range string(propType) {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	samples := make([]float64, lookbackGames)
	for i := range samples {
		samples[i] = drawFromPrior(rng, pr)
	}
	return samples, nil
}

func drawFromPrior(rng *rand.Rand, pr prior) float64 {
	switch pr.family {
	case models.DistributionNormal:
		return math.Max(0, pr.mean+rng.NormFloat64()*math.Sqrt(pr.variance))
	case models.DistributionBinomial:
		// draw a count directly against the prior hit rate
		n := int(math.Round(pr.mean / math.Max(0.001, 1-pr.variance/pr.mean)))
		if n < 1 {
			n = 1
		}
		p := pr.mean / float64(n)
		count := 0.0
		for i := 0; i < n; i++ {
			if rng.Float64() < p {
				count++
			}
		}
		return count
	default:
		// Poisson and negative binomial priors draw via Knuth's method on
		// the prior mean
		return float64(poissonDraw(rng, pr.mean))
	}
}

func poissonDraw(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
		if k > 10000 {
			return k
		}
	}
}

// StaticProvider returns a fixed sample set per player. Test and example
// wiring uses it in place of a live source.
type StaticProvider struct {
	Samples map[int64][]float64
}

func (p *StaticProvider) GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error) {
	samples, ok := p.Samples[playerID]
	if !ok || len(samples) == 0 {
		return nil, models.ErrDataUnavailable
	}
	if lookbackGames > 0 && len(samples) > lookbackGames {
		samples = samples[:lookbackGames]
	}
	return samples, nil
}
