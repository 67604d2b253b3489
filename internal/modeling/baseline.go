package modeling

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/yourusername/prop-edge/internal/models"
)

const (
	defaultLookbackGames  = 20
	defaultSeasonalFactor = 1.0
	defaultDispersion     = 5.0
	defaultTrialsPerGame  = 4

	// varianceFloor prevents zero-width normal distributions from degenerate
	// history.
	varianceFloor  = 0.1
	minPoissonRate = 0.05
	minBinomialP   = 0.001
	maxBinomialP   = 0.999
)

// prior is the static per-prop-type heuristic used when no history exists at
// all.
type prior struct {
	mean     float64
	variance float64
	family   models.DistributionFamily
}

var defaultPriors = map[models.PropType]prior{
	models.PropTypePoints:             {mean: 15.0, variance: 45.0, family: models.DistributionNormal},
	models.PropTypeAssists:            {mean: 4.0, variance: 4.0, family: models.DistributionPoisson},
	models.PropTypeRebounds:           {mean: 6.0, variance: 6.0, family: models.DistributionPoisson},
	models.PropTypeHits:               {mean: 1.0, variance: 0.75, family: models.DistributionBinomial},
	models.PropTypeHomeRuns:           {mean: 0.3, variance: 0.3, family: models.DistributionPoisson},
	models.PropTypeRBI:                {mean: 0.9, variance: 0.9, family: models.DistributionPoisson},
	models.PropTypeStrikeoutsPitcher:  {mean: 6.5, variance: 9.0, family: models.DistributionNegBinomial},
	models.PropTypeWalks:              {mean: 0.4, variance: 0.4, family: models.DistributionPoisson},
	models.PropTypeStolenBases:        {mean: 0.2, variance: 0.2, family: models.DistributionPoisson},
	models.PropTypeOutsRecorded:       {mean: 16.0, variance: 16.0, family: models.DistributionPoisson},
	models.PropTypeInningsPitched:     {mean: 5.5, variance: 2.25, family: models.DistributionNormal},
	models.PropTypeReceivingYards:     {mean: 55.0, variance: 625.0, family: models.DistributionNormal},
	models.PropTypeRushingYards:       {mean: 60.0, variance: 900.0, family: models.DistributionNormal},
	models.PropTypePassingCompletions: {mean: 22.0, variance: 7.7, family: models.DistributionBinomial},
}

// PredictionContext carries optional per-request modeling inputs, e.g.
// trials_per_game for binomial props or an opponent adjustment.
type PredictionContext map[string]string

// Float returns a numeric context value.
func (c PredictionContext) Float(key string) (float64, bool) {
	raw, ok := c[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Prediction is the in-memory output of a baseline model, persisted by the
// valuation engine as a ModelPrediction row.
type Prediction struct {
	Mean         float64
	Variance     float64
	Family       models.DistributionFamily
	SampleSize   int
	FeaturesHash string
	Features     map[string]string
}

// Model is a baseline statistical predictor for one distribution family.
type Model interface {
	VersionID() string
	Predict(ctx context.Context, playerID int64, propType models.PropType, pctx PredictionContext) (*Prediction, error)
}

// ModelParams are the shared hyperparameters of the baseline models. The
// zero value selects defaults, so callers only set what they tune.
type ModelParams struct {
	LookbackGames  int
	SeasonalFactor float64 // multiplies the historical mean (e.g. late-season fatigue)
	Dispersion     float64 // negative binomial r
	TrialsPerGame  int     // binomial n when the context does not supply one
}

func (p ModelParams) withDefaults() ModelParams {
	if p.LookbackGames <= 0 {
		p.LookbackGames = defaultLookbackGames
	}
	if p.SeasonalFactor <= 0 {
		p.SeasonalFactor = defaultSeasonalFactor
	}
	if p.Dispersion <= 0 {
		p.Dispersion = defaultDispersion
	}
	if p.TrialsPerGame <= 0 {
		p.TrialsPerGame = defaultTrialsPerGame
	}
	return p
}

// PoissonModel predicts counting props with lambda set to the adjusted
// historical mean.
type PoissonModel struct {
	versionID string
	provider  HistoricalStatsProvider
	params    ModelParams
}

func NewPoissonModel(versionID string, provider HistoricalStatsProvider, params ModelParams) *PoissonModel {
	return &PoissonModel{versionID: versionID, provider: provider, params: params.withDefaults()}
}

func (m *PoissonModel) VersionID() string { return m.versionID }

func (m *PoissonModel) Predict(ctx context.Context, playerID int64, propType models.PropType, pctx PredictionContext) (*Prediction, error) {
	samples, err := m.provider.GetPlayerStatHistory(ctx, playerID, propType, m.params.LookbackGames)
	if err != nil {
		return defaultPrediction(m.versionID, playerID, propType, models.DistributionPoisson, m.params, pctx)
	}

	lambda := sampleMean(samples) * m.params.SeasonalFactor
	if lambda < minPoissonRate {
		lambda = minPoissonRate
	}

	features := buildFeatures(m.versionID, playerID, propType, samples, m.params, pctx)
	return &Prediction{
		Mean:         lambda,
		Variance:     lambda,
		Family:       models.DistributionPoisson,
		SampleSize:   len(samples),
		FeaturesHash: models.HashKV(features),
		Features:     features,
	}, nil
}

// NormalModel predicts continuous props with the sample mean and variance.
// Innings-pitched history is converted from the conventional fractional
// notation (.1 = one out, .2 = two outs) before the moments are taken.
type NormalModel struct {
	versionID string
	provider  HistoricalStatsProvider
	params    ModelParams
}

func NewNormalModel(versionID string, provider HistoricalStatsProvider, params ModelParams) *NormalModel {
	return &NormalModel{versionID: versionID, provider: provider, params: params.withDefaults()}
}

func (m *NormalModel) VersionID() string { return m.versionID }

func (m *NormalModel) Predict(ctx context.Context, playerID int64, propType models.PropType, pctx PredictionContext) (*Prediction, error) {
	samples, err := m.provider.GetPlayerStatHistory(ctx, playerID, propType, m.params.LookbackGames)
	if err != nil {
		return defaultPrediction(m.versionID, playerID, propType, models.DistributionNormal, m.params, pctx)
	}

	if propType == models.PropTypeInningsPitched {
		converted := make([]float64, len(samples))
		for i, s := range samples {
			converted[i] = convertInnings(s)
		}
		samples = converted
	}

	mean := sampleMean(samples) * m.params.SeasonalFactor
	var variance float64
	if len(samples) == 1 {
		// no spread information from one game: assume a quarter of the mean
		variance = math.Pow(0.25*mean, 2)
	} else {
		variance = sampleVariance(samples)
	}
	if variance < varianceFloor {
		variance = varianceFloor
	}

	features := buildFeatures(m.versionID, playerID, propType, samples, m.params, pctx)
	return &Prediction{
		Mean:         mean,
		Variance:     variance,
		Family:       models.DistributionNormal,
		SampleSize:   len(samples),
		FeaturesHash: models.HashKV(features),
		Features:     features,
	}, nil
}

// NegativeBinomialModel predicts over-dispersed counting props: the variance
// grows quadratically in the mean through the dispersion parameter r,
// variance = mean * (1 + mean/r).
type NegativeBinomialModel struct {
	versionID string
	provider  HistoricalStatsProvider
	params    ModelParams
}

func NewNegativeBinomialModel(versionID string, provider HistoricalStatsProvider, params ModelParams) *NegativeBinomialModel {
	return &NegativeBinomialModel{versionID: versionID, provider: provider, params: params.withDefaults()}
}

func (m *NegativeBinomialModel) VersionID() string { return m.versionID }

func (m *NegativeBinomialModel) Predict(ctx context.Context, playerID int64, propType models.PropType, pctx PredictionContext) (*Prediction, error) {
	samples, err := m.provider.GetPlayerStatHistory(ctx, playerID, propType, m.params.LookbackGames)
	if err != nil {
		return defaultPrediction(m.versionID, playerID, propType, models.DistributionNegBinomial, m.params, pctx)
	}

	mean := sampleMean(samples) * m.params.SeasonalFactor
	if mean < minPoissonRate {
		mean = minPoissonRate
	}
	variance := mean * (1 + mean/m.params.Dispersion)

	features := buildFeatures(m.versionID, playerID, propType, samples, m.params, pctx)
	return &Prediction{
		Mean:         mean,
		Variance:     variance,
		Family:       models.DistributionNegBinomial,
		SampleSize:   len(samples),
		FeaturesHash: models.HashKV(features),
		Features:     features,
	}, nil
}

// BinomialModel predicts success-count props from the historical hit rate
// over a per-game trial count (at-bats, targets, pass attempts).
type BinomialModel struct {
	versionID string
	provider  HistoricalStatsProvider
	params    ModelParams
}

func NewBinomialModel(versionID string, provider HistoricalStatsProvider, params ModelParams) *BinomialModel {
	return &BinomialModel{versionID: versionID, provider: provider, params: params.withDefaults()}
}

func (m *BinomialModel) VersionID() string { return m.versionID }

func (m *BinomialModel) Predict(ctx context.Context, playerID int64, propType models.PropType, pctx PredictionContext) (*Prediction, error) {
	samples, err := m.provider.GetPlayerStatHistory(ctx, playerID, propType, m.params.LookbackGames)
	if err != nil {
		return defaultPrediction(m.versionID, playerID, propType, models.DistributionBinomial, m.params, pctx)
	}

	trials := float64(m.params.TrialsPerGame)
	if v, ok := pctx.Float("trials_per_game"); ok && v > 0 {
		trials = v
	}

	p := sampleMean(samples) / trials
	if p < minBinomialP {
		p = minBinomialP
	}
	if p > maxBinomialP {
		p = maxBinomialP
	}

	features := buildFeatures(m.versionID, playerID, propType, samples, m.params, pctx)
	return &Prediction{
		Mean:         trials * p,
		Variance:     trials * p * (1 - p),
		Family:       models.DistributionBinomial,
		SampleSize:   len(samples),
		FeaturesHash: models.HashKV(features),
		Features:     features,
	}, nil
}

// defaultPrediction is the static heuristic tail of the fallback chain: no
// history anywhere, so the prop type's prior stands in with sample size 0.
func defaultPrediction(versionID string, playerID int64, propType models.PropType, family models.DistributionFamily, params ModelParams, pctx PredictionContext) (*Prediction, error) {
	pr, ok := defaultPriors[propType]
	if !ok {
		pr = prior{mean: 1.0, variance: 1.0, family: family}
	}

	mean := pr.mean
	var variance float64
	switch family {
	case models.DistributionPoisson:
		variance = mean
	case models.DistributionNegBinomial:
		variance = mean * (1 + mean/params.Dispersion)
	case models.DistributionBinomial:
		variance = pr.variance
	default:
		variance = pr.variance
	}
	if variance <= 0 {
		variance = varianceFloor
	}

	features := buildFeatures(versionID, playerID, propType, nil, params, pctx)
	return &Prediction{
		Mean:         mean,
		Variance:     variance,
		Family:       family,
		SampleSize:   0,
		FeaturesHash: models.HashKV(features),
		Features:     features,
	}, nil
}

// buildFeatures captures the exact inputs a prediction was computed from.
// The resulting hash keys the persistence layer's dedup, so the field set and
// formatting must stay stable.
func buildFeatures(versionID string, playerID int64, propType models.PropType, samples []float64, params ModelParams, pctx PredictionContext) map[string]string {
	rendered := make([]string, len(samples))
	for i, s := range samples {
		rendered[i] = fmt.Sprintf("%.6f", s)
	}

	features := map[string]string{
		"model_version_id": versionID,
		"player_id":        fmt.Sprintf("%d", playerID),
		"prop_type":        string(propType),
		"lookback_games":   fmt.Sprintf("%d", params.LookbackGames),
		"seasonal_factor":  fmt.Sprintf("%.6f", params.SeasonalFactor),
		"samples":          strings.Join(rendered, ","),
	}
	for _, k := range sortedKeys(pctx) {
		features["ctx_"+k] = pctx[k]
	}
	return features
}

func sortedKeys(m PredictionContext) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// convertInnings maps conventional fractional innings notation to thirds:
// 5.1 means five innings and one out, so 5 + 1/3.
func convertInnings(v float64) float64 {
	whole := math.Floor(v)
	frac := math.Round((v - whole) * 10)
	switch frac {
	case 1:
		return whole + 1.0/3.0
	case 2:
		return whole + 2.0/3.0
	default:
		return v
	}
}

func sampleMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range samples {
		total += s
	}
	return total / float64(len(samples))
}

// sampleVariance is the unbiased (n-1) estimator.
func sampleVariance(samples []float64) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	mean := sampleMean(samples)
	total := 0.0
	for _, s := range samples {
		d := s - mean
		total += d * d
	}
	return total / float64(n-1)
}
