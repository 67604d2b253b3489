package parlay

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Leg is one selection in a parlay: the probability that the chosen side
// wins and the fair decimal odds implied by that probability.
type Leg struct {
	WinProbability  float64
	FairDecimalOdds float64
}

// Config configures the parlay simulator
type Config struct {
	// AdjustmentFactor scales how strongly mean pairwise correlation
	// inflates the joint probability in the heuristic path.
	AdjustmentFactor float64
	// MaxAdjustedProbability caps the heuristic output.
	MaxAdjustedProbability float64
	// CorrelationMateriality is the |r| below which legs are treated as
	// independent.
	CorrelationMateriality float64
	// BaseMultiplier anchors the house payout curve.
	BaseMultiplier float64
	// Iterations for the Monte Carlo fallback.
	Iterations int
	// Seed for the fallback RNG. Zero means time-based.
	Seed int64
}

// DefaultConfig returns production parlay parameters
func DefaultConfig() Config {
	return Config{
		AdjustmentFactor:       0.25,
		MaxAdjustedProbability: 0.95,
		CorrelationMateriality: 0.1,
		BaseMultiplier:         2.0,
		Iterations:             20000,
	}
}

// Estimate is the full pricing picture for one candidate parlay.
type Estimate struct {
	IndependentProb             float64         `json:"independent_prob"`
	AdjustedProb                float64         `json:"adjusted_prob"`
	PayoutMultiplier            float64         `json:"payout_multiplier"`
	EVIndependent               decimal.Decimal `json:"ev_independent"`
	EVAdjusted                  decimal.Decimal `json:"ev_adjusted"`
	CorrelationAdjustmentFactor float64         `json:"correlation_adjustment_factor"`
}

// Simulator prices multi-leg parlays under leg correlation
type Simulator struct {
	cfg Config
	log *logrus.Entry
}

// NewSimulator creates a parlay simulator
func NewSimulator(cfg Config, logger *logrus.Logger) *Simulator {
	defaults := DefaultConfig()
	if cfg.AdjustmentFactor <= 0 {
		cfg.AdjustmentFactor = defaults.AdjustmentFactor
	}
	if cfg.MaxAdjustedProbability <= 0 {
		cfg.MaxAdjustedProbability = defaults.MaxAdjustedProbability
	}
	if cfg.CorrelationMateriality <= 0 {
		cfg.CorrelationMateriality = defaults.CorrelationMateriality
	}
	if cfg.BaseMultiplier <= 0 {
		cfg.BaseMultiplier = defaults.BaseMultiplier
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = defaults.Iterations
	}
	return &Simulator{
		cfg: cfg,
		log: logger.WithField("component", "parlay_simulator"),
	}
}

// ComputeIndependentProbability is the product of leg win probabilities.
func ComputeIndependentProbability(legs []Leg) float64 {
	prob := 1.0
	for _, leg := range legs {
		prob *= leg.WinProbability
	}
	return prob
}

// ApproximateCorrelationAdjustedProbability estimates the joint win
// probability accounting for leg correlation. When every pairwise |r| is
// below the materiality threshold it returns the independent probability
// unchanged. Otherwise a mean-correlation heuristic inflates the
// independent probability, falling back to a Gaussian-copula Monte Carlo
// simulation when the heuristic or the matrix is numerically unusable.
func (s *Simulator) ApproximateCorrelationAdjustedProbability(legs []Leg, matrix [][]float64) float64 {
	independent := ComputeIndependentProbability(legs)
	if len(legs) < 2 || matrix == nil {
		return independent
	}

	meanAbsR, material, usable := summarizeMatrix(matrix, len(legs), s.cfg.CorrelationMateriality)
	if !usable {
		s.log.WithField("legs", len(legs)).Warn("correlation matrix unusable, running Monte Carlo fallback")
		return s.simulateJointProbability(legs, matrix)
	}
	if !material {
		return independent
	}

	adjusted := independent * (1 + meanAbsR*s.cfg.AdjustmentFactor)
	if math.IsNaN(adjusted) || math.IsInf(adjusted, 0) {
		return s.simulateJointProbability(legs, matrix)
	}
	if adjusted > s.cfg.MaxAdjustedProbability {
		adjusted = s.cfg.MaxAdjustedProbability
	}
	return adjusted
}

// PayoutMultiplier is the house payout curve for a parlay: the base
// multiplier grows with the square root of the leg count, but never pays
// less than the fair product of the leg odds.
func (s *Simulator) PayoutMultiplier(legs []Leg) float64 {
	house := s.cfg.BaseMultiplier * math.Sqrt(float64(len(legs)))
	fair := 1.0
	for _, leg := range legs {
		fair *= leg.FairDecimalOdds
	}
	return math.Max(house, fair)
}

// EstimateParlayEV prices a parlay under both the independent and the
// correlation-adjusted probability models.
func (s *Simulator) EstimateParlayEV(legs []Leg, stake decimal.Decimal, matrix [][]float64) *Estimate {
	independent := ComputeIndependentProbability(legs)
	adjusted := s.ApproximateCorrelationAdjustedProbability(legs, matrix)
	multiplier := s.PayoutMultiplier(legs)

	return &Estimate{
		IndependentProb:             independent,
		AdjustedProb:                adjusted,
		PayoutMultiplier:            multiplier,
		EVIndependent:               expectedValue(stake, independent, multiplier),
		EVAdjusted:                  expectedValue(stake, adjusted, multiplier),
		CorrelationAdjustmentFactor: s.cfg.AdjustmentFactor,
	}
}

// expectedValue = stake * (prob * multiplier - 1)
func expectedValue(stake decimal.Decimal, prob, multiplier float64) decimal.Decimal {
	edge := decimal.NewFromFloat(prob).Mul(decimal.NewFromFloat(multiplier)).Sub(decimal.NewFromFloat(1))
	return stake.Mul(edge)
}

// summarizeMatrix scans the upper triangle for the mean pairwise |r|,
// whether any pair crosses the materiality threshold, and whether every
// entry is a finite valid correlation.
func summarizeMatrix(matrix [][]float64, n int, materiality float64) (meanAbsR float64, material, usable bool) {
	if len(matrix) < n {
		return 0, false, false
	}
	pairs := 0
	sum := 0.0
	for i := 0; i < n; i++ {
		if len(matrix[i]) < n {
			return 0, false, false
		}
		for j := i + 1; j < n; j++ {
			r := matrix[i][j]
			if math.IsNaN(r) || math.IsInf(r, 0) || r < -1 || r > 1 {
				return 0, false, false
			}
			abs := math.Abs(r)
			if abs >= materiality {
				material = true
			}
			sum += abs
			pairs++
		}
	}
	if pairs == 0 {
		return 0, false, true
	}
	return sum / float64(pairs), material, true
}

// simulateJointProbability estimates the joint win probability with a
// Gaussian copula: each leg wins when its correlated standard normal draw
// exceeds the z-threshold implied by its marginal probability.
func (s *Simulator) simulateJointProbability(legs []Leg, matrix [][]float64) float64 {
	n := len(legs)
	if len(matrix) < n {
		return ComputeIndependentProbability(legs)
	}
	for i := 0; i < n; i++ {
		if len(matrix[i]) < n {
			return ComputeIndependentProbability(legs)
		}
	}

	thresholds := make([]float64, n)
	for i, leg := range legs {
		p := leg.WinProbability
		if p <= 0 {
			return 0
		}
		if p >= 1 {
			p = 1 - 1e-9
		}
		// P(Z > z) = p
		thresholds[i] = inverseNormalCDF(1 - p)
	}

	safe := copyMatrix(matrix, n)
	for i := 0; i < n; i++ {
		safe[i][i] = 1
		for j := 0; j < n; j++ {
			r := safe[i][j]
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			if i != j {
				safe[i][j] = math.Max(-1, math.Min(1, r))
			}
		}
	}
	floored := floorEigenvalues(safe, minEigenvalue)
	chol, ok := cholesky(floored)
	if !ok {
		// the floored matrix should always factor; fall back to the
		// independent product if it somehow does not
		s.log.Warn("Cholesky factorization failed, assuming independence")
		return ComputeIndependentProbability(legs)
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	raw := make([]float64, n)
	hits := 0
	for iter := 0; iter < s.cfg.Iterations; iter++ {
		for i := range raw {
			raw[i] = rng.NormFloat64()
		}
		allWin := true
		for i := 0; i < n; i++ {
			z := 0.0
			for j := 0; j <= i; j++ {
				z += chol[i][j] * raw[j]
			}
			if z <= thresholds[i] {
				allWin = false
				break
			}
		}
		if allWin {
			hits++
		}
	}
	return float64(hits) / float64(s.cfg.Iterations)
}
