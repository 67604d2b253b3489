package stats

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yourusername/prop-edge/internal/models"
)

// log is the package-level entry used when a caller feeds the math layer
// degenerate parameters. The distribution helpers never error or panic; they
// log the anomaly and fall back to a neutral value so a single bad prediction
// cannot take down a sweep.
var log = logrus.WithField("component", "stats")

// NeutralProbability is returned whenever a probability cannot be computed
// from the supplied parameters.
const NeutralProbability = 0.5

// PoissonPMF returns P(X = k) for X ~ Poisson(lambda).
func PoissonPMF(k int, lambda float64) float64 {
	if k < 0 || lambda <= 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return 0
	}
	return distuv.Poisson{Lambda: lambda}.Prob(float64(k))
}

// PoissonCDF returns P(X <= k) for X ~ Poisson(lambda).
func PoissonCDF(k int, lambda float64) float64 {
	if lambda <= 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		log.WithField("lambda", lambda).Warn("poisson cdf called with non-positive rate")
		return NeutralProbability
	}
	if k < 0 {
		return 0
	}
	return clampProbability(distuv.Poisson{Lambda: lambda}.CDF(float64(k)))
}

// NormalCDF returns P(X <= x) for X ~ Normal(mean, variance).
func NormalCDF(x, mean, variance float64) float64 {
	if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
		log.WithFields(logrus.Fields{"mean": mean, "variance": variance}).Warn("normal cdf called with non-positive variance")
		return NeutralProbability
	}
	return distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)}.CDF(x)
}

// BinomialPMF returns P(X = k) for X ~ Binomial(n, p).
func BinomialPMF(k, n int, p float64) float64 {
	if k < 0 || k > n || n < 0 || p < 0 || p > 1 {
		return 0
	}
	if p == 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	if p == 1 {
		if k == n {
			return 1
		}
		return 0
	}
	return distuv.Binomial{N: float64(n), P: p}.Prob(float64(k))
}

// BinomialCDF returns P(X <= k) for X ~ Binomial(n, p).
func BinomialCDF(k, n int, p float64) float64 {
	if n < 0 || p < 0 || p > 1 || math.IsNaN(p) {
		log.WithFields(logrus.Fields{"n": n, "p": p}).Warn("binomial cdf called with invalid parameters")
		return NeutralProbability
	}
	if k < 0 {
		return 0
	}
	if k >= n {
		return 1
	}
	if p == 0 {
		return 1
	}
	if p == 1 {
		return 0
	}
	return clampProbability(distuv.Binomial{N: float64(n), P: p}.CDF(float64(k)))
}

// negBinomialCDF returns P(X <= k) for a negative binomial parameterised by
// mean and variance. When the variance does not exceed the mean there is no
// valid dispersion parameter, so the computation degrades to a Poisson with
// the same mean.
func negBinomialCDF(k int, mean, variance float64) float64 {
	if mean <= 0 {
		log.WithField("mean", mean).Warn("negative binomial cdf called with non-positive mean")
		return NeutralProbability
	}
	if variance <= mean {
		return PoissonCDF(k, mean)
	}
	if k < 0 {
		return 0
	}

	// P(X <= k) = I_p(r, k+1), the regularized incomplete beta function,
	// with r recovered from the overdispersion and p = r/(r+mean).
	r := mean * mean / (variance - mean)
	p := r / (r + mean)
	return clampProbability(mathext.RegIncBeta(r, float64(k)+1, p))
}

// FairLine returns the line at which over and under are (approximately)
// equally likely for the given distribution.
//
// For the Poisson the median is approximated by lambda + 1/3 - 0.02/lambda
// (accurate to within 0.5 for lambda > 1). For the negative binomial the mean
// is used as a documented approximation of the median; for symmetric families
// mean and median coincide.
func FairLine(mean, variance float64, family models.DistributionFamily) float64 {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		log.WithFields(logrus.Fields{"mean": mean, "family": family}).Warn("fair line requested with invalid mean")
		return 0
	}
	switch family {
	case models.DistributionPoisson:
		if mean > 1 {
			return mean + 1.0/3.0 - 0.02/mean
		}
		return mean
	default:
		return mean
	}
}

// ProbOverLine returns P(X > line). Discrete families evaluate
// 1 - CDF(floor(line)); the normal family evaluates the survival function
// directly. Unknown families return the neutral probability.
func ProbOverLine(line, mean, variance float64, family models.DistributionFamily) float64 {
	if math.IsNaN(line) || math.IsNaN(mean) || math.IsNaN(variance) {
		log.WithFields(logrus.Fields{"line": line, "mean": mean, "variance": variance}).Warn("prob over line called with NaN input")
		return NeutralProbability
	}

	switch family {
	case models.DistributionPoisson:
		return clampProbability(1 - PoissonCDF(int(math.Floor(line)), mean))
	case models.DistributionNormal:
		return clampProbability(1 - NormalCDF(line, mean, variance))
	case models.DistributionNegBinomial:
		return clampProbability(1 - negBinomialCDF(int(math.Floor(line)), mean, variance))
	case models.DistributionBinomial:
		n, p, ok := binomialFromMoments(mean, variance)
		if !ok {
			return NeutralProbability
		}
		return clampProbability(1 - BinomialCDF(int(math.Floor(line)), n, p))
	default:
		log.WithField("family", family).Warn("prob over line requested for unknown distribution family")
		return NeutralProbability
	}
}

// binomialFromMoments recovers (n, p) from a mean and variance. Binomial
// moments satisfy variance = mean * (1 - p), so p = 1 - variance/mean and
// n = mean / p rounded to the nearest trial count.
func binomialFromMoments(mean, variance float64) (int, float64, bool) {
	if mean <= 0 || variance < 0 || variance >= mean {
		log.WithFields(logrus.Fields{"mean": mean, "variance": variance}).Warn("binomial moments unrecoverable")
		return 0, 0, false
	}
	p := 1 - variance/mean
	if p < 0.001 {
		p = 0.001
	}
	if p > 0.999 {
		p = 0.999
	}
	n := int(math.Round(mean / p))
	if n < 1 {
		n = 1
	}
	return n, p, true
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return NeutralProbability
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
