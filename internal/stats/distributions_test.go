package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/prop-edge/internal/models"
)

func TestPoissonPMF(t *testing.T) {
	// P(X=0) for lambda=2 is e^-2
	assert.InDelta(t, math.Exp(-2), PoissonPMF(0, 2.0), 1e-12)
	// P(X=2) for lambda=2 is 2e^-2
	assert.InDelta(t, 2*math.Exp(-2), PoissonPMF(2, 2.0), 1e-12)
	assert.Equal(t, 0.0, PoissonPMF(-1, 2.0))
	assert.Equal(t, 0.0, PoissonPMF(3, 0))
}

func TestPoissonCDFSumsToOne(t *testing.T) {
	cdf := PoissonCDF(200, 5.0)
	assert.InDelta(t, 1.0, cdf, 1e-9)
	assert.True(t, PoissonCDF(4, 5.0) < PoissonCDF(5, 5.0))
}

func TestPoissonCDFInvalidRate(t *testing.T) {
	assert.Equal(t, NeutralProbability, PoissonCDF(3, -1.0))
	assert.Equal(t, NeutralProbability, PoissonCDF(3, math.NaN()))
}

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormalCDF(10, 10, 4), 1e-12)
	// one sigma above the mean
	assert.InDelta(t, 0.8413, NormalCDF(12, 10, 4), 1e-4)
	assert.Equal(t, NeutralProbability, NormalCDF(10, 10, 0))
}

func TestBinomialPMF(t *testing.T) {
	// fair coin, 4 flips, exactly 2 heads = 6/16
	assert.InDelta(t, 0.375, BinomialPMF(2, 4, 0.5), 1e-12)
	assert.Equal(t, 1.0, BinomialPMF(0, 5, 0.0))
	assert.Equal(t, 1.0, BinomialPMF(5, 5, 1.0))
	assert.Equal(t, 0.0, BinomialPMF(6, 5, 0.5))
}

func TestBinomialCDF(t *testing.T) {
	assert.InDelta(t, 0.5, BinomialCDF(1, 3, 0.5), 1e-12)
	assert.Equal(t, 1.0, BinomialCDF(10, 3, 0.5))
	assert.Equal(t, 0.0, BinomialCDF(-1, 3, 0.5))
	assert.Equal(t, NeutralProbability, BinomialCDF(1, 3, 1.5))
}

func TestFairLinePoissonMedianApprox(t *testing.T) {
	// lambda + 1/3 - 0.02/lambda for lambda > 1
	assert.InDelta(t, 25.0+1.0/3.0-0.02/25.0, FairLine(25.0, 25.0, models.DistributionPoisson), 1e-9)
	// small rates use the rate itself
	assert.Equal(t, 0.8, FairLine(0.8, 0.8, models.DistributionPoisson))
}

func TestFairLineSymmetricFamilies(t *testing.T) {
	assert.Equal(t, 72.5, FairLine(72.5, 400.0, models.DistributionNormal))
	assert.Equal(t, 6.0, FairLine(6.0, 9.0, models.DistributionNegBinomial))
}

func TestProbOverLineDiscrete(t *testing.T) {
	// half-point line: P(X > 4.5) = 1 - P(X <= 4)
	got := ProbOverLine(4.5, 5.0, 5.0, models.DistributionPoisson)
	assert.InDelta(t, 1-PoissonCDF(4, 5.0), got, 1e-12)

	// whole-number line floors the same way
	got = ProbOverLine(4.0, 5.0, 5.0, models.DistributionPoisson)
	assert.InDelta(t, 1-PoissonCDF(4, 5.0), got, 1e-12)
}

func TestProbOverLineNormal(t *testing.T) {
	assert.InDelta(t, 0.5, ProbOverLine(72.5, 72.5, 400.0, models.DistributionNormal), 1e-12)
	assert.True(t, ProbOverLine(60.0, 72.5, 400.0, models.DistributionNormal) > 0.5)
}

func TestProbOverLineNegBinomialDegradesToPoisson(t *testing.T) {
	// variance == mean has no over-dispersion, so the Poisson CDF applies
	nb := ProbOverLine(4.5, 5.0, 5.0, models.DistributionNegBinomial)
	po := ProbOverLine(4.5, 5.0, 5.0, models.DistributionPoisson)
	assert.InDelta(t, po, nb, 1e-12)
}

func TestProbOverLineNegBinomialOverdispersed(t *testing.T) {
	// more spread means more mass above a high line
	nb := ProbOverLine(9.5, 5.0, 15.0, models.DistributionNegBinomial)
	po := ProbOverLine(9.5, 5.0, 5.0, models.DistributionPoisson)
	assert.True(t, nb > po)
}

func TestProbOverLineUnknownFamily(t *testing.T) {
	assert.Equal(t, NeutralProbability, ProbOverLine(4.5, 5.0, 5.0, models.DistributionFamily("WEIBULL")))
}

func TestBinomialFromMoments(t *testing.T) {
	// mean=np=5, variance=np(1-p)=2.5 recovers p=0.5, n=10
	n, p, ok := binomialFromMoments(5.0, 2.5)
	assert.True(t, ok)
	assert.Equal(t, 10, n)
	assert.InDelta(t, 0.5, p, 1e-12)

	_, _, ok = binomialFromMoments(5.0, 6.0)
	assert.False(t, ok)
	_, _, ok = binomialFromMoments(0, 0)
	assert.False(t, ok)
}
