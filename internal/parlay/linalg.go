package parlay

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minEigenvalue is the floor applied to correlation matrix eigenvalues
// before factorization; matrices assembled from independently-upserted
// pairwise records are frequently slightly indefinite.
const minEigenvalue = 1e-6

var unitNormal = distuv.Normal{Mu: 0, Sigma: 1}

// inverseNormalCDF returns the standard normal quantile of p.
func inverseNormalCDF(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	return unitNormal.Quantile(p)
}

// copyMatrix returns the n x n top-left block of m.
func copyMatrix(m [][]float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		copy(out[i], m[i][:n])
	}
	return out
}

// symFromSlice builds a SymDense from the upper triangle of m, averaging
// with the lower triangle so tiny asymmetries cannot survive.
func symFromSlice(m [][]float64, n int) *mat.SymDense {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m[i][j]+m[j][i])/2)
		}
	}
	return sym
}

// floorEigenvalues forces a symmetric matrix positive definite by
// replacing eigenvalues below the floor and renormalizing the diagonal
// back to 1 so the result is still a correlation matrix.
func floorEigenvalues(m [][]float64, floor float64) [][]float64 {
	n := len(m)

	var eig mat.EigenSym
	if !eig.Factorize(symFromSlice(m, n), true) {
		return copyMatrix(m, n)
	}

	values := eig.Values(nil)
	clipped := false
	for i, v := range values {
		if v < floor {
			values[i] = floor
			clipped = true
		}
	}
	if !clipped {
		return m
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// reconstruct V * diag(values) * V^T
	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vectors.At(i, j)*values[j])
		}
	}
	var rebuilt mat.Dense
	rebuilt.Mul(scaled, vectors.T())

	// renormalize to unit diagonal
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			denom := math.Sqrt(rebuilt.At(i, i) * rebuilt.At(j, j))
			if denom <= 0 {
				out[i][j] = 0
				continue
			}
			out[i][j] = rebuilt.At(i, j) / denom
		}
		out[i][i] = 1
	}
	return out
}

// cholesky returns the lower-triangular factor L with A = L * L^T, or
// false if the matrix is not positive definite.
func cholesky(m [][]float64) ([][]float64, bool) {
	n := len(m)

	var chol mat.Cholesky
	if !chol.Factorize(symFromSlice(m, n)) {
		return nil, false
	}

	var lower mat.TriDense
	chol.LTo(&lower)

	l := make([][]float64, n)
	for i := 0; i < n; i++ {
		l[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			l[i][j] = lower.At(i, j)
		}
	}
	return l, true
}
