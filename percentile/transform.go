package percentile

import (
	"fmt"
	"math"

	"github.com/briatte/perccalc/common"
	"github.com/briatte/perccalc/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// slope magnitudes below this leave the latent scale undefined
const slopeFloor = 1e-12

// Value maps a percentile of the latent variable to the continuous scale
// and returns the estimate with its gradient w.r.t. the fitted
// coefficient vector (thresholds..., slope).
//
// Cutpoint j sits at z_j = Phi^-1(q_j) in probit space and at
// t_j = alpha_j / slope on the continuous scale. The target percentile is
// mapped to z = Phi^-1(p/100) and linearly interpolated between the
// bracketing cutpoints in probit space. Percentiles outside the fitted
// cutpoints extrapolate from the nearest two; such estimates are defined
// and finite but low-confidence. With a single cutpoint (two categories)
// the line through it with slope 1/beta is used.
func Value(m *model.FittedModel, p float64) (float64, *mat.VecDense, error) {
	if !(p > 0 && p < 100) {
		return 0, nil, fmt.Errorf("percentile %v: %w", p, common.ErrorInvalidPercentile)
	}
	beta := m.Slope
	if math.Abs(beta) < slopeFloor {
		return 0, nil, fmt.Errorf("degenerate fit, slope is numerically zero: %w", common.ErrorConvergence)
	}

	z := distuv.UnitNormal.Quantile(p / 100)
	nCuts := len(m.Thresholds)
	grad := mat.NewVecDense(m.NumParams(), nil)

	if nCuts == 1 {
		est := (m.Thresholds[0] + z - distuv.UnitNormal.Quantile(m.CutProbs[0])) / beta
		grad.SetVec(0, 1/beta)
		grad.SetVec(1, -est/beta)
		return est, grad, nil
	}

	zs := make([]float64, nCuts)
	for j, q := range m.CutProbs {
		zs[j] = distuv.UnitNormal.Quantile(q)
	}

	// bracketing pair, clamped to the end pairs for extrapolation
	j := 0
	for j < nCuts-2 && z > zs[j+1] {
		j++
	}

	lambda := (z - zs[j]) / (zs[j+1] - zs[j])
	est := ((1-lambda)*m.Thresholds[j] + lambda*m.Thresholds[j+1]) / beta

	grad.SetVec(j, (1-lambda)/beta)
	grad.SetVec(j+1, lambda/beta)
	grad.SetVec(nCuts, -est/beta)
	return est, grad, nil
}

// Estimate computes the continuous-scale value at percentile p with its
// delta-method standard error sqrt(grad' Cov grad).
func Estimate(m *model.FittedModel, p int) (*model.PercentileEstimate, error) {
	est, grad, err := Value(m, float64(p))
	if err != nil {
		return nil, err
	}
	variance := mat.Inner(grad, m.Cov, grad)
	return &model.PercentileEstimate{
		Percentile: p,
		Estimate:   est,
		StdErr:     math.Sqrt(math.Max(variance, 0)),
	}, nil
}
