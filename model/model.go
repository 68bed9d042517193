package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Observation is one encoded row of the regression problem: the category
// rank (1..K in the declared level order), the continuous measurement and
// a positive weight (1 when unweighted).
type Observation struct {
	Rank   int
	Value  float64
	Weight float64
}

// FittedModel holds the result of one weighted ordinal probit fit:
// P(rank <= j | x) = Phi(Thresholds[j-1] - Slope*x).
//
// Cov is the covariance matrix over the full coefficient vector
// (Thresholds..., Slope), obtained from the inverse of the negative
// Hessian of the weighted log-likelihood at the maximum.
//
// CutProbs are the weighted cumulative category proportions below each
// cutpoint; they fix the probit-space coordinate of each cutpoint and are
// treated as known constants by the percentile transform.
//
// A FittedModel is created fresh per call and never mutated after the fit.
type FittedModel struct {
	Thresholds []float64
	Slope      float64
	Cov        *mat.SymDense
	CutProbs   []float64
	Iterations int
	LogLik     float64
}

// NumParams is the length of the fitted coefficient vector.
func (m *FittedModel) NumParams() int {
	return len(m.Thresholds) + 1
}

// PercentileEstimate is the estimated continuous-scale value at one
// percentile of the latent variable, with its delta-method standard error.
type PercentileEstimate struct {
	Percentile int     `json:"percentile"`
	Estimate   float64 `json:"estimate"`
	StdErr     float64 `json:"std_error"`
}

// PercentileDifference is the signed difference between the estimates at
// two percentiles: estimate(Percentiles[0]) - estimate(Percentiles[1]).
type PercentileDifference struct {
	Percentiles [2]int  `json:"percentiles"`
	Difference  float64 `json:"difference"`
	StdErr      float64 `json:"std_error"`
}

func (d *PercentileDifference) DebugString() string {
	return fmt.Sprintf("p%v-p%v: %v (se %v)",
		d.Percentiles[0], d.Percentiles[1], d.Difference, d.StdErr)
}
