package percentile

import (
	"fmt"
	"math"

	"github.com/briatte/perccalc/common"
	"github.com/briatte/perccalc/model"
	"gonum.org/v1/gonum/mat"
)

// Difference estimates est(p1) - est(p2) with its standard error. Both
// estimates derive from the same fitted coefficients, so the variance of
// the difference carries the cross-covariance term:
//
//	Var = g1' Cov g1 + g2' Cov g2 - 2 * g1' Cov g2
//
// The order of p1 and p2 is caller-significant.
func Difference(m *model.FittedModel, p1, p2 int) (*model.PercentileDifference, error) {
	if p1 == p2 {
		return nil, fmt.Errorf("percentiles (%v, %v) are equal: %w", p1, p2, common.ErrorInvalidPercentile)
	}

	est1, grad1, err := Value(m, float64(p1))
	if err != nil {
		return nil, err
	}
	est2, grad2, err := Value(m, float64(p2))
	if err != nil {
		return nil, err
	}

	variance := mat.Inner(grad1, m.Cov, grad1) +
		mat.Inner(grad2, m.Cov, grad2) -
		2*mat.Inner(grad1, m.Cov, grad2)

	return &model.PercentileDifference{
		Percentiles: [2]int{p1, p2},
		Difference:  est1 - est2,
		StdErr:      math.Sqrt(math.Max(variance, 0)),
	}, nil
}
