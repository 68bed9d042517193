package ordinal

import (
	"fmt"
	"math"

	"github.com/briatte/perccalc/common"
	"github.com/briatte/perccalc/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Fit estimates the shared-slope ordered probit model
//
//	P(rank <= j | x) = Phi(alpha_j - beta*x), alpha_1 < ... < alpha_{K-1}
//
// by Newton-Raphson on the weighted log-likelihood, with step halving
// whenever a full step fails to improve it. The coefficient vector is
// theta = (alpha_1, ..., alpha_{K-1}, beta); the returned covariance is
// the inverse of the negative Hessian at the maximum.
func Fit(design *Design) (*model.FittedModel, error) {
	if err := checkSeparation(design); err != nil {
		return nil, err
	}

	k := design.NumLevels()
	nParams := k

	theta := make([]float64, nParams)
	for j, q := range design.CutProbs {
		theta[j] = distuv.UnitNormal.Quantile(q)
	}

	ll := logLik(design, theta)
	if math.IsInf(ll, -1) {
		return nil, fmt.Errorf("zero-probability cell at starting values: %w", common.ErrorConvergence)
	}

	for iter := 1; iter <= MaxIterations; iter++ {
		grad, hess := scoreAndHessian(design, theta)

		negH := mat.NewSymDense(nParams, nil)
		for i := 0; i < nParams; i++ {
			for j := i; j < nParams; j++ {
				negH.SetSym(i, j, -hess.At(i, j))
			}
		}

		var chol mat.Cholesky
		if !chol.Factorize(negH) {
			return nil, fmt.Errorf("information matrix not positive definite: %w", common.ErrorSeparation)
		}

		var step mat.VecDense
		if err := chol.SolveVecTo(&step, grad); err != nil {
			return nil, fmt.Errorf("newton step failed: %w", common.ErrorConvergence)
		}

		// step halving until the likelihood improves
		scale := 1.0
		next := make([]float64, nParams)
		var nextLL float64
		halved := 0
		for {
			for i := range theta {
				next[i] = theta[i] + scale*step.AtVec(i)
			}
			nextLL = logLik(design, next)
			if !math.IsInf(nextLL, -1) && nextLL >= ll {
				break
			}
			halved++
			if halved > maxHalvings {
				return nil, fmt.Errorf("no likelihood improvement after %v halvings: %w",
					maxHalvings, common.ErrorConvergence)
			}
			scale /= 2
		}

		maxChange := 0.0
		for i := range theta {
			maxChange = math.Max(maxChange, math.Abs(next[i]-theta[i]))
		}
		copy(theta, next)
		ll = nextLL

		for _, v := range theta {
			if math.Abs(v) > coefBound {
				return nil, fmt.Errorf("coefficient diverged past %v: %w", coefBound, common.ErrorSeparation)
			}
		}

		if maxChange < ConvergenceTol {
			cov, err := covariance(design, theta)
			if err != nil {
				return nil, err
			}
			thresholds := make([]float64, k-1)
			copy(thresholds, theta[:k-1])
			cutProbs := make([]float64, k-1)
			copy(cutProbs, design.CutProbs)
			return &model.FittedModel{
				Thresholds: thresholds,
				Slope:      theta[k-1],
				Cov:        cov,
				CutProbs:   cutProbs,
				Iterations: iter,
				LogLik:     ll,
			}, nil
		}
	}

	return nil, fmt.Errorf("after %v iterations: %w", MaxIterations, common.ErrorConvergence)
}

// checkSeparation fails when, at any cutpoint, the continuous values on
// the two sides of the cut occupy disjoint ranges: the indicator is then
// perfectly predicted and the likelihood has no finite maximum.
func checkSeparation(design *Design) error {
	for j := 1; j < design.NumLevels(); j++ {
		loMin, loMax := math.Inf(1), math.Inf(-1)
		hiMin, hiMax := math.Inf(1), math.Inf(-1)
		for _, o := range design.Obs {
			if o.Rank <= j {
				loMin = math.Min(loMin, o.Value)
				loMax = math.Max(loMax, o.Value)
			} else {
				hiMin = math.Min(hiMin, o.Value)
				hiMax = math.Max(hiMax, o.Value)
			}
		}
		if loMax < hiMin || hiMax < loMin {
			return fmt.Errorf("cutpoint %v: %w", j, common.ErrorSeparation)
		}
	}
	return nil
}

// cellBounds returns the linear predictors at the two cuts enclosing a
// rank; hasUpper/hasLower are false at the boundary categories.
func cellBounds(theta []float64, k, rank int, x float64) (a, b float64, hasUpper, hasLower bool) {
	beta := theta[k-1]
	if rank < k {
		a = theta[rank-1] - beta*x
		hasUpper = true
	}
	if rank > 1 {
		b = theta[rank-2] - beta*x
		hasLower = true
	}
	return a, b, hasUpper, hasLower
}

func logLik(design *Design, theta []float64) float64 {
	k := design.NumLevels()
	ll := 0.0
	for _, o := range design.Obs {
		a, b, hasUpper, hasLower := cellBounds(theta, k, o.Rank, o.Value)
		upper, lower := 1.0, 0.0
		if hasUpper {
			upper = distuv.UnitNormal.CDF(a)
		}
		if hasLower {
			lower = distuv.UnitNormal.CDF(b)
		}
		p := upper - lower
		if p <= 0 {
			return math.Inf(-1)
		}
		ll += o.Weight * math.Log(p)
	}
	return ll
}

// scoreAndHessian accumulates the weighted score vector and observed
// Hessian of the log-likelihood at theta. Derivatives follow from
// d/dz Phi(z) = phi(z) and d/dz phi(z) = -z*phi(z); theta must have a
// finite log-likelihood so every cell probability is positive.
func scoreAndHessian(design *Design, theta []float64) (*mat.VecDense, *mat.Dense) {
	k := design.NumLevels()
	nParams := k
	ib := k - 1 // slope index

	grad := mat.NewVecDense(nParams, nil)
	hess := mat.NewDense(nParams, nParams, nil)
	add := func(i, j int, v float64) {
		hess.Set(i, j, hess.At(i, j)+v)
		if i != j {
			hess.Set(j, i, hess.At(j, i)+v)
		}
	}

	for _, o := range design.Obs {
		a, b, hasUpper, hasLower := cellBounds(theta, k, o.Rank, o.Value)
		upper, lower := 1.0, 0.0
		var u, v float64
		if hasUpper {
			upper = distuv.UnitNormal.CDF(a)
			u = distuv.UnitNormal.Prob(a)
		}
		if hasLower {
			lower = distuv.UnitNormal.CDF(b)
			v = distuv.UnitNormal.Prob(b)
		}
		p := upper - lower

		w, x := o.Weight, o.Value
		su, sv := u/p, v/p

		// curvature pieces w.r.t. the two linear predictors
		haa := -a*su - su*su
		hbb := b*sv - sv*sv
		hab := su * sv

		iu, il := o.Rank-1, o.Rank-2

		if hasUpper {
			grad.SetVec(iu, grad.AtVec(iu)+w*su)
			add(iu, iu, w*haa)
			add(iu, ib, -w*x*(haa+hab))
		}
		if hasLower {
			grad.SetVec(il, grad.AtVec(il)-w*sv)
			add(il, il, w*hbb)
			add(il, ib, -w*x*(hbb+hab))
		}
		if hasUpper && hasLower {
			add(iu, il, w*hab)
		}
		grad.SetVec(ib, grad.AtVec(ib)-w*x*(su-sv))
		add(ib, ib, w*x*x*(haa+2*hab+hbb))
	}

	return grad, hess
}

func covariance(design *Design, theta []float64) (*mat.SymDense, error) {
	nParams := design.NumLevels()
	_, hess := scoreAndHessian(design, theta)

	negH := mat.NewSymDense(nParams, nil)
	for i := 0; i < nParams; i++ {
		for j := i; j < nParams; j++ {
			negH.SetSym(i, j, -hess.At(i, j))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(negH) {
		return nil, fmt.Errorf("information matrix not positive definite at optimum: %w", common.ErrorSeparation)
	}
	cov := mat.NewSymDense(nParams, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("covariance inversion failed: %w", common.ErrorConvergence)
	}
	return cov, nil
}
