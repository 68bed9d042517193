package ordinal

import (
	"fmt"
	"math"

	"github.com/briatte/perccalc/common"
	"github.com/briatte/perccalc/model"
	"github.com/briatte/perccalc/utils"
	"gonum.org/v1/gonum/floats"
)

// Design is the encoded ordinal regression problem: observations carry
// ranks 1..K over the observed levels, weights are normalized to mean 1,
// and CutProbs holds the weighted cumulative proportion of observations
// at or below each of the K-1 cutpoints (strictly increasing in (0,1)).
type Design struct {
	Obs      []model.Observation
	Levels   []string
	CutProbs []float64
}

func (d *Design) NumLevels() int {
	return len(d.Levels)
}

// Indicators returns the row of K-1 cumulative binary responses for a
// rank: entry j-1 is 1 when the rank exceeds cutpoint j.
func (d *Design) Indicators(rank int) []float64 {
	res := make([]float64, d.NumLevels()-1)
	for j := 1; j < d.NumLevels(); j++ {
		if rank > j {
			res[j-1] = 1
		}
	}
	return res
}

// Encode maps category labels to integer ranks against the declared level
// order and assembles the weighted design. Rows with a missing label or a
// NaN value are dropped before anything else. Ranks are compressed over
// the levels actually observed, so every cutpoint has observations on
// both sides.
//
// Weights are rescaled to mean 1, so a constant weight vector reproduces
// the unweighted fit exactly, standard errors included.
func Encode(labels []string, values, weights []float64, levels []string) (*Design, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("categorical and continuous columns have %v and %v rows: %w",
			len(labels), len(values), common.ErrorColumn)
	}
	if len(levels) == 0 {
		return nil, common.ErrorOrdering
	}
	if weights == nil {
		weights = utils.Ones(len(labels))
	} else if len(weights) != len(labels) {
		return nil, fmt.Errorf("%v weights for %v rows: %w",
			len(weights), len(labels), common.ErrorWeight)
	}

	declared := make(map[string]int, len(levels))
	for i, level := range levels {
		declared[level] = i
	}

	// drop missing rows, keep declared-order index per row
	keptIdx, keptValues, keptWeights := []int{}, []float64{}, []float64{}
	for i, label := range labels {
		if label == "" || math.IsNaN(values[i]) {
			continue
		}
		idx, ok := declared[label]
		if !ok {
			return nil, fmt.Errorf("value %q: %w", label, common.ErrorUnknownLevel)
		}
		w := weights[i]
		if !(w > 0) || math.IsInf(w, 1) {
			return nil, fmt.Errorf("weight %v at row %v: %w", w, i, common.ErrorWeight)
		}
		keptIdx = append(keptIdx, idx)
		keptValues = append(keptValues, values[i])
		keptWeights = append(keptWeights, w)
	}

	// compress ranks over observed levels, preserving the declared order
	observed := map[int]bool{}
	for _, idx := range keptIdx {
		observed[idx] = true
	}
	rankOf := make(map[int]int, len(observed))
	observedLevels := []string{}
	for i, level := range levels {
		if observed[i] {
			observedLevels = append(observedLevels, level)
			rankOf[i] = len(observedLevels)
		}
	}

	k := len(observedLevels)
	if k < 2 {
		return nil, fmt.Errorf("observed %v: %w", k, common.ErrorInsufficientLevels)
	}
	if len(keptIdx) < k {
		return nil, fmt.Errorf("%v rows for %v parameters: %w",
			len(keptIdx), k, common.ErrorInsufficientData)
	}

	total := floats.Sum(keptWeights)
	scale := float64(len(keptWeights)) / total

	obs := make([]model.Observation, len(keptIdx))
	massBelow := make([]float64, k)
	for i, idx := range keptIdx {
		rank := rankOf[idx]
		obs[i] = model.Observation{
			Rank:   rank,
			Value:  keptValues[i],
			Weight: keptWeights[i] * scale,
		}
		massBelow[rank-1] += keptWeights[i]
	}

	cutProbs := make([]float64, k-1)
	cum := 0.0
	for j := 0; j < k-1; j++ {
		cum += massBelow[j]
		cutProbs[j] = cum / total
	}

	return &Design{
		Obs:      obs,
		Levels:   observedLevels,
		CutProbs: cutProbs,
	}, nil
}
