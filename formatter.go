package perccalc

import (
	"context"

	"github.com/briatte/perccalc/model"
)

// column names of formatted result tables
const (
	ColPercentile = "percentile"
	ColEstimate   = "estimate"
	ColStdErr     = "std_error"
	ColP1         = "p1"
	ColP2         = "p2"
	ColDifference = "difference"
)

// EstimatePercentileDifferenceTable is EstimatePercentileDifference with
// the result shaped as a one-row table (p1, p2, difference, std_error).
func EstimatePercentileDifferenceTable(ctx context.Context, data *model.Table,
	categoricalVar, continuousVar string, percentiles [2]int,
	weightsVar string, levels []string) (*model.Table, error) {
	diff, err := EstimatePercentileDifference(ctx, data,
		categoricalVar, continuousVar, percentiles, weightsVar, levels)
	if err != nil {
		return nil, err
	}
	return FormatDifference(diff), nil
}

// FormatDifference shapes a difference result as a one-row table.
// AddColumn only fails on duplicate names or misaligned lengths, neither
// of which can occur on a table assembled here.
func FormatDifference(d *model.PercentileDifference) *model.Table {
	t := model.NewTable()
	_ = t.AddColumn(ColP1, model.FloatColumn{float64(d.Percentiles[0])})
	_ = t.AddColumn(ColP2, model.FloatColumn{float64(d.Percentiles[1])})
	_ = t.AddColumn(ColDifference, model.FloatColumn{d.Difference})
	_ = t.AddColumn(ColStdErr, model.FloatColumn{d.StdErr})
	return t
}

// FormatDistribution shapes distribution rows as a table with one row per
// percentile.
func FormatDistribution(rows []model.PercentileEstimate) *model.Table {
	ps := make(model.FloatColumn, len(rows))
	ests := make(model.FloatColumn, len(rows))
	ses := make(model.FloatColumn, len(rows))
	for i, row := range rows {
		ps[i] = float64(row.Percentile)
		ests[i] = row.Estimate
		ses[i] = row.StdErr
	}
	t := model.NewTable()
	_ = t.AddColumn(ColPercentile, ps)
	_ = t.AddColumn(ColEstimate, ests)
	_ = t.AddColumn(ColStdErr, ses)
	return t
}
