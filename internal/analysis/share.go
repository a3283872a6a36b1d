package analysis

import "sales-dashboard/internal/models"

const othersLabel = "Otros"

// TopShare keeps the first n of rows sorted descending and folds the rest
// into a single "Otros" slice. Each slice carries its share of the total.
func TopShare(sorted []models.AggregateRow, n int) (models.TopShare, error) {
	var total float64
	for _, r := range sorted {
		total += r.Value
	}
	if total <= 0 {
		return models.TopShare{}, insufficient("top share", "total is zero")
	}

	top := Top(sorted, n)
	out := models.TopShare{Top: top, Total: total}
	var topSum float64
	for _, r := range top {
		topSum += r.Value
		out.Slices = append(out.Slices, models.ShareSlice{
			Label:    r.Key.String(),
			Sales:    r.Value,
			SharePct: r.Value / total * 100,
		})
	}
	others := total - topSum
	out.Slices = append(out.Slices, models.ShareSlice{
		Label:    othersLabel,
		Sales:    others,
		SharePct: others / total * 100,
	})
	return out, nil
}
