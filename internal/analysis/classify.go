package analysis

import "sales-dashboard/internal/models"

const (
	thresholdA = 0.80
	thresholdB = 0.95
)

// Classify assigns Pareto labels to rows already sorted by descending Value.
// A row is A while its cumulative share is <= 0.80, B while <= 0.95 and C
// otherwise. A single row is always A.
func Classify(rows []models.AggregateRow) (models.Classification, error) {
	cumulative := make([]float64, len(rows))
	var running float64
	for i, r := range rows {
		running += r.Value
		cumulative[i] = running
	}
	// The grand total is the final running sum, so the last share is exactly 1.
	total := running
	if len(rows) == 0 || total <= 0 {
		return models.Classification{}, insufficient("classify", "grand total is zero")
	}

	out := models.Classification{
		Rows:       make([]models.ClassifiedRow, len(rows)),
		GrandTotal: total,
	}
	for i, r := range rows {
		share := cumulative[i] / total
		out.Rows[i] = models.ClassifiedRow{
			AggregateRow:    r,
			CumulativeShare: share,
			Label:           label(share),
		}
	}
	if len(out.Rows) == 1 {
		out.Rows[0].Label = models.LabelA
	}

	out.Summary = summarize(out.Rows)
	return out, nil
}

func label(share float64) models.ClassificationLabel {
	switch {
	case share <= thresholdA:
		return models.LabelA
	case share <= thresholdB:
		return models.LabelB
	default:
		return models.LabelC
	}
}

func summarize(rows []models.ClassifiedRow) []models.ClassSummary {
	order := []models.ClassificationLabel{models.LabelA, models.LabelB, models.LabelC}
	summary := make([]models.ClassSummary, len(order))
	index := make(map[models.ClassificationLabel]int, len(order))
	for i, l := range order {
		summary[i].Label = l
		index[l] = i
	}

	for _, r := range rows {
		s := &summary[index[r.Label]]
		if s.Total == nil {
			s.Total = new(float64)
		}
		*s.Total += r.Value
		s.Count++
	}
	return summary
}
