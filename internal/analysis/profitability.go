package analysis

import "sales-dashboard/internal/models"

// Margin returns (sales-cost)/cost as a percentage. It is undefined when cost
// is not positive.
func Margin(sales, cost float64) (float64, bool) {
	if cost <= 0 {
		return 0, false
	}
	return (sales - cost) / cost * 100, true
}

// Profitability derives margins per group. Groups with cost <= 0 are dropped,
// not reported as zero.
func Profitability(rows []models.AggregateRow) []models.ProfitabilityRow {
	out := make([]models.ProfitabilityRow, 0, len(rows))
	for _, r := range rows {
		m, ok := Margin(r.Sales, r.Cost)
		if !ok {
			continue
		}
		out = append(out, models.ProfitabilityRow{
			Key:       r.Key,
			Sales:     r.Sales,
			Cost:      r.Cost,
			MarginPct: m,
		})
	}
	return out
}

// LeastProfitable returns the first row with the minimum margin.
func LeastProfitable(rows []models.ProfitabilityRow) (models.ProfitabilityRow, error) {
	if len(rows) == 0 {
		return models.ProfitabilityRow{}, insufficient("least profitable", "no group with positive cost")
	}
	worst := rows[0]
	for _, r := range rows[1:] {
		if r.MarginPct < worst.MarginPct {
			worst = r
		}
	}
	return worst, nil
}

// ProfitabilityReport bundles the margin rows with the least profitable one.
func ProfitabilityReport(rows []models.AggregateRow) (models.ProfitabilityReport, error) {
	prof := Profitability(rows)
	worst, err := LeastProfitable(prof)
	if err != nil {
		return models.ProfitabilityReport{}, err
	}
	return models.ProfitabilityReport{Rows: prof, Worst: worst}, nil
}
