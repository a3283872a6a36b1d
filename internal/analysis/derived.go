package analysis

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"sales-dashboard/internal/models"
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthName returns the Spanish calendar name for month 1..12.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return strconv.Itoa(month)
	}
	return monthNames[month-1]
}

type MonthlyTotal struct {
	Year  int
	Month int
	Value float64
}

func (m MonthlyTotal) Period() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// MonthlyTotals sums net sales per (year, month) in chronological order.
func MonthlyTotals(ds models.Dataset) []MonthlyTotal {
	rows := Aggregate(ds, Spec{By: []Dimension{Year, Month}, Measure: NetSales, Func: Sum})
	out := make([]MonthlyTotal, len(rows))
	for i, r := range rows {
		y, _ := strconv.Atoi(r.Key[0])
		m, _ := strconv.Atoi(r.Key[1])
		out[i] = MonthlyTotal{Year: y, Month: m, Value: r.Value}
	}
	return out
}

func MonthlySeries(totals []MonthlyTotal) []SeriesPoint {
	out := make([]SeriesPoint, len(totals))
	for i, t := range totals {
		out[i] = SeriesPoint{Period: t.Period(), Value: t.Value}
	}
	return out
}

// PercentChange computes (v[t]-v[t-1])/v[t-1]*100. The first point has no
// value, and neither does any point whose predecessor is zero.
func PercentChange(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		change := (values[i] - prev) / prev * 100
		out[i] = &change
	}
	return out
}

// AverageChange is the mean of the defined changes, nil when there are none.
func AverageChange(changes []*float64) *float64 {
	var defined []float64
	for _, c := range changes {
		if c != nil {
			defined = append(defined, *c)
		}
	}
	if len(defined) == 0 {
		return nil
	}
	avg := stat.Mean(defined, nil)
	return &avg
}

func GrowthSeries(totals []MonthlyTotal) models.GrowthSeries {
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.Value
	}
	changes := PercentChange(values)

	series := models.GrowthSeries{Points: make([]models.GrowthPoint, len(totals))}
	for i, t := range totals {
		series.Points[i] = models.GrowthPoint{
			Period:    t.Period(),
			Sales:     t.Value,
			ChangePct: changes[i],
		}
	}
	series.AveragePct = AverageChange(changes)
	return series
}

// YearOverYear returns the growth from one annual total to another.
func YearOverYear(totals map[int]float64, from, to int) (float64, error) {
	base, ok := totals[from]
	if !ok {
		return 0, insufficient("year over year", fmt.Sprintf("no sales for %d", from))
	}
	current, ok := totals[to]
	if !ok {
		return 0, insufficient("year over year", fmt.Sprintf("no sales for %d", to))
	}
	if base == 0 {
		return 0, insufficient("year over year", fmt.Sprintf("sales for %d are zero", from))
	}
	return (current - base) / base * 100, nil
}

// AnnualTotals sums net sales per year.
func AnnualTotals(ds models.Dataset) map[int]float64 {
	totals := make(map[int]float64)
	for tx := range ds.All() {
		totals[tx.Year] += tx.NetSales
	}
	return totals
}

// Seasonality averages the monthly totals per calendar month across years.
// The baseline is the mean of the monthly means present.
func Seasonality(totals []MonthlyTotal) (models.Seasonality, error) {
	if len(totals) == 0 {
		return models.Seasonality{}, insufficient("seasonality", "no monthly totals")
	}

	byMonth := make(map[int][]float64)
	for _, t := range totals {
		byMonth[t.Month] = append(byMonth[t.Month], t.Value)
	}
	months := make([]int, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	slices.Sort(months)

	out := models.Seasonality{Months: make([]models.SeasonalityPoint, len(months))}
	means := make([]float64, len(months))
	for i, m := range months {
		means[i] = stat.Mean(byMonth[m], nil)
		out.Months[i] = models.SeasonalityPoint{Month: m, Name: MonthName(m), Mean: means[i]}
	}
	out.Baseline = stat.Mean(means, nil)

	out.Peak, out.Trough = out.Months[0], out.Months[0]
	for _, p := range out.Months[1:] {
		if p.Mean > out.Peak.Mean {
			out.Peak = p
		}
		if p.Mean < out.Trough.Mean {
			out.Trough = p
		}
	}
	return out, nil
}

// Quantile returns the q-th quantile using linear interpolation between the
// closest ranks, h = (n-1)*q over the sorted values.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, insufficient("quantile", "no values")
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, fmt.Errorf("analysis: quantile %v out of range", q)
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo]), nil
}

// QuartileRestriction keeps the groups whose margin is at or below the
// q-th quantile of all margins. Groups tied with the cutoff are kept, so ties
// can admit more groups than the quantile alone suggests.
func QuartileRestriction(rows []models.ProfitabilityRow, q float64) (float64, []models.ProfitabilityRow, error) {
	margins := make([]float64, len(rows))
	for i, r := range rows {
		margins[i] = r.MarginPct
	}
	cutoff, err := Quantile(margins, q)
	if err != nil {
		return 0, nil, err
	}

	kept := make([]models.ProfitabilityRow, 0, len(rows)/4+1)
	for _, r := range rows {
		if r.MarginPct <= cutoff {
			kept = append(kept, r)
		}
	}
	return cutoff, kept, nil
}

// CompareCustomer lays one customer's monthly sales over the monthly totals
// of ds. Months where the customer bought nothing report zero.
func CompareCustomer(ds models.Dataset, customerID string) []models.ComparisonPoint {
	totals := MonthlyTotals(ds)
	focus := MonthlyTotals(ds.Where(func(tx models.Transaction) bool {
		return tx.CustomerID == customerID
	}))
	byPeriod := make(map[string]float64, len(focus))
	for _, f := range focus {
		byPeriod[f.Period()] = f.Value
	}

	out := make([]models.ComparisonPoint, len(totals))
	for i, t := range totals {
		out[i] = models.ComparisonPoint{
			Period: t.Period(),
			Total:  t.Value,
			Focus:  byPeriod[t.Period()],
		}
	}
	return out
}
