package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
)

func tx(date string, dept, customer, seller string, sales, cost float64) models.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.Transaction{
		Date:          d,
		Year:          d.Year(),
		Month:         int(d.Month()),
		Quarter:       models.QuarterLabel(d.Year(), int(d.Month())),
		Department:    dept,
		CustomerID:    customer,
		SalespersonID: seller,
		NetSales:      sales,
		Cost:          cost,
	}
}

func rowsOf(values ...float64) []models.AggregateRow {
	rows := make([]models.AggregateRow, len(values))
	for i, v := range values {
		rows[i] = models.AggregateRow{Key: models.GroupKey{string(rune('a' + i))}, Value: v}
	}
	return rows
}

func TestAggregate_SumByDepartment(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2015-01-10", "20", "1", "7", 100, 60),
		tx("2015-02-10", "3", "2", "7", 50, 20),
		tx("2016-01-10", "20", "3", "8", 25, 10),
	})

	rows := Aggregate(ds, Spec{By: []Dimension{Department}, Measure: NetSales, Func: Sum})

	require.Len(t, rows, 2)
	assert.Equal(t, models.GroupKey{"3"}, rows[0].Key, "numeric keys sort numerically")
	assert.Equal(t, 50.0, rows[0].Value)
	assert.Equal(t, models.GroupKey{"20"}, rows[1].Key)
	assert.Equal(t, 125.0, rows[1].Value)
	assert.Equal(t, 70.0, rows[1].Cost)
	assert.Equal(t, 2, rows[1].Count)
}

func TestAggregate_Functions(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2015-01-10", "1", "10", "7", 100, 60),
		tx("2015-01-11", "1", "10", "7", 300, 60),
		tx("2015-01-12", "1", "11", "8", 200, 60),
	})

	tests := []struct {
		name string
		spec Spec
		want float64
	}{
		{"sum", Spec{By: []Dimension{Department}, Measure: NetSales, Func: Sum}, 600},
		{"mean", Spec{By: []Dimension{Department}, Measure: NetSales, Func: Mean}, 200},
		{"count", Spec{By: []Dimension{Department}, Measure: NetSales, Func: Count}, 3},
		{"nunique customers", Spec{By: []Dimension{Department}, Measure: CustomerID, Func: NUnique}, 2},
		{"cost sum", Spec{By: []Dimension{Department}, Measure: Cost, Func: Sum}, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Aggregate(ds, tt.spec)
			require.Len(t, rows, 1)
			assert.InDelta(t, tt.want, rows[0].Value, 1e-9)
		})
	}
}

func TestAggregate_TimeDimensionsAreChronological(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2016-03-01", "1", "1", "1", 1, 1),
		tx("2015-11-01", "1", "1", "1", 1, 1),
		tx("2015-02-01", "1", "1", "1", 1, 1),
	})

	months := Aggregate(ds, Spec{By: []Dimension{YearMonth}, Measure: NetSales, Func: Sum})
	quarters := Aggregate(ds, Spec{By: []Dimension{Quarter}, Measure: NetSales, Func: Sum})
	pairs := Aggregate(ds, Spec{By: []Dimension{Year, Month}, Measure: NetSales, Func: Sum})

	assert.Equal(t, "2015-02", months[0].Key.String())
	assert.Equal(t, "2016-03", months[2].Key.String())
	assert.Equal(t, []string{"2015Q1", "2015Q4", "2016Q1"}, []string{
		quarters[0].Key.String(), quarters[1].Key.String(), quarters[2].Key.String(),
	})
	assert.Equal(t, models.GroupKey{"2015", "11"}, pairs[1].Key, "month 11 after month 2")
}

func TestAggregate_InvalidSpecPanics(t *testing.T) {
	ds := models.NewDataset(nil)
	assert.Panics(t, func() {
		Aggregate(ds, Spec{By: []Dimension{Department}, Measure: CustomerID, Func: Sum})
	})
	assert.Panics(t, func() {
		Aggregate(ds, Spec{Measure: NetSales, Func: Sum})
	})
}

func TestSortDescending_StableOnTies(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2015-01-01", "B", "1", "1", 100, 1),
		tx("2015-01-01", "C", "1", "1", 50, 1),
		tx("2015-01-01", "A", "1", "1", 100, 1),
		tx("2015-01-01", "D", "1", "1", 100, 1),
	})
	rows := SortDescending(Aggregate(ds, Spec{By: []Dimension{Department}, Measure: NetSales, Func: Sum}))

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.String()
	}
	assert.Equal(t, []string{"A", "B", "D", "C"}, keys)
}

func TestTopAndExtremes(t *testing.T) {
	rows := rowsOf(5, 9, 1, 9)

	assert.Len(t, Top(rows, 2), 2)
	assert.Len(t, Top(rows, 10), 4)

	best, err := MaxRow(rows)
	require.NoError(t, err)
	assert.Equal(t, "b", best.Key.String(), "first of the tied maxima")

	worst, err := MinRow(rows)
	require.NoError(t, err)
	assert.Equal(t, 1.0, worst.Value)

	_, err = MaxRow(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestClassify_Thresholds(t *testing.T) {
	c, err := Classify(rowsOf(50, 30, 15, 5))
	require.NoError(t, err)

	labels := make([]models.ClassificationLabel, len(c.Rows))
	for i, r := range c.Rows {
		labels[i] = r.Label
	}
	assert.Equal(t, []models.ClassificationLabel{models.LabelA, models.LabelA, models.LabelB, models.LabelC}, labels)
	assert.Equal(t, 100.0, c.GrandTotal)
}

func TestClassify_CumulativeShareMonotonicAndEndsAtOne(t *testing.T) {
	inputs := [][]float64{
		{0.1, 0.1, 0.1},
		{1234.56, 999.99, 10.01, 3.33, 0.07},
		{1e9, 1, 1, 1},
		{7},
	}
	for _, in := range inputs {
		c, err := Classify(rowsOf(in...))
		require.NoError(t, err)
		for i := 1; i < len(c.Rows); i++ {
			assert.GreaterOrEqual(t, c.Rows[i].CumulativeShare, c.Rows[i-1].CumulativeShare)
		}
		assert.Equal(t, 1.0, c.Rows[len(c.Rows)-1].CumulativeShare)
	}
}

func TestClassify_SummaryAlwaysABC(t *testing.T) {
	// 90 -> share 0.9 (B), 10 -> 1.0 (C): label A has no members.
	c, err := Classify(rowsOf(90, 10))
	require.NoError(t, err)

	require.Len(t, c.Summary, 3)
	assert.Equal(t, models.LabelA, c.Summary[0].Label)
	assert.Equal(t, models.LabelB, c.Summary[1].Label)
	assert.Equal(t, models.LabelC, c.Summary[2].Label)

	assert.Nil(t, c.Summary[0].Total)
	assert.Equal(t, 0, c.Summary[0].Count)
	require.NotNil(t, c.Summary[1].Total)
	assert.Equal(t, 90.0, *c.Summary[1].Total)
	assert.Equal(t, 1, c.Summary[2].Count)
}

func TestClassify_SingleRowIsA(t *testing.T) {
	c, err := Classify(rowsOf(42))
	require.NoError(t, err)
	assert.Equal(t, models.LabelA, c.Rows[0].Label)
	assert.Equal(t, 1, c.Summary[0].Count)
}

func TestClassify_ZeroTotal(t *testing.T) {
	_, err := Classify(rowsOf(0, 0))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Classify(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	var ide *InsufficientDataError
	assert.ErrorAs(t, err, &ide)
	assert.Equal(t, "classify", ide.Op)
}

func TestProfitability_DropsNonPositiveCost(t *testing.T) {
	rows := []models.AggregateRow{
		{Key: models.GroupKey{"x"}, Sales: 100, Cost: 0},
		{Key: models.GroupKey{"y"}, Sales: 50, Cost: 25},
		{Key: models.GroupKey{"z"}, Sales: 50, Cost: -5},
	}

	out := Profitability(rows)
	require.Len(t, out, 1)
	assert.Equal(t, models.GroupKey{"y"}, out[0].Key)
	assert.Equal(t, 100.0, out[0].MarginPct)
}

func TestLeastProfitable(t *testing.T) {
	report, err := ProfitabilityReport([]models.AggregateRow{
		{Key: models.GroupKey{"2015Q1"}, Sales: 120, Cost: 100},
		{Key: models.GroupKey{"2015Q2"}, Sales: 105, Cost: 100},
		{Key: models.GroupKey{"2015Q3"}, Sales: 500, Cost: 0},
	})
	require.NoError(t, err)
	assert.Len(t, report.Rows, 2)
	assert.Equal(t, "2015Q2", report.Worst.Key.String())
	assert.InDelta(t, 5.0, report.Worst.MarginPct, 1e-9)

	_, err = ProfitabilityReport([]models.AggregateRow{{Sales: 1, Cost: 0}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMargin(t *testing.T) {
	m, ok := Margin(150, 100)
	assert.True(t, ok)
	assert.Equal(t, 50.0, m)

	_, ok = Margin(150, 0)
	assert.False(t, ok)
}

func TestFitTrend_ExactLine(t *testing.T) {
	fit, err := FitTrend([]SeriesPoint{{"p0", 10}, {"p1", 20}, {"p2", 30}})
	require.NoError(t, err)

	assert.InDelta(t, 10.0, fit.Slope, 1e-9)
	assert.InDelta(t, 10.0, fit.Intercept, 1e-9)
	for i, want := range []float64{10, 20, 30} {
		assert.InDelta(t, want, fit.Points[i].Fitted, 1e-9)
		assert.Equal(t, i, fit.Points[i].Index)
	}
}

func TestFitTrend_Degenerate(t *testing.T) {
	_, err := FitTrend([]SeriesPoint{{"only", 5}})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = FitTrend(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPercentChange(t *testing.T) {
	got := PercentChange([]float64{100, 150, 75})
	require.Len(t, got, 3)
	assert.Nil(t, got[0])
	require.NotNil(t, got[1])
	assert.InDelta(t, 50.0, *got[1], 1e-9)
	require.NotNil(t, got[2])
	assert.InDelta(t, -50.0, *got[2], 1e-9)

	avg := AverageChange(got)
	require.NotNil(t, avg)
	assert.InDelta(t, 0.0, *avg, 1e-9)
}

func TestPercentChange_ZeroPredecessor(t *testing.T) {
	got := PercentChange([]float64{0, 10})
	assert.Nil(t, got[1])
	assert.Nil(t, AverageChange(got))
}

func TestYearOverYear(t *testing.T) {
	growth, err := YearOverYear(map[int]float64{2015: 1000, 2016: 1200}, 2015, 2016)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, growth, 1e-9)

	_, err = YearOverYear(map[int]float64{2016: 1200}, 2015, 2016)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = YearOverYear(map[int]float64{2015: 0, 2016: 1200}, 2015, 2016)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSeasonality(t *testing.T) {
	s, err := Seasonality([]MonthlyTotal{
		{Year: 2015, Month: 1, Value: 100},
		{Year: 2015, Month: 2, Value: 200},
		{Year: 2016, Month: 1, Value: 500},
	})
	require.NoError(t, err)

	require.Len(t, s.Months, 2)
	assert.Equal(t, "Enero", s.Months[0].Name)
	assert.Equal(t, 300.0, s.Months[0].Mean)
	assert.Equal(t, 200.0, s.Months[1].Mean)
	assert.Equal(t, 250.0, s.Baseline)
	assert.Equal(t, 1, s.Peak.Month)
	assert.Equal(t, 2, s.Trough.Month)

	_, err = Seasonality(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	q, err := Quantile([]float64{4, 1, 3, 2}, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, q, 1e-9)

	q, err = Quantile([]float64{7}, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 7.0, q)

	_, err = Quantile(nil, 0.25)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func marginRows(margins ...float64) []models.ProfitabilityRow {
	rows := make([]models.ProfitabilityRow, len(margins))
	for i, m := range margins {
		rows[i] = models.ProfitabilityRow{Key: models.GroupKey{string(rune('a' + i))}, MarginPct: m}
	}
	return rows
}

func TestQuartileRestriction_SelectsLowestQuarter(t *testing.T) {
	// h = 7*0.25 = 1.75 -> cutoff = 10 + 0.75*(15-10) = 13.75
	cutoff, kept, err := QuartileRestriction(marginRows(35, 5, 20, 40, 10, 25, 15, 30), 0.25)
	require.NoError(t, err)

	assert.InDelta(t, 13.75, cutoff, 1e-9)
	require.Len(t, kept, 2)
	assert.Equal(t, 5.0, kept[0].MarginPct)
	assert.Equal(t, 10.0, kept[1].MarginPct)
}

func TestQuartileRestriction_TiesAtCutoffAreKept(t *testing.T) {
	// Sorted: 5, 10, 10, 20, ... -> cutoff interpolates between two 10s = 10,
	// so both tied groups are kept alongside 5.
	cutoff, kept, err := QuartileRestriction(marginRows(5, 10, 10, 20, 25, 30, 35, 40), 0.25)
	require.NoError(t, err)

	assert.Equal(t, 10.0, cutoff)
	assert.Len(t, kept, 3)
}

func TestCompareCustomer(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2015-01-05", "1", "10", "1", 100, 50),
		tx("2015-01-06", "1", "11", "1", 40, 50),
		tx("2015-02-05", "1", "10", "1", 70, 50),
	})

	points := CompareCustomer(ds, "11")
	require.Len(t, points, 2)
	assert.Equal(t, models.ComparisonPoint{Period: "2015-01", Total: 140, Focus: 40}, points[0])
	assert.Equal(t, models.ComparisonPoint{Period: "2015-02", Total: 70, Focus: 0}, points[1])
}

func TestTopShare(t *testing.T) {
	share, err := TopShare(rowsOf(50, 30, 15, 5), 2)
	require.NoError(t, err)

	require.Len(t, share.Top, 2)
	require.Len(t, share.Slices, 3)
	assert.Equal(t, "Otros", share.Slices[2].Label)
	assert.Equal(t, 20.0, share.Slices[2].Sales)
	assert.InDelta(t, 50.0, share.Slices[0].SharePct, 1e-9)

	_, err = TopShare(rowsOf(0), 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMonthlyTotalsAndGrowth(t *testing.T) {
	ds := models.NewDataset([]models.Transaction{
		tx("2015-02-01", "1", "1", "1", 150, 1),
		tx("2015-01-01", "1", "1", "1", 100, 1),
		tx("2015-03-01", "1", "1", "1", 75, 1),
	})

	totals := MonthlyTotals(ds)
	require.Len(t, totals, 3)
	assert.Equal(t, "2015-01", totals[0].Period())

	g := GrowthSeries(totals)
	assert.Nil(t, g.Points[0].ChangePct)
	assert.InDelta(t, 50.0, *g.Points[1].ChangePct, 1e-9)
	assert.InDelta(t, -50.0, *g.Points[2].ChangePct, 1e-9)
}
