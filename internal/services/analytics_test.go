package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
)

func tx(year, month int, dept, customer, seller string, sales, cost float64) models.Transaction {
	return models.Transaction{
		Date:          time.Date(year, time.Month(month), 10, 0, 0, 0, 0, time.UTC),
		Year:          year,
		Month:         month,
		Quarter:       models.QuarterLabel(year, month),
		Department:    dept,
		CustomerID:    customer,
		SalespersonID: seller,
		NetSales:      sales,
		Cost:          cost,
	}
}

func sampleData() []models.Transaction {
	return []models.Transaction{
		tx(2015, 1, "D1", "C1", "S1", 500, 400),
		tx(2015, 1, "D2", "C2", "S1", 300, 100),
		tx(2015, 2, "D1", "C3", "S2", 150, 100),
		tx(2015, 3, "D3", "C4", "S2", 50, 10),
		tx(2016, 1, "D1", "C1", "S1", 600, 500),
		tx(2016, 2, "D2", "C2", "S2", 400, 100),
		tx(2016, 2, "D2", "C5", "S2", 200, 50),
		tx(2016, 3, "D3", "C4", "S3", 100, 20),
	}
}

func newLoaded(t *testing.T) *Analytics {
	t.Helper()
	a := NewAnalytics()
	a.SetData(sampleData())
	return a
}

type rowCounter struct {
	mu   sync.Mutex
	rows []int
}

func (c *rowCounter) ObserveDataset(rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows)
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	require.NotNil(t, a)
	assert.NotNil(t, a.logger)
	assert.NotNil(t, a.tracer)
	assert.Equal(t, 0, a.Stats().RecordCount)
}

func TestAnalytics_SetData(t *testing.T) {
	counter := &rowCounter{}
	a := NewAnalytics(WithObserver(counter))
	a.SetData(sampleData())

	stats := a.Stats()
	assert.Equal(t, 8, stats.RecordCount)
	assert.Equal(t, []int{2015, 2016}, stats.Years)
	assert.Equal(t, "memory", stats.Source)
	assert.False(t, stats.LoadedAt.IsZero())
	assert.Equal(t, []int{8}, counter.rows)
}

func TestAnalytics_DepartmentABC(t *testing.T) {
	a := newLoaded(t)

	got, err := a.DepartmentABC(dataset.SpecificYear(2015))
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, models.GroupKey{"D1"}, got.Rows[0].Key)
	assert.InDelta(t, 650, got.Rows[0].Value, 1e-9)
	assert.InDelta(t, 1000, got.GrandTotal, 1e-9)
	assert.Equal(t, models.LabelA, got.Rows[0].Label)
	assert.Equal(t, models.LabelB, got.Rows[1].Label)
	assert.Equal(t, models.LabelC, got.Rows[2].Label)
	assert.InDelta(t, 1.0, got.Rows[2].CumulativeShare, 1e-12)
}

func TestAnalytics_CustomerABCEmptySelection(t *testing.T) {
	a := newLoaded(t)

	_, err := a.CustomerABC(dataset.SpecificYear(1999))
	require.Error(t, err)
	assert.True(t, IsInsufficient(err))
}

func TestAnalytics_TopCustomers(t *testing.T) {
	a := newLoaded(t)

	got, err := a.TopCustomers(dataset.AllYears(), 2)
	require.NoError(t, err)
	require.Len(t, got.Top, 2)
	assert.Equal(t, models.GroupKey{"C1"}, got.Top[0].Key)
	assert.Equal(t, models.GroupKey{"C2"}, got.Top[1].Key)
	require.Len(t, got.Slices, 3)
	assert.Equal(t, "Otros", got.Slices[2].Label)
	assert.InDelta(t, 500, got.Slices[2].Sales, 1e-9)

	var pct float64
	for _, s := range got.Slices {
		pct += s.SharePct
	}
	assert.InDelta(t, 100, pct, 1e-9)
}

func TestAnalytics_TopSalesperson(t *testing.T) {
	a := newLoaded(t)

	got, err := a.TopSalesperson(dataset.AllYears())
	require.NoError(t, err)
	assert.Equal(t, "S2", got.SalespersonID)
	assert.Equal(t, 4, got.CustomerCount)
	require.Len(t, got.CustomersByMonth, 3)
	assert.Equal(t, models.GroupKey{"2015-02"}, got.CustomersByMonth[0].Key)
	assert.Equal(t, models.GroupKey{"2016-02"}, got.CustomersByMonth[2].Key)
	assert.InDelta(t, 2, got.CustomersByMonth[2].Value, 1e-9)
}

func TestAnalytics_MonthlySalesAndExtremes(t *testing.T) {
	a := newLoaded(t)

	monthly := a.MonthlySales(dataset.AllYears())
	require.Len(t, monthly, 6)
	assert.Equal(t, models.GroupKey{"2015-01"}, monthly[0].Key)
	assert.Equal(t, models.GroupKey{"2016-03"}, monthly[5].Key)

	ext, err := a.MonthExtremes(dataset.SpecificYear(2016))
	require.NoError(t, err)
	assert.Equal(t, models.GroupKey{"2016-01"}, ext.Best.Key)
	assert.Equal(t, models.GroupKey{"2016-03"}, ext.Worst.Key)
}

func TestAnalytics_YearOverYear(t *testing.T) {
	a := newLoaded(t)

	got, err := a.YearOverYear(2015, 2016)
	require.NoError(t, err)
	assert.InDelta(t, 1000, got.FromSales, 1e-9)
	assert.InDelta(t, 1300, got.ToSales, 1e-9)
	assert.InDelta(t, 30, got.ChangePct, 1e-9)

	_, err = a.YearOverYear(2014, 2016)
	assert.True(t, IsInsufficient(err))
}

func TestAnalytics_TrendSeasonalityGrowth(t *testing.T) {
	a := newLoaded(t)

	trend, err := a.SalesTrend()
	require.NoError(t, err)
	assert.Len(t, trend.Points, 6)
	assert.Equal(t, "2015-01", trend.Points[0].Period)

	season, err := a.Seasonality()
	require.NoError(t, err)
	require.Len(t, season.Months, 3)
	assert.InDelta(t, 700, season.Months[0].Mean, 1e-9)
	assert.Equal(t, 1, season.Peak.Month)
	assert.Equal(t, 3, season.Trough.Month)
	assert.Equal(t, "Enero", season.Peak.Name)

	growth := a.MonthlyGrowth()
	require.Len(t, growth.Points, 6)
	assert.Nil(t, growth.Points[0].ChangePct)
	require.NotNil(t, growth.Points[1].ChangePct)
	assert.InDelta(t, -81.25, *growth.Points[1].ChangePct, 1e-9)
	assert.NotNil(t, growth.AveragePct)
}

func TestAnalytics_SingleMonthTrend(t *testing.T) {
	a := NewAnalytics()
	a.SetData([]models.Transaction{tx(2015, 1, "D1", "C1", "S1", 10, 5)})

	_, err := a.SalesTrend()
	assert.True(t, IsInsufficient(err))
}

func TestAnalytics_MonthProfitability(t *testing.T) {
	a := newLoaded(t)

	got, err := a.MonthProfitability(2015, 1)
	require.NoError(t, err)
	assert.InDelta(t, 60, got.MarginPct, 1e-9)

	_, err = a.MonthProfitability(2015, 12)
	assert.True(t, IsInsufficient(err))
}

func TestAnalytics_QuarterProfitability(t *testing.T) {
	a := newLoaded(t)

	got, err := a.QuarterProfitability(dataset.AllYears())
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, models.GroupKey{"2015Q1"}, got.Rows[0].Key)
	assert.Equal(t, models.GroupKey{"2015Q1"}, got.Worst.Key)
}

func TestAnalytics_CustomerProfitabilityByYear(t *testing.T) {
	a := newLoaded(t)

	got, err := a.CustomerProfitability(dataset.AllYears())
	require.NoError(t, err)
	assert.Len(t, got.Rows, 8)
	assert.Equal(t, models.GroupKey{"C1", "2016"}, got.Worst.Key)
	assert.InDelta(t, 20, got.Worst.MarginPct, 1e-9)
}

func TestAnalytics_WorstCustomerComparison(t *testing.T) {
	a := newLoaded(t)

	got, err := a.WorstCustomerComparison(dataset.SpecificYear(2015))
	require.NoError(t, err)
	assert.Equal(t, "C1", got.CustomerID)
	require.Len(t, got.Points, 3)
	assert.InDelta(t, 800, got.Points[0].Total, 1e-9)
	assert.InDelta(t, 500, got.Points[0].Focus, 1e-9)
	assert.Zero(t, got.Points[1].Focus)
}

func TestAnalytics_LowQuartileComparison(t *testing.T) {
	a := newLoaded(t)

	got, err := a.LowQuartileComparison(dataset.AllYears())
	require.NoError(t, err)
	require.NotNil(t, got.Cutoff)
	assert.Equal(t, "C1", got.CustomerID)
	assert.ElementsMatch(t, []string{"C1"}, got.Customers)
	for _, p := range got.Points {
		assert.Equal(t, p.Total, p.Focus)
	}
}

func TestAnalytics_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ventas.csv")
	content := "Fecha,Año,Mes,Departamento - Clave,Número de cliente,Número de Vendedor,Ventas Netas (USD),Costo (USD)\n" +
		"2015-01-15,2015,1,D1,C1,S1,100,50\n" +
		"2015-02-15,2015,2,D2,C2,S1,200,100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	cache := dataset.Cache{Dir: filepath.Join(dir, "cache")}
	a := NewAnalytics(WithCache(cache))
	require.NoError(t, a.LoadFromFile(context.Background(), path))
	assert.Equal(t, 2, a.Stats().RecordCount)
	assert.False(t, a.Stats().FromCache)

	b := NewAnalytics(WithCache(cache))
	require.NoError(t, b.LoadFromFile(context.Background(), path))
	assert.Equal(t, 2, b.Stats().RecordCount)
	assert.True(t, b.Stats().FromCache)
}

func TestAnalytics_LoadFromFileBadFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ventas.csv")
	require.NoError(t, os.WriteFile(path, []byte("Fecha,Otro\n2015-01-01,1\n"), 0o644))

	a := NewAnalytics()
	err := a.LoadFromFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDataFormat)
}

func TestAnalytics_ConcurrentReads(t *testing.T) {
	a := newLoaded(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				a.SetData(sampleData())
			}
			_, _ = a.CustomerABC(dataset.AllYears())
			_ = a.MonthlySales(dataset.SpecificYear(2016))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, a.Stats().RecordCount)
}
