package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sales-dashboard/internal/analysis"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
)

const (
	defaultTopCustomers = 5
	lowQuartile         = 0.25
)

// DatasetObserver is notified whenever a new dataset becomes active.
type DatasetObserver interface {
	ObserveDataset(rows int)
}

// Analytics serves every dashboard computation over one immutable dataset.
// The dataset is replaced wholesale by LoadFromFile or SetData; readers never
// see a partially loaded state.
type Analytics struct {
	mu       sync.RWMutex
	data     models.Dataset
	source   string
	loadedAt time.Time
	cached   bool

	cache    dataset.Cache
	logger   *slog.Logger
	tracer   trace.Tracer
	observer DatasetObserver
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithCache(cache dataset.Cache) Option {
	return func(a *Analytics) { a.cache = cache }
}

func WithObserver(o DatasetObserver) Option {
	return func(a *Analytics) { a.observer = o }
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		logger: slog.Default(),
		tracer: otel.Tracer("sales-dashboard/services"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analytics) SetData(data []models.Transaction) {
	a.swap(models.NewDataset(data), "memory", false)
}

func (a *Analytics) swap(ds models.Dataset, source string, cached bool) {
	a.mu.Lock()
	a.data = ds
	a.source = source
	a.loadedAt = time.Now()
	a.cached = cached
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.ObserveDataset(ds.Len())
	}
}

func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	ctx, span := a.tracer.Start(ctx, "analytics.load", trace.WithAttributes(attribute.String("file", path)))
	defer span.End()

	if ds, ok := a.cache.Get(path); ok {
		a.swap(ds, path, true)
		span.SetAttributes(attribute.Bool("cache_hit", true), attribute.Int("records", ds.Len()))
		a.logger.Info("loaded from cache", "file", path, "records", ds.Len())
		return nil
	}

	start := time.Now()
	a.logger.Info("processing data file", "file", path)

	ds, err := dataset.Load(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return fmt.Errorf("load %s: %w", path, err)
	}

	if err := a.cache.Put(path, ds); err != nil {
		a.logger.Warn("failed to save cache", "error", err)
	}
	a.swap(ds, path, false)

	duration := time.Since(start)
	span.SetAttributes(attribute.Int("records", ds.Len()))
	a.logger.Info("data file processed",
		"records", ds.Len(),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(ds.Len())/duration.Seconds()))
	return nil
}

func (a *Analytics) snapshot() models.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

func (a *Analytics) filtered(sel dataset.YearSelector) models.Dataset {
	return dataset.Filter(a.snapshot(), sel)
}

func (a *Analytics) Years() []int {
	return a.snapshot().Years()
}

func (a *Analytics) DepartmentABC(sel dataset.YearSelector) (models.Classification, error) {
	return a.abc(sel, analysis.Department)
}

func (a *Analytics) CustomerABC(sel dataset.YearSelector) (models.Classification, error) {
	return a.abc(sel, analysis.Customer)
}

func (a *Analytics) abc(sel dataset.YearSelector, by analysis.Dimension) (models.Classification, error) {
	rows := analysis.Aggregate(a.filtered(sel), analysis.Spec{
		By:      []analysis.Dimension{by},
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	})
	return analysis.Classify(analysis.SortDescending(rows))
}

// TopCustomers returns the n best customers by net sales and their share of
// the total. n <= 0 uses the default of five.
func (a *Analytics) TopCustomers(sel dataset.YearSelector, n int) (models.TopShare, error) {
	if n <= 0 {
		n = defaultTopCustomers
	}
	rows := analysis.Aggregate(a.filtered(sel), analysis.Spec{
		By:      []analysis.Dimension{analysis.Customer},
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	})
	return analysis.TopShare(analysis.SortDescending(rows), n)
}

// TopSalesperson finds the salesperson serving the most distinct customers
// and breaks their customer count down per month.
func (a *Analytics) TopSalesperson(sel dataset.YearSelector) (models.SalespersonReport, error) {
	ds := a.filtered(sel)
	rows := analysis.Aggregate(ds, analysis.Spec{
		By:      []analysis.Dimension{analysis.Salesperson},
		Measure: analysis.CustomerID,
		Func:    analysis.NUnique,
	})
	best, err := analysis.MaxRow(rows)
	if err != nil {
		return models.SalespersonReport{}, err
	}

	id := best.Key[0]
	perMonth := analysis.Aggregate(ds.Where(func(tx models.Transaction) bool {
		return tx.SalespersonID == id
	}), analysis.Spec{
		By:      []analysis.Dimension{analysis.YearMonth},
		Measure: analysis.CustomerID,
		Func:    analysis.NUnique,
	})

	return models.SalespersonReport{
		SalespersonID:    id,
		CustomerCount:    int(best.Value),
		CustomersByMonth: perMonth,
	}, nil
}

// MonthlySales sums net sales per YYYY-MM in chronological order.
func (a *Analytics) MonthlySales(sel dataset.YearSelector) []models.AggregateRow {
	return analysis.Aggregate(a.filtered(sel), analysis.Spec{
		By:      []analysis.Dimension{analysis.YearMonth},
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	})
}

func (a *Analytics) MonthExtremes(sel dataset.YearSelector) (models.MonthExtremes, error) {
	rows := a.MonthlySales(sel)
	best, err := analysis.MaxRow(rows)
	if err != nil {
		return models.MonthExtremes{}, err
	}
	worst, err := analysis.MinRow(rows)
	if err != nil {
		return models.MonthExtremes{}, err
	}
	return models.MonthExtremes{Best: best, Worst: worst}, nil
}

func (a *Analytics) YearOverYear(from, to int) (models.YearGrowth, error) {
	totals := analysis.AnnualTotals(a.snapshot())
	change, err := analysis.YearOverYear(totals, from, to)
	if err != nil {
		return models.YearGrowth{}, err
	}
	return models.YearGrowth{
		From:      from,
		To:        to,
		FromSales: totals[from],
		ToSales:   totals[to],
		ChangePct: change,
	}, nil
}

// SalesTrend fits a linear trend through the monthly totals of the whole
// dataset.
func (a *Analytics) SalesTrend() (models.TrendFit, error) {
	totals := analysis.MonthlyTotals(a.snapshot())
	return analysis.FitTrend(analysis.MonthlySeries(totals))
}

func (a *Analytics) Seasonality() (models.Seasonality, error) {
	return analysis.Seasonality(analysis.MonthlyTotals(a.snapshot()))
}

func (a *Analytics) MonthlyGrowth() models.GrowthSeries {
	return analysis.GrowthSeries(analysis.MonthlyTotals(a.snapshot()))
}

// MonthProfitability reports the margin of one calendar month.
func (a *Analytics) MonthProfitability(year, month int) (models.ProfitabilityRow, error) {
	ds := a.snapshot().Where(func(tx models.Transaction) bool {
		return tx.Year == year && tx.Month == month
	})
	rows := analysis.Profitability(analysis.Aggregate(ds, analysis.Spec{
		By:      []analysis.Dimension{analysis.Year, analysis.Month},
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	}))
	if len(rows) == 0 {
		return models.ProfitabilityRow{}, &analysis.InsufficientDataError{
			Op:     "month profitability",
			Reason: fmt.Sprintf("no cost recorded for %04d-%02d", year, month),
		}
	}
	return rows[0], nil
}

func (a *Analytics) QuarterProfitability(sel dataset.YearSelector) (models.ProfitabilityReport, error) {
	return a.profitability(a.filtered(sel), analysis.Quarter)
}

// CustomerProfitability groups by customer and year, so a customer active in
// several years appears once per year.
func (a *Analytics) CustomerProfitability(sel dataset.YearSelector) (models.ProfitabilityReport, error) {
	return a.profitability(a.filtered(sel), analysis.Customer, analysis.Year)
}

func (a *Analytics) profitability(ds models.Dataset, by ...analysis.Dimension) (models.ProfitabilityReport, error) {
	return analysis.ProfitabilityReport(analysis.Aggregate(ds, analysis.Spec{
		By:      by,
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	}))
}

// WorstCustomerComparison overlays the least profitable customer's monthly
// sales on the monthly totals of every customer.
func (a *Analytics) WorstCustomerComparison(sel dataset.YearSelector) (models.CustomerComparison, error) {
	ds := a.filtered(sel)
	report, err := a.profitability(ds, analysis.Customer, analysis.Year)
	if err != nil {
		return models.CustomerComparison{}, err
	}
	id := report.Worst.Key[0]
	return models.CustomerComparison{
		CustomerID: id,
		MarginPct:  report.Worst.MarginPct,
		Points:     analysis.CompareCustomer(ds, id),
	}, nil
}

// LowQuartileComparison restricts the population to the customer-years whose
// margin is at or below the 25th percentile, then overlays the least
// profitable of them on the restricted monthly totals.
func (a *Analytics) LowQuartileComparison(sel dataset.YearSelector) (models.CustomerComparison, error) {
	ds := a.filtered(sel)
	rows := analysis.Profitability(analysis.Aggregate(ds, analysis.Spec{
		By:      []analysis.Dimension{analysis.Customer, analysis.Year},
		Measure: analysis.NetSales,
		Func:    analysis.Sum,
	}))
	cutoff, kept, err := analysis.QuartileRestriction(rows, lowQuartile)
	if err != nil {
		return models.CustomerComparison{}, err
	}
	worst, err := analysis.LeastProfitable(kept)
	if err != nil {
		return models.CustomerComparison{}, err
	}

	type customerYear struct {
		customer string
		year     string
	}
	members := make(map[customerYear]struct{}, len(kept))
	var customers []string
	seen := make(map[string]struct{})
	for _, r := range kept {
		members[customerYear{r.Key[0], r.Key[1]}] = struct{}{}
		if _, ok := seen[r.Key[0]]; !ok {
			seen[r.Key[0]] = struct{}{}
			customers = append(customers, r.Key[0])
		}
	}
	restricted := ds.Where(func(tx models.Transaction) bool {
		_, ok := members[customerYear{tx.CustomerID, strconv.Itoa(tx.Year)}]
		return ok
	})

	return models.CustomerComparison{
		CustomerID: worst.Key[0],
		MarginPct:  worst.MarginPct,
		Cutoff:     &cutoff,
		Customers:  customers,
		Points:     analysis.CompareCustomer(restricted, worst.Key[0]),
	}, nil
}

func (a *Analytics) Stats() models.DatasetStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return models.DatasetStats{
		Source:      a.source,
		RecordCount: a.data.Len(),
		Years:       a.data.Years(),
		LoadedAt:    a.loadedAt,
		FromCache:   a.cached,
	}
}

// IsInsufficient reports whether err means the selection holds too little
// data for the requested computation.
func IsInsufficient(err error) bool {
	return errors.Is(err, analysis.ErrInsufficientData)
}
