package models

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Transaction struct {
	Date          time.Time
	Year          int
	Month         int
	Quarter       string
	Department    string
	CustomerID    string
	SalespersonID string
	NetSales      float64
	Cost          float64
}

// QuarterLabel formats a calendar quarter as "2015Q3".
func QuarterLabel(year, month int) string {
	return fmt.Sprintf("%dQ%d", year, (month+2)/3)
}

// Dataset is an immutable collection of transactions. The zero value is an
// empty dataset.
type Dataset struct {
	rows []Transaction
}

func NewDataset(rows []Transaction) Dataset {
	return Dataset{rows: slices.Clone(rows)}
}

func (d Dataset) Len() int {
	return len(d.rows)
}

func (d Dataset) All() iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for _, tx := range d.rows {
			if !yield(tx) {
				return
			}
		}
	}
}

// Rows returns a copy of the underlying transactions.
func (d Dataset) Rows() []Transaction {
	return slices.Clone(d.rows)
}

// Where returns the subset of rows matching keep.
func (d Dataset) Where(keep func(Transaction) bool) Dataset {
	out := make([]Transaction, 0, len(d.rows))
	for _, tx := range d.rows {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return Dataset{rows: out}
}

// Years lists the distinct years present, ascending.
func (d Dataset) Years() []int {
	seen := make(map[int]struct{})
	for _, tx := range d.rows {
		seen[tx.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// GroupKey holds one value per grouping dimension.
type GroupKey []string

func (k GroupKey) String() string {
	return strings.Join(k, "/")
}

// CompareKeys orders keys part by part, numerically when both parts are
// integers and lexically otherwise.
func CompareKeys(a, b GroupKey) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := comparePart(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func comparePart(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

type AggregateRow struct {
	Key   GroupKey `json:"key"`
	Value float64  `json:"value"`
	Sales float64  `json:"sales"`
	Cost  float64  `json:"cost"`
	Count int      `json:"count"`
}

type ClassificationLabel string

const (
	LabelA ClassificationLabel = "A"
	LabelB ClassificationLabel = "B"
	LabelC ClassificationLabel = "C"
)

type ClassifiedRow struct {
	AggregateRow
	CumulativeShare float64             `json:"cumulative_share"`
	Label           ClassificationLabel `json:"label"`
}

// ClassSummary aggregates one label. Total is nil when the label has no
// members.
type ClassSummary struct {
	Label ClassificationLabel `json:"label"`
	Total *float64            `json:"total"`
	Count int                 `json:"count"`
}

type Classification struct {
	Rows       []ClassifiedRow `json:"rows"`
	Summary    []ClassSummary  `json:"summary"`
	GrandTotal float64         `json:"grand_total"`
}

type ProfitabilityRow struct {
	Key       GroupKey `json:"key"`
	Sales     float64  `json:"sales"`
	Cost      float64  `json:"cost"`
	MarginPct float64  `json:"margin_pct"`
}

type ProfitabilityReport struct {
	Rows  []ProfitabilityRow `json:"rows"`
	Worst ProfitabilityRow   `json:"worst"`
}

type TrendPoint struct {
	Index  int     `json:"index"`
	Period string  `json:"period"`
	Actual float64 `json:"actual"`
	Fitted float64 `json:"fitted"`
}

type TrendFit struct {
	Slope     float64      `json:"slope"`
	Intercept float64      `json:"intercept"`
	Points    []TrendPoint `json:"points"`
}

type SeasonalityPoint struct {
	Month int     `json:"month"`
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
}

type Seasonality struct {
	Months   []SeasonalityPoint `json:"months"`
	Baseline float64            `json:"baseline"`
	Peak     SeasonalityPoint   `json:"peak"`
	Trough   SeasonalityPoint   `json:"trough"`
}

type GrowthPoint struct {
	Period    string   `json:"period"`
	Sales     float64  `json:"sales"`
	ChangePct *float64 `json:"change_pct"`
}

type GrowthSeries struct {
	Points     []GrowthPoint `json:"points"`
	AveragePct *float64      `json:"average_pct"`
}

type ShareSlice struct {
	Label    string  `json:"label"`
	Sales    float64 `json:"sales"`
	SharePct float64 `json:"share_pct"`
}

type TopShare struct {
	Top    []AggregateRow `json:"top"`
	Slices []ShareSlice   `json:"slices"`
	Total  float64        `json:"total"`
}

type SalespersonReport struct {
	SalespersonID    string         `json:"salesperson_id"`
	CustomerCount    int            `json:"customer_count"`
	CustomersByMonth []AggregateRow `json:"customers_by_month"`
}

type MonthExtremes struct {
	Best  AggregateRow `json:"best"`
	Worst AggregateRow `json:"worst"`
}

type ComparisonPoint struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
	Focus  float64 `json:"focus"`
}

// CustomerComparison sets one customer's monthly sales against the monthly
// totals of a customer population.
type CustomerComparison struct {
	CustomerID string            `json:"customer_id"`
	MarginPct  float64           `json:"margin_pct"`
	Cutoff     *float64          `json:"cutoff,omitempty"`
	Customers  []string          `json:"customers,omitempty"`
	Points     []ComparisonPoint `json:"points"`
}

type YearGrowth struct {
	From      int     `json:"from"`
	To        int     `json:"to"`
	FromSales float64 `json:"from_sales"`
	ToSales   float64 `json:"to_sales"`
	ChangePct float64 `json:"change_pct"`
}

// DatasetStats describes the loaded dataset for the admin view.
type DatasetStats struct {
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	Years       []int     `json:"years"`
	LoadedAt    time.Time `json:"loaded_at"`
	FromCache   bool      `json:"from_cache"`
}
