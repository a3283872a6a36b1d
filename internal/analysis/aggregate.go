package analysis

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sales-dashboard/internal/models"
)

type Dimension int

const (
	Department Dimension = iota
	Customer
	Salesperson
	Year
	Month
	YearMonth
	Quarter
)

var dimensionNames = map[Dimension]string{
	Department:  "department",
	Customer:    "customer",
	Salesperson: "salesperson",
	Year:        "year",
	Month:       "month",
	YearMonth:   "year_month",
	Quarter:     "quarter",
}

func (d Dimension) String() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return "unknown"
}

func (d Dimension) value(tx models.Transaction) string {
	switch d {
	case Department:
		return tx.Department
	case Customer:
		return tx.CustomerID
	case Salesperson:
		return tx.SalespersonID
	case Year:
		return strconv.Itoa(tx.Year)
	case Month:
		return strconv.Itoa(tx.Month)
	case YearMonth:
		return fmt.Sprintf("%04d-%02d", tx.Year, tx.Month)
	case Quarter:
		return tx.Quarter
	}
	panic(fmt.Sprintf("analysis: unknown dimension %d", d))
}

type Measure int

const (
	NetSales Measure = iota
	Cost
	CustomerID
	SalespersonID
)

func (m Measure) numeric() bool {
	return m == NetSales || m == Cost
}

func (m Measure) number(tx models.Transaction) float64 {
	if m == Cost {
		return tx.Cost
	}
	return tx.NetSales
}

func (m Measure) ident(tx models.Transaction) string {
	if m == SalespersonID {
		return tx.SalespersonID
	}
	return tx.CustomerID
}

type Func int

const (
	Sum Func = iota
	Mean
	Count
	NUnique
)

// Spec describes one group-by: the dimensions forming the key, the measure
// and the aggregation applied to it.
type Spec struct {
	By      []Dimension
	Measure Measure
	Func    Func
}

func (s Spec) validate() error {
	if len(s.By) == 0 {
		return fmt.Errorf("analysis: spec has no grouping dimension")
	}
	switch s.Func {
	case Sum, Mean:
		if !s.Measure.numeric() {
			return fmt.Errorf("analysis: func %d needs a numeric measure", s.Func)
		}
	case NUnique:
		if s.Measure.numeric() {
			return fmt.Errorf("analysis: nunique needs an identifier measure")
		}
	case Count:
	default:
		return fmt.Errorf("analysis: unknown func %d", s.Func)
	}
	return nil
}

type group struct {
	row    models.AggregateRow
	sum    float64
	unique map[string]struct{}
}

// Aggregate groups ds by spec and returns one row per key in natural key
// order. Sales and Cost are always summed alongside the requested measure.
// An invalid spec is a programming error and panics.
func Aggregate(ds models.Dataset, spec Spec) []models.AggregateRow {
	if err := spec.validate(); err != nil {
		panic(err)
	}

	groups := make(map[string]*group)
	for tx := range ds.All() {
		key := make(models.GroupKey, len(spec.By))
		for i, d := range spec.By {
			key[i] = d.value(tx)
		}
		id := strings.Join(key, "\x1f")
		g, ok := groups[id]
		if !ok {
			g = &group{row: models.AggregateRow{Key: key}}
			if spec.Func == NUnique {
				g.unique = make(map[string]struct{})
			}
			groups[id] = g
		}

		g.row.Sales += tx.NetSales
		g.row.Cost += tx.Cost
		g.row.Count++
		switch spec.Func {
		case Sum, Mean:
			g.sum += spec.Measure.number(tx)
		case NUnique:
			g.unique[spec.Measure.ident(tx)] = struct{}{}
		}
	}

	rows := make([]models.AggregateRow, 0, len(groups))
	for _, g := range groups {
		r := g.row
		switch spec.Func {
		case Sum:
			r.Value = g.sum
		case Mean:
			r.Value = g.sum / float64(r.Count)
		case Count:
			r.Value = float64(r.Count)
		case NUnique:
			r.Value = float64(len(g.unique))
		}
		rows = append(rows, r)
	}
	slices.SortFunc(rows, func(a, b models.AggregateRow) int {
		return models.CompareKeys(a.Key, b.Key)
	})
	return rows
}

// SortDescending returns a copy of rows ordered by descending Value. The sort
// is stable: rows with equal values keep their incoming relative order.
func SortDescending(rows []models.AggregateRow) []models.AggregateRow {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b models.AggregateRow) int {
		if a.Value > b.Value {
			return -1
		}
		if a.Value < b.Value {
			return 1
		}
		return 0
	})
	return out
}

func Top(rows []models.AggregateRow, n int) []models.AggregateRow {
	if n < 0 {
		n = 0
	}
	if len(rows) <= n {
		return slices.Clone(rows)
	}
	return slices.Clone(rows[:n])
}

// MaxRow returns the first row holding the largest Value.
func MaxRow(rows []models.AggregateRow) (models.AggregateRow, error) {
	if len(rows) == 0 {
		return models.AggregateRow{}, insufficient("max", "no rows")
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Value > best.Value {
			best = r
		}
	}
	return best, nil
}

// MinRow returns the first row holding the smallest Value.
func MinRow(rows []models.AggregateRow) (models.AggregateRow, error) {
	if len(rows) == 0 {
		return models.AggregateRow{}, insufficient("min", "no rows")
	}
	worst := rows[0]
	for _, r := range rows[1:] {
		if r.Value < worst.Value {
			worst = r
		}
	}
	return worst, nil
}
