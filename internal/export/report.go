// Package export renders the dashboard's tables into an Excel workbook.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/analysis"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
)

// Source is the subset of the analytics service the report reads.
type Source interface {
	DepartmentABC(sel dataset.YearSelector) (models.Classification, error)
	CustomerABC(sel dataset.YearSelector) (models.Classification, error)
	QuarterProfitability(sel dataset.YearSelector) (models.ProfitabilityReport, error)
	CustomerProfitability(sel dataset.YearSelector) (models.ProfitabilityReport, error)
	SalesTrend() (models.TrendFit, error)
}

const (
	SheetDepartments = "ABC Departamentos"
	SheetCustomers   = "ABC Clientes"
	SheetQuarters    = "Rentabilidad trimestral"
	SheetCustomerPL  = "Rentabilidad clientes"
	SheetTrend       = "Tendencia"
)

type sheetWriter struct {
	f      *excelize.File
	header int
}

// WriteReport builds the workbook for sel and writes it to w. Sections
// without enough data carry a single explanatory row instead of failing the
// whole report.
func WriteReport(w io.Writer, src Source, sel dataset.YearSelector) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	sw := &sheetWriter{f: f, header: header}

	f.SetSheetName(f.GetSheetName(0), SheetDepartments)
	for _, name := range []string{SheetCustomers, SheetQuarters, SheetCustomerPL, SheetTrend} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	sections := []func() error{
		func() error {
			c, err := src.DepartmentABC(sel)
			return sw.classification(SheetDepartments, "Departamento", c, err)
		},
		func() error {
			c, err := src.CustomerABC(sel)
			return sw.classification(SheetCustomers, "Cliente", c, err)
		},
		func() error {
			p, err := src.QuarterProfitability(sel)
			return sw.profitability(SheetQuarters, []string{"Trimestre"}, p, err)
		},
		func() error {
			p, err := src.CustomerProfitability(sel)
			return sw.profitability(SheetCustomerPL, []string{"Cliente", "Año"}, p, err)
		},
		func() error {
			t, err := src.SalesTrend()
			return sw.trend(SheetTrend, t, err)
		},
	}
	for _, section := range sections {
		if err := section(); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (sw *sheetWriter) row(sheet string, n int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return sw.f.SetSheetRow(sheet, cell, &values)
}

func (sw *sheetWriter) headerRow(sheet string, titles ...string) error {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := sw.row(sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	return sw.f.SetCellStyle(sheet, "A1", last, sw.header)
}

// skip writes the insufficient-data notice, or passes any other error up.
func (sw *sheetWriter) skip(sheet string, err error) error {
	if !errors.Is(err, analysis.ErrInsufficientData) {
		return fmt.Errorf("%s: %w", sheet, err)
	}
	return sw.row(sheet, 1, []any{"Datos insuficientes", err.Error()})
}

func (sw *sheetWriter) classification(sheet, keyTitle string, c models.Classification, err error) error {
	if err != nil {
		return sw.skip(sheet, err)
	}
	if err := sw.headerRow(sheet, keyTitle, "Ventas Netas (USD)", "% acumulado", "Clase"); err != nil {
		return err
	}
	for i, r := range c.Rows {
		values := []any{r.Key.String(), r.Value, r.CumulativeShare * 100, string(r.Label)}
		if err := sw.row(sheet, i+2, values); err != nil {
			return err
		}
	}

	next := len(c.Rows) + 3
	if err := sw.row(sheet, next, []any{"Clase", "Ventas Netas (USD)", "Elementos"}); err != nil {
		return err
	}
	for i, s := range c.Summary {
		var total any = "-"
		if s.Total != nil {
			total = *s.Total
		}
		if err := sw.row(sheet, next+i+1, []any{string(s.Label), total, s.Count}); err != nil {
			return err
		}
	}
	return nil
}

func (sw *sheetWriter) profitability(sheet string, keyTitles []string, p models.ProfitabilityReport, err error) error {
	if err != nil {
		return sw.skip(sheet, err)
	}
	titles := append(append([]string{}, keyTitles...), "Ventas Netas (USD)", "Costo (USD)", "Margen %")
	if err := sw.headerRow(sheet, titles...); err != nil {
		return err
	}
	for i, r := range p.Rows {
		values := make([]any, 0, len(titles))
		for _, k := range r.Key {
			values = append(values, k)
		}
		values = append(values, r.Sales, r.Cost, r.MarginPct)
		if err := sw.row(sheet, i+2, values); err != nil {
			return err
		}
	}
	return sw.row(sheet, len(p.Rows)+3, []any{"Menor margen", p.Worst.Key.String(), p.Worst.MarginPct})
}

func (sw *sheetWriter) trend(sheet string, t models.TrendFit, err error) error {
	if err != nil {
		return sw.skip(sheet, err)
	}
	if err := sw.headerRow(sheet, "Periodo", "Ventas Netas (USD)", "Tendencia"); err != nil {
		return err
	}
	for i, p := range t.Points {
		if err := sw.row(sheet, i+2, []any{p.Period, p.Actual, p.Fitted}); err != nil {
			return err
		}
	}
	return sw.row(sheet, len(t.Points)+3, []any{"Pendiente", t.Slope, "Intercepto", t.Intercept})
}
