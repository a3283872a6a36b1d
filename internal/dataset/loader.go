package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// Column headers of the transactions file.
const (
	ColDate        = "Fecha"
	ColYear        = "Año"
	ColMonth       = "Mes"
	ColDepartment  = "Departamento - Clave"
	ColCustomer    = "Número de cliente"
	ColSalesperson = "Número de Vendedor"
	ColNetSales    = "Ventas Netas (USD)"
	ColCost        = "Costo (USD)"
)

var requiredColumns = []string{ColDate, ColDepartment, ColCustomer, ColSalesperson, ColNetSales, ColCost}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// ErrDataFormat matches every *DataFormatError via errors.Is.
var ErrDataFormat = errors.New("data format error")

// DataFormatError reports malformed input. Line is 1-based and counts the
// header; it is zero for file-level problems.
type DataFormatError struct {
	Line   int
	Column string
	Err    error
}

func (e *DataFormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
	case e.Column != "":
		return fmt.Sprintf("column %q: %v", e.Column, e.Err)
	}
	return e.Err.Error()
}

func (e *DataFormatError) Unwrap() error { return e.Err }

func (e *DataFormatError) Is(target error) bool { return target == ErrDataFormat }

// Load reads a transactions file, choosing the decoder by extension.
func Load(ctx context.Context, path string) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(ctx, f)
	}
	return LoadCSV(ctx, f)
}

func LoadCSV(ctx context.Context, r io.Reader) (models.Dataset, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("read csv: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return models.Dataset{}, &DataFormatError{Err: fmt.Errorf("parse csv: %w", err)}
	}
	return parseRecords(ctx, records, false)
}

// LoadXLSX reads the first sheet of a workbook with the same header
// contract as the CSV file. Cells are read raw, so date-formatted cells
// arrive as Excel serial numbers.
func LoadXLSX(ctx context.Context, r io.Reader) (models.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Dataset{}, &DataFormatError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Dataset{}, &DataFormatError{Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return models.Dataset{}, &DataFormatError{Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	return parseRecords(ctx, rows, true)
}

type columnIndex map[string]int

func (c columnIndex) cell(record []string, name string) (string, bool) {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

func indexHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		idx[normalizeHeader(h)] = i
	}
	resolved := make(columnIndex)
	for _, name := range slices.Concat(requiredColumns, []string{ColYear, ColMonth}) {
		if i, ok := idx[normalizeHeader(name)]; ok {
			resolved[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := resolved[name]; !ok {
			return nil, &DataFormatError{Line: 1, Column: name, Err: errors.New("required column missing")}
		}
	}
	return resolved, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func parseRecords(ctx context.Context, records [][]string, serialDates bool) (models.Dataset, error) {
	if len(records) == 0 {
		return models.Dataset{}, &DataFormatError{Err: errors.New("empty file")}
	}
	cols, err := indexHeader(records[0])
	if err != nil {
		return models.Dataset{}, err
	}

	body := records[1:]
	rows := make([]models.Transaction, len(body))

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for start := 0; start < len(body); start += batchSize {
		end := min(start+batchSize, len(body))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				tx, err := parseTransaction(cols, body[i], i+2, serialDates)
				if err != nil {
					return err
				}
				rows[i] = tx
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Dataset{}, err
	}

	if len(rows) == 0 {
		return models.Dataset{}, &DataFormatError{Err: errors.New("no data rows")}
	}
	return models.NewDataset(rows), nil
}

func parseTransaction(cols columnIndex, record []string, line int, serialDates bool) (models.Transaction, error) {
	fail := func(column string, err error) (models.Transaction, error) {
		return models.Transaction{}, &DataFormatError{Line: line, Column: column, Err: err}
	}

	raw, _ := cols.cell(record, ColDate)
	date, err := parseDate(raw, serialDates)
	if err != nil {
		return fail(ColDate, err)
	}

	year, month := date.Year(), int(date.Month())
	if v, ok := cols.cell(record, ColYear); ok && v != "" {
		if year, err = parseInt(v); err != nil {
			return fail(ColYear, err)
		}
	}
	if v, ok := cols.cell(record, ColMonth); ok && v != "" {
		if month, err = parseInt(v); err != nil {
			return fail(ColMonth, err)
		}
		if month < 1 || month > 12 {
			return fail(ColMonth, fmt.Errorf("month %d out of range", month))
		}
	}

	sales, err := parseMoney(cellOrEmpty(cols, record, ColNetSales))
	if err != nil {
		return fail(ColNetSales, err)
	}
	cost, err := parseMoney(cellOrEmpty(cols, record, ColCost))
	if err != nil {
		return fail(ColCost, err)
	}

	return models.Transaction{
		Date:          date,
		Year:          year,
		Month:         month,
		Quarter:       models.QuarterLabel(year, month),
		Department:    normalizeID(cellOrEmpty(cols, record, ColDepartment)),
		CustomerID:    normalizeID(cellOrEmpty(cols, record, ColCustomer)),
		SalespersonID: normalizeID(cellOrEmpty(cols, record, ColSalesperson)),
		NetSales:      sales,
		Cost:          cost,
	}, nil
}

func cellOrEmpty(cols columnIndex, record []string, name string) string {
	v, _ := cols.cell(record, name)
	return v
}

func parseDate(s string, serial bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if serial {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			t, err := excelize.ExcelDateToTime(f, false)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
			}
			return t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseInt(s string) (int, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	// Spreadsheet exports write integral columns as "2015.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return int(f), nil
}

func parseMoney(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return 0, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return d.InexactFloat64(), nil
}

// normalizeID drops a trailing ".0" so numeric identifiers read from
// spreadsheets match their CSV form.
func normalizeID(s string) string {
	return strings.TrimSuffix(s, ".0")
}
