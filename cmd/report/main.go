// Command report writes the dashboard's Excel report without starting the
// web server.
package main

import (
	"context"
	"flag"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/export"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const loadTimeout = 60 * time.Second

func main() {
	logger := observability.NewLoggerTo(os.Stderr, config.LoggerConfig{Level: "info", Format: "text"})
	if err := run(context.Background(), os.Args[1:], logger); err != nil {
		logger.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	file := fs.String("file", "ventas.csv", "transactions file (.csv or .xlsx)")
	year := fs.String("year", "all", "year to report, or \"all\"")
	out := fs.String("out", "", "output workbook (defaults to reporte-ventas-<year>.xlsx)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sel, err := dataset.ParseYearSelector(*year)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = fmt.Sprintf("reporte-ventas-%s.xlsx", sel)
	}

	analytics := services.NewAnalytics(services.WithLogger(logger))
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := analytics.LoadFromFile(loadCtx, *file); err != nil {
		return err
	}

	if err := writeReport(*out, analytics, sel); err != nil {
		return err
	}

	logger.Info("report written", "path", *out, "year", sel.String())
	return nil
}

// writeReport creates path and fills it with the workbook. A failed write
// leaves no file behind.
func writeReport(path string, src export.Source, sel dataset.YearSelector) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(path))
		}
	}()

	if err := export.WriteReport(f, src, sel); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
