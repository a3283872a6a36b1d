package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandlers struct {
	source export.Source
	logger *slog.Logger
}

func NewExportHandlers(source export.Source, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{source: source, logger: logger}
}

// HandleReport streams the workbook for the selected year. The workbook is
// built in memory first so a failure still yields a JSON error.
func (h *ExportHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	sel, err := yearSelector(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, h.source, sel); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reporte-ventas-%s.xlsx"`, sel))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write report", "error", err)
	}
}
