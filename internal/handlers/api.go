package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/services"
)

// InsufficientRecorder counts computations answered with insufficient data.
type InsufficientRecorder interface {
	InsufficientData(operation string)
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	recorder  InsufficientRecorder
	validate  *validator.Validate
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, recorder InsufficientRecorder) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		recorder:  recorder,
		validate:  validator.New(),
	}
}

type topQuery struct {
	N int `validate:"min=1,max=100"`
}

type yearOverYearQuery struct {
	From int `validate:"min=1900,max=2100"`
	To   int `validate:"min=1900,max=2100,nefield=From"`
}

type monthQuery struct {
	Year  int `validate:"min=1900,max=2100"`
	Month int `validate:"min=1,max=12"`
}

// yearSelector reads the optional ?year= parameter.
func yearSelector(r *http.Request) (dataset.YearSelector, error) {
	sel, err := dataset.ParseYearSelector(r.URL.Query().Get("year"))
	if err != nil {
		return dataset.YearSelector{}, errors.BadRequestWrap(err, "Invalid year")
	}
	return sel, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequestWrap(err, fmt.Sprintf("Invalid %s parameter", name))
	}
	return v, nil
}

func (h *APIHandlers) check(q any) error {
	if err := h.validate.Struct(q); err != nil {
		return errors.ValidationWrap(err, "Invalid query parameters")
	}
	return nil
}

// respond writes data, or maps err onto the error envelope.
func (h *APIHandlers) respond(w http.ResponseWriter, r *http.Request, op string, data any, err error) {
	if err != nil {
		if services.IsInsufficient(err) && h.recorder != nil {
			h.recorder.InsufficientData(op)
		}
		errors.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	errors.WriteSuccess(w, r, data)
}

// withYear adapts a year-selected computation into a handler.
func withYear[T any](h *APIHandlers, op string, compute func(dataset.YearSelector) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, err := yearSelector(r)
		if err != nil {
			errors.WriteError(w, r, h.logger, err)
			return
		}
		data, err := compute(sel)
		h.respond(w, r, op, data, err)
	}
}

func (h *APIHandlers) HandleDepartmentABC() http.HandlerFunc {
	return withYear(h, "department_abc", h.analytics.DepartmentABC)
}

func (h *APIHandlers) HandleCustomerABC() http.HandlerFunc {
	return withYear(h, "customer_abc", h.analytics.CustomerABC)
}

func (h *APIHandlers) HandleTopSalesperson() http.HandlerFunc {
	return withYear(h, "top_salesperson", h.analytics.TopSalesperson)
}

func (h *APIHandlers) HandleMonthExtremes() http.HandlerFunc {
	return withYear(h, "month_extremes", h.analytics.MonthExtremes)
}

func (h *APIHandlers) HandleQuarterProfitability() http.HandlerFunc {
	return withYear(h, "quarter_profitability", h.analytics.QuarterProfitability)
}

func (h *APIHandlers) HandleCustomerProfitability() http.HandlerFunc {
	return withYear(h, "customer_profitability", h.analytics.CustomerProfitability)
}

func (h *APIHandlers) HandleWorstCustomer() http.HandlerFunc {
	return withYear(h, "worst_customer", h.analytics.WorstCustomerComparison)
}

func (h *APIHandlers) HandleLowQuartile() http.HandlerFunc {
	return withYear(h, "low_quartile", h.analytics.LowQuartileComparison)
}

func (h *APIHandlers) HandleMonthlySales() http.HandlerFunc {
	return withYear(h, "monthly_sales", func(sel dataset.YearSelector) (any, error) {
		return h.analytics.MonthlySales(sel), nil
	})
}

func (h *APIHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	sel, err := yearSelector(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	n, err := queryInt(r, "n", 5)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.check(topQuery{N: n}); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	data, err := h.analytics.TopCustomers(sel, n)
	h.respond(w, r, "top_customers", data, err)
}

func (h *APIHandlers) HandleYearOverYear(w http.ResponseWriter, r *http.Request) {
	var q yearOverYearQuery
	var err error
	if q.From, err = queryInt(r, "from", 0); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if q.To, err = queryInt(r, "to", 0); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.check(q); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	data, err := h.analytics.YearOverYear(q.From, q.To)
	h.respond(w, r, "year_over_year", data, err)
}

func (h *APIHandlers) HandleMonthProfitability(w http.ResponseWriter, r *http.Request) {
	var q monthQuery
	var err error
	if q.Year, err = queryInt(r, "year", 0); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if q.Month, err = queryInt(r, "month", 0); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.check(q); err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	data, err := h.analytics.MonthProfitability(q.Year, q.Month)
	h.respond(w, r, "month_profitability", data, err)
}

func (h *APIHandlers) HandleSalesTrend(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.SalesTrend()
	h.respond(w, r, "sales_trend", data, err)
}

func (h *APIHandlers) HandleSeasonality(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.Seasonality()
	h.respond(w, r, "seasonality", data, err)
}

func (h *APIHandlers) HandleMonthlyGrowth(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "monthly_growth", h.analytics.MonthlyGrowth(), nil)
}

func (h *APIHandlers) HandleYears(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "years", h.analytics.Years(), nil)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()
	if stats.RecordCount == 0 {
		errors.WriteError(w, r, h.logger, errors.ServiceUnavailable("Dataset not loaded"))
		return
	}

	errors.WriteSuccess(w, r, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"records":   stats.RecordCount,
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, r, h.analytics.Stats())
}
