package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/analysis"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	maxTableRows = 50
	topCustomers = 5
)

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"money":  formatMoney,
	"pct":    formatPct,
	"mul100": func(v float64) float64 { return v * 100 },
	"deref":  func(v *float64) float64 { return *v },
	"limit":  func(n int) bool { return n < maxTableRows },
	"name":   analysis.MonthName,
}).Parse(`
{{define "empty"}}<div id="{{.ID}}" class="empty">{{.Message}}</div>{{end}}

{{define "classification"}}<div id="{{.ID}}">
<table>
<thead><tr><th>{{.KeyTitle}}</th><th>Ventas</th><th>% acumulado</th><th>Clase</th></tr></thead>
<tbody>
{{range $i, $r := .Data.Rows}}{{if limit $i}}<tr><td>{{$r.Key}}</td><td>{{money $r.Value}}</td><td>{{pct (mul100 $r.CumulativeShare)}}</td><td class="badge-{{$r.Label}}">{{$r.Label}}</td></tr>{{end}}{{end}}
</tbody>
</table>
<table>
<thead><tr><th>Clase</th><th>Ventas</th><th>Elementos</th></tr></thead>
<tbody>
{{range .Data.Summary}}<tr><td class="badge-{{.Label}}">{{.Label}}</td><td>{{if .Total}}{{money (deref .Total)}}{{else}}-{{end}}</td><td>{{.Count}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "share"}}<div id="{{.ID}}">
<table>
<thead><tr><th>Cliente</th><th>Ventas</th><th>Participación</th></tr></thead>
<tbody>
{{range .Data.Slices}}<tr><td>{{.Label}}</td><td>{{money .Sales}}</td><td>{{pct .SharePct}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "salesperson"}}<div id="{{.ID}}">
<p>Vendedor <strong>{{.Data.SalespersonID}}</strong> atendió a {{.Data.CustomerCount}} clientes distintos.</p>
<table>
<thead><tr><th>Mes</th><th>Clientes</th></tr></thead>
<tbody>
{{range .Data.CustomersByMonth}}<tr><td>{{.Key}}</td><td>{{.Value}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "monthly"}}<div id="{{.ID}}">
<p>Mejor mes: <strong>{{.Data.Extremes.Best.Key}}</strong> ({{money .Data.Extremes.Best.Value}}).
Peor mes: <strong>{{.Data.Extremes.Worst.Key}}</strong> ({{money .Data.Extremes.Worst.Value}}).</p>
<table>
<thead><tr><th>Mes</th><th>Ventas</th></tr></thead>
<tbody>
{{range .Data.Rows}}<tr><td>{{.Key}}</td><td>{{money .Value}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "trend"}}<div id="{{.ID}}">
<p>Pendiente: {{money .Data.Slope}} por mes. Intercepto: {{money .Data.Intercept}}.</p>
<table>
<thead><tr><th>Periodo</th><th>Ventas</th><th>Tendencia</th></tr></thead>
<tbody>
{{range .Data.Points}}<tr><td>{{.Period}}</td><td>{{money .Actual}}</td><td>{{money .Fitted}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "seasonality"}}<div id="{{.ID}}">
<p>Promedio mensual: {{money .Data.Baseline}}. Pico: {{.Data.Peak.Name}}. Valle: {{.Data.Trough.Name}}.</p>
<table>
<thead><tr><th>Mes</th><th>Promedio</th></tr></thead>
<tbody>
{{range .Data.Months}}<tr><td>{{name .Month}}</td><td>{{money .Mean}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "profitability"}}<div id="{{.ID}}">
<p>Menor margen: <strong>{{.Data.Worst.Key}}</strong> ({{pct .Data.Worst.MarginPct}}).</p>
<table>
<thead><tr><th>{{.KeyTitle}}</th><th>Ventas</th><th>Costo</th><th>Margen</th></tr></thead>
<tbody>
{{range $i, $r := .Data.Rows}}{{if limit $i}}<tr><td>{{$r.Key}}</td><td>{{money $r.Sales}}</td><td>{{money $r.Cost}}</td><td>{{pct $r.MarginPct}}</td></tr>{{end}}{{end}}
</tbody>
</table>
</div>{{end}}

{{define "comparison"}}<div id="{{.ID}}">
<p>Cliente <strong>{{.Data.CustomerID}}</strong> con margen {{pct .Data.MarginPct}}{{if .Data.Cutoff}}; corte del cuartil inferior {{pct (deref .Data.Cutoff)}} ({{len .Data.Customers}} clientes){{end}}.</p>
<table>
<thead><tr><th>Mes</th><th>Total</th><th>Cliente</th></tr></thead>
<tbody>
{{range .Data.Points}}<tr><td>{{.Period}}</td><td>{{money .Total}}</td><td>{{money .Focus}}</td></tr>{{end}}
</tbody>
</table>
</div>{{end}}
`))

type fragmentData struct {
	ID       string
	KeyTitle string
	Message  string
	Data     any
}

type monthlyView struct {
	Rows     []models.AggregateRow
	Extremes models.MonthExtremes
}

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	recorder  InsufficientRecorder
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, recorder InsufficientRecorder) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		recorder:  recorder,
	}
}

// dashboardSignals are the client signals every dashboard request carries.
type dashboardSignals struct {
	Year string `json:"year"`
}

// Section ids patched by each stream, in render order.
var (
	abcSectionIDs           = []string{"abc-departments", "abc-customers"}
	customerSectionIDs      = []string{"top-customers", "top-salesperson"}
	salesSectionIDs         = []string{"monthly-sales", "sales-trend", "seasonality"}
	profitabilitySectionIDs = []string{"quarter-profitability", "customer-profitability", "worst-customer", "low-quartile"}
)

// selector reads the year signal. A request without signals means all
// years; a year that does not parse is an error.
func (h *SSEHandlers) selector(r *http.Request) (dataset.YearSelector, error) {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Debug("read signals", "error", err)
		return dataset.AllYears(), nil
	}
	sel, err := dataset.ParseYearSelector(signals.Year)
	if err != nil {
		h.logger.Warn("invalid year signal", "year", signals.Year, "path", r.URL.Path)
		return dataset.YearSelector{}, err
	}
	return sel, nil
}

// invalidYear renders the same error block into every given section.
func invalidYear(ids ...[]string) []string {
	const msg = "Año inválido. Elija un año de la lista."
	var blocks []string
	for _, group := range ids {
		for _, id := range group {
			html, _ := renderFragment("empty", fragmentData{ID: id, Message: msg})
			blocks = append(blocks, html)
		}
	}
	return blocks
}

func renderFragment(name string, data fragmentData) (string, error) {
	var buf strings.Builder
	err := fragments.ExecuteTemplate(&buf, name, data)
	return buf.String(), err
}

// section renders one dashboard block. Insufficient data becomes an empty
// state; any other failure is logged and shown as an error block.
func (h *SSEHandlers) section(id, name, keyTitle string, data any, err error) string {
	if err != nil {
		msg := "Error al calcular esta sección."
		if services.IsInsufficient(err) {
			msg = "No hay datos suficientes para esta selección."
			if h.recorder != nil {
				h.recorder.InsufficientData(id)
			}
		} else {
			h.logger.Error("compute section", "section", id, "error", err)
		}
		html, _ := renderFragment("empty", fragmentData{ID: id, Message: msg})
		return html
	}

	html, err := renderFragment(name, fragmentData{ID: id, KeyTitle: keyTitle, Data: data})
	if err != nil {
		h.logger.Error("render section", "section", id, "error", err)
		html, _ = renderFragment("empty", fragmentData{ID: id, Message: "Error al mostrar esta sección."})
	}
	return html
}

func (h *SSEHandlers) abcSections(sel dataset.YearSelector) []string {
	deps, depErr := h.analytics.DepartmentABC(sel)
	customers, custErr := h.analytics.CustomerABC(sel)
	return []string{
		h.section("abc-departments", "classification", "Departamento", deps, depErr),
		h.section("abc-customers", "classification", "Cliente", customers, custErr),
	}
}

func (h *SSEHandlers) customerSections(sel dataset.YearSelector) []string {
	top, topErr := h.analytics.TopCustomers(sel, topCustomers)
	seller, sellerErr := h.analytics.TopSalesperson(sel)
	return []string{
		h.section("top-customers", "share", "", top, topErr),
		h.section("top-salesperson", "salesperson", "", seller, sellerErr),
	}
}

func (h *SSEHandlers) salesSections(sel dataset.YearSelector) ([]string, map[string]any) {
	rows := h.analytics.MonthlySales(sel)
	extremes, extErr := h.analytics.MonthExtremes(sel)
	trend, trendErr := h.analytics.SalesTrend()
	season, seasonErr := h.analytics.Seasonality()

	signals := map[string]any{"monthlyData": rows}
	if trendErr == nil {
		signals["trendData"] = trend.Points
	}
	return []string{
		h.section("monthly-sales", "monthly", "", monthlyView{Rows: rows, Extremes: extremes}, extErr),
		h.section("sales-trend", "trend", "", trend, trendErr),
		h.section("seasonality", "seasonality", "", season, seasonErr),
	}, signals
}

func (h *SSEHandlers) profitabilitySections(sel dataset.YearSelector) []string {
	quarters, qErr := h.analytics.QuarterProfitability(sel)
	customers, cErr := h.analytics.CustomerProfitability(sel)
	worst, wErr := h.analytics.WorstCustomerComparison(sel)
	low, lErr := h.analytics.LowQuartileComparison(sel)
	return []string{
		h.section("quarter-profitability", "profitability", "Trimestre", quarters, qErr),
		h.section("customer-profitability", "profitability", "Cliente / Año", customers, cErr),
		h.section("worst-customer", "comparison", "", worst, wErr),
		h.section("low-quartile", "comparison", "", low, lErr),
	}
}

func (h *SSEHandlers) send(w http.ResponseWriter, r *http.Request, blocks []string, signals map[string]any) {
	sse := datastar.NewSSE(w, r)

	for _, html := range blocks {
		if err := sse.PatchElements(html); err != nil {
			h.logger.Warn("patch elements", "error", err)
			return
		}
	}

	if len(signals) > 0 {
		jsonData, err := json.Marshal(signals)
		if err != nil {
			h.logger.Error("marshal signals", "error", err)
			return
		}
		if err := sse.PatchSignals(jsonData); err != nil {
			h.logger.Warn("patch signals", "error", err)
		}
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// stream resolves the selection and sends the blocks built for it. An
// invalid year replaces the given sections with an error block.
func (h *SSEHandlers) stream(w http.ResponseWriter, r *http.Request, ids [][]string, build func(dataset.YearSelector) ([]string, map[string]any)) {
	sel, err := h.selector(r)
	if err != nil {
		h.send(w, r, invalidYear(ids...), nil)
		return
	}
	blocks, signals := build(sel)
	h.send(w, r, blocks, signals)
}

func (h *SSEHandlers) HandleABC(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, [][]string{abcSectionIDs}, func(sel dataset.YearSelector) ([]string, map[string]any) {
		return h.abcSections(sel), nil
	})
}

func (h *SSEHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, [][]string{customerSectionIDs}, func(sel dataset.YearSelector) ([]string, map[string]any) {
		return h.customerSections(sel), nil
	})
}

func (h *SSEHandlers) HandleSales(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, [][]string{salesSectionIDs}, h.salesSections)
}

func (h *SSEHandlers) HandleProfitability(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, [][]string{profitabilitySectionIDs}, func(sel dataset.YearSelector) ([]string, map[string]any) {
		return h.profitabilitySections(sel), nil
	})
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	all := [][]string{abcSectionIDs, customerSectionIDs, salesSectionIDs, profitabilitySectionIDs}
	h.stream(w, r, all, func(sel dataset.YearSelector) ([]string, map[string]any) {
		blocks := h.abcSections(sel)
		blocks = append(blocks, h.customerSections(sel)...)
		sales, signals := h.salesSections(sel)
		blocks = append(blocks, sales...)
		blocks = append(blocks, h.profitabilitySections(sel)...)
		return blocks, signals
	})
}
