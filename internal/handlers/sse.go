package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"paydash/internal/services"
)

const maxTableRows = 50

var kpiTemplate = template.Must(template.New("kpis").Parse(`
<div id="kpi-content">
<div class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Approved</span><strong>{{.ApprovedCount}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Declined</span><strong>{{.DeclinedCount}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Approval rate</span><strong>{{printf "%.1f" .ApprovalRate}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Approved amount</span><strong>{{printf "%.2f" .TotalApprovedAmount}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Countries</span><strong>{{.UniqueCountries}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Customers</span><strong>{{.UniqueCustomers}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Average ({{.AverageAmountUnit}})</span><strong>{{printf "%.2f" .AverageAmount}}</strong></div>
</div>
</div>`))

var pspTableTemplate = template.Must(template.New("pspTable").Parse(`
<div id="psp-content">
<table class="modern-table">
<thead><tr><th>PSP</th><th>Approved</th><th>Declined</th><th>Amount</th><th>Rate</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Name}}</td>
<td>{{.ApprovedCount}}</td>
<td>{{.DeclinedCount}}</td>
<td><strong>{{printf "%.2f" .ApprovedAmount}}</strong></td>
<td>{{printf "%.1f" .ApprovalRate}}%</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func renderFragment(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, data)
	return buf.String(), err
}

// HandleDashboard pushes the whole dashboard state for the requested filters:
// patched KPI and PSP table fragments plus chart signals for the rest.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	filter := filterFromQuery(r)
	result := h.analytics.Snapshot(filter)

	kpiHTML, err := renderFragment(kpiTemplate, result.KPI)
	if err != nil {
		h.logger.Error("render kpi fragment", "error", err)
		return
	}
	sse.PatchElements(kpiHTML)

	psps := result.PSPs
	if len(psps) > maxTableRows {
		psps = psps[:maxTableRows]
	}
	pspHTML, err := renderFragment(pspTableTemplate, psps)
	if err != nil {
		h.logger.Error("render psp table", "error", err)
		return
	}
	sse.PatchElements(pspHTML)

	signals, err := json.Marshal(map[string]any{
		"countriesData": result.Countries,
		"hourlyData":    result.Hourly,
		"dailyData":     result.Daily,
		"weeklyData":    result.Weekly,
		"monthlyData":   result.Monthly,
		"statusData":    result.StatusBreakdown,
		"insightsData":  h.analytics.Insights(filter),
		"granularity":   services.Granularity(filter.StartDate, filter.EndDate),
		"timezone":      h.analytics.Timezone(),
	})
	if err != nil {
		h.logger.Error("marshal dashboard signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleCountryDetail pushes the drill-down signals for one country.
func (h *SSEHandlers) HandleCountryDetail(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	country := r.PathValue("name")
	detail := h.analytics.CountryDetail(filterFromQuery(r), country)

	signals, err := json.Marshal(map[string]any{
		"countryDetail": detail,
	})
	if err != nil {
		h.logger.Error("marshal country detail", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
