package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paydash/internal/models"
)

func TestRenderFragment_KPI(t *testing.T) {
	kpi := models.KPISnapshot{
		ApprovedCount:       12,
		DeclinedCount:       3,
		ApprovalRate:        80,
		TotalApprovedAmount: 1234.5,
		UniqueCountries:     4,
		UniqueCustomers:     9,
		AverageAmount:       102.88,
		AverageAmountUnit:   "per day",
	}

	html, err := renderFragment(kpiTemplate, kpi)
	if err != nil {
		t.Fatalf("renderFragment() error = %v", err)
	}

	for _, want := range []string{
		`id="kpi-content"`,
		"<strong>12</strong>",
		"<strong>3</strong>",
		"80.0%",
		"1234.50",
		"per day",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("kpi fragment missing %q", want)
		}
	}
}

func TestRenderFragment_PSPTableCapsRows(t *testing.T) {
	stats := make([]models.DimensionStat, maxTableRows+20)
	for i := range stats {
		stats[i] = models.DimensionStat{
			Name:          "psp",
			ApprovedCount: i,
		}
	}

	html, err := renderFragment(pspTableTemplate, stats[:maxTableRows])
	if err != nil {
		t.Fatalf("renderFragment() error = %v", err)
	}

	// One row per entry plus the header row.
	if rows := strings.Count(html, "<tr>") - 1; rows != maxTableRows {
		t.Errorf("table has %d rows, want %d", rows, maxTableRows)
	}
}

func TestSSEHandlers_HandleDashboard(t *testing.T) {
	_, analytics := newTestHandlers(t, 1<<20)
	seedTransactions(analytics)
	h := NewSSEHandlers(analytics, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/dashboard", nil)
	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"kpi-content",
		"psp-content",
		"countriesData",
		"hourlyData",
		"insightsData",
		`"timezone":"UTC"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q", want)
		}
	}
}

func TestSSEHandlers_HandleDashboard_AppliesFilters(t *testing.T) {
	_, analytics := newTestHandlers(t, 1<<20)
	seedTransactions(analytics)
	h := NewSSEHandlers(analytics, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/dashboard?psp=stripe", nil)
	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "adyen") {
		t.Error("filtered-out PSP leaked into the stream")
	}
	if !strings.Contains(body, "stripe") {
		t.Error("stream missing the selected PSP")
	}
}

func TestSSEHandlers_HandleCountryDetail(t *testing.T) {
	_, analytics := newTestHandlers(t, 1<<20)
	seedTransactions(analytics)
	h := NewSSEHandlers(analytics, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/country/Germany", nil)
	req.SetPathValue("name", "Germany")
	rec := httptest.NewRecorder()
	h.HandleCountryDetail(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "countryDetail") || !strings.Contains(body, "Germany") {
		t.Errorf("stream = %q, want country detail signals", body)
	}
}
