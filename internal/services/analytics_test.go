package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"paydash/internal/config"
	"paydash/internal/models"
)

func newTestAnalytics(t *testing.T) *Analytics {
	t.Helper()

	cfg := config.AnalyticsConfig{
		DefaultTimezone: "UTC",
		Timezones:       []string{"UTC", "Asia/Dhaka"},
		MethodMapping:   map[string]string{"coinspaid": models.MethodCrypto, "paytora": models.MethodP2P},
		DefaultCurrency: "USD",
		CacheTTL:        time.Minute,
	}
	upload := config.UploadConfig{MaxBytes: 1 << 20, MaxRows: 10000, BatchSize: 100}

	analytics, err := NewAnalytics(cfg, upload, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewAnalytics() error = %v", err)
	}
	return analytics
}

// liveTx builds a fixture with a real processing instant, since SetData
// re-derives the local projections from it.
func liveTx(id, order, psp string, amount float64, status string, instant time.Time) models.Transaction {
	return models.Transaction{
		ID:                id,
		MerchantOrderID:   order,
		PSPName:           psp,
		Status:            status,
		Amount:            amount,
		ProcessingInstant: instant,
	}
}

const testCSV = `id,processing_date,pspName,country,email,amount,currency,status,merchantOrderId
1,2024-03-01T10:30:00Z,coinspaid,DE,a@example.com,100.50,EUR,approved,order-1
2,2024-03-01T19:00:00Z,stripe,US,b@example.com,25,USD,declined,order-2
3,not-a-date,stripe,US,c@example.com,10,USD,approved,order-3
`

func TestAnalytics_LoadCSV(t *testing.T) {
	analytics := newTestAnalytics(t)

	stats, err := analytics.LoadCSV(context.Background(), strings.NewReader(testCSV))
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	if stats.Rows != 3 {
		t.Errorf("Rows = %d, want 3", stats.Rows)
	}
	if stats.Loaded != 2 {
		t.Errorf("Loaded = %d, want 2", stats.Loaded)
	}
	if stats.Quarantined != 1 {
		t.Errorf("Quarantined = %d, want 1", stats.Quarantined)
	}

	txs := analytics.Filtered(models.FilterState{})
	if len(txs) != 2 {
		t.Fatalf("Filtered() returned %d transactions, want 2", len(txs))
	}
	if txs[0].ID != "1" || txs[1].ID != "2" {
		t.Errorf("upload order not preserved: %s, %s", txs[0].ID, txs[1].ID)
	}
}

func TestAnalytics_LoadCSVReplacesPreviousUpload(t *testing.T) {
	analytics := newTestAnalytics(t)

	if _, err := analytics.LoadCSV(context.Background(), strings.NewReader(testCSV)); err != nil {
		t.Fatalf("first LoadCSV() error = %v", err)
	}

	second := "id,processing_date,pspName,status,amount,merchantOrderId\n9,2024-04-01 08:00:00,stripe,approved,50,order-9\n"
	stats, err := analytics.LoadCSV(context.Background(), strings.NewReader(second))
	if err != nil {
		t.Fatalf("second LoadCSV() error = %v", err)
	}
	if stats.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", stats.Loaded)
	}

	txs := analytics.Filtered(models.FilterState{})
	if len(txs) != 1 || txs[0].ID != "9" {
		t.Errorf("previous upload not replaced: %+v", txs)
	}
}

func TestAnalytics_LoadCSVFailureKeepsCurrentData(t *testing.T) {
	analytics := newTestAnalytics(t)
	analytics.SetData([]models.Transaction{
		liveTx("keep", "A", "stripe", 10, models.StatusApproved, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
	})

	if _, err := analytics.LoadCSV(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("LoadCSV() of an empty file should error")
	}

	txs := analytics.Filtered(models.FilterState{})
	if len(txs) != 1 || txs[0].ID != "keep" {
		t.Errorf("failed upload replaced data: %+v", txs)
	}
}

func TestAnalytics_SetTimezoneRelabelsLocalProjections(t *testing.T) {
	analytics := newTestAnalytics(t)

	// 19:00 UTC on March 1st is 01:00 March 2nd in Dhaka (UTC+6).
	instant := time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)
	analytics.SetData([]models.Transaction{{
		ID:                "1",
		MerchantOrderID:   "order-1",
		ProcessingInstant: instant,
		Status:            models.StatusApproved,
		Amount:            10,
	}})

	if err := analytics.SetTimezone("Asia/Dhaka"); err != nil {
		t.Fatalf("SetTimezone() error = %v", err)
	}
	if analytics.Timezone() != "Asia/Dhaka" {
		t.Errorf("Timezone() = %q", analytics.Timezone())
	}

	txs := analytics.Filtered(models.FilterState{})
	if txs[0].LocalDate != "2024-03-02" || txs[0].LocalHour != 1 {
		t.Errorf("local projection = %s %02d, want 2024-03-02 01", txs[0].LocalDate, txs[0].LocalHour)
	}
	if !txs[0].ProcessingInstant.Equal(instant) {
		t.Error("timezone change shifted the processing instant")
	}

	if err := analytics.SetTimezone("UTC"); err != nil {
		t.Fatalf("SetTimezone() error = %v", err)
	}
	txs = analytics.Filtered(models.FilterState{})
	if txs[0].LocalDate != "2024-03-01" || txs[0].LocalHour != 19 {
		t.Errorf("round trip projection = %s %02d, want 2024-03-01 19", txs[0].LocalDate, txs[0].LocalHour)
	}
}

func TestAnalytics_SetTimezoneRejectsUnknown(t *testing.T) {
	analytics := newTestAnalytics(t)

	if err := analytics.SetTimezone("Europe/Berlin"); err == nil {
		t.Error("SetTimezone() should reject timezones outside the allowed list")
	}
	if analytics.Timezone() != "UTC" {
		t.Errorf("Timezone() = %q after rejected change, want UTC", analytics.Timezone())
	}
}

func TestAnalytics_SnapshotMemoization(t *testing.T) {
	analytics := newTestAnalytics(t)
	analytics.SetData([]models.Transaction{
		liveTx("1", "A", "stripe", 10, models.StatusApproved, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
	})

	filter := models.FilterState{PSPs: []string{"stripe"}}
	first := analytics.Snapshot(filter)
	second := analytics.Snapshot(filter)
	if first != second {
		t.Error("repeated snapshot for the same filter should be the memoized result")
	}

	other := analytics.Snapshot(models.FilterState{PSPs: []string{"adyen"}})
	if other == first {
		t.Error("different filters must not share a cache entry")
	}
	if other.FilteredCount != 0 {
		t.Errorf("FilteredCount = %d, want 0 for non-matching filter", other.FilteredCount)
	}
}

func TestAnalytics_SnapshotInvalidatedByNewData(t *testing.T) {
	analytics := newTestAnalytics(t)
	analytics.SetData([]models.Transaction{
		liveTx("1", "A", "stripe", 10, models.StatusApproved, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
	})

	filter := models.FilterState{}
	if got := analytics.Snapshot(filter).KPI.ApprovedCount; got != 1 {
		t.Fatalf("ApprovedCount = %d, want 1", got)
	}

	analytics.SetData([]models.Transaction{
		liveTx("1", "A", "stripe", 10, models.StatusApproved, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
		liveTx("2", "B", "stripe", 20, models.StatusApproved, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)),
	})
	if got := analytics.Snapshot(filter).KPI.ApprovedCount; got != 2 {
		t.Errorf("ApprovedCount after reload = %d, want 2", got)
	}
}

func TestAnalytics_Stats(t *testing.T) {
	analytics := newTestAnalytics(t)

	if _, err := analytics.LoadCSV(context.Background(), strings.NewReader(testCSV)); err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	stats := analytics.Stats()
	if stats["rows"] != 3 || stats["loaded"] != 2 || stats["quarantined"] != 1 {
		t.Errorf("Stats() = %v", stats)
	}
	if stats["timezone"] != "UTC" {
		t.Errorf("timezone = %v, want UTC", stats["timezone"])
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	analytics := newTestAnalytics(t)
	analytics.SetData([]models.Transaction{
		liveTx("1", "A", "stripe", 10, models.StatusApproved, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			filter := models.FilterState{PSPs: []string{fmt.Sprintf("psp-%d", i%3)}}
			_ = analytics.Snapshot(filter)
			_ = analytics.Insights(models.FilterState{})
			_ = analytics.Stats()
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tz := "Asia/Dhaka"
			if i%2 == 0 {
				tz = "UTC"
			}
			_ = analytics.SetTimezone(tz)
		}()
	}
	wg.Wait()
}
