package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"paydash/internal/config"
	"paydash/internal/ingest"
	"paydash/internal/models"
)

const maxWorkers = 10

// UploadStats summarizes one completed ingestion.
type UploadStats struct {
	Rows        int       `json:"rows"`
	Loaded      int       `json:"loaded"`
	Quarantined int       `json:"quarantined"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Analytics owns the session's transaction set and serves every derived view
// over it. All state is in memory and replaced wholesale by the next upload.
// Aggregates are memoized per filter-state fingerprint and invalidated on
// upload and timezone changes.
type Analytics struct {
	mu           sync.RWMutex
	transactions []models.Transaction
	stats        UploadStats
	location     *time.Location
	timezone     string

	timezones  []string
	methods    MethodMap
	normalizer Normalizer
	reader     ingest.Reader
	results    *cache.Cache
	logger     *slog.Logger
}

func NewAnalytics(cfg config.AnalyticsConfig, upload config.UploadConfig, logger *slog.Logger) (*Analytics, error) {
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.DefaultTimezone, err)
	}

	methods := make(MethodMap, len(cfg.MethodMapping))
	for psp, method := range cfg.MethodMapping {
		methods[psp] = method
	}

	return &Analytics{
		transactions: []models.Transaction{},
		location:     loc,
		timezone:     cfg.DefaultTimezone,
		timezones:    cfg.Timezones,
		methods:      methods,
		normalizer:   Normalizer{DefaultCurrency: cfg.DefaultCurrency},
		reader:       ingest.Reader{BatchSize: upload.BatchSize, MaxRows: upload.MaxRows},
		results:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:       logger,
	}, nil
}

// LoadCSV ingests a new upload, replacing the current transaction set. The
// swap happens only after the whole file decodes cleanly, so a failed or
// cancelled upload commits nothing. Batches are normalized concurrently but
// row order is preserved.
func (a *Analytics) LoadCSV(ctx context.Context, r io.Reader) (UploadStats, error) {
	a.mu.RLock()
	loc := a.location
	a.mu.RUnlock()

	var (
		loaded      []models.Transaction
		quarantined int
	)

	rows, err := a.reader.Read(ctx, r, func(batch []models.RawRecord) error {
		normalized := make([]models.Transaction, len(batch))
		valid := make([]bool, len(batch))

		var g errgroup.Group
		g.SetLimit(maxWorkers)
		for i, record := range batch {
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				normalized[i], valid[i] = a.normalizer.NormalizeRecord(record, loc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i := range normalized {
			if valid[i] {
				loaded = append(loaded, normalized[i])
			} else {
				quarantined++
			}
		}
		return nil
	})
	if err != nil {
		return UploadStats{}, fmt.Errorf("ingest csv: %w", err)
	}

	stats := UploadStats{
		Rows:        rows,
		Loaded:      len(loaded),
		Quarantined: quarantined,
		LoadedAt:    time.Now().UTC(),
	}

	a.mu.Lock()
	a.transactions = loaded
	a.stats = stats
	a.mu.Unlock()
	a.results.Flush()

	a.logger.Info("upload processed",
		"rows", stats.Rows,
		"loaded", stats.Loaded,
		"quarantined", stats.Quarantined,
	)

	return stats, nil
}

// SetData replaces the transaction set directly. Used by tests.
func (a *Analytics) SetData(txs []models.Transaction) {
	a.mu.Lock()
	a.transactions = Relocalize(txs, a.location)
	a.stats = UploadStats{
		Rows:     len(txs),
		Loaded:   len(txs),
		LoadedAt: time.Now().UTC(),
	}
	a.mu.Unlock()
	a.results.Flush()
}

// SetTimezone switches the active timezone and re-derives every local
// projection from the unchanged processing instants.
func (a *Analytics) SetTimezone(name string) error {
	allowed := false
	for _, tz := range a.timezones {
		if tz == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("timezone %q is not in the allowed list", name)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}

	a.mu.Lock()
	a.location = loc
	a.timezone = name
	a.transactions = Relocalize(a.transactions, loc)
	a.mu.Unlock()
	a.results.Flush()

	return nil
}

// Timezone returns the active timezone name.
func (a *Analytics) Timezone() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.timezone
}

// Timezones returns the selectable timezone names.
func (a *Analytics) Timezones() []string {
	return a.timezones
}

// Filtered returns the subset matching the filter state, in upload order.
func (a *Analytics) Filtered(filter models.FilterState) []models.Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ApplyFilters(a.transactions, filter, a.location, a.methods)
}

// Snapshot computes (or returns the memoized) aggregate result for a filter
// state. Recomputation is always from scratch over the filtered subset.
func (a *Analytics) Snapshot(filter models.FilterState) *models.AggregateResult {
	key := a.fingerprint(filter)
	if cached, ok := a.results.Get(key); ok {
		return cached.(*models.AggregateResult)
	}

	result := Aggregate(a.Filtered(filter))
	a.results.Set(key, result, cache.DefaultExpiration)
	return result
}

// Insights evaluates the heuristic rules over the filtered subset.
func (a *Analytics) Insights(filter models.FilterState) []models.Insight {
	return DeriveInsights(a.Filtered(filter))
}

// CountryDetail runs the country-scoped drill-down over the filtered subset.
func (a *Analytics) CountryDetail(filter models.FilterState, country string) models.CountryDetail {
	return CountryDetailFor(a.Filtered(filter), country)
}

// Stats reports session state for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"rows":        a.stats.Rows,
		"loaded":      a.stats.Loaded,
		"quarantined": a.stats.Quarantined,
		"loaded_at":   a.stats.LoadedAt,
		"timezone":    a.timezone,
		"cached":      a.results.ItemCount(),
	}
}

func (a *Analytics) fingerprint(filter models.FilterState) string {
	encoded, err := json.Marshal(filter)
	if err != nil {
		return ""
	}
	return a.Timezone() + "|" + string(encoded)
}
