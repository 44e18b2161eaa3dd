package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "paydash/internal/errors"
	"paydash/internal/ingest"
	"paydash/internal/models"
	"paydash/internal/observability"
	"paydash/internal/services"
)

type APIHandlers struct {
	analytics      *services.Analytics
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, maxUploadBytes int64, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics:      analytics,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// filterFromQuery decodes the filter state from query parameters. Set-valued
// dimensions are comma-separated.
func filterFromQuery(r *http.Request) models.FilterState {
	q := r.URL.Query()
	return models.FilterState{
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		PSPs:       splitParam(q.Get("psp")),
		Countries:  splitParam(q.Get("country")),
		Statuses:   splitParam(q.Get("status")),
		CardTypes:  splitParam(q.Get("card_type")),
		MidAliases: splitParam(q.Get("mid_alias")),
		Methods:    splitParam(q.Get("method")),
	}
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// HandleUpload ingests a new transaction file, replacing the session's data.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apperrors.WriteError(w, h.logger, apperrors.FileTooLarge("Uploaded file exceeds the size limit"), requestID)
			return
		}
		apperrors.WriteError(w, h.logger, apperrors.BadRequestWrap(err, "Request must include a file field"), requestID)
		return
	}
	defer file.Close()

	if !ingest.SupportedExtension(header.Filename) {
		apperrors.WriteError(w, h.logger, apperrors.UnsupportedFile("Only CSV uploads are supported"), requestID)
		return
	}

	stats, err := h.analytics.LoadCSV(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyFile), errors.Is(err, ingest.ErrNoHeader):
			apperrors.WriteError(w, h.logger, apperrors.Validation("File contains no transaction rows"), requestID)
		case errors.Is(err, ingest.ErrTooManyRows):
			apperrors.WriteError(w, h.logger, apperrors.FileTooLarge("File exceeds the row limit"), requestID)
		default:
			apperrors.WriteError(w, h.logger, apperrors.BadRequestWrap(err, "Could not parse the uploaded file"), requestID)
		}
		return
	}

	apperrors.WriteSuccess(w, stats)
}

// HandleSummary returns the full aggregate result for the current filters.
func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	result := h.analytics.Snapshot(filter)

	apperrors.WriteSuccess(w, map[string]any{
		"aggregates":  result,
		"granularity": services.Granularity(filter.StartDate, filter.EndDate),
		"timezone":    h.analytics.Timezone(),
	})
}

func (h *APIHandlers) HandlePSPStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Snapshot(filterFromQuery(r)).PSPs)
}

func (h *APIHandlers) HandleCountryStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Snapshot(filterFromQuery(r)).Countries)
}

func (h *APIHandlers) HandleMidStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Snapshot(filterFromQuery(r)).MidAliases)
}

func (h *APIHandlers) HandleStatusBreakdown(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Snapshot(filterFromQuery(r)).StatusBreakdown)
}

// HandleTimeseries returns one time-bucket view. The granularity comes from
// the query or, absent that, from the selected date-range span.
func (h *APIHandlers) HandleTimeseries(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	filter := filterFromQuery(r)
	result := h.analytics.Snapshot(filter)

	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = services.Granularity(filter.StartDate, filter.EndDate)
	}

	var data any
	switch granularity {
	case "hourly":
		data = result.Hourly
	case "daily":
		data = result.Daily
	case "weekly":
		data = result.Weekly
	case "monthly":
		data = result.Monthly
	default:
		apperrors.WriteError(w, h.logger, apperrors.Validation("granularity must be hourly, daily, weekly or monthly"), requestID)
		return
	}

	apperrors.WriteSuccess(w, map[string]any{
		"granularity": granularity,
		"buckets":     data,
	})
}

func (h *APIHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Insights(filterFromQuery(r)))
}

// HandleCountryDetail serves the drill-down for one selected country.
func (h *APIHandlers) HandleCountryDetail(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	country := r.PathValue("name")
	if country == "" {
		apperrors.WriteError(w, h.logger, apperrors.BadRequest("Country name is required"), requestID)
		return
	}

	detail := h.analytics.CountryDetail(filterFromQuery(r), country)
	apperrors.WriteSuccess(w, detail)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

// HandleTimezone switches the active timezone for local date and hour labels.
func (h *APIHandlers) HandleTimezone(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, h.logger, apperrors.BadRequestWrap(err, "Request body must be JSON with a timezone field"), requestID)
		return
	}

	if err := h.analytics.SetTimezone(req.Timezone); err != nil {
		apperrors.WriteError(w, h.logger, apperrors.Validation(err.Error()), requestID)
		return
	}

	apperrors.WriteSuccess(w, map[string]any{
		"timezone":  h.analytics.Timezone(),
		"timezones": h.analytics.Timezones(),
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, map[string]string{
		"status": "healthy",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Stats())
}
