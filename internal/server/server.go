package server

import (
	"log/slog"
	"net/http"

	"paydash/internal/handlers"
	"paydash/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, maxUploadBytes int64, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, maxUploadBytes, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard shell
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Upload and session intents
	s.mux.HandleFunc("POST /api/upload", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("PUT /api/timezone", s.apiHandlers.HandleTimezone)

	// Aggregate views; all accept the filter state as query parameters
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/psp-stats", s.apiHandlers.HandlePSPStats)
	s.mux.HandleFunc("GET /api/country-stats", s.apiHandlers.HandleCountryStats)
	s.mux.HandleFunc("GET /api/mid-stats", s.apiHandlers.HandleMidStats)
	s.mux.HandleFunc("GET /api/timeseries", s.apiHandlers.HandleTimeseries)
	s.mux.HandleFunc("GET /api/status-breakdown", s.apiHandlers.HandleStatusBreakdown)
	s.mux.HandleFunc("GET /api/insights", s.apiHandlers.HandleInsights)
	s.mux.HandleFunc("GET /api/country/{name}", s.apiHandlers.HandleCountryDetail)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /sse/country/{name}", s.sseHandlers.HandleCountryDetail)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
