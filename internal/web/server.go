package web

import (
	"html/template"
	"net/http"

	"meshbridge/internal/config"
	"meshbridge/internal/tracker"
)

// Server is the HTTP status surface: a tracker table, a JSON API, and the
// Prometheus scrape endpoint.
type Server struct {
	cfg      *config.Config
	trackers *tracker.Registry
	mux      *http.ServeMux
	tmpl     *template.Template
}

// NewServer creates a status server over the given registry. metricsHandler
// serves /metrics; pass nil to omit the endpoint.
func NewServer(cfg *config.Config, trackers *tracker.Registry, metricsHandler http.Handler) *Server {
	server := &Server{
		cfg:      cfg,
		trackers: trackers,
		mux:      http.NewServeMux(),
		tmpl:     template.Must(template.New("status").Parse(statusTemplate)),
	}

	server.mux.HandleFunc("/", server.handleStatus)
	server.mux.HandleFunc("/api/trackers", server.handleTrackersAPI)
	if metricsHandler != nil {
		server.mux.Handle("/metrics", metricsHandler)
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return http.ListenAndServe(s.cfg.HTTPListen, s.mux)
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
