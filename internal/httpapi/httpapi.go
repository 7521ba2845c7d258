// Package httpapi exposes the search engine over HTTP using chi, with the
// same middleware stack the teacher wires onto its own web server.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arashk/dirdex/internal/searchengine"
)

// Server is the HTTP front-end for one search Engine.
type Server struct {
	host   string
	port   int
	router *chi.Mux
	engine *searchengine.Engine
}

// New creates a Server bound to host:port, exposing GET /status and
// GET /find?q=.
func New(host string, port int, engine *searchengine.Engine) *Server {
	s := &Server{host: host, port: port, engine: engine, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/find", s.handleFind)
}

// Router returns the chi router for embedding or testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := s.host + ":" + portString(s.port)
	return http.ListenAndServe(addr, s.router)
}

type statusResponse struct {
	IndexedFiles         int    `json:"indexed_files"`
	KnownTokens          int    `json:"known_tokens"`
	HandledModifications int    `json:"handled_modifications"`
	TotalModifications   int    `json:"total_modifications"`
	WatcherStartMs       *int64 `json:"watcher_start_ms,omitempty"`
	InitialSyncMs        *int64 `json:"initial_sync_ms,omitempty"`
	Broken               bool   `json:"broken"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status(r.Context())
	resp := statusResponse{
		IndexedFiles:         st.IndexedFiles,
		KnownTokens:          st.KnownTokens,
		HandledModifications: st.HandledModifications,
		TotalModifications:   st.TotalModifications,
		Broken:               st.IsBroken,
	}
	if st.WatcherStartTime != nil {
		ms := st.WatcherStartTime.Milliseconds()
		resp.WatcherStartMs = &ms
	}
	if st.InitialSyncTime != nil {
		ms := st.InitialSyncTime.Milliseconds()
		resp.InitialSyncMs = &ms
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type matchResponse struct {
	Path   string `json:"path"`
	LineNo int    `json:"line"`
	Line   string `json:"text"`
}

type findResponse struct {
	Matches  []matchResponse `json:"matches"`
	Warnings []string        `json:"warnings,omitempty"`
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing required query parameter 'q'", http.StatusBadRequest)
		return
	}

	matches, warnings := s.engine.Find(r.Context(), query)

	resp := findResponse{Matches: make([]matchResponse, 0)}
	for m := range matches {
		resp.Matches = append(resp.Matches, matchResponse{Path: m.Path, LineNo: m.LineNo, Line: m.Line})
	}
	for warning := range warnings {
		resp.Warnings = append(resp.Warnings, warning)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// portString avoids pulling in strconv solely for one int-to-string
// conversion in the listen address, matching the teacher's own itoa helper
// in internal/web/routes.go.
func portString(p int) string {
	if p == 0 {
		return "0"
	}
	neg := p < 0
	if neg {
		p = -p
	}
	var b [20]byte
	pos := len(b)
	for p > 0 {
		pos--
		b[pos] = byte('0' + p%10)
		p /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}
