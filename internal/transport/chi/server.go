// Package chi exposes the sync and search operations over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/query"
	"github.com/contentdex/contentdex/internal/domain/syncstate"
	"github.com/contentdex/contentdex/internal/indexer"
	"github.com/contentdex/contentdex/internal/logger"
	"github.com/contentdex/contentdex/internal/search"
	"github.com/contentdex/contentdex/internal/tracker"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// SyncDefaults fills in what a start request leaves unspecified.
type SyncDefaults struct {
	Indexables []string
	PageSize   int
	SiteCount  int
}

// Server routes HTTP requests onto the tracker, indexer, and search service.
type Server struct {
	tracker       *tracker.Tracker
	indexer       *indexer.Indexer
	search        *search.Service
	health        []HealthCheck
	defaults      SyncDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	tr *tracker.Tracker,
	ix *indexer.Indexer,
	sv *search.Service,
	health []HealthCheck,
	defaults SyncDefaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		tracker:  tr,
		indexer:  ix,
		search:   sv,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		syncConflictHandler,
		sentinelHandler(domain.ErrNoActiveSync, http.StatusNotFound, "no_active_sync"),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"),
	}
	return s
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync", s.advanceSync)
		r.Post("/sync/pause", s.pauseSync)
		r.Post("/sync/resume", s.resumeSync)
		r.Post("/sync/cancel", s.cancelSync)
		r.Get("/sync/status", s.syncStatus)
		r.Post("/search", s.searchContent)
	})
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
}

type startSyncRequest struct {
	Indexables  []string `json:"indexables,omitempty"`
	PutMapping  bool     `json:"put_mapping,omitempty"`
	NetworkWide int      `json:"network_wide,omitempty"` // site count, 0 = current site only
}

type syncResponse struct {
	Done  bool             `json:"done"`
	State *syncstate.State `json:"state"`
}

// advanceSync starts a sync if none is active and processes exactly one page.
// A dashboard drives a full sync by POSTing here until done is true; each
// request picks up where the previous one persisted the cursor.
func (s *Server) advanceSync(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Current(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoActiveSync):
		st = nil
	case err != nil:
		s.handleDomainError(w, r, err)
		return
	}

	// A failed run is not restarted from scratch: it resumes at its
	// preserved offset, like a paused one.
	if st == nil || (st.Status.Terminal() && st.Status != syncstate.StatusFailed) {
		var req startSyncRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
				return
			}
		}
		indexables := req.Indexables
		if len(indexables) == 0 {
			indexables = s.defaults.Indexables
		}
		siteCount := req.NetworkWide
		if siteCount < 1 {
			siteCount = 1
		}
		st, err = s.tracker.Start(r.Context(), tracker.StartOptions{
			Method:     syncstate.MethodDashboard,
			Indexables: indexables,
			PageSize:   s.defaults.PageSize,
			SiteCount:  siteCount,
			PutMapping: req.PutMapping,
		})
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	} else if st.Status == syncstate.StatusPaused || st.Status == syncstate.StatusFailed {
		if st, err = s.tracker.Resume(r.Context()); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	done, err := s.indexer.ProcessPage(r.Context(), st)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Done: done, State: st})
}

func (s *Server) pauseSync(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Pause(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) resumeSync(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Resume(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) cancelSync(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Cancel(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Current(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type searchRequest struct {
	Site int `json:"site,omitempty"`
	query.Spec
}

func (s *Server) searchContent(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	res, err := s.search.Query(r.Context(), req.Site, req.Spec)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)
	checks := make(map[string]string, len(s.health))
	status := http.StatusOK
	for _, hc := range s.health {
		if err := hc.Check(r.Context()); err != nil {
			checks[hc.Name] = "down"
			status = http.StatusServiceUnavailable
			log.Warn("health check failed", zap.String("check", hc.Name), zap.Error(err))
			continue
		}
		checks[hc.Name] = "up"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSyncInProgress,
		domain.ErrNoActiveSync,
		domain.ErrInvalidQuery,
		domain.ErrInvalidTransition,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// syncConflictHandler handles a rejected start with the blocking run's details.
func syncConflictHandler(w http.ResponseWriter, err error) bool {
	var sie *domain.SyncInProgressError
	if !errors.As(err, &sie) {
		return false
	}
	writeJSON(w, http.StatusConflict, map[string]any{
		"code":       "sync_in_progress",
		"message":    sie.Error(),
		"run_id":     sie.RunID,
		"started_at": sie.StartedAt,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
