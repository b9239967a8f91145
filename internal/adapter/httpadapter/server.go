package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/search"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// Searcher is the search controller surface the server drives.
type Searcher interface {
	Fetch(terms *string) *domain.Task
	State() stream.Observable[search.State]
}

// ResultsView returns the most recent successful results, if any.
type ResultsView interface {
	Value() (domain.SearchResults, bool)
}

// Server exposes health, readiness, metrics and search HTTP endpoints.
type Server struct {
	httpServer *http.Server
	searcher   Searcher
	results    ResultsView
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /search routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, searcher Searcher, results ResultsView, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 40 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		searcher: searcher,
		results:  results,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /search", s.handleFetch)
	mux.HandleFunc("GET /search/state", s.handleState)
	mux.HandleFunc("GET /search/results", s.handleResults)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// maxWait bounds POST /search?wait=true.
const maxWait = 30 * time.Second

// handleFetch starts or joins a search. The terms parameter is optional and
// an empty value is distinct from an absent one. With wait=true the response
// is held until the search reports its outcome.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var terms *string
	if q := r.URL.Query(); q.Has("terms") {
		terms = domain.Terms(q.Get("terms"))
	}

	if r.URL.Query().Get("wait") != "true" {
		task := s.searcher.Fetch(terms)
		if task == nil {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search is shutting down"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusAccepted, fetchResponse{Task: task.ID.String(), Terms: task.Terms})
		return
	}

	// Subscribe before fetching so the outcome cannot be missed.
	sub := s.searcher.State().Subscribe()
	defer sub.Cancel()

	task := s.searcher.Fetch(terms)
	if task == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search is shutting down"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	for {
		select {
		case st, ok := <-sub.C():
			if !ok {
				sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search is shutting down"})
				return
			}
			if outcomeFor(st, task) {
				sharedobs.WriteJSON(w, http.StatusOK, newStateResponse(st))
				return
			}
		case <-ctx.Done():
			s.logger.Debug("search still running at wait deadline", "task", task)
			sharedobs.WriteJSON(w, http.StatusAccepted, fetchResponse{Task: task.ID.String(), Terms: task.Terms})
			return
		}
	}
}

// outcomeFor reports whether st settles the search started as task.
func outcomeFor(st search.State, task *domain.Task) bool {
	switch st.Phase {
	case domain.PhaseError:
		return true
	case domain.PhaseSuccess:
		return domain.SameTerms(st.Data.Terms, task.Terms)
	default:
		return false
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, newStateResponse(s.searcher.State().Value()))
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	results, ok := s.results.Value()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no search has succeeded yet"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, results)
}

type fetchResponse struct {
	Task  string  `json:"task"`
	Terms *string `json:"terms"`
}

type stateResponse struct {
	Phase     string                `json:"phase"`
	Terms     *string               `json:"terms,omitempty"`
	Task      string                `json:"task,omitempty"`
	Error     string                `json:"error,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Message   string                `json:"message,omitempty"`
	Retryable *bool                 `json:"retryable,omitempty"`
	Results   *domain.SearchResults `json:"results,omitempty"`
}

func newStateResponse(st search.State) stateResponse {
	resp := stateResponse{Phase: st.Phase.String()}
	switch st.Phase {
	case domain.PhaseLoading:
		resp.Terms = st.Terms
		if st.Task != nil {
			resp.Task = st.Task.ID.String()
		}
	case domain.PhaseError:
		resp.Error = st.Err.Error()
		retryable := domain.IsRetryable(st.Err)
		resp.Retryable = &retryable
		var denied *domain.PermissionDenied
		if errors.As(st.Err, &denied) {
			resp.Reason = denied.Reason.String()
			resp.Message = denied.Reason.Message()
		}
	case domain.PhaseSuccess:
		resp.Results = &st.Data
	}
	return resp
}
