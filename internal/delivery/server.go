package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oraclelog/oracle-go/internal/store"
	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

// Server serves the WebSocket feed and the read-only API.
type Server struct {
	log  *slog.Logger
	http *http.Server
}

// NewServer builds the router and binds it to addr.
func NewServer(addr string, hub *Hub, st *store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = discardLogger
	}
	s := &Server{log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", hub.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := &apiHandler{store: st, hub: hub, log: log}
	r.Route("/api", func(r chi.Router) {
		r.Get("/maps/recent", api.recentMaps)
		r.Get("/session/current", api.currentSession)
		r.Get("/sessions", api.recentSessions)
		r.Get("/items/{itemID}", api.item)
		r.Post("/session/control", api.sessionControl)
		r.Put("/maps/{completionID}/description", api.mapDescription)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, used by tests to serve from an
// httptest server.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type apiHandler struct {
	store *store.Store
	hub   *Hub
	log   *slog.Logger
}

// sessionControl injects a session lifecycle command into the
// pipeline: {"action": "start"|"close"|"next", "player_name": "..."}.
func (a *apiHandler) sessionControl(w http.ResponseWriter, r *http.Request) {
	var data event.SessionControlData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch data.Action {
	case event.SessionControlStart, event.SessionControlClose, event.SessionControlNext:
	default:
		http.Error(w, "invalid action", http.StatusBadRequest)
		return
	}
	a.hub.Publish(event.New(time.Now(), data))
	w.WriteHeader(http.StatusAccepted)
}

func (a *apiHandler) recentMaps(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	completions, err := a.store.RecentMapCompletions(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, completions)
}

func (a *apiHandler) currentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.store.LatestOpenSession(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if sess == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	a.writeJSON(w, sess)
}

func (a *apiHandler) recentSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	sessions, err := a.store.RecentSessions(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, sessions)
}

func (a *apiHandler) item(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	item, err := a.store.GetItem(r.Context(), itemID)
	if err != nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, item)
}

// mapDescription updates the free-text note on a completion, the only
// field that stays editable after the record is written.
func (a *apiHandler) mapDescription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "completionID"), 10, 32)
	if err != nil {
		http.Error(w, "invalid completion id", http.StatusBadRequest)
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.store.UpdateMapCompletionDescription(r.Context(), uint(id), body.Description); err != nil {
		http.Error(w, "completion not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("response encode failed", "error", err)
	}
}

func (a *apiHandler) fail(w http.ResponseWriter, err error) {
	a.log.Error("query failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 200 {
		return def
	}
	return n
}
