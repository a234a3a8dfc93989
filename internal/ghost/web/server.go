package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Ghost/common/version"
	"github.com/bdobrica/Ghost/internal/ghost/install"
	"github.com/bdobrica/Ghost/internal/ghost/speech"
)

// maxBodyBytes bounds API request bodies.
const maxBodyBytes = 64 << 10

// Server exposes the API, /health, /status and the static assets.
type Server struct {
	addr      string
	backend   Backend
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	BuildTime    string    `json:"build_time"`
	LastUpdated  string    `json:"last_updated"`
	StartedAt    time.Time `json:"started_at"`
	UptimeSecs   float64   `json:"uptime_seconds"`
	SessionCount int       `json:"session_count"`
}

// request is the union of every API request body.
type request struct {
	Session    string         `json:"session"`
	Text       string         `json:"text"`
	Event      string         `json:"event"`
	Transcript string         `json:"transcript"`
	Final      bool           `json:"final"`
	Error      string         `json:"error"`
	Voices     []speech.Voice `json:"voices"`
	Enabled    bool           `json:"enabled"`
}

// NewServer creates and configures the HTTP server (does not start it).
// assets serves every path the API does not claim; it may be nil.
func NewServer(addr string, backend Backend, assets http.Handler) *Server {
	mux := http.NewServeMux()
	s := &Server{
		addr:      addr,
		backend:   backend,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /api/sessions", s.api(s.openSession))
	mux.HandleFunc("POST /api/chat", s.api(s.chat))
	mux.HandleFunc("POST /api/dictation", s.api(s.dictation))
	mux.HandleFunc("POST /api/speech", s.api(s.speech))
	mux.HandleFunc("POST /api/voice", s.api(s.voice))
	mux.HandleFunc("POST /api/install", s.api(s.install))
	if assets != nil {
		mux.Handle("/", assets)
	}
	return s
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. Blocks until the listener is
// established so the caller knows the port is open before returning.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("web server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("web server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("web server shutdown error", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count := 0
	if s.backend != nil {
		count = s.backend.SessionCount()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:       "ok",
		Version:      version.Version,
		Commit:       version.GitCommit,
		BuildTime:    version.BuildTime,
		LastUpdated:  version.LastUpdated,
		StartedAt:    s.startedAt,
		UptimeSecs:   time.Since(s.startedAt).Seconds(),
		SessionCount: count,
	})
}

// api decodes the request body, runs fn and writes its update or error.
func (s *Server) api(fn func(ctx context.Context, req request) (Update, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Session == "" && r.URL.Path != "/api/sessions" {
			writeError(w, http.StatusBadRequest, "session is required")
			return
		}

		update, err := fn(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, update)
		case errors.Is(err, ErrUnknownSession):
			writeError(w, http.StatusNotFound, "unknown session")
		case errors.Is(err, ErrInvalidEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, install.ErrNoHandle):
			writeError(w, http.StatusConflict, "no install offer is armed")
		default:
			slog.Error("web: api request failed", "path", r.URL.Path, "session", req.Session, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (s *Server) openSession(ctx context.Context, req request) (Update, error) {
	return s.backend.OpenSession(ctx, req.Session)
}

func (s *Server) chat(ctx context.Context, req request) (Update, error) {
	return s.backend.Chat(ctx, req.Session, req.Text)
}

func (s *Server) dictation(ctx context.Context, req request) (Update, error) {
	return s.backend.Dictation(ctx, req.Session, DictationEvent{
		Event:      req.Event,
		Transcript: req.Transcript,
		Final:      req.Final,
		Error:      req.Error,
	})
}

func (s *Server) speech(ctx context.Context, req request) (Update, error) {
	return s.backend.Speech(ctx, req.Session, SpeechEvent{Event: req.Event, Voices: req.Voices})
}

func (s *Server) voice(ctx context.Context, req request) (Update, error) {
	return s.backend.Voice(ctx, req.Session, req.Enabled)
}

func (s *Server) install(ctx context.Context, req request) (Update, error) {
	return s.backend.Install(ctx, req.Session, req.Event)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web: failed to encode JSON response", "err", err)
	}
}
