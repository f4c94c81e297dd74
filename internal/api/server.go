// Package api serves the supervisor's status, logs and restart control
// over a Unix socket for the CLI client commands.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/benaskins/tether/internal/logbuf"
	"github.com/benaskins/tether/internal/supervisor"
)

// DefaultLogLines is how many lines GET /v1/logs returns without ?n=.
const DefaultLogLines = 100

// Backend is the supervisor surface the API exposes.
type Backend interface {
	Status(ctx context.Context) supervisor.Status
	Restart(ctx context.Context) error
	Log() *logbuf.Buffer
}

// LogsResponse is the body of GET /v1/logs.
type LogsResponse struct {
	Entries []logbuf.Entry `json:"entries"`
	LastSeq uint64         `json:"last_seq"`
}

// Server serves the tether REST API over a Unix socket.
type Server struct {
	backend  Backend
	listener net.Listener
	server   *http.Server
	logger   *slog.Logger
	ctx      context.Context
}

// NewServer creates an API server backed by the given supervisor.
func NewServer(b Backend, ctx context.Context) *Server {
	s := &Server{
		backend: b,
		logger:  slog.With("component", "api"),
		ctx:     ctx,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.health)
	mux.HandleFunc("GET /v1/status", s.status)
	mux.HandleFunc("GET /v1/logs", s.logs)
	mux.HandleFunc("POST /v1/restart", s.restart)

	s.server = &http.Server{Handler: mux}
	return s
}

// ListenUnix starts the server on a Unix socket. A socket file left by a
// previous session is removed first.
func (s *Server) ListenUnix(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0600); err != nil {
		ln.Close()
		return err
	}
	s.listener = ln
	s.logger.Info("API listening", "socket", path)
	return s.serve(ln)
}

// ListenTCP starts the server on a TCP address.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("API listening", "addr", addr)
	return s.serve(ln)
}

func (s *Server) serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status(r.Context()))
}

// logs returns the last n entries, or with ?since=seq the entries after
// that sequence number.
func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	buf := s.backend.Log()
	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		since, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since: " + v})
			return
		}
		entries := buf.Since(since)
		if entries == nil {
			entries = []logbuf.Entry{}
		}
		writeJSON(w, http.StatusOK, LogsResponse{Entries: entries, LastSeq: buf.Seq()})
		return
	}

	n := DefaultLogLines
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid n: " + v})
			return
		}
		n = parsed
	}

	entries := buf.Entries()
	if n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}
	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries, LastSeq: buf.Seq()})
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Restart(s.ctx); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrClosed) {
			code = http.StatusConflict
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
