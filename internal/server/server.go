// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes conversion batches over HTTP. Clients start a batch
// with a JSON request and follow its progress records over a websocket; the
// records have the same shapes as the stdout protocol.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

const writeWait = 10 * time.Second

// RunFunc runs one batch over inputs into outputDir, reporting through r.
type RunFunc func(ctx context.Context, inputs []string, outputDir string, r progress.Reporter) (types.BatchSummary, error)

// StartRequest is the JSON body of POST /api/batches.
type StartRequest struct {
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
}

// Server serves the batch API. At most one batch runs at a time.
type Server struct {
	logger *slog.Logger
	router *chi.Mux
	run    RunFunc
	ctx    context.Context

	// upgrader keeps gorilla's default origin check: a browser page may
	// only subscribe from the server's own host.
	upgrader websocket.Upgrader

	mu      sync.Mutex
	batches map[string]*batch
	active  string
	wg      sync.WaitGroup
}

// New returns a Server that runs batches with run. Batches inherit ctx.
func New(ctx context.Context, run RunFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:  logger,
		router:  chi.NewRouter(),
		run:     run,
		ctx:     ctx,
		batches: make(map[string]*batch),
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until the running batch finishes or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.health)
	s.router.Route("/api/batches", func(r chi.Router) {
		r.Post("/", s.startBatch)
		r.Get("/{id}", s.getBatch)
		r.Get("/{id}/events", s.batchEvents)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

func (s *Server) startBatch(w http.ResponseWriter, r *http.Request) {
	// Browsers send cross-origin form and text posts without a preflight.
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		s.respondError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	var req StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Inputs) == 0 {
		s.respondError(w, http.StatusBadRequest, "inputs must name at least one path")
		return
	}
	if strings.TrimSpace(req.Output) == "" {
		s.respondError(w, http.StatusBadRequest, "output directory is required")
		return
	}

	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		s.respondJSON(w, http.StatusConflict, map[string]string{"error": "a batch is already running", "id": active})
		return
	}
	b := newBatch(newID(), req.Inputs, req.Output)
	s.batches[b.id] = b
	s.active = b.id
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(b)

	s.logger.Info("batch started", "batch_id", b.id, "inputs", len(req.Inputs), "output", req.Output)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": b.id})
}

func (s *Server) execute(b *batch) {
	defer s.wg.Done()

	_, err := s.run(s.ctx, b.inputs, b.output, b)
	b.finish(err)

	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("batch failed", "batch_id", b.id, "error", err)
		return
	}
	s.logger.Info("batch complete", "batch_id", b.id)
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	s.respondJSON(w, http.StatusOK, b.status())
}

func (s *Server) batchEvents(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "batch not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	replay, live := b.subscribe()

	// Drain client frames so a closed client releases its subscription.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.unsubscribe(live)
				return
			}
		}
	}()

	for _, rec := range replay {
		if err := writeJSON(conn, rec); err != nil {
			b.unsubscribe(live)
			return
		}
	}
	for rec := range live {
		if err := writeJSON(conn, rec); err != nil {
			b.unsubscribe(live)
			return
		}
	}

	code, reason := closeReason(b)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
}

// closeReason picks the close frame sent once a subscription ends. A
// subscription that ends while the batch still runs was dropped for falling
// behind.
func closeReason(b *batch) (int, string) {
	if b.status().State == StateRunning {
		return websocket.CloseTryAgainLater, "subscriber too slow"
	}
	return websocket.CloseNormalClosure, "batch finished"
}

func writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func (s *Server) lookup(id string) (*batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	return b, ok
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode json", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("batch-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
