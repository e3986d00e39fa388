// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server is the HTTP surface: the JSON-RPC tool dispatcher on
// POST /mcp, the SSE notification stream, the read-only REST API, and the
// health, metrics and discovery endpoints. All variants share one
// listener and dispatch by path.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/masc/internal/csync"
	"github.com/teradata-labs/masc/internal/log"
	"github.com/teradata-labs/masc/internal/version"
	"github.com/teradata-labs/masc/pkg/auth"
	"github.com/teradata-labs/masc/pkg/bus"
	"github.com/teradata-labs/masc/pkg/config"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/metrics"
	"github.com/teradata-labs/masc/pkg/ratelimit"
	"github.com/teradata-labs/masc/pkg/room"
	"github.com/teradata-labs/masc/pkg/tools"
)

// Options wires the server's collaborators.
type Options struct {
	Store    *room.Store
	Bus      *bus.Bus
	Registry *tools.Registry
	Verifier *auth.Verifier
	Limiter  *ratelimit.Limiter

	// Modes resolves mode names to enabled tool categories.
	Modes config.Modes

	// BackendType is reported by /health.
	BackendType string

	// DrainTimeout bounds graceful shutdown.
	DrainTimeout time.Duration

	// KeepaliveInterval spaces SSE keepalive comments; tests shorten it.
	KeepaliveInterval time.Duration
}

// Server serves every HTTP surface of one room.
type Server struct {
	store    *room.Store
	bus      *bus.Bus
	registry *tools.Registry
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	logger   *zap.Logger

	backendType  string
	drainTimeout time.Duration
	keepalive    time.Duration

	// modes is swapped wholesale on config hot-reload.
	modes atomic.Value // config.Modes

	// inflight maps request id -> cancel for $/cancelRequest.
	inflight *csync.Map[string, context.CancelFunc]

	draining atomic.Bool
	started  time.Time
}

// New builds the server.
func New(opts Options) *Server {
	if opts.Verifier == nil {
		opts.Verifier = auth.NewVerifier(nil)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.Config{})
	}
	if opts.Modes == nil {
		opts.Modes = config.BuiltinModes()
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 30 * time.Second
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 15 * time.Second
	}
	s := &Server{
		store:        opts.Store,
		bus:          opts.Bus,
		registry:     opts.Registry,
		verifier:     opts.Verifier,
		limiter:      opts.Limiter,
		logger:       log.Named("server"),
		backendType:  opts.BackendType,
		drainTimeout: opts.DrainTimeout,
		keepalive:    opts.KeepaliveInterval,
		inflight:     csync.NewMap[string, context.CancelFunc](),
		started:      time.Now(),
	}
	s.modes.Store(opts.Modes)
	return s
}

// SetModes swaps the mode-preset table, e.g. on config hot-reload.
func (s *Server) SetModes(m config.Modes) {
	s.modes.Store(m)
}

// enabledCategories resolves the room's current mode to its category set.
func (s *Server) enabledCategories(ctx context.Context) (map[string]bool, error) {
	mode, err := s.store.ModeGet(ctx)
	if err != nil {
		return nil, err
	}
	return s.modes.Load().(config.Modes).Categories(mode), nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/api/v1/", s.handleREST)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/.well-known/agent-card.json", s.handleAgentCard)
	return s.instrument(mux)
}

// instrument wraps the mux with request counting and timing.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if strings.HasPrefix(path, "/api/v1/") {
			path = "/api/v1"
		}
		metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(sw.status)).Inc()
		metrics.RequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE streaming works through the
// instrumentation layer.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ListenAndServe runs the server until ctx is cancelled, then drains:
// the health endpoint flips to 503, subscribers get a shutdown frame, and
// in-flight requests get DrainTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.draining.Store(true)
	s.bus.Close() // delivers shutdown frames to every SSE subscriber
	s.logger.Info("draining", zap.Duration("timeout", s.drainTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// setRetryAfter advertises the drain window on a draining 503 so clients
// know when to retry.
func (s *Server) setRetryAfter(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(int(s.drainTimeout.Seconds())))
}

// clientKey identifies a caller for rate limiting: the bearer token when
// auth is on, the remote IP otherwise.
func clientKey(r *http.Request, token string) string {
	if token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// httpStatus maps a taxonomy kind to an HTTP status for the REST surface.
func httpStatus(err error) int {
	switch masc.KindOf(err) {
	case masc.KindInvalidArgument:
		return http.StatusBadRequest
	case masc.KindNotFound:
		return http.StatusNotFound
	case masc.KindConflict:
		return http.StatusConflict
	case masc.KindForbidden, masc.KindToolDisabled:
		return http.StatusForbidden
	case masc.KindUnauthorized:
		return http.StatusUnauthorized
	case masc.KindRateLimited:
		return http.StatusTooManyRequests
	case masc.KindTimeout, masc.KindCancelled:
		return http.StatusRequestTimeout
	case masc.KindBackendTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// serviceVersion is what initialize and /health report.
func serviceVersion() string { return version.Get() }
