// Package httpapi is the HTTP surface from §6: router, request/response
// types, error mapping, health checks, and the SSE stream. Adapted from
// the teacher's internal/rpc/http_server.go: a single stdlib
// http.NewServeMux, a public/authenticated route split, and
// ReadTimeout/WriteTimeout/IdleTimeout wired onto http.Server directly
// rather than reaching for a third-party router — the teacher never
// imports one, and the route count here doesn't justify starting.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/breadcrumbsvc"
	"github.com/rcrt-io/rcrt/internal/eventbus"
	"github.com/rcrt-io/rcrt/internal/secrets"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

// Server wires every handler and the shared dependencies they close
// over.
type Server struct {
	svc       *breadcrumbsvc.Service
	store     *postgres.Store
	bus       *eventbus.Bus
	minter    *auth.Minter
	verifier  *auth.Verifier
	kek       *secrets.KEK
	log       *slog.Logger
	validate  *validator.Validate
	sseKeepalive time.Duration
	sseBuffer    int
}

type Deps struct {
	Service      *breadcrumbsvc.Service
	Store        *postgres.Store
	Bus          *eventbus.Bus
	Minter       *auth.Minter
	Verifier     *auth.Verifier
	KEK          *secrets.KEK
	Log          *slog.Logger
	SSEKeepalive time.Duration
	SSEBuffer    int
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	keepalive := d.SSEKeepalive
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	buf := d.SSEBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Server{
		svc:          d.Service,
		store:        d.Store,
		bus:          d.Bus,
		minter:       d.Minter,
		verifier:     d.Verifier,
		kek:          d.KEK,
		log:          log,
		validate:     validator.New(),
		sseKeepalive: keepalive,
		sseBuffer:    buf,
	}
}

// Router builds the full mux: public routes unauthenticated, the rest
// behind auth.Middleware plus a per-route role gate.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /healthz", s.handleReadyz)
	mux.HandleFunc("POST /auth/token", s.handleMintToken)
	mux.HandleFunc("GET /events/stream", s.handleSSE)
	mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPI)

	authMw := auth.Middleware(s.verifier)
	curator := auth.RequireRole(types.RoleCurator)
	emitter := auth.RequireRole(types.RoleEmitter)
	subscriber := auth.RequireRole(types.RoleSubscriber)
	// Decrypt admits a curator or an emitter; the handler then narrows
	// emitters by the secret's scope.
	curatorOrEmitter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok || !(claims.HasRole(types.RoleCurator) || claims.HasRole(types.RoleEmitter)) {
				writeError(w, types.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	mux.Handle("POST /breadcrumbs", authMw(emitter(http.HandlerFunc(s.handleCreateBreadcrumb))))
	mux.Handle("GET /breadcrumbs", authMw(subscriber(http.HandlerFunc(s.handleListBreadcrumbs))))
	mux.Handle("GET /breadcrumbs/search", authMw(subscriber(http.HandlerFunc(s.handleSearchBreadcrumbs))))
	mux.Handle("GET /breadcrumbs/{id}", authMw(subscriber(http.HandlerFunc(s.handleReadBreadcrumb))))
	mux.Handle("GET /breadcrumbs/{id}/full", authMw(curator(http.HandlerFunc(s.handleReadBreadcrumbFull))))
	mux.Handle("PATCH /breadcrumbs/{id}", authMw(emitter(http.HandlerFunc(s.handlePatchBreadcrumb))))
	mux.Handle("POST /breadcrumbs/{id}/approve", authMw(curator(http.HandlerFunc(s.handleApproveBreadcrumb))))
	mux.Handle("POST /breadcrumbs/{id}/context-merge", authMw(emitter(http.HandlerFunc(s.handleContextMergeBreadcrumb))))
	mux.Handle("DELETE /breadcrumbs/{id}/full", authMw(curator(http.HandlerFunc(s.handleDeleteBreadcrumbFull))))

	mux.Handle("POST /secrets", authMw(curator(http.HandlerFunc(s.handleCreateSecret))))
	mux.Handle("GET /secrets", authMw(emitter(http.HandlerFunc(s.handleListSecrets))))
	mux.Handle("POST /secrets/{id}/decrypt", authMw(curatorOrEmitter(http.HandlerFunc(s.handleDecryptSecret))))

	return s.withRequestLog(mux)
}

// withRequestLog matches the teacher's request-scoped logger pattern:
// a slog.Logger carrying method/path/status/duration per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush delegates to the underlying ResponseWriter when it is a
// Flusher, so wrapping a handler in statusRecorder doesn't hide
// streaming support from it (handleSSE type-asserts http.Flusher on
// the writer it's given).
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying ResponseWriter for http.ResponseController
// and other callers that walk wrapper chains looking for an interface
// (http.Flusher, http.Hijacker) the outer type doesn't itself implement.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// WithTimeout wraps handler with a per-request deadline, mirroring the
// teacher's request-scoped context.WithTimeout wrapping in
// internal/rpc/http_server.go.
func WithTimeout(next http.Handler, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
