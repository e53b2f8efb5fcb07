package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Middleware wraps an http.Handler to modify or enhance its behavior.
type Middleware func(http.Handler) http.Handler

// RouterOptions configures a Router.
type RouterOptions func(*Router)

// Router is a thin layer over http.ServeMux adding middleware, route groups and server lifecycle.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	logger     *zap.Logger
	prefix     string
	middleware []Middleware
	group      bool
	mu         sync.RWMutex
}

// NewRouter creates a new instance of Router with the given options.
func NewRouter(opts ...RouterOptions) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithServerOptions applies custom http.Server options, e.g. timeouts.
func WithServerOptions(opts ...func(*http.Server)) RouterOptions {
	return func(r *Router) {
		for _, opt := range opts {
			opt(r.server)
		}
	}
}

// WithLogger sets the logger used for server lifecycle messages.
func WithLogger(l *zap.Logger) RouterOptions {
	return func(r *Router) { r.logger = l }
}

// Use adds one or more middleware to the router. Middleware functions are applied in the
// order they are added.
func (r *Router) Use(mw Middleware, additional ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
	r.middleware = append(r.middleware, additional...)
}

// Group creates a sub-router with a specified prefix sharing the parent's mux. Middleware
// added to the group wraps only the group's routes; the parent's middleware still applies
// through Handler.
func (r *Router) Group(prefix string) *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var mw []Middleware
	if r.group {
		mw = slices.Clone(r.middleware)
	}
	return &Router{
		mux:        r.mux,
		middleware: mw,
		server:     r.server,
		logger:     r.logger,
		prefix:     r.prefix + prefix,
		group:      true,
	}
}

// Handle registers handler for a `METHOD /pattern` as introduced in Go 1.22 routing.
// On a group with /prefix the pattern resolves to `METHOD /prefix/pattern`.
// Group middleware wraps only the handler; router-level middleware is applied once in Handler.
func (r *Router) Handle(methodPattern string, handler http.Handler) {
	method, pattern, ok := strings.Cut(methodPattern, " ")
	if !ok || method == "" || pattern == "" {
		panic(fmt.Sprintf("httputil: invalid method pattern %q", methodPattern))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	final := handler
	if r.group {
		for i := len(r.middleware) - 1; i >= 0; i-- {
			final = r.middleware[i](final)
		}
	}
	r.mux.Handle(fmt.Sprintf("%s %s%s", method, r.prefix, pattern), final)
}

// HandleFunc is Handle for plain functions.
func (r *Router) HandleFunc(methodPattern string, fn http.HandlerFunc) {
	r.Handle(methodPattern, fn)
}

// Handler returns the mux wrapped with the router-level middleware.
func (r *Router) Handler() http.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handler http.Handler = r.mux
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	return handler
}

// ListenAndServe starts the server on addr. It returns http.ErrServerClosed after Shutdown.
func (r *Router) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return r.Serve(ln)
}

// Serve accepts connections on ln, over TLS when a TLS config is set.
func (r *Router) Serve(ln net.Listener) error {
	r.server.Handler = r.Handler()
	r.logger.Info("starting http server",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", r.server.TLSConfig != nil))

	var err error
	if r.server.TLSConfig != nil {
		err = r.server.ServeTLS(ln, "", "")
	} else {
		err = r.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.logger.Error("http server failed", zap.Error(err))
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down http server")
	return r.server.Shutdown(ctx)
}
