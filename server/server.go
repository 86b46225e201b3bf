package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/digestai/digestai/browser"
	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/research"
)

// ResearchService is the part of research.Assistant the server uses.
type ResearchService interface {
	Start(ctx context.Context, topic string, opts research.StartOptions) (*research.Snapshot, error)
	SubmitTemplateFeedback(ctx context.Context, threadID, feedback string) (*research.Snapshot, error)
	SubmitAnalystFeedback(ctx context.Context, threadID, feedback string) (*research.Snapshot, error)
	State(ctx context.Context, threadID string) (*research.Snapshot, error)
	Resume(ctx context.Context, threadID string) (*research.Snapshot, error)
	Delete(ctx context.Context, threadID string) error
}

// BrowseService streams browser tasks.
type BrowseService interface {
	Stream(ctx context.Context, userID string, task browser.Task, sink browser.Sink) error
}

var logger = log.Named("http")

var (
	_ ResearchService = (*research.Assistant)(nil)
	_ BrowseService   = (*browser.Runner)(nil)
)

// Options configure a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	MaxBodyBytes   int64
	// TracerProvider enables otelhttp instrumentation when set.
	TracerProvider trace.TracerProvider
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	opts     Options
	research ResearchService
	browse   BrowseService
	history  history.Store
	handler  http.Handler
}

// New wires the routes. Any service may be nil, in which case its routes
// answer 503.
func New(opts Options, rs ResearchService, bs BrowseService, hs history.Store) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{opts: opts, research: rs, browse: bs, history: hs}

	var handler http.Handler = s.routes()
	handler = bodyLimitMiddleware(opts.MaxBodyBytes, handler)
	handler = corsMiddleware(opts.AllowedOrigins, handler)
	handler = requestLogMiddleware(handler)
	if opts.TracerProvider != nil {
		handler = otelhttp.NewHandler(handler, "digestai", otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	s.handler = handler
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	rs := api.PathPrefix("/research").Subrouter()
	rs.HandleFunc("", s.handleStartResearch).Methods(http.MethodPost)
	rs.HandleFunc("/{thread}", s.handleResearchState).Methods(http.MethodGet)
	rs.HandleFunc("/{thread}", s.handleDeleteResearch).Methods(http.MethodDelete)
	rs.HandleFunc("/{thread}/template-feedback", s.handleTemplateFeedback).Methods(http.MethodPost)
	rs.HandleFunc("/{thread}/analyst-feedback", s.handleAnalystFeedback).Methods(http.MethodPost)
	rs.HandleFunc("/{thread}/resume", s.handleResume).Methods(http.MethodPost)
	rs.HandleFunc("/{thread}/report.html", s.handleReportHTML).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(requireUser)
	authed.HandleFunc("/browse", s.handleBrowse).Methods(http.MethodPost)
	authed.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	authed.HandleFunc("/history/{id}", s.handleGetHistory).Methods(http.MethodGet)
	authed.HandleFunc("/history/{id}", s.handleDeleteHistory).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
