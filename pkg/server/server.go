package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/internal/processing"
	"github.com/kacperjurak/gocvcore/internal/utils"
	"github.com/kacperjurak/gocvcore/pkg/config"
	"github.com/kacperjurak/gocvcore/pkg/handlers"
	"github.com/kacperjurak/gocvcore/pkg/profiling"
	"github.com/kacperjurak/gocvcore/pkg/webhook"
	"github.com/kacperjurak/gocvcore/pkg/worker"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Server represents the HTTP server with all dependencies
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	workerPool *worker.Pool
	registry   *prometheus.Registry
	httpServer *http.Server
	profiler   *profiling.Profiler
	middleware *profiling.Middleware
}

// Options holds configuration for creating a new server
type Options struct {
	Config *config.Config
	// Processor serves the batch endpoint. A nil Processor reads workbooks without a cache.
	Processor *processing.CVProcessor
	Logger    *slog.Logger
}

// New creates a new server instance
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Processor == nil {
		opts.Processor = processing.NewCVProcessor(processing.Options{Logger: opts.Logger})
	}
	cfg := opts.Config.Server

	workerPool := worker.New(worker.Options{
		Workers:   cfg.Workers,
		Processor: opts.Processor.ProcessorFunc(),
		Logger:    opts.Logger,
	})

	registry := prometheus.NewRegistry()
	var metrics *profiling.Metrics
	if cfg.EnableMetrics {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = profiling.NewMetrics(registry)
	}

	s := &Server{
		config:     opts.Config,
		logger:     opts.Logger,
		workerPool: workerPool,
		registry:   registry,
		profiler:   profiling.New(cfg, opts.Logger),
		middleware: profiling.NewMiddleware(cfg.EnableProfiling, metrics),
	}

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	cvHandler := handlers.NewCVHandler(s.config, s.logger)
	var notifier handlers.Notifier
	if url := s.config.Server.WebhookURL; url != "" {
		notifier = webhook.NewClient(url, s.logger)
	}
	batchHandler := handlers.NewBatchHandler(s.config, s.workerPool, notifier, s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(handlers.CORS)

	r.Route("/cv", func(r chi.Router) {
		r.With(s.middleware.Handler("cv-process")).Post("/process", cvHandler.Process)
		r.With(s.middleware.Handler("cv-plot")).Post("/plot", cvHandler.Plot)
		r.With(s.middleware.Handler("cv-batch")).Post("/batch", batchHandler.ServeHTTP)
	})
	r.Get("/health", s.healthHandler)
	if s.config.Server.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// requestID takes the ID from the request header or generates one, and echoes it back.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = utils.GenerateID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(utils.WithRequestID(r.Context(), id)))
	})
}

// Health is the body of /health.
type Health struct {
	Status    string `json:"status"`
	Workers   int    `json:"workers"`
	Timestamp string `json:"timestamp"`
}

// healthHandler provides a simple health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Health{
		Status:    "healthy",
		Workers:   s.workerPool.Workers(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Start starts the HTTP server. It blocks until the server stops and returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		s.logger.Error("failed to start profiler", slog.Any("error", err))
	}

	port := s.config.Server.Port
	s.logger.Info("starting HTTP server",
		slog.String("port", port),
		slog.Int("workers", s.workerPool.Workers()),
		slog.Bool("metrics", s.config.Server.EnableMetrics),
	)
	s.logger.Info("endpoints available",
		slog.String("process", "http://localhost:"+port+"/cv/process"),
		slog.String("plot", "http://localhost:"+port+"/cv/plot"),
		slog.String("batch", "http://localhost:"+port+"/cv/batch"),
		slog.String("health", "http://localhost:"+port+"/health"),
	)

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server, the profiler and the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		err = zerr.Wrap(err, "http server shutdown")
	}
	if perr := s.profiler.Stop(ctx); perr != nil {
		s.logger.Warn("profiler shutdown error", slog.Any("error", perr))
	}
	s.workerPool.Shutdown()

	s.logger.Info("server shutdown complete")
	return err
}
