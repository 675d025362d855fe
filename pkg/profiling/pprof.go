package profiling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/config"
)

// Profiler manages pprof profiling server
type Profiler struct {
	config config.Server
	logger *slog.Logger
	server *http.Server
}

// New creates a new profiler instance
func New(cfg config.Server, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		config: cfg,
		logger: logger,
	}
}

// Handler serves the pprof endpoints, /debug/info and POST /debug/gc.
func (p *Profiler) Handler() http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.Get("/debug/info", p.infoHandler)
	r.Post("/debug/gc", p.gcHandler)
	return r
}

// Start starts the profiling server on a separate port
func (p *Profiler) Start() error {
	if !p.config.EnableProfiling {
		p.logger.Debug("profiling disabled")
		return nil
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	p.server = &http.Server{
		Addr:              ":" + p.config.ProfilingPort,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.logger.Info("starting profiling server",
		slog.String("port", p.config.ProfilingPort),
		slog.String("index", "http://localhost:"+p.config.ProfilingPort+"/debug/pprof/"),
	)

	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("profiling server error", slog.Any("error", err))
		}
	}()

	return nil
}

// Stop gracefully stops the profiling server
func (p *Profiler) Stop(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return zerr.Wrap(err, "profiling server shutdown")
	}
	p.logger.Info("profiling server stopped")
	return nil
}

// RuntimeInfo is the body of /debug/info.
type RuntimeInfo struct {
	Timestamp   string  `json:"timestamp"`
	Goroutines  int     `json:"goroutines"`
	GOMAXPROCS  int     `json:"gomaxprocs"`
	NumCPU      int     `json:"num_cpu"`
	Version     string  `json:"version"`
	AllocMB     float64 `json:"alloc_mb"`
	TotalAllocM float64 `json:"total_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	HeapObjects uint64  `json:"heap_objects"`
	NumGC       uint32  `json:"num_gc"`
}

func (p *Profiler) infoHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	render.JSON(w, r, RuntimeInfo{
		Timestamp:   time.Now().Format(time.RFC3339),
		Goroutines:  runtime.NumGoroutine(),
		GOMAXPROCS:  runtime.GOMAXPROCS(0),
		NumCPU:      runtime.NumCPU(),
		Version:     runtime.Version(),
		AllocMB:     bToMb(m.Alloc),
		TotalAllocM: bToMb(m.TotalAlloc),
		SysMB:       bToMb(m.Sys),
		HeapObjects: m.HeapObjects,
		NumGC:       m.NumGC,
	})
}

// bToMb converts bytes to megabytes
func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
