package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/utils"
	"github.com/kacperjurak/gocvcore/pkg/config"
	"github.com/kacperjurak/gocvcore/pkg/models"
	"github.com/kacperjurak/gocvcore/pkg/worker"
)

// BatchFile is one server-side workbook of a batch request.
type BatchFile struct {
	Path string `json:"path"`
	// Mass replaces the workbook's mass cell when positive.
	Mass float64 `json:"mass,omitempty"`
}

// BatchRequest is the body of POST /cv/batch.
type BatchRequest struct {
	BatchID string      `json:"batch_id,omitempty"`
	Window  *int        `json:"window,omitempty"`
	Policy  string      `json:"policy,omitempty"`
	Files   []BatchFile `json:"files"`

	policy gocvcore.Policy
}

// Bind validates the decoded request.
func (b *BatchRequest) Bind(r *http.Request) error {
	if len(b.Files) == 0 {
		return badRequest(errors.New("no files provided"), "files")
	}
	for _, f := range b.Files {
		if strings.TrimSpace(f.Path) == "" {
			return badRequest(errors.New("empty path"), "files")
		}
		if f.Mass < 0 {
			return badRequest(errors.New("mass must be positive"), "mass")
		}
	}
	if b.Policy != "" {
		p, err := gocvcore.ParsePolicy(b.Policy)
		if err != nil {
			return err
		}
		b.policy = p
	}
	if b.BatchID == "" {
		b.BatchID = utils.GenerateID()
	}
	return nil
}

// BatchFileResult is the outcome for one file of the batch.
type BatchFileResult struct {
	models.FileTiming
	Summary *models.DatasetSummary `json:"summary,omitempty"`
}

// BatchResponse is the answer of POST /cv/batch.
type BatchResponse struct {
	BatchID     string            `json:"batch_id"`
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Concurrency int               `json:"concurrency"`
	ElapsedMs   float64           `json:"elapsed_ms"`
	Files       []BatchFileResult `json:"files"`
}

// Notifier is told about every finished batch.
type Notifier interface {
	Notify(ctx context.Context, n models.BatchNotification) error
}

const notifyTimeout = time.Minute

// BatchHandler processes a list of workbooks through the worker pool and waits for all of them.
type BatchHandler struct {
	config     *config.Config
	workerPool *worker.Pool
	notifier   Notifier
	logger     *slog.Logger
}

// NewBatchHandler creates a new batch handler. notifier may be nil.
func NewBatchHandler(cfg *config.Config, pool *worker.Pool, notifier Notifier, logger *slog.Logger) *BatchHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		config:     cfg,
		workerPool: pool,
		notifier:   notifier,
		logger:     logger,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &BatchRequest{policy: h.config.Defaults.SmoothingPolicy}
	if err := render.Bind(r, req); err != nil {
		if !errors.Is(err, ErrBadRequest) && statusFor(err, 0) == 0 {
			err = badRequest(err, "body")
		}
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	window := h.config.Defaults.SmoothingPoints
	if req.Window != nil {
		window = *req.Window
	}
	if err := gocvcore.ValidateWindow(window, req.policy); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("batch processing started",
		slog.String("batch_id", req.BatchID),
		slog.Int("files", len(req.Files)),
		slog.Int("window", window),
		slog.String("policy", req.policy.String()),
	)

	start := time.Now()
	requestID := utils.RequestID(r.Context())
	items := make([]models.WorkItem, len(req.Files))
	for i, f := range req.Files {
		items[i] = models.WorkItem{
			ID:        i,
			RequestID: requestID,
			BatchID:   req.BatchID,
			Path:      f.Path,
			Mass:      f.Mass,
			Window:    window,
			Policy:    req.policy,
		}
	}

	results := h.workerPool.Run(r.Context(), items)
	elapsed := time.Since(start)

	resp := BatchResponse{
		BatchID:     req.BatchID,
		Total:       len(results),
		Concurrency: h.workerPool.Workers(),
		ElapsedMs:   float64(elapsed.Nanoseconds()) / 1e6,
		Files:       make([]BatchFileResult, len(results)),
	}
	timings := make([]models.FileTiming, len(results))
	for i, res := range results {
		timings[i] = res.Timing()
		resp.Files[i] = BatchFileResult{FileTiming: timings[i]}
		if res.Success {
			resp.Succeeded++
			sum := models.Summarize(res.RequestID, res.Label, res.Dataset)
			resp.Files[i].Summary = &sum
		}
	}

	if path := h.config.Server.SummaryFile; path != "" {
		batch := worker.Batch{
			ID:          req.BatchID,
			Finished:    time.Now(),
			Total:       elapsed,
			Concurrency: resp.Concurrency,
			Timings:     timings,
		}
		if err := worker.AppendSummary(path, batch); err != nil {
			h.logger.Warn("failed to write batch summary", slog.String("path", path), slog.Any("error", err))
		}
	}

	if h.notifier != nil {
		n := models.BatchNotification{
			BatchID:   req.BatchID,
			RequestID: requestID,
			Time:      time.Now().Format(time.RFC3339Nano),
			Total:     resp.Total,
			Succeeded: resp.Succeeded,
			ElapsedMs: resp.ElapsedMs,
			Files:     timings,
		}
		go h.notify(context.WithoutCancel(r.Context()), n)
	}

	h.logger.Info("batch processing completed",
		slog.String("batch_id", req.BatchID),
		slog.Int("succeeded", resp.Succeeded),
		slog.Int("total", resp.Total),
		slog.Duration("took", elapsed),
	)
	render.JSON(w, r, resp)
}

func (h *BatchHandler) notify(ctx context.Context, n models.BatchNotification) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Warn("batch notification failed", slog.String("batch_id", n.BatchID), slog.Any("error", err))
	}
}
