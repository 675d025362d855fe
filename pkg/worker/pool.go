package worker

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/models"
)

// ErrPoolClosed is returned when work is submitted after Shutdown.
var ErrPoolClosed = zerr.New("worker pool is shut down")

// Pool manages concurrent workbook processing workers
type Pool struct {
	jobs      chan job
	results   chan models.WorkResult
	workers   int
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	processor ProcessorFunc
	logger    *slog.Logger
}

// ProcessorFunc processes one work item. Failures are reported through WorkResult.Err.
type ProcessorFunc func(ctx context.Context, item models.WorkItem) models.WorkResult

// Options holds configuration for creating a new worker pool
type Options struct {
	Workers   int
	Processor ProcessorFunc
	Logger    *slog.Logger
}

type job struct {
	ctx     context.Context
	item    models.WorkItem
	deliver func(models.WorkResult)
}

// New creates a new worker pool with specified configuration
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// buffered so that queueing does not wait for a free worker
	pool := &Pool{
		jobs:      make(chan job, opts.Workers*2),
		results:   make(chan models.WorkResult, opts.Workers*2),
		workers:   opts.Workers,
		shutdown:  make(chan struct{}),
		processor: opts.Processor,
		logger:    opts.Logger,
	}

	pool.start()
	return pool
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", slog.Int("workers", p.workers))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.jobs:
			begin := time.Now()
			result := p.processJob(j)
			result.ProcessingTime = time.Since(begin)
			p.logger.Debug("job done",
				slog.Int("worker", id),
				slog.Int("id", result.ID),
				slog.String("path", result.Path),
				slog.Bool("success", result.Success),
			)
			j.deliver(result)

		case <-p.shutdown:
			return
		}
	}
}

// processJob runs the processor, turning a panic into a failed result.
func (p *Pool) processJob(j job) (result models.WorkResult) {
	defer zerr.Defer(func(err error) {
		result = failed(j.item, zerr.With(err, "path", j.item.Path))
	})

	if err := j.ctx.Err(); err != nil {
		return failed(j.item, err)
	}
	result = p.processor(j.ctx, j.item)
	result.Success = result.Err == nil
	return result
}

func failed(item models.WorkItem, err error) models.WorkResult {
	return models.WorkResult{
		ID:        item.ID,
		RequestID: item.RequestID,
		BatchID:   item.BatchID,
		Path:      item.Path,
		Err:       err,
	}
}

// SubmitJob queues a job whose result is delivered through GetResult.
func (p *Pool) SubmitJob(ctx context.Context, item models.WorkItem) error {
	return p.submit(ctx, item, func(r models.WorkResult) { p.results <- r })
}

func (p *Pool) submit(ctx context.Context, item models.WorkItem, deliver func(models.WorkResult)) error {
	j := job{ctx: ctx, item: item, deliver: deliver}
	select {
	case <-p.shutdown:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- j:
		return nil
	default:
	}

	p.logger.Debug("worker pool queue full, waiting", slog.Int("id", item.ID))
	select {
	case p.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdown:
		return ErrPoolClosed
	}
}

// GetResult retrieves a result queued by SubmitJob (non-blocking)
func (p *Pool) GetResult() (models.WorkResult, bool) {
	select {
	case result := <-p.results:
		return result, true
	default:
		return models.WorkResult{}, false
	}
}

// Run processes items and returns one result per item ordered by ID. A failing item never
// stops the others; items that could not be queued before ctx ended fail with ctx's error.
func (p *Pool) Run(ctx context.Context, items []models.WorkItem) []models.WorkResult {
	type indexed struct {
		i   int
		res models.WorkResult
	}
	reply := make(chan indexed, len(items))
	out := make([]models.WorkResult, len(items))
	done := make([]bool, len(items))

	pending := 0
	for i, item := range items {
		deliver := func(r models.WorkResult) { reply <- indexed{i, r} }
		if err := p.submit(ctx, item, deliver); err != nil {
			out[i], done[i] = failed(item, err), true
			continue
		}
		pending++
	}

collect:
	for pending > 0 {
		select {
		case r := <-reply:
			out[r.i], done[r.i] = r.res, true
			pending--
		case <-p.shutdown:
			break collect
		}
	}
	if pending > 0 {
		// jobs still queued when the pool closed are never picked up
		p.wg.Wait()
		for len(reply) > 0 {
			r := <-reply
			out[r.i], done[r.i] = r.res, true
		}
		for i, ok := range done {
			if !ok {
				out[i] = failed(items[i], ErrPoolClosed)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b models.WorkResult) int { return a.ID - b.ID })
	return out
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.logger.Info("shutting down worker pool")
		close(p.shutdown)
		p.wg.Wait()
		p.logger.Info("worker pool shutdown complete")
	})
}
