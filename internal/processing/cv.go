package processing

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/cache"
	"github.com/kacperjurak/gocvcore/pkg/models"
)

// Loader opens a measurement workbook.
type Loader interface {
	Load(path string, opts workbook.Options) (*workbook.Workbook, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string, opts workbook.Options) (*workbook.Workbook, error)

func (f LoaderFunc) Load(path string, opts workbook.Options) (*workbook.Workbook, error) {
	return f(path, opts)
}

// Options holds configuration for creating a CVProcessor
type Options struct {
	// Cache may be nil, in which case every file is processed from scratch.
	Cache    cache.Cache
	Loader   Loader
	Workbook workbook.Options
	Columns  gocvcore.Columns
	Clock    func() time.Time
	Logger   *slog.Logger
}

// CVProcessor turns workbooks into cycle datasets, reading and filling the cache on the way.
type CVProcessor struct {
	cache    cache.Cache
	loader   Loader
	workbook workbook.Options
	columns  gocvcore.Columns
	now      func() time.Time
	logger   *slog.Logger
	group    singleflight.Group
}

// Result is a processed workbook.
type Result struct {
	Path    string
	Label   string
	Dataset *gocvcore.CycleDataset
	Cached  bool
}

// NewCVProcessor creates a new processor. A nil Loader reads workbooks from disk.
func NewCVProcessor(opts Options) *CVProcessor {
	if opts.Loader == nil {
		opts.Loader = LoaderFunc(workbook.Open)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Columns == (gocvcore.Columns{}) {
		opts.Columns = gocvcore.DefaultColumns()
	}
	return &CVProcessor{
		cache:    opts.Cache,
		loader:   opts.Loader,
		workbook: opts.Workbook,
		columns:  opts.Columns,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
}

// Process returns the dataset of the item's workbook. A cached dataset is served when it
// was built with the requested window and policy and, for an explicit mass, the same mass.
// Concurrent calls for the same file and parameters share one load.
func (p *CVProcessor) Process(ctx context.Context, item models.WorkItem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := gocvcore.ValidateWindow(item.Window, item.Policy); err != nil {
		return nil, zerr.With(err, "path", item.Path)
	}

	key, err := filepath.Abs(item.Path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "resolve path"), "path", item.Path)
	}

	flight := key + "|" + strconv.Itoa(item.Window) + "|" + item.Policy.String() + "|" + strconv.FormatFloat(item.Mass, 'g', -1, 64)
	v, err, shared := p.group.Do(flight, func() (any, error) {
		return p.process(key, item)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debug("shared in-flight processing", slog.String("path", key))
	}
	res := *v.(*Result)
	res.Path = item.Path
	return &res, nil
}

func (p *CVProcessor) process(key string, item models.WorkItem) (*Result, error) {
	start := p.now()

	if ds, ok := p.cached(key, item); ok {
		p.logger.Info("using cached dataset", slog.String("path", key), slog.Int("cycles", len(ds.Cycles)))
		return &Result{Label: workbook.ParseLabel(key), Dataset: ds, Cached: true}, nil
	}

	opts := p.workbook
	opts.MassOverride = item.Mass
	opts.Logger = p.logger
	wb, err := p.loader.Load(key, opts)
	if err != nil {
		return nil, err
	}

	ds, err := gocvcore.Process(wb.Frame, gocvcore.Options{
		Columns: p.columns,
		Mass:    wb.Mass,
		Window:  item.Window,
		Policy:  item.Policy,
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "process workbook"), "path", key)
	}

	if p.cache != nil {
		if err := p.cache.Put(key, ds); err != nil {
			p.logger.Warn("failed to cache dataset", slog.String("path", key), slog.Any("error", err))
		}
	}

	p.logger.Info("processed workbook",
		slog.String("path", key),
		slog.String("sheet", wb.Sheet),
		slog.Float64("mass", wb.Mass),
		slog.Int("cycles", len(ds.Cycles)),
		slog.Duration("took", p.now().Sub(start)),
	)
	return &Result{Label: wb.Label, Dataset: ds}, nil
}

// cached looks the key up. Read errors and parameter mismatches count as misses.
func (p *CVProcessor) cached(key string, item models.WorkItem) (*gocvcore.CycleDataset, bool) {
	if p.cache == nil {
		return nil, false
	}
	ds, ok, err := p.cache.Get(key)
	if err != nil {
		p.logger.Warn("ignoring unreadable cache entry", slog.String("path", key), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	mass := ds.Mass
	if item.Mass > 0 {
		mass = item.Mass
	}
	if !ds.SameParams(mass, item.Window, item.Policy) {
		p.logger.Debug("cached dataset built with other parameters", slog.String("path", key))
		return nil, false
	}
	return ds, true
}

// Remove drops the cache entries of the given files when the cache supports it.
func (p *CVProcessor) Remove(paths ...string) error {
	r, ok := p.cache.(cache.Remover)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		key, err := filepath.Abs(path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "resolve path"), "path", path)
		}
		keys = append(keys, key)
	}
	return r.Remove(keys...)
}

// ProcessorFunc adapts the processor to the worker pool.
func (p *CVProcessor) ProcessorFunc() func(ctx context.Context, item models.WorkItem) models.WorkResult {
	return func(ctx context.Context, item models.WorkItem) models.WorkResult {
		res, err := p.Process(ctx, item)
		out := models.WorkResult{
			ID:        item.ID,
			RequestID: item.RequestID,
			BatchID:   item.BatchID,
			Path:      item.Path,
			Err:       err,
			Success:   err == nil,
		}
		if err != nil {
			zerr.Log(ctx, p.logger, err)
			return out
		}
		out.Label = res.Label
		out.Dataset = res.Dataset
		out.Mass = res.Dataset.Mass
		out.Cached = res.Cached
		return out
	}
}
