// Package commands implements the CLI commands of gocvplot.
package commands

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/logging"
	"github.com/kacperjurak/gocvcore/internal/processing"
	"github.com/kacperjurak/gocvcore/pkg/cache"
	"github.com/kacperjurak/gocvcore/pkg/config"
	"github.com/kacperjurak/gocvcore/pkg/models"
	"github.com/kacperjurak/gocvcore/pkg/worker"
)

// Version is set at build time.
var Version = "dev"

// Cache backends selectable with --cache.
const (
	CacheFile   = "file"
	CacheBadger = "badger"
	CacheNone   = "none"
)

var (
	// ErrFilesFailed is returned when at least one input file could not be processed.
	ErrFilesFailed = zerr.New("files failed")

	// ErrUnknownCache is returned for an unsupported --cache value.
	ErrUnknownCache = zerr.New("unknown cache backend")
)

// CLI represents the command line interface for gocvplot.
type CLI struct {
	rootCmd *cobra.Command
	flags   globalFlags
	app     *app
}

type globalFlags struct {
	config   string
	mass     float64
	window   int
	policy   string
	cycles   string
	palette  string
	out      string
	cache    string
	cacheDir string
	workers  int
	logLevel string
}

// app is what every command works with once flags and configuration are resolved.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	processor *processing.CVProcessor
	mass      float64
	closeFn   func() error
}

// New creates a new CLI instance.
func New() *CLI {
	c := &CLI{}
	rootCmd := &cobra.Command{
		Use:           "gocvplot",
		Short:         "Process and plot cyclic voltammetry workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.flags.config, "config", "c", "config.yaml", "Configuration file")
	pf.Float64Var(&c.flags.mass, "mass", 0, "Active mass in grams applied to every file, overriding the workbook")
	pf.IntVarP(&c.flags.window, "window", "w", 0, "Smoothing window (0 disables smoothing)")
	pf.StringVar(&c.flags.policy, "policy", "", "Smoothing policy: moving-average or savitzky-golay")
	pf.StringVar(&c.flags.cycles, "cycles", "", "Cycles to plot, e.g. 1-4,6")
	pf.StringVar(&c.flags.palette, "palette", "", "Palette name")
	pf.StringVarP(&c.flags.out, "out", "o", "", "Output directory")
	pf.StringVar(&c.flags.cache, "cache", CacheFile, "Dataset cache: file, badger or none")
	pf.StringVar(&c.flags.cacheDir, "cache-dir", "", "Cache directory (default: beside each workbook for file, .gocv-cache for badger)")
	pf.IntVarP(&c.flags.workers, "workers", "j", 0, "Files processed in parallel")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(
		c.newPlotCmd(),
		c.newCompareCmd(),
		c.newProcessCmd(),
		c.newPalettesCmd(),
		c.newGradientCmd(),
		c.newCleanCmd(),
		c.newServeCmd(),
		c.newInitCmd(),
	)
	return c
}

// Execute runs the root command with the given context and releases the cache afterwards.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	if c.app != nil && c.app.closeFn != nil {
		if cerr := c.app.closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.flags.config)
	if err != nil {
		return err
	}
	if err := c.applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, closeFn, err := c.openCache(cfg, logger)
	if err != nil {
		return err
	}
	wbOpts, err := cfg.Defaults.WorkbookOptions()
	if err != nil {
		return err
	}

	c.app = &app{
		cfg:    cfg,
		logger: logger,
		processor: processing.NewCVProcessor(processing.Options{
			Cache:    store,
			Workbook: wbOpts,
			Logger:   logger,
		}),
		mass:    c.flags.mass,
		closeFn: closeFn,
	}
	return nil
}

// applyFlags lets explicitly set flags win over the configuration file.
func (c *CLI) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("mass") && (!(c.flags.mass > 0) || math.IsInf(c.flags.mass, 0)) {
		return zerr.With(zerr.Wrap(gocvcore.ErrInvalidMass, "--mass"), "mass", c.flags.mass)
	}
	if f.Changed("window") {
		cfg.Defaults.SmoothingPoints = c.flags.window
	}
	if f.Changed("policy") {
		p, err := gocvcore.ParsePolicy(c.flags.policy)
		if err != nil {
			return err
		}
		cfg.Defaults.SmoothingPolicy = p
	}
	if f.Changed("cycles") {
		cfg.Defaults.Cycles = c.flags.cycles
	}
	if f.Changed("palette") {
		cfg.Defaults.Palette = c.flags.palette
	}
	if f.Changed("out") {
		cfg.Defaults.OutputDirectory = c.flags.out
	}
	if f.Changed("workers") {
		cfg.Server.Workers = c.flags.workers
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = c.flags.logLevel
	}
	return nil
}

// openCache returns a nil Cache for "none" so that the processor skips caching entirely.
func (c *CLI) openCache(cfg *config.Config, logger *slog.Logger) (cache.Cache, func() error, error) {
	staleness := cfg.Defaults.Staleness()
	switch c.flags.cache {
	case CacheFile:
		return cache.NewFileCache(cache.FileOptions{
			Dir:       c.flags.cacheDir,
			Staleness: staleness,
			Logger:    logger,
		}), nil, nil
	case CacheBadger:
		dir := c.flags.cacheDir
		if dir == "" {
			dir = ".gocv-cache"
		}
		db, err := cache.OpenBadger(cache.BadgerOptions{
			Dir:       filepath.Clean(dir),
			Staleness: staleness,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case CacheNone:
		return nil, nil, nil
	}
	return nil, nil, zerr.With(zerr.Wrap(ErrUnknownCache, "open cache"), "cache", c.flags.cache)
}

// processFiles runs every path through the worker pool. Failures are logged and returned
// in place; the caller decides what a failure means for the command.
func (a *app) processFiles(ctx context.Context, paths []string) []models.WorkResult {
	pool := worker.New(worker.Options{
		Workers:   a.cfg.Server.Workers,
		Processor: a.processor.ProcessorFunc(),
		Logger:    a.logger,
	})
	defer pool.Shutdown()

	d := a.cfg.Defaults
	items := make([]models.WorkItem, len(paths))
	for i, p := range paths {
		items[i] = models.WorkItem{
			ID:        i,
			Path:      p,
			Mass:      a.mass,
			Window:    d.SmoothingPoints,
			Policy:    d.SmoothingPolicy,
		}
	}
	return pool.Run(ctx, items)
}

// failures counts failed results and reports them as ErrFilesFailed.
func failures(results []models.WorkResult, extra int) error {
	failed := extra
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return zerr.With(zerr.With(zerr.Wrap(ErrFilesFailed, "process files"), "failed", failed), "total", len(results))
}
