// Package config loads the YAML configuration file of the plotter and applies GOCV_*
// environment overrides.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/cache"
	"github.com/kacperjurak/gocvcore/pkg/palette"
	"github.com/kacperjurak/gocvcore/pkg/plot"
)

// EnvPrefix is the prefix of environment overrides, e.g. GOCV_DEFAULTS_SMOOTHING_POINTS.
const EnvPrefix = "GOCV"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = zerr.New("invalid configuration")

// Config holds all configuration settings.
type Config struct {
	Defaults Defaults            `yaml:"defaults" envconfig:"DEFAULTS"`
	Palettes map[string][]string `yaml:"palettes" ignored:"true"`
	Logging  Logging             `yaml:"logging" envconfig:"LOGGING"`
	Server   Server              `yaml:"server" envconfig:"SERVER"`
}

// Defaults are the plot and processing settings applied to every file.
type Defaults struct {
	OutputDirectory   string   `yaml:"output_directory" envconfig:"OUTPUT_DIRECTORY"`
	XAxisMin          float64  `yaml:"x_axis_min" envconfig:"X_AXIS_MIN"`
	XAxisMax          float64  `yaml:"x_axis_max" envconfig:"X_AXIS_MAX"`
	YAxisMin          *float64 `yaml:"y_axis_min" envconfig:"Y_AXIS_MIN"`
	YAxisMax          *float64 `yaml:"y_axis_max" envconfig:"Y_AXIS_MAX"`
	MajorTickInterval float64  `yaml:"major_tick_interval" envconfig:"MAJOR_TICK_INTERVAL"`
	ShowGrid          bool     `yaml:"show_grid" envconfig:"SHOW_GRID"`
	FilenameTemplate  string   `yaml:"filename_template" envconfig:"FILENAME_TEMPLATE"`

	SmoothingPoints int             `yaml:"smoothing_points" envconfig:"SMOOTHING_POINTS"`
	SmoothingPolicy gocvcore.Policy `yaml:"smoothing_policy" envconfig:"SMOOTHING_POLICY"`
	ScanRate        string          `yaml:"scan_rate" envconfig:"SCAN_RATE"`
	Cycles          string          `yaml:"cycles" envconfig:"CYCLES"`

	Palette     string `yaml:"palette" envconfig:"PALETTE"`
	CustomStart string `yaml:"custom_start" envconfig:"CUSTOM_START"`
	CustomEnd   string `yaml:"custom_end" envconfig:"CUSTOM_END"`

	ChannelSheet  string        `yaml:"channel_sheet" envconfig:"CHANNEL_SHEET"`
	SheetStrategy string        `yaml:"sheet_strategy" envconfig:"SHEET_STRATEGY"`
	InfoSheet     string        `yaml:"info_sheet" envconfig:"INFO_SHEET"`
	CacheMaxAge   time.Duration `yaml:"cache_max_age" envconfig:"CACHE_MAX_AGE"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// Server holds HTTP service settings.
type Server struct {
	Port          string `yaml:"port" envconfig:"PORT"`
	Workers       int    `yaml:"workers" envconfig:"WORKERS"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	// MaxUploadMB caps multipart uploads.
	MaxUploadMB int64 `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`

	EnableProfiling bool   `yaml:"enable_profiling" envconfig:"ENABLE_PROFILING"`
	ProfilingPort   string `yaml:"profiling_port" envconfig:"PROFILING_PORT"`
	// SummaryFile receives one CSV row per finished batch. Empty disables it.
	SummaryFile string `yaml:"summary_file" envconfig:"SUMMARY_FILE"`
	// WebhookURL receives a JSON notification per finished batch. Empty disables it.
	WebhookURL string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			OutputDirectory:   "out",
			XAxisMin:          0,
			XAxisMax:          1.8,
			MajorTickInterval: 0.2,
			FilenameTemplate:  "{temperature}_CV-Graph",
			SmoothingPoints:   8,
			SmoothingPolicy:   gocvcore.MovingAverage,
			ScanRate:          "0.2",
			Cycles:            "1-6",
			Palette:           "teal",
			CustomStart:       "#0000FF",
			CustomEnd:         "#FF0000",
			ChannelSheet:      workbook.DefaultChannelSheet,
			SheetStrategy:     workbook.StrategyFixed,
			InfoSheet:         workbook.DefaultInfoSheet,
			CacheMaxAge:       cache.DefaultMaxAge,
		},
		Palettes: defaultPalettes(),
		Logging:  Logging{Level: "info", Format: "text"},
		Server: Server{
			Port:          "8080",
			Workers:       4,
			EnableMetrics: true,
			MaxUploadMB:   32,
			ProfilingPort: "6060",
		},
	}
}

func defaultPalettes() map[string][]string {
	return map[string][]string{
		"teal":             slices.Clone(palette.DefaultColors),
		"gradient_viridis": {"#440154", "#fde725"},
	}
}

// Load reads the file at path over the defaults, then applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, zerr.With(zerr.Wrap(err, "read config"), "path", path)
	default:
		cfg.Palettes = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "parse config"), "path", path)
		}
		if len(cfg.Palettes) == 0 {
			cfg.Palettes = defaultPalettes()
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, zerr.Wrap(err, "load config from env")
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return zerr.Wrap(err, "encode config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zerr.With(zerr.Wrap(err, "create config directory"), "path", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return zerr.With(zerr.Wrap(err, "write config"), "path", path)
	}
	return nil
}

// PaletteNames lists the configured palettes sorted, followed by the custom palette.
func (c *Config) PaletteNames() []string {
	return palette.Names(c.Palettes)
}

// Validate checks every setting that would otherwise fail late, during a batch.
func (c *Config) Validate() error {
	d := c.Defaults
	invalid := func(field string, value any) error {
		return zerr.With(zerr.With(zerr.Wrap(ErrInvalidConfig, "validate config"), "field", field), "value", value)
	}

	if !(d.XAxisMin < d.XAxisMax) {
		return invalid("x_axis_max", d.XAxisMax)
	}
	if d.YAxisMin != nil && d.YAxisMax != nil && !(*d.YAxisMin < *d.YAxisMax) {
		return invalid("y_axis_max", *d.YAxisMax)
	}
	if d.MajorTickInterval <= 0 {
		return invalid("major_tick_interval", d.MajorTickInterval)
	}
	if err := gocvcore.ValidateWindow(d.SmoothingPoints, d.SmoothingPolicy); err != nil {
		return zerr.With(err, "field", "smoothing_points")
	}
	if _, err := gocvcore.ParseCycleRange(d.Cycles); err != nil {
		return zerr.With(err, "field", "cycles")
	}
	if _, err := workbook.ParseStrategy(d.SheetStrategy, d.ChannelSheet); err != nil {
		return zerr.With(err, "field", "sheet_strategy")
	}
	if d.CacheMaxAge < 0 {
		return invalid("cache_max_age", d.CacheMaxAge)
	}
	if _, err := c.Colors(1); err != nil {
		return zerr.With(err, "field", "palette")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return invalid("logging.level", c.Logging.Level)
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		return invalid("logging.format", c.Logging.Format)
	}
	if c.Server.Workers <= 0 {
		return invalid("server.workers", c.Server.Workers)
	}
	if c.Server.MaxUploadMB <= 0 {
		return invalid("server.max_upload_mb", c.Server.MaxUploadMB)
	}
	if u := c.Server.WebhookURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalid("server.webhook_url", u)
		}
	}
	return nil
}

// Colors resolves the selected palette to n colours.
func (c *Config) Colors(n int) ([]string, error) {
	return palette.Resolve(c.Defaults.Palette, c.Palettes, [2]string{c.Defaults.CustomStart, c.Defaults.CustomEnd}, n)
}

// ProcessOptions returns the core options for the configured smoothing and the given mass.
func (d Defaults) ProcessOptions(mass float64) gocvcore.Options {
	return gocvcore.Options{
		Columns: gocvcore.DefaultColumns(),
		Mass:    mass,
		Window:  d.SmoothingPoints,
		Policy:  d.SmoothingPolicy,
	}
}

// PlotOptions maps the defaults onto renderer options.
func (d Defaults) PlotOptions() plot.Options {
	opts := plot.DefaultOptions()
	opts.XMin, opts.XMax = d.XAxisMin, d.XAxisMax
	opts.YMin, opts.YMax = d.YAxisMin, d.YAxisMax
	opts.MajorTick = d.MajorTickInterval
	opts.ShowGrid = d.ShowGrid
	opts.ScanRate = d.ScanRate
	return opts
}

// WorkbookOptions maps the sheet settings onto reader options.
func (d Defaults) WorkbookOptions() (workbook.Options, error) {
	opts := workbook.DefaultOptions()
	strategy, err := workbook.ParseStrategy(d.SheetStrategy, d.ChannelSheet)
	if err != nil {
		return opts, err
	}
	opts.Sheet = strategy
	opts.InfoSheet = d.InfoSheet
	return opts, nil
}

// Staleness returns the cache freshness policy. Zero disables expiry.
func (d Defaults) Staleness() cache.Staleness {
	if d.CacheMaxAge == 0 {
		return cache.Never()
	}
	return cache.MaxAge(d.CacheMaxAge)
}
