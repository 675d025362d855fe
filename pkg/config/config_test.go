package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/cache"
	"github.com/kacperjurak/gocvcore/pkg/palette"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Defaults.SmoothingPoints)
	assert.Equal(t, gocvcore.MovingAverage, cfg.Defaults.SmoothingPolicy)
	assert.Equal(t, time.Hour, cfg.Defaults.CacheMaxAge)
	assert.Nil(t, cfg.Defaults.YAxisMin)
	assert.Equal(t, []string{"gradient_viridis", "teal", palette.Custom}, cfg.PaletteNames())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gocv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  x_axis_max: 1.6
  y_axis_min: -400
  smoothing_points: 11
  smoothing_policy: savgol
  cycles: "2,4"
  palette: warm
  sheet_strategy: fixed-then-discover
  cache_max_age: 30m
palettes:
  warm: ["#ff0000", "#ffaa00"]
logging:
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	d := cfg.Defaults
	assert.Equal(t, 1.6, d.XAxisMax)
	assert.Equal(t, 0.0, d.XAxisMin)
	require.NotNil(t, d.YAxisMin)
	assert.Equal(t, -400.0, *d.YAxisMin)
	assert.Nil(t, d.YAxisMax)
	assert.Equal(t, 11, d.SmoothingPoints)
	assert.Equal(t, gocvcore.SavitzkyGolay, d.SmoothingPolicy)
	assert.Equal(t, 30*time.Minute, d.CacheMaxAge)
	assert.Equal(t, "{temperature}_CV-Graph", d.FilenameTemplate)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"warm", palette.Custom}, cfg.PaletteNames())

	colors, err := cfg.Colors(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"#ff0000", "#ffaa00"}, colors)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GOCV_DEFAULTS_SMOOTHING_POINTS", "3")
	t.Setenv("GOCV_DEFAULTS_SMOOTHING_POLICY", "sg")
	t.Setenv("GOCV_DEFAULTS_Y_AXIS_MAX", "250")
	t.Setenv("GOCV_SERVER_PORT", "9090")
	t.Setenv("GOCV_LOGGING_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Defaults.SmoothingPoints)
	assert.Equal(t, gocvcore.SavitzkyGolay, cfg.Defaults.SmoothingPolicy)
	require.NotNil(t, cfg.Defaults.YAxisMax)
	assert.Equal(t, 250.0, *cfg.Defaults.YAxisMax)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gocv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  smoothing_policy: spline\n"), 0o600))
	_, err = Load(path)
	var perr *gocvcore.SmoothingPolicyError
	assert.ErrorAs(t, err, &perr)
}

func TestSaveLoad(t *testing.T) {
	cfg := Default()
	lo := -120.5
	cfg.Defaults.YAxisMin = &lo
	cfg.Defaults.SmoothingPolicy = gocvcore.SavitzkyGolay
	cfg.Palettes["cold"] = []string{"#0000ff"}

	path := filepath.Join(t.TempDir(), "nested", "gocv.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"x range":      func(c *Config) { c.Defaults.XAxisMax = c.Defaults.XAxisMin },
		"tick":         func(c *Config) { c.Defaults.MajorTickInterval = 0 },
		"cycles":       func(c *Config) { c.Defaults.Cycles = "3-1" },
		"window":       func(c *Config) { c.Defaults.SmoothingPoints = -1 },
		"strategy":     func(c *Config) { c.Defaults.SheetStrategy = "guess" },
		"palette":      func(c *Config) { c.Defaults.Palette = "missing" },
		"custom":       func(c *Config) { c.Defaults.Palette = palette.Custom; c.Defaults.CustomEnd = "red" },
		"log level":    func(c *Config) { c.Logging.Level = "loud" },
		"log format":   func(c *Config) { c.Logging.Format = "xml" },
		"workers":      func(c *Config) { c.Server.Workers = 0 },
		"negative age": func(c *Config) { c.Defaults.CacheMaxAge = -time.Second },
		"webhook":      func(c *Config) { c.Server.WebhookURL = "webplot:3001/webhook" },
		"y range": func(c *Config) {
			lo, hi := 10.0, 10.0
			c.Defaults.YAxisMin, c.Defaults.YAxisMax = &lo, &hi
		},
	}
	for name, mut := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Defaults.XAxisMax = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestDefaults_Mappings(t *testing.T) {
	d := Default().Defaults
	d.ShowGrid = true

	po := d.PlotOptions()
	assert.Equal(t, 1.8, po.XMax)
	assert.Equal(t, 0.2, po.MajorTick)
	assert.True(t, po.ShowGrid)

	opts := d.ProcessOptions(0.5)
	assert.Equal(t, 0.5, opts.Mass)
	assert.Equal(t, 8, opts.Window)
	assert.Equal(t, gocvcore.DefaultColumns(), opts.Columns)

	d.SheetStrategy = workbook.StrategyDiscover
	wo, err := d.WorkbookOptions()
	require.NoError(t, err)
	assert.Equal(t, workbook.DiscoverSheet(workbook.DiscoverPrefix), wo.Sheet)

	assert.Equal(t, cache.MaxAge(time.Hour), d.Staleness())
	d.CacheMaxAge = 0
	assert.Equal(t, cache.Never(), d.Staleness())
}
