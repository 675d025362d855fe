// Package plot renders CV curves with go-chart.
package plot

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/pkg/palette"
)

const (
	XLabel = "Potential / V"
	YLabel = "Current Density / mA g^-1"

	// Default image size keeps the 6432x4923 aspect ratio of the lab's figure template.
	DefaultWidth  = 1608
	DefaultHeight = DefaultWidth * 4923 / 6432
	DefaultDPI    = 150.0

	maxTicks = 200
)

var (
	// ErrNoCycles is returned when none of the requested cycles exist in the data.
	ErrNoCycles = zerr.New("no requested cycle present")

	// ErrInvalidAxis is returned when an axis minimum is not below its maximum.
	ErrInvalidAxis = zerr.New("invalid axis bounds")
)

// Options controls the look of a CV graph.
type Options struct {
	// Cycles to draw. Empty draws every cycle of the dataset.
	Cycles []int
	Colors []string

	XMin, XMax float64
	// YMin and YMax are derived from the data when nil.
	YMin, YMax *float64
	MajorTick  float64
	ShowGrid   bool

	ScanRate string
	Label    string

	Width, Height int
	DPI           float64

	Logger *slog.Logger
}

// DefaultOptions mirrors the defaults section of the configuration file.
func DefaultOptions() Options {
	return Options{
		Colors:    palette.DefaultColors,
		XMin:      0,
		XMax:      1.8,
		MajorTick: 0.2,
		ScanRate:  "0.2",
		Label:     "Unknown",
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		DPI:       DefaultDPI,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.DPI <= 0 {
		o.DPI = d.DPI
	}
	if len(o.Colors) == 0 {
		o.Colors = d.Colors
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Labeled is a dataset with the label shown for it in comparison plots.
type Labeled struct {
	Label   string
	Dataset *gocvcore.CycleDataset
}

// CVGraph builds a chart with one curve per requested cycle: voltage against smoothed
// current density.
func CVGraph(ds *gocvcore.CycleDataset, opts Options) (chart.Chart, error) {
	opts = opts.withDefaults()
	cycles := opts.Cycles
	if len(cycles) == 0 {
		cycles = ds.CycleNumbers()
	} else {
		cycles = slices.Sorted(slices.Values(cycles))
		cycles = slices.Compact(cycles)
	}

	var series []chart.Series
	for _, n := range cycles {
		s, ok := ds.Cycle(n)
		if !ok {
			opts.Logger.Warn("cycle not found in data", slog.Int("cycle", n), slog.String("label", opts.Label))
			continue
		}
		series = append(series, curve(fmt.Sprintf("Cycle %d", n), s, palette.Cycle(opts.Colors, len(series))))
	}
	if len(series) == 0 {
		return chart.Chart{}, zerr.With(zerr.Wrap(ErrNoCycles, "build cv graph"), "cycles", cycles)
	}
	return build(series, opts)
}

// CompareGraph builds a chart with one curve per dataset for a single cycle.
func CompareGraph(sets []Labeled, cycle int, opts Options) (chart.Chart, error) {
	opts = opts.withDefaults()

	var series []chart.Series
	for _, set := range sets {
		s, ok := set.Dataset.Cycle(cycle)
		if !ok {
			opts.Logger.Warn("cycle not found in data", slog.Int("cycle", cycle), slog.String("label", set.Label))
			continue
		}
		series = append(series, curve(set.Label, s, palette.Cycle(opts.Colors, len(series))))
	}
	if len(series) == 0 {
		return chart.Chart{}, zerr.With(zerr.Wrap(ErrNoCycles, "build comparison graph"), "cycle", cycle)
	}
	opts.Label = fmt.Sprintf("Cycle %d", cycle)
	return build(series, opts)
}

// RenderCV writes the CV graph as PNG.
func RenderCV(w io.Writer, ds *gocvcore.CycleDataset, opts Options) error {
	c, err := CVGraph(ds, opts)
	if err != nil {
		return err
	}
	return render(w, c)
}

// RenderCompare writes the comparison graph as PNG.
func RenderCompare(w io.Writer, sets []Labeled, cycle int, opts Options) error {
	c, err := CompareGraph(sets, cycle, opts)
	if err != nil {
		return err
	}
	return render(w, c)
}

// OutputName fills the {temperature} placeholder of a file name template and adds .png.
func OutputName(template, label string) string {
	name := strings.ReplaceAll(template, "{temperature}", label)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return name + ".png"
}

func render(w io.Writer, c chart.Chart) error {
	if err := c.Render(chart.PNG, w); err != nil {
		return zerr.Wrap(err, "render png")
	}
	return nil
}

func curve(name string, s *gocvcore.CycleSeries, color string) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: s.Voltage,
		YValues: s.CurrentDensitySmoothed,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex(color),
			StrokeWidth: 2,
		},
	}
}

func build(series []chart.Series, opts Options) (chart.Chart, error) {
	if !(opts.XMin < opts.XMax) {
		return chart.Chart{}, zerr.With(zerr.With(zerr.Wrap(ErrInvalidAxis, "x axis"), "min", opts.XMin), "max", opts.XMax)
	}
	ymin, ymax := yBounds(series, opts)
	if !(ymin < ymax) {
		return chart.Chart{}, zerr.With(zerr.With(zerr.Wrap(ErrInvalidAxis, "y axis"), "min", ymin), "max", ymax)
	}

	grid := chart.Style{Hidden: true}
	if opts.ShowGrid {
		grid = chart.Style{StrokeColor: drawing.ColorFromHex("d0d0d0"), StrokeWidth: 1}
	}

	dx, dy := opts.XMax-opts.XMin, ymax-ymin
	notes := chart.AnnotationSeries{
		Annotations: []chart.Value2{
			{XValue: opts.XMin + 0.02*dx, YValue: ymin + 0.05*dy, Label: opts.ScanRate + " mV s^-1"},
			{XValue: opts.XMax - 0.15*dx, YValue: ymin + 0.05*dy, Label: opts.Label},
		},
	}

	c := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		DPI:    opts.DPI,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 40, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           XLabel,
			Ticks:          ticks(opts.XMin, opts.XMax, opts.MajorTick),
			GridMajorStyle: grid,
			GridMinorStyle: chart.Style{Hidden: true},
		},
		YAxis: chart.YAxis{
			Name:           YLabel,
			Range:          &chart.ContinuousRange{Min: ymin, Max: ymax},
			GridMajorStyle: grid,
			GridMinorStyle: chart.Style{Hidden: true},
		},
		Series: append(series, notes),
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c, nil
}

func yBounds(series []chart.Series, opts Options) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		cs, ok := s.(chart.ContinuousSeries)
		if !ok {
			continue
		}
		for _, v := range cs.YValues {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = -1, 1
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	lo, hi = lo-pad, hi+pad

	if opts.YMin != nil {
		lo = *opts.YMin
	}
	if opts.YMax != nil {
		hi = *opts.YMax
	}
	return lo, hi
}

// ticks places labelled ticks every step from lo and always ends at hi.
func ticks(lo, hi, step float64) []chart.Tick {
	if step <= 0 || (hi-lo)/step > maxTicks {
		step = (hi - lo) / 10
	}
	var out []chart.Tick
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v > hi+step*1e-9 {
			break
		}
		out = append(out, chart.Tick{Value: v, Label: tickLabel(v)})
	}
	if last := out[len(out)-1].Value; hi-last > step*1e-9 {
		out = append(out, chart.Tick{Value: hi, Label: tickLabel(hi)})
	}
	return out
}

func tickLabel(v float64) string {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
