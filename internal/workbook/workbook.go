// Package workbook reads CV measurement workbooks exported by battery cyclers.
package workbook

import (
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"go.trai.ch/zerr"
)

var (
	// ErrSheetNotFound is returned when no sheet satisfies the selection strategy.
	ErrSheetNotFound = zerr.New("channel sheet not found")

	// ErrInfoSheetMissing is returned when the mass has to be read but the info sheet is absent.
	ErrInfoSheetMissing = zerr.New("info sheet not found")

	// ErrMassNotNumeric is returned when the mass cell does not hold a number.
	ErrMassNotNumeric = zerr.New("mass cell is not numeric")
)

const (
	DefaultChannelSheet = "Channel_4_1"
	DefaultInfoSheet    = "Global_Info"
	DefaultMassCell     = "H5"
	DefaultLabelCell    = "H4"
	UnknownLabel        = "Unknown"
)

var nanValues = []string{"", "NA", "NaN", "<nil>"}

// Options controls how a workbook is read.
type Options struct {
	Sheet     SheetStrategy
	InfoSheet string
	MassCell  string
	LabelCell string

	// MassOverride replaces the mass cell when positive. The cell is not read at all.
	MassOverride float64

	Logger *slog.Logger
}

// DefaultOptions returns options for the fixed Channel_4_1 / Global_Info layout.
func DefaultOptions() Options {
	return Options{
		Sheet:     FixedSheet(DefaultChannelSheet),
		InfoSheet: DefaultInfoSheet,
		MassCell:  DefaultMassCell,
		LabelCell: DefaultLabelCell,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Sheet == nil {
		o.Sheet = d.Sheet
	}
	if o.InfoSheet == "" {
		o.InfoSheet = d.InfoSheet
	}
	if o.MassCell == "" {
		o.MassCell = d.MassCell
	}
	if o.LabelCell == "" {
		o.LabelCell = d.LabelCell
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Workbook is the content of one measurement file needed for processing.
type Workbook struct {
	Path      string
	Sheet     string
	Frame     dataframe.DataFrame
	Mass      float64
	MassLabel string
	Label     string
}

// Open reads the workbook at path.
func Open(path string, opts Options) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "open workbook"), "path", path)
	}
	defer f.Close()
	return read(f, path, opts)
}

// Read reads a workbook from r. name is used for the label and in errors.
func Read(r io.Reader, name string, opts Options) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "open workbook"), "path", name)
	}
	defer f.Close()
	return read(f, name, opts)
}

func read(f *excelize.File, name string, opts Options) (*Workbook, error) {
	opts = opts.withDefaults()
	sheets := f.GetSheetList()

	sheet, ok := opts.Sheet.Select(sheets)
	if !ok {
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrSheetNotFound, opts.Sheet.String()), "path", name), "sheets", sheets)
	}
	opts.Logger.Debug("selected sheet", slog.String("path", name), slog.String("sheet", sheet))

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "read sheet"), "sheet", sheet)
	}
	frame := toFrame(rows)
	if frame.Err != nil {
		return nil, zerr.With(zerr.Wrap(frame.Err, "build frame"), "sheet", sheet)
	}

	wb := &Workbook{
		Path:  name,
		Sheet: sheet,
		Frame: frame,
		Label: ParseLabel(name),
	}

	hasInfo := slices.Contains(sheets, opts.InfoSheet)
	if hasInfo {
		label, _ := f.GetCellValue(opts.InfoSheet, opts.LabelCell)
		wb.MassLabel = strings.TrimSpace(label)
	}

	if opts.MassOverride > 0 {
		wb.Mass = opts.MassOverride
		return wb, nil
	}
	if !hasInfo {
		return nil, zerr.With(zerr.Wrap(ErrInfoSheetMissing, opts.InfoSheet), "path", name)
	}

	raw, err := f.GetCellValue(opts.InfoSheet, opts.MassCell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "read mass"), "cell", opts.MassCell)
	}
	mass, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrMassNotNumeric, opts.MassCell), "path", name), "value", raw)
	}
	wb.Mass = mass
	return wb, nil
}

// toFrame turns sheet rows into a frame of string columns. The first row is the header;
// short rows are padded with empty cells and long rows are cut to the header width.
func toFrame(rows [][]string) dataframe.DataFrame {
	if len(rows) == 0 {
		return dataframe.New()
	}
	header := rows[0]
	if len(rows) == 1 {
		cols := make([]series.Series, len(header))
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		return dataframe.New(cols...)
	}

	records := make([][]string, len(rows))
	records[0] = header
	for i, r := range rows[1:] {
		rec := make([]string, len(header))
		copy(rec, r)
		records[i+1] = rec
	}
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanValues),
	)
}

var labelPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)[Cc]`)

// ParseLabel derives a temperature label such as "25°C" from a file name.
func ParseLabel(path string) string {
	m := labelPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return UnknownLabel
	}
	return m[1] + "°C"
}
