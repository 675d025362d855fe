package gocvcore

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Columns names the three fields read from every row.
type Columns struct {
	Cycle   string `yaml:"cycle" json:"cycle"`
	Voltage string `yaml:"voltage" json:"voltage"`
	Current string `yaml:"current" json:"current"`
}

// DefaultColumns returns the column names written by the cycler software.
func DefaultColumns() Columns {
	return Columns{
		Cycle:   "Cycle_Index",
		Voltage: "Voltage(V)",
		Current: "Current(A)",
	}
}

func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if c.Cycle == "" {
		c.Cycle = d.Cycle
	}
	if c.Voltage == "" {
		c.Voltage = d.Voltage
	}
	if c.Current == "" {
		c.Current = d.Current
	}
	return c
}

// ExtractRows reads the cycle index, voltage and current of every row of frame.
// Empty column names in cols fall back to DefaultColumns.
func ExtractRows(frame dataframe.DataFrame, cols Columns) ([]MeasurementRow, error) {
	if frame.Err != nil {
		return nil, frame.Err
	}
	cols = cols.withDefaults()

	names := frame.Names()
	for _, want := range []string{cols.Cycle, cols.Voltage, cols.Current} {
		if !slices.Contains(names, want) {
			return nil, &SchemaError{Column: want, Available: names}
		}
	}

	cycle := frame.Col(cols.Cycle)
	voltage := frame.Col(cols.Voltage)
	current := frame.Col(cols.Current)

	rows := make([]MeasurementRow, frame.Nrow())
	for i := range rows {
		idx, err := cycleIndex(cycle, i)
		if err != nil {
			return nil, err
		}
		v, err := numeric(voltage, i, cols.Voltage)
		if err != nil {
			return nil, err
		}
		c, err := numeric(current, i, cols.Current)
		if err != nil {
			return nil, err
		}
		rows[i] = MeasurementRow{CycleIndex: idx, Voltage: v, Current: c}
	}
	return rows, nil
}

func numeric(s series.Series, row int, field string) (float64, error) {
	e := s.Elem(row)
	if e.IsNA() {
		return 0, &MissingFieldError{Row: row, Field: field}
	}
	if s.Type() != series.String {
		f := e.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &MissingFieldError{Row: row, Field: field, Value: e.String()}
		}
		return f, nil
	}
	raw := strings.TrimSpace(e.String())
	if raw == "" {
		return 0, &MissingFieldError{Row: row, Field: field}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MissingFieldError{Row: row, Field: field, Value: raw}
	}
	return f, nil
}

func cycleIndex(s series.Series, row int) (int, error) {
	e := s.Elem(row)
	if e.IsNA() {
		return 0, &InvalidCycleIndexError{Row: row}
	}

	var f float64
	switch s.Type() {
	case series.Int:
		n, err := e.Int()
		if err != nil {
			return 0, &InvalidCycleIndexError{Row: row, Value: e.String()}
		}
		f = float64(n)
	case series.Float:
		f = e.Float()
	default:
		raw := strings.TrimSpace(e.String())
		if n, err := strconv.Atoi(raw); err == nil {
			f = float64(n)
			break
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, &InvalidCycleIndexError{Row: row, Value: raw}
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, &InvalidCycleIndexError{Row: row, Value: e.String()}
	}
	return int(f), nil
}
