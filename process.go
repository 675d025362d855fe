package gocvcore

import (
	"github.com/go-gota/gota/dataframe"
)

// Options carries everything Process needs. It is passed by value and never modified.
type Options struct {
	Columns Columns
	Mass    float64
	Window  int
	Policy  Policy
}

// Validate checks mass, window and policy before any data is read.
func (o Options) Validate() error {
	if err := ValidateWindow(o.Window, o.Policy); err != nil {
		return err
	}
	return validateMass(o.Mass)
}

// Process extracts rows from frame, aggregates them per cycle and smooths both
// current series of every cycle.
func Process(frame dataframe.DataFrame, opts Options) (*CycleDataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rows, err := ExtractRows(frame, opts.Columns)
	if err != nil {
		return nil, err
	}
	return ProcessRows(rows, opts)
}

// ProcessRows is Process for rows that were already extracted.
func ProcessRows(rows []MeasurementRow, opts Options) (*CycleDataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ds, err := Aggregate(rows, opts.Mass)
	if err != nil {
		return nil, err
	}
	ds.Window = opts.Window
	ds.Policy = opts.Policy
	if opts.Window == 0 {
		return ds, nil
	}

	for _, n := range ds.CycleNumbers() {
		s := ds.Cycles[n]
		if s.CurrentMASmoothed, err = Smooth(s.CurrentMA, opts.Window, opts.Policy); err != nil {
			return nil, err
		}
		if s.CurrentDensitySmoothed, err = Smooth(s.CurrentDensity, opts.Window, opts.Policy); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
