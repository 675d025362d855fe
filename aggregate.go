package gocvcore

import (
	"math"
	"strconv"
)

// Aggregate groups rows by cycle index in input order and converts current (A) into
// mA and mA/g. The smoothed fields start as copies of the raw ones.
func Aggregate(rows []MeasurementRow, mass float64) (*CycleDataset, error) {
	if err := validateMass(mass); err != nil {
		return nil, err
	}

	ds := &CycleDataset{Cycles: make(map[int]*CycleSeries), Mass: mass}
	for i, r := range rows {
		if r.CycleIndex < 0 {
			return nil, &InvalidCycleIndexError{Row: i, Value: itoa(r.CycleIndex)}
		}
		if !finite(r.Voltage) {
			return nil, &MissingFieldError{Row: i, Field: "voltage", Value: fieldValue(r.Voltage)}
		}
		ma := r.Current * 1000
		if !finite(r.Current) || !finite(ma) || !finite(ma/mass) {
			return nil, &MissingFieldError{Row: i, Field: "current", Value: fieldValue(r.Current)}
		}
		s, ok := ds.Cycles[r.CycleIndex]
		if !ok {
			s = &CycleSeries{}
			ds.Cycles[r.CycleIndex] = s
		}
		s.Voltage = append(s.Voltage, r.Voltage)
		s.CurrentRaw = append(s.CurrentRaw, r.Current)
		s.CurrentMA = append(s.CurrentMA, ma)
		s.CurrentDensity = append(s.CurrentDensity, ma/mass)
	}

	for _, s := range ds.Cycles {
		s.CurrentMASmoothed = clone(s.CurrentMA)
		s.CurrentDensitySmoothed = clone(s.CurrentDensity)
	}
	return ds, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// fieldValue renders a rejected value; NaN stands for a null cell and renders empty.
func fieldValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func validateMass(mass float64) error {
	if !finite(mass) || mass <= 0 {
		return ErrInvalidMass
	}
	return nil
}
