// Package gocvcore turns cyclic-voltammetry measurement rows into per-cycle current-density
// series and smooths them.
package gocvcore

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// MeasurementRow is a single sample of a CV experiment.
type MeasurementRow struct {
	CycleIndex int
	Voltage    float64 // V
	Current    float64 // A
}

// CycleSeries holds the aligned series of one cycle. All slices have the same length.
type CycleSeries struct {
	Voltage                []float64 `json:"voltage"`
	CurrentRaw             []float64 `json:"current_raw"`
	CurrentMA              []float64 `json:"current_ma"`
	CurrentDensity         []float64 `json:"current_density"`
	CurrentMASmoothed      []float64 `json:"current_ma_smoothed"`
	CurrentDensitySmoothed []float64 `json:"current_density_smoothed"`
}

// Len returns the number of samples in the cycle.
func (s *CycleSeries) Len() int {
	return len(s.Voltage)
}

func (s *CycleSeries) fields() [6][]float64 {
	return [6][]float64{
		s.Voltage,
		s.CurrentRaw,
		s.CurrentMA,
		s.CurrentDensity,
		s.CurrentMASmoothed,
		s.CurrentDensitySmoothed,
	}
}

// CycleDataset maps cycle numbers to their series together with the parameters that produced it.
type CycleDataset struct {
	Cycles map[int]*CycleSeries `json:"cycles"`
	Window int                  `json:"window"`
	Policy Policy               `json:"policy"`
	Mass   float64              `json:"mass"`
}

// CycleNumbers returns the cycle indices in ascending order.
func (d *CycleDataset) CycleNumbers() []int {
	keys := make([]int, 0, len(d.Cycles))
	for k := range d.Cycles {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Cycle returns the series for a cycle number.
func (d *CycleDataset) Cycle(n int) (*CycleSeries, bool) {
	s, ok := d.Cycles[n]
	return s, ok
}

// Rows returns the total number of samples across all cycles.
func (d *CycleDataset) Rows() int {
	total := 0
	for _, s := range d.Cycles {
		total += s.Len()
	}
	return total
}

// SameParams reports whether the dataset was produced with the given parameters.
func (d *CycleDataset) SameParams(mass float64, window int, policy Policy) bool {
	return d.Mass == mass && d.Window == window && d.Policy == policy
}

// Equal reports structural equality. Floats are compared by bit pattern so that
// a NaN produced twice by the same input still compares equal.
func (d *CycleDataset) Equal(o *CycleDataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Window != o.Window || d.Policy != o.Policy || math.Float64bits(d.Mass) != math.Float64bits(o.Mass) {
		return false
	}
	if len(d.Cycles) != len(o.Cycles) {
		return false
	}
	for k, s := range d.Cycles {
		t, ok := o.Cycles[k]
		if !ok {
			return false
		}
		a, b := s.fields(), t.fields()
		for i := range a {
			if !sameBits(a[i], b[i]) {
				return false
			}
		}
	}
	return true
}

// Fingerprint returns a 64-bit digest of the dataset contents and metadata.
func (d *CycleDataset) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	put(uint64(d.Window))
	put(uint64(d.Policy))
	put(math.Float64bits(d.Mass))
	for _, n := range d.CycleNumbers() {
		put(uint64(n))
		for _, field := range d.Cycles[n].fields() {
			put(uint64(len(field)))
			for _, v := range field {
				put(math.Float64bits(v))
			}
		}
	}
	return h.Sum64()
}

func sameBits(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
