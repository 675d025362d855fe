package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kacperjurak/gocvcore"
)

// WorkItem represents a single workbook to process
type WorkItem struct {
	ID        int
	RequestID string
	BatchID   string
	Path      string
	// Mass replaces the workbook's mass cell when positive.
	Mass      float64
	Window    int
	Policy    gocvcore.Policy
}

// WorkResult contains the result of processing one workbook
type WorkResult struct {
	ID             int
	RequestID      string
	BatchID        string
	Path           string
	Label          string
	Mass           float64
	Dataset        *gocvcore.CycleDataset
	Cached         bool
	ProcessingTime time.Duration
	Success        bool
	Err            error
}

// CycleSummary describes one cycle of a processed dataset
type CycleSummary struct {
	Cycle      int     `json:"cycle"`
	Points     int     `json:"points"`
	VoltageMin float64 `json:"voltage_min"`
	VoltageMax float64 `json:"voltage_max"`
	DensityMin float64 `json:"density_min"`
	DensityMax float64 `json:"density_max"`
}

// DatasetSummary is the JSON answer of the process endpoint
type DatasetSummary struct {
	ID          string                 `json:"id"`
	Label       string                 `json:"label"`
	Mass        float64                `json:"mass"`
	Window      int                    `json:"window"`
	Policy      string                 `json:"policy"`
	Fingerprint string                 `json:"fingerprint"`
	Cycles      []CycleSummary         `json:"cycles"`
	Dataset     *gocvcore.CycleDataset `json:"dataset,omitempty"`
}

// FileTiming tracks processing metrics for one file of a batch
type FileTiming struct {
	ID             int           `json:"id"`
	Path           string        `json:"path"`
	Label          string        `json:"label"`
	Cycles         int           `json:"cycles"`
	Rows           int           `json:"rows"`
	Cached         bool          `json:"cached"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
}

// BatchNotification is posted to the webhook when a batch finishes
type BatchNotification struct {
	BatchID   string       `json:"batch_id"`
	RequestID string       `json:"request_id,omitempty"`
	Time      string       `json:"time"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	ElapsedMs float64      `json:"elapsed_ms"`
	Files     []FileTiming `json:"files"`
}

// Summarize reduces a dataset to per-cycle extents, ordered by cycle number.
func Summarize(id, label string, ds *gocvcore.CycleDataset) DatasetSummary {
	sum := DatasetSummary{
		ID:          id,
		Label:       label,
		Mass:        ds.Mass,
		Window:      ds.Window,
		Policy:      ds.Policy.String(),
		Fingerprint: fmt.Sprintf("%016x", ds.Fingerprint()),
		Cycles:      []CycleSummary{},
	}
	for _, n := range ds.CycleNumbers() {
		s, _ := ds.Cycle(n)
		c := CycleSummary{Cycle: n, Points: s.Len()}
		c.VoltageMin, c.VoltageMax = extent(s.Voltage)
		c.DensityMin, c.DensityMax = extent(s.CurrentDensitySmoothed)
		sum.Cycles = append(sum.Cycles, c)
	}
	return sum
}

// Timing converts a result into its summary row.
func (r WorkResult) Timing() FileTiming {
	t := FileTiming{
		ID:             r.ID,
		Path:           r.Path,
		Label:          r.Label,
		Cached:         r.Cached,
		ProcessingTime: r.ProcessingTime,
		Success:        r.Success,
	}
	if r.Dataset != nil {
		t.Cycles = len(r.Dataset.Cycles)
		t.Rows = r.Dataset.Rows()
	}
	if r.Err != nil {
		t.Error = r.Err.Error()
	}
	return t
}

func extent(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}
