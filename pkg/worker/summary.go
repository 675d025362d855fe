package worker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/models"
)

// SummaryHeader is the header row of the batch summary CSV.
var SummaryHeader = []string{
	"Timestamp",
	"BatchID",
	"TotalFiles",
	"Concurrency",
	"TotalBatchTime_ms",
	"AvgFileTime_ms",
	"MinFileTime_ms",
	"MaxFileTime_ms",
	"SuccessRate",
	"CachedFiles",
	"TotalCycles",
	"FilesPerSecond",
	"EfficiencyScore",
}

// Batch describes a finished batch for the summary.
type Batch struct {
	ID          string
	Finished    time.Time
	Total       time.Duration
	Concurrency int
	Timings     []models.FileTiming
}

// Record computes the summary row of the batch.
func (b Batch) Record() []string {
	var totalFileTime time.Duration
	var minTime, maxTime time.Duration
	var successful, cached, cycles int

	for i, t := range b.Timings {
		totalFileTime += t.ProcessingTime
		if i == 0 || t.ProcessingTime < minTime {
			minTime = t.ProcessingTime
		}
		if t.ProcessingTime > maxTime {
			maxTime = t.ProcessingTime
		}
		if t.Success {
			successful++
			cycles += t.Cycles
		}
		if t.Cached {
			cached++
		}
	}

	n := len(b.Timings)
	var avg time.Duration
	var successRate, perSecond, efficiency float64
	if n > 0 {
		avg = totalFileTime / time.Duration(n)
		successRate = float64(successful) / float64(n) * 100
	}
	if secs := b.Total.Seconds(); secs > 0 {
		perSecond = float64(n) / secs
		if b.Concurrency > 0 {
			// 1.0 means the workers were busy for the whole batch
			efficiency = totalFileTime.Seconds() / secs / float64(b.Concurrency)
		}
	}

	return []string{
		b.Finished.Format(time.RFC3339),
		b.ID,
		strconv.Itoa(n),
		strconv.Itoa(b.Concurrency),
		ms(b.Total),
		ms(avg),
		ms(minTime),
		ms(maxTime),
		fmt.Sprintf("%.1f", successRate),
		strconv.Itoa(cached),
		strconv.Itoa(cycles),
		fmt.Sprintf("%.2f", perSecond),
		fmt.Sprintf("%.3f", efficiency),
	}
}

// WriteSummary writes the batch row, preceded by the header when header is set.
func WriteSummary(w io.Writer, b Batch, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(SummaryHeader); err != nil {
			return zerr.Wrap(err, "write summary header")
		}
	}
	if err := cw.Write(b.Record()); err != nil {
		return zerr.Wrap(err, "write summary record")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return zerr.Wrap(err, "flush summary")
	}
	return nil
}

// AppendSummary appends the batch row to the CSV file at path, writing the header when the
// file is new.
func AppendSummary(path string, b Batch) error {
	_, err := os.Stat(path)
	header := errors.Is(err, fs.ErrNotExist)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "open summary file"), "path", path)
	}
	defer file.Close()

	if err := WriteSummary(file, b, header); err != nil {
		return zerr.With(err, "path", path)
	}
	return nil
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
