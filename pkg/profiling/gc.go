package profiling

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/render"
)

// GCStats provides garbage collection statistics
type GCStats struct {
	NumGC         uint32  `json:"gc_runs"`
	PauseTotalMs  float64 `json:"pause_total_ms"`
	PauseRecentUs float64 `json:"pause_recent_us"`
	LastGC        string  `json:"last_gc,omitempty"`
	GCCPUPercent  float64 `json:"cpu_percent"`
}

// GetGCStats returns current garbage collection statistics
func GetGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var recentPause time.Duration
	if m.NumGC > 0 {
		recentPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}
	stats := GCStats{
		NumGC:         m.NumGC,
		PauseTotalMs:  float64(m.PauseTotalNs) / 1e6,
		PauseRecentUs: float64(recentPause.Nanoseconds()) / 1e3,
		GCCPUPercent:  m.GCCPUFraction * 100,
	}
	if m.LastGC > 0 {
		stats.LastGC = time.Unix(0, int64(m.LastGC)).Format(time.RFC3339Nano)
	}
	return stats
}

// ForceGC runs a collection and returns the statistics before and after it.
func ForceGC() (before, after GCStats) {
	before = GetGCStats()
	runtime.GC()
	after = GetGCStats()
	return before, after
}

func (p *Profiler) gcHandler(w http.ResponseWriter, r *http.Request) {
	before, after := ForceGC()
	p.logger.Info("forced GC",
		slog.Uint64("runs_before", uint64(before.NumGC)),
		slog.Uint64("runs_after", uint64(after.NumGC)),
		slog.Float64("pause_us", after.PauseRecentUs),
	)
	render.JSON(w, r, after)
}
