package gocvcore

import (
	"fmt"
	"strings"
)

// Policy selects the smoothing algorithm.
type Policy int

const (
	MovingAverage Policy = iota
	SavitzkyGolay
)

func (p Policy) String() string {
	switch p {
	case MovingAverage:
		return "moving-average"
	case SavitzkyGolay:
		return "savitzky-golay"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts the canonical names and their short forms.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "moving-average", "moving_average", "ma", "sma":
		return MovingAverage, nil
	case "savitzky-golay", "savitzky_golay", "savgol", "sg":
		return SavitzkyGolay, nil
	}
	return 0, &SmoothingPolicyError{Policy: -1, Reason: fmt.Sprintf("unknown policy %q", s)}
}

func (p Policy) MarshalText() ([]byte, error) {
	if p != MovingAverage && p != SavitzkyGolay {
		return nil, &SmoothingPolicyError{Policy: p, Reason: "unknown policy"}
	}
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Policy) valid() bool {
	return p == MovingAverage || p == SavitzkyGolay
}

// ValidateWindow checks a window/policy pair without smoothing anything.
func ValidateWindow(window int, policy Policy) error {
	if !policy.valid() {
		return &SmoothingPolicyError{Policy: policy, Window: window, Reason: "unknown policy"}
	}
	if window < 0 {
		return &SmoothingPolicyError{Policy: policy, Window: window, Reason: "window must not be negative"}
	}
	return nil
}

// Smooth returns a smoothed copy of values. A zero window is the identity for every policy.
func Smooth(values []float64, window int, policy Policy) ([]float64, error) {
	if err := ValidateWindow(window, policy); err != nil {
		return nil, err
	}
	if window == 0 {
		return clone(values), nil
	}
	if policy == SavitzkyGolay {
		return SavGol(values, window)
	}
	return TrailingMean(values, window), nil
}

// TrailingMean applies the causal moving average. Samples that do not yet have
// window-1 predecessors are passed through unchanged.
func TrailingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if window <= 1 || i+1 < window {
			out[i] = v
			continue
		}
		out[i] = windowMean(values[i+1-window:i+1], v)
	}
	return out
}

// windowMean averages w relative to anchor so that a constant window yields the anchor exactly.
func windowMean(w []float64, anchor float64) float64 {
	var dev float64
	for _, x := range w {
		dev += x - anchor
	}
	return anchor + dev/float64(len(w))
}

// RunningMean is the streaming form of TrailingMean.
type RunningMean struct {
	window  int
	buf     []float64
	next    int
	filled  int
	scratch []float64
}

// NewRunningMean creates a streaming trailing average over window samples.
func NewRunningMean(window int) *RunningMean {
	if window < 1 {
		window = 1
	}
	return &RunningMean{
		window:  window,
		buf:     make([]float64, window),
		scratch: make([]float64, window),
	}
}

// Push adds a sample and returns the smoothed value for it.
func (r *RunningMean) Push(v float64) float64 {
	r.buf[r.next] = v
	r.next = (r.next + 1) % r.window
	if r.filled < r.window {
		r.filled++
	}
	if r.window == 1 || r.filled < r.window {
		return v
	}
	// oldest first, matching the batch summation order
	for i := 0; i < r.window; i++ {
		r.scratch[i] = r.buf[(r.next+i)%r.window]
	}
	return windowMean(r.scratch, v)
}

// Reset clears the history.
func (r *RunningMean) Reset() {
	r.next = 0
	r.filled = 0
}

func clone(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}
