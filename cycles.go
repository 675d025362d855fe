package gocvcore

import (
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// maxCycleSpan bounds a single "a-b" part.
const maxCycleSpan = 10000

// ParseCycleRange parses selections such as "1-4,6,8" into ascending, de-duplicated cycle numbers.
func ParseCycleRange(s string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseCycle(lo)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(ErrInvalidCycleRange, "parse cycles"), "part", part)
		}
		last := first
		if isRange {
			if last, err = parseCycle(hi); err != nil || last < first || last-first > maxCycleSpan {
				return nil, zerr.With(zerr.Wrap(ErrInvalidCycleRange, "parse cycles"), "part", part)
			}
		}
		for n := first; n <= last; n++ {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, zerr.With(zerr.Wrap(ErrInvalidCycleRange, "parse cycles"), "input", s)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func parseCycle(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
