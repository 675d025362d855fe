package workbook

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// SheetStrategy picks the measurement sheet from the sheet names of a workbook.
type SheetStrategy interface {
	Select(sheets []string) (string, bool)
	String() string
}

// FixedSheet selects a sheet by exact name.
type FixedSheet string

func (s FixedSheet) Select(sheets []string) (string, bool) {
	if slices.Contains(sheets, string(s)) {
		return string(s), true
	}
	return "", false
}

func (s FixedSheet) String() string { return "sheet " + string(s) }

// DiscoverSheet selects the first sheet whose name contains the given substring.
type DiscoverSheet string

func (s DiscoverSheet) Select(sheets []string) (string, bool) {
	for _, name := range sheets {
		if strings.Contains(name, string(s)) {
			return name, true
		}
	}
	return "", false
}

func (s DiscoverSheet) String() string { return "first sheet containing " + string(s) }

type firstOf []SheetStrategy

// FirstOf tries each strategy in order.
func FirstOf(strategies ...SheetStrategy) SheetStrategy {
	return firstOf(strategies)
}

func (f firstOf) Select(sheets []string) (string, bool) {
	for _, s := range f {
		if name, ok := s.Select(sheets); ok {
			return name, true
		}
	}
	return "", false
}

func (f firstOf) String() string {
	parts := make([]string, len(f))
	for i, s := range f {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", then ")
}

// Strategy names accepted by ParseStrategy.
const (
	StrategyFixed             = "fixed"
	StrategyDiscover          = "discover"
	StrategyFixedThenDiscover = "fixed-then-discover"

	DiscoverPrefix = "Channel_"
)

// ErrUnknownStrategy is returned by ParseStrategy for an unrecognised name.
var ErrUnknownStrategy = zerr.New("unknown sheet strategy")

// ParseStrategy builds a strategy from its configuration name. channel is the fixed sheet
// name; empty means DefaultChannelSheet.
func ParseStrategy(name, channel string) (SheetStrategy, error) {
	if channel == "" {
		channel = DefaultChannelSheet
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyFixed:
		return FixedSheet(channel), nil
	case StrategyDiscover:
		return DiscoverSheet(DiscoverPrefix), nil
	case StrategyFixedThenDiscover:
		return FirstOf(FixedSheet(channel), DiscoverSheet(DiscoverPrefix)), nil
	}
	return nil, zerr.With(zerr.Wrap(ErrUnknownStrategy, "parse strategy"), "strategy", name)
}
