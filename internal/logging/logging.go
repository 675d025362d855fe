// Package logging builds the slog logger shared by the CLI and the server.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/config"
)

// ErrUnknownLevel is returned for a level name slog does not know.
var ErrUnknownLevel = zerr.New("unknown log level")

// New returns a text or JSON logger writing to w at the configured level. A nil w means stderr.
func New(cfg config.Logging, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, zerr.With(zerr.Wrap(ErrUnknownLevel, "parse log level"), "level", s)
	}
	return level, nil
}
