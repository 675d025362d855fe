package cache

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
)

const codecVersion = 1

// ErrCorruptEntry is returned when a stored entry cannot be decoded or fails its checksum.
var ErrCorruptEntry = zerr.New("corrupt cache entry")

// Entry is a decoded cache record.
type Entry struct {
	Source   string
	StoredAt time.Time
	Dataset  *gocvcore.CycleDataset
}

type envelope struct {
	Version     int                    `json:"version"`
	StoredAt    time.Time              `json:"stored_at"`
	Source      string                 `json:"source"`
	Fingerprint string                 `json:"fingerprint"`
	Dataset     *gocvcore.CycleDataset `json:"dataset"`
}

// Encode writes ds with its metadata and fingerprint.
func Encode(w io.Writer, e Entry) error {
	env := envelope{
		Version:     codecVersion,
		StoredAt:    e.StoredAt.UTC(),
		Source:      e.Source,
		Fingerprint: strconv.FormatUint(e.Dataset.Fingerprint(), 16),
		Dataset:     e.Dataset,
	}
	if err := json.NewEncoder(w).Encode(&env); err != nil {
		return zerr.Wrap(err, "encode cache entry")
	}
	return nil
}

// Decode reads an entry written by Encode and verifies its fingerprint.
func Decode(r io.Reader) (*Entry, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, zerr.Wrap(ErrCorruptEntry, err.Error())
	}
	if env.Version != codecVersion {
		return nil, zerr.With(zerr.Wrap(ErrCorruptEntry, "unsupported version"), "version", env.Version)
	}
	if env.Dataset == nil {
		return nil, zerr.Wrap(ErrCorruptEntry, "missing dataset")
	}
	if env.Dataset.Cycles == nil {
		env.Dataset.Cycles = map[int]*gocvcore.CycleSeries{}
	}
	if got := strconv.FormatUint(env.Dataset.Fingerprint(), 16); got != env.Fingerprint {
		return nil, zerr.With(zerr.Wrap(ErrCorruptEntry, "fingerprint mismatch"), "source", env.Source)
	}
	return &Entry{Source: env.Source, StoredAt: env.StoredAt, Dataset: env.Dataset}, nil
}
