package cache

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
)

// BadgerOptions configures a BadgerCache.
type BadgerOptions struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir       string
	InMemory  bool
	Staleness Staleness
	Now       Clock
	Logger    *slog.Logger
}

// BadgerCache keeps datasets for many sources in one embedded database. Freshness is judged
// from the stored_at time recorded in each entry.
type BadgerCache struct {
	db        *badger.DB
	staleness Staleness
	now       Clock
	logger    *slog.Logger
}

// OpenBadger opens or creates the database.
func OpenBadger(opts BadgerOptions) (*BadgerCache, error) {
	s, now := orDefaults(opts.Staleness, opts.Now)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bo := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	}
	bo = bo.WithLogger(badgerLogger{logger})

	db, err := badger.Open(bo)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "open badger cache"), "dir", opts.Dir)
	}
	return &BadgerCache{db: db, staleness: s, now: now, logger: logger}, nil
}

func (c *BadgerCache) Get(key string) (*gocvcore.CycleDataset, bool, error) {
	var entry *Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e, err := Decode(bytes.NewReader(val))
			if err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, "read badger cache"), "key", key)
	}
	if c.staleness.Stale(entry.StoredAt, c.now()) {
		c.logger.Debug("cache entry stale", slog.String("key", key), slog.Time("stored_at", entry.StoredAt))
		return nil, false, nil
	}
	return entry.Dataset, true, nil
}

func (c *BadgerCache) Put(key string, ds *gocvcore.CycleDataset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, Entry{Source: key, StoredAt: c.now(), Dataset: ds}); err != nil {
		return zerr.With(err, "key", key)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf.Bytes())
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "write badger cache"), "key", key)
	}
	return nil
}

// Remove deletes the entries of the given sources.
func (c *BadgerCache) Remove(keys ...string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return zerr.Wrap(err, "delete badger cache entries")
	}
	return nil
}

// Close releases the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, v ...any) {
	b.l.Error(fmt.Sprintf(format, v...), slog.String("component", "badger"))
}

func (b badgerLogger) Warningf(format string, v ...any) {
	b.l.Warn(fmt.Sprintf(format, v...), slog.String("component", "badger"))
}

func (b badgerLogger) Infof(format string, v ...any) {
	b.l.Debug(fmt.Sprintf(format, v...), slog.String("component", "badger"))
}

func (b badgerLogger) Debugf(format string, v ...any) {
	b.l.Debug(fmt.Sprintf(format, v...), slog.String("component", "badger"))
}
