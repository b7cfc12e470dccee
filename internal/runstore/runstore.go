// Package runstore archives forward-pass reports in a BadgerDB directory so
// that past runs can be listed and inspected.
//
// Each run is stored under two keys written in one transaction:
//
//	report/<run id>                 full MessagePack report
//	summary/<timestamp hex>/<run id> MessagePack Summary, ordered by time
package runstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/born-ml/labelattn/internal/report"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("runstore: run not found")

const (
	reportPrefix  = "report/"
	summaryPrefix = "summary/"
)

// Summary describes one archived run without its tensors.
type Summary struct {
	RunID     string `msgpack:"run_id"`
	Variant   string `msgpack:"variant"`
	Heads     int    `msgpack:"heads"`
	Timestamp int64  `msgpack:"ts"`
	Batch     int    `msgpack:"batch"`
	Labels    int    `msgpack:"labels"`
	Seq       int    `msgpack:"seq"`
}

// Options configures a Store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory keeps everything in memory.
	InMemory bool

	// Logger receives badger warnings and errors. Nil discards them.
	Logger *slog.Logger
}

// Store is a report archive backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive described by opts.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("runstore: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(slogLogger{opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("runstore: open %s: %w", opts.Dir, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the archive.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put archives r. A report with the same run id is replaced.
func (s *Store) Put(_ context.Context, r *report.Report) error {
	if r.RunID == "" {
		return errors.New("runstore: report has no run id")
	}
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	sum, err := msgpack.Marshal(summarize(r))
	if err != nil {
		return fmt.Errorf("runstore: encode summary: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if old, err := getReport(txn, r.RunID); err == nil {
			if err := txn.Delete(summaryKey(old.Timestamp, old.RunID)); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := txn.Set(reportKey(r.RunID), data); err != nil {
			return err
		}
		return txn.Set(summaryKey(r.Timestamp, r.RunID), sum)
	})
}

// Get returns the report archived under id.
func (s *Store) Get(_ context.Context, id string) (*report.Report, error) {
	var r *report.Report
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = getReport(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the summaries of all archived runs, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(summaryPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(iterOpts.Prefix); it.ValidForPrefix(iterOpts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var sum Summary
			if err := msgpack.Unmarshal(val, &sum); err != nil {
				return fmt.Errorf("runstore: decode summary %s: %w", it.Item().Key(), err)
			}
			out = append(out, sum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the run archived under id.
func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		r, err := getReport(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(summaryKey(r.Timestamp, id)); err != nil {
			return err
		}
		return txn.Delete(reportKey(id))
	})
}

func getReport(txn *badger.Txn, id string) (*report.Report, error) {
	item, err := txn.Get(reportKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return report.Unmarshal(data)
}

func summarize(r *report.Report) Summary {
	sum := Summary{
		RunID:     r.RunID,
		Variant:   r.Variant,
		Heads:     r.Heads,
		Timestamp: r.Timestamp,
	}
	if shape := r.Weights.Shape; len(shape) == 3 {
		sum.Batch, sum.Labels, sum.Seq = shape[0], shape[1], shape[2]
	}
	return sum
}

func reportKey(id string) []byte {
	return []byte(reportPrefix + id)
}

// summaryKey orders summaries by timestamp. Pre-epoch timestamps sort first.
func summaryKey(ts int64, id string) []byte {
	return fmt.Appendf(nil, "%s%016x/%s", summaryPrefix, uint64(ts)^(1<<63), id)
}

// slogLogger adapts badger's logger to slog, dropping info and debug output.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(f string, v ...any) {
	if s.l != nil {
		s.l.Error(fmt.Sprintf(f, v...), "component", "badger")
	}
}

func (s slogLogger) Warningf(f string, v ...any) {
	if s.l != nil {
		s.l.Warn(fmt.Sprintf(f, v...), "component", "badger")
	}
}

func (slogLogger) Infof(string, ...any)  {}
func (slogLogger) Debugf(string, ...any) {}
