// Package journal records every assistant turn in a BadgerDB database so the
// history of utterances, replies and stage timings survives conversation
// resets. Records are msgpack-encoded and keyed by their start time.
package journal

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrClosed = errors.New("journal: closed")

// Turn is one pass of the assistant loop.
type Turn struct {
	At         time.Time     `msgpack:"at" json:"at"`
	Utterance  string        `msgpack:"utterance" json:"utterance"`
	Reply      string        `msgpack:"reply,omitempty" json:"reply,omitempty"`
	Intent     string        `msgpack:"intent,omitempty" json:"intent,omitempty"`
	TaskName   string        `msgpack:"task,omitempty" json:"task,omitempty"`
	TaskChange bool          `msgpack:"task_change,omitempty" json:"task_change,omitempty"`
	Transcribe time.Duration `msgpack:"transcribe" json:"transcribe"`
	Respond    time.Duration `msgpack:"respond" json:"respond"`
	Synthesize time.Duration `msgpack:"synthesize" json:"synthesize"`
	Err        string        `msgpack:"err,omitempty" json:"err,omitempty"`
}

const keyPrefix = "turn:"

type Options struct {
	// Dir is the badger directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps the journal in memory only.
	InMemory bool
}

type Journal struct {
	db *badger.DB
}

func Open(opts Options) (*Journal, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("journal: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(_ context.Context, t Turn) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	data, err := msgpack.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(turnKey(t.At), data)
	})
}

// Recent returns up to n turns, newest first. n <= 0 returns all of them.
func (j *Journal) Recent(_ context.Context, n int) ([]Turn, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	var out []Turn
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the largest key <= the seek key.
		for it.Seek([]byte(keyPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			var t Turn
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &t)
			})
			if err != nil {
				return fmt.Errorf("decode turn %s: %w", it.Item().Key(), err)
			}
			out = append(out, t)
			if n > 0 && len(out) >= n {
				break
			}
		}
		return nil
	})
	return out, err
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func turnKey(at time.Time) []byte {
	return fmt.Appendf(nil, "%s%020d", keyPrefix, at.UnixNano())
}

// slogLogger routes badger's own logging into slog.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any)   { log.Error("badger: " + trim(fmt.Sprintf(f, v...))) }
func (slogLogger) Warningf(f string, v ...any) { log.Warn("badger: " + trim(fmt.Sprintf(f, v...))) }
func (slogLogger) Infof(f string, v ...any)    { log.Debug("badger: " + trim(fmt.Sprintf(f, v...))) }
func (slogLogger) Debugf(f string, v ...any)   { log.Debug("badger: " + trim(fmt.Sprintf(f, v...))) }

func trim(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
