package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pbaille/flux/internal/domain"
)

var (
	thoughtPrefix = []byte("thought/")
	counterKey    = []byte("counter")
)

// BadgerConfig configures an embedded Badger store
type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set
	Path string
	// InMemory keeps everything in RAM, for tests
	InMemory bool
	// Logger receives Badger's internal logs, nil disables them
	Logger *slog.Logger
	// GCInterval is how often the value log is garbage collected while the
	// store is open; zero uses DefaultGCInterval and in-memory stores skip it
	GCInterval time.Duration
	// GCDiscardRatio is the share of stale data a value log file needs before
	// it is rewritten; zero uses DefaultGCDiscardRatio
	GCDiscardRatio float64
}

// Value log GC defaults
const (
	DefaultGCInterval     = 5 * time.Minute
	DefaultGCDiscardRatio = 0.5
)

// BadgerStore keeps thoughts as JSON values in an embedded Badger database
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	gcRatio float64
	gcStop  chan struct{}
	gcDone  chan struct{}
	closed  sync.Once
}

var _ ThoughtStore = (*BadgerStore)(nil)

// badgerLogger adapts slog.Logger to Badger's Logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (or creates) a Badger-backed store
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if cfg.GCInterval < 0 {
		return nil, errors.New("gc interval must not be negative")
	}
	if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio >= 1 {
		return nil, errors.New("gc discard ratio must be in [0, 1)")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, logger: cfg.Logger, gcRatio: cfg.GCDiscardRatio}
	if s.gcRatio == 0 {
		s.gcRatio = DefaultGCDiscardRatio
	}
	if !cfg.InMemory {
		interval := cfg.GCInterval
		if interval == 0 {
			interval = DefaultGCInterval
		}
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(interval)
	}
	return s, nil
}

// Close stops value log GC and closes the database
func (s *BadgerStore) Close() error {
	var err error
	s.closed.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

// runGC collects the value log every interval until Close
func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			s.collectGarbage()
		}
	}
}

// collectGarbage rewrites value log files until none is worth rewriting and
// returns how many files were rewritten
func (s *BadgerStore) collectGarbage() int {
	rewritten := 0
	for {
		err := s.db.RunValueLogGC(s.gcRatio)
		if err == nil {
			rewritten++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
			s.logger.Warn("badger value log GC failed", "error", err)
		}
		if rewritten > 0 && s.logger != nil {
			s.logger.Debug("badger value log GC completed", "files", rewritten)
		}
		return rewritten
	}
}

func thoughtKey(id string) []byte {
	return append(append([]byte{}, thoughtPrefix...), id...)
}

func getThought(txn *badger.Txn, id string) (domain.Thought, error) {
	item, err := txn.Get(thoughtKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Thought{}, ErrNotFound
	}
	if err != nil {
		return domain.Thought{}, err
	}
	var t domain.Thought
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	})
	return t, err
}

func putThought(txn *badger.Txn, t domain.Thought) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return txn.Set(thoughtKey(t.ID), data)
}

// ListThoughts returns all thoughts, oldest first
func (s *BadgerStore) ListThoughts(ctx context.Context) ([]domain.Thought, error) {
	thoughts := []domain.Thought{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(thoughtPrefix); it.ValidForPrefix(thoughtPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t domain.Thought
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return err
			}
			thoughts = append(thoughts, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}

	sortThoughts(thoughts)
	return thoughts, nil
}

// sortThoughts orders by creation time, then job number, then id, so ties
// come out the same on every call
func sortThoughts(thoughts []domain.Thought) {
	sort.Slice(thoughts, func(i, j int) bool {
		a, b := thoughts[i], thoughts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.JobNumber != b.JobNumber {
			return a.JobNumber < b.JobNumber
		}
		return a.ID < b.ID
	})
}

// CreateThought stores t under a fresh id
func (s *BadgerStore) CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error) {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now().UTC()
	if err := s.db.Update(func(txn *badger.Txn) error {
		return putThought(txn, t)
	}); err != nil {
		return domain.Thought{}, fmt.Errorf("insert thought: %w", err)
	}
	return t, nil
}

// UpdateThought applies the non-nil fields of p
func (s *BadgerStore) UpdateThought(ctx context.Context, id string, p domain.Patch) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		t, err := getThought(txn, id)
		if err != nil {
			return err
		}
		return putThought(txn, p.Apply(t))
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update thought: %w", err)
	}
	return nil
}

// DeleteThought removes a thought
func (s *BadgerStore) DeleteThought(ctx context.Context, id string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(thoughtKey(id))
	}); err != nil {
		return fmt.Errorf("delete thought: %w", err)
	}
	return nil
}

// DeleteAllThoughts removes every thought
func (s *BadgerStore) DeleteAllThoughts(ctx context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(thoughtPrefix); it.ValidForPrefix(thoughtPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear thoughts: %w", err)
	}
	return nil
}

func readCounter(txn *badger.Txn) (int, error) {
	item, err := txn.Get(counterKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var value int
	err = item.Value(func(val []byte) error {
		value, err = strconv.Atoi(string(val))
		return err
	})
	return value, err
}

// GetCounter returns the counter; a missing key reads as the seed value 0
func (s *BadgerStore) GetCounter(ctx context.Context) (int, error) {
	var value int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = readCounter(txn)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return value, nil
}

// SetCounter overwrites the counter
func (s *BadgerStore) SetCounter(ctx context.Context, value int) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(counterKey, []byte(strconv.Itoa(value)))
	}); err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

// CompareAndSwapCounter relies on Badger's optimistic transactions: a
// concurrent writer makes the commit fail with ErrConflict, which is reported
// as a lost swap
func (s *BadgerStore) CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error) {
	swapped := false
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readCounter(txn)
		if err != nil {
			return err
		}
		if current != old {
			return nil
		}
		swapped = true
		return txn.Set(counterKey, []byte(strconv.Itoa(new)))
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("swap counter: %w", err)
	}
	return swapped, nil
}
