// Package syncer sends local thought mutations to the thought store in the
// background.
//
// Callers apply every mutation to their own state first and then hand it to
// the Syncer, which never blocks them. Operations are sent one at a time in
// submission order, so a later edit can never be overtaken by an earlier one.
// A failed operation is logged and counted; it is neither retried nor rolled
// back.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/metrics"
)

const DefaultTimeout = 10 * time.Second

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("syncer closed")

// Store is the subset of the thought store the syncer writes to.
type Store interface {
	CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error)
	UpdateThought(ctx context.Context, id string, p domain.Patch) error
	DeleteThought(ctx context.Context, id string) error
	DeleteAllThoughts(ctx context.Context) error
}

type opKind string

const (
	opCreate  opKind = "create"
	opUpdate  opKind = "update"
	opDelete  opKind = "delete"
	opClear   opKind = "clear"
	opBarrier opKind = "barrier"
)

type op struct {
	kind    opKind
	id      string
	thought domain.Thought
	patch   domain.Patch
	done    chan struct{}
}

// Options tunes a Syncer.
type Options struct {
	// Timeout bounds each store call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Syncer is an ordered, fire-and-forget persistence queue.
type Syncer struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	queue   []op
	closed  bool
	started bool
	wake    chan struct{}
	stopped chan struct{}

	// Owned by the worker goroutine.
	aliases map[string]string
	pending map[string]bool

	failures atomic.Int64
}

// New returns a Syncer writing to s. Call Start before submitting work.
func New(s Store, logger *slog.Logger, opts Options) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Syncer{
		store:   s,
		logger:  logger.With("component", "syncer"),
		timeout: opts.Timeout,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		aliases: make(map[string]string),
		pending: make(map[string]bool),
	}
}

// Start launches the background worker.
func (s *Syncer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.run()
}

// Create persists a thought that only exists locally under localID. Later
// updates and deletes addressed to localID are translated to the id the
// store assigns.
func (s *Syncer) Create(localID string, t domain.Thought) {
	s.enqueue(op{kind: opCreate, id: localID, thought: t})
}

// Update persists a partial update.
func (s *Syncer) Update(id string, p domain.Patch) {
	if p.Empty() {
		return
	}
	s.enqueue(op{kind: opUpdate, id: id, patch: p})
}

// Delete persists a deletion.
func (s *Syncer) Delete(id string) {
	s.enqueue(op{kind: opDelete, id: id})
}

// Clear persists the removal of every thought.
func (s *Syncer) Clear() {
	s.enqueue(op{kind: opClear})
}

// Failures returns how many operations have failed so far.
func (s *Syncer) Failures() int64 {
	return s.failures.Load()
}

// Flush waits until everything submitted before the call has been attempted.
func (s *Syncer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !s.enqueue(op{kind: opBarrier, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, sends what is queued and waits for the worker.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		close(s.stopped)
		return
	}
	s.signal()
	<-s.stopped
}

func (s *Syncer) enqueue(o op) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("sync dropped after close", "op", o.kind, "thought_id", o.id)
		return false
	}
	s.queue = append(s.queue, o)
	metrics.SyncQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Syncer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Syncer) next() (op, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return op{}, false, s.closed
	}
	o := s.queue[0]
	s.queue[0] = op{}
	s.queue = s.queue[1:]
	metrics.SyncQueueDepth.Set(float64(len(s.queue)))
	return o, true, false
}

func (s *Syncer) run() {
	defer close(s.stopped)
	for {
		o, ok, closed := s.next()
		if closed {
			return
		}
		if !ok {
			<-s.wake
			continue
		}
		s.apply(o)
	}
}

func (s *Syncer) apply(o op) {
	if o.kind == opBarrier {
		close(o.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.send(ctx, o)
	metrics.SyncDuration.WithLabelValues(string(o.kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		s.failures.Add(1)
		metrics.SyncOperationsTotal.WithLabelValues(string(o.kind), "error").Inc()
		s.logger.Warn("sync failed", "op", o.kind, "thought_id", o.id, "error", err)
		return
	}
	metrics.SyncOperationsTotal.WithLabelValues(string(o.kind), "ok").Inc()
	s.logger.Debug("synced", "op", o.kind, "thought_id", o.id)
}

var errNeverPersisted = errors.New("thought was never persisted")

func (s *Syncer) send(ctx context.Context, o op) error {
	switch o.kind {
	case opCreate:
		s.pending[o.id] = true
		stored, err := s.store.CreateThought(ctx, o.thought)
		if err != nil {
			return err
		}
		delete(s.pending, o.id)
		s.aliases[o.id] = stored.ID
		return nil
	case opUpdate:
		id, err := s.resolve(o.id)
		if err != nil {
			return err
		}
		return s.store.UpdateThought(ctx, id, o.patch)
	case opDelete:
		id, err := s.resolve(o.id)
		if err != nil {
			return err
		}
		delete(s.aliases, o.id)
		return s.store.DeleteThought(ctx, id)
	case opClear:
		clear(s.aliases)
		clear(s.pending)
		return s.store.DeleteAllThoughts(ctx)
	}
	return nil
}

func (s *Syncer) resolve(id string) (string, error) {
	if stored, ok := s.aliases[id]; ok {
		return stored, nil
	}
	if s.pending[id] {
		return "", errNeverPersisted
	}
	return id, nil
}
