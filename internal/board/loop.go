package board

import (
	"context"
	"sync"
	"time"

	"github.com/pbaille/flux/internal/motion"
)

// DefaultTickInterval approximates one display refresh.
const DefaultTickInterval = time.Second / 60

// Ticker is anything advanced once per frame.
type Ticker interface {
	Tick() motion.Stats
}

// Loop calls Tick at a fixed rate until stopped. It must be stopped when the
// host view goes away and restarted when the layout changes.
type Loop struct {
	ticker   Ticker
	interval time.Duration
	onFrame  func(motion.Stats)

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop returns a stopped loop. onFrame, if set, runs after each tick on
// the loop goroutine and must not block.
func NewLoop(t Ticker, interval time.Duration, onFrame func(motion.Stats)) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{ticker: t, interval: interval, onFrame: onFrame}
}

// Start begins ticking. It is a no-op if the loop is already running.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}
	l.parent = ctx
	l.start()
}

func (l *Loop) start() {
	ctx, cancel := context.WithCancel(l.parent)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go l.run(ctx, done)
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	tick := time.NewTicker(l.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			stats := l.ticker.Tick()
			if l.onFrame != nil {
				l.onFrame(stats)
			}
		}
	}
}

// Stop halts the loop and waits until no tick is in flight. A stopped loop
// ignores Restart until it is started again.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stop()
	l.parent = nil
}

func (l *Loop) stop() {
	if l.done == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done = nil, nil
}

// Restart stops the loop and starts it again with the same parent context.
// It does nothing if the loop is not started.
func (l *Loop) Restart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.parent == nil {
		return
	}
	l.stop()
	if l.parent.Err() != nil {
		return
	}
	l.start()
}

// Running reports whether the loop is ticking.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}
