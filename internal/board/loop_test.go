package board

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pbaille/flux/internal/motion"
)

type countingTicker struct {
	n atomic.Int64
}

func (c *countingTicker) Tick() motion.Stats {
	c.n.Add(1)
	return motion.Stats{}
}

func TestLoop_StartStop(t *testing.T) {
	ct := &countingTicker{}
	frames := make(chan motion.Stats, 1)
	l := NewLoop(ct, time.Millisecond, func(s motion.Stats) {
		select {
		case frames <- s:
		default:
		}
	})

	l.Start(context.Background())
	l.Start(context.Background())
	assert.True(t, l.Running())

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	l.Stop()
	assert.False(t, l.Running())
	n := ct.n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ct.n.Load(), "no tick after Stop returns")
}

func TestLoop_Restart(t *testing.T) {
	ct := &countingTicker{}
	l := NewLoop(ct, time.Millisecond, nil)

	l.Restart()
	assert.False(t, l.Running(), "restart before start is ignored")

	l.Start(context.Background())
	l.Restart()
	assert.True(t, l.Running())
	assert.Eventually(t, func() bool { return ct.n.Load() > 0 }, 2*time.Second, time.Millisecond)

	l.Stop()
	l.Restart()
	assert.False(t, l.Running(), "restart after stop is ignored")
}

func TestLoop_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(&countingTicker{}, time.Millisecond, nil)

	l.Start(ctx)
	cancel()
	l.Restart()
	assert.False(t, l.Running())
}

func TestLoop_DrivesBoard(t *testing.T) {
	b, _ := newBoard(t, seeded(at("a", 300, 300, 1, 0)))
	l := NewLoop(b, time.Millisecond, nil)
	b.OnLayoutChange(l.Restart)

	l.Start(context.Background())
	b.ToggleSidebar()
	assert.Eventually(t, func() bool {
		th, _ := b.Thought("a")
		return th.PositionX > 300.5
	}, 2*time.Second, time.Millisecond)
	l.Stop()

	assert.Equal(t, 480.0, b.Bounds().Width)
}
