package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/flux/internal/domain"
)

type call struct {
	kind string
	id   string
}

type recordingStore struct {
	mu       sync.Mutex
	calls    []call
	nextID   int
	failNext map[string]error
	delay    time.Duration
}

func (r *recordingStore) record(kind, id string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{kind, id})
	if err, ok := r.failNext[kind]; ok {
		delete(r.failNext, kind)
		return err
	}
	return nil
}

func (r *recordingStore) CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error) {
	r.mu.Lock()
	r.nextID++
	t.ID = fmt.Sprintf("db-%d", r.nextID)
	r.mu.Unlock()
	if err := r.record("create", t.Text); err != nil {
		return domain.Thought{}, err
	}
	return t, nil
}

func (r *recordingStore) UpdateThought(ctx context.Context, id string, p domain.Patch) error {
	return r.record("update", id)
}

func (r *recordingStore) DeleteThought(ctx context.Context, id string) error {
	return r.record("delete", id)
}

func (r *recordingStore) DeleteAllThoughts(ctx context.Context) error {
	return r.record("clear", "")
}

func (r *recordingStore) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func started(t *testing.T, s Store) *Syncer {
	t.Helper()
	sy := New(s, quietLogger(), Options{Timeout: time.Second})
	sy.Start()
	t.Cleanup(sy.Close)
	return sy
}

func flush(t *testing.T, sy *Syncer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sy.Flush(ctx))
}

func TestSyncer_PreservesOrderAndTranslatesIDs(t *testing.T) {
	rs := &recordingStore{}
	sy := started(t, rs)

	sy.Create("local-1", domain.Thought{Text: "hello"})
	sy.Update("local-1", domain.PositionPatch(10, 20))
	sy.Update("loaded-7", domain.SizePatch(3))
	sy.Delete("local-1")
	flush(t, sy)

	assert.Equal(t, []call{
		{"create", "hello"},
		{"update", "db-1"},
		{"update", "loaded-7"},
		{"delete", "db-1"},
	}, rs.Calls())
	assert.Zero(t, sy.Failures())
}

func TestSyncer_SubmitDoesNotWaitForStore(t *testing.T) {
	rs := &recordingStore{delay: 50 * time.Millisecond}
	sy := started(t, rs)

	start := time.Now()
	for i := 0; i < 5; i++ {
		sy.Update("a", domain.SizePatch(i+1))
	}
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	flush(t, sy)
	assert.Len(t, rs.Calls(), 5)
}

func TestSyncer_FailureIsCountedAndNotRetried(t *testing.T) {
	rs := &recordingStore{failNext: map[string]error{"update": errors.New("503")}}
	sy := started(t, rs)

	sy.Update("a", domain.SizePatch(2))
	sy.Update("a", domain.SizePatch(3))
	flush(t, sy)

	assert.Equal(t, int64(1), sy.Failures())
	assert.Len(t, rs.Calls(), 2, "the failed call is not retried, the next one still runs")
}

func TestSyncer_FailedCreateSkipsFollowUps(t *testing.T) {
	rs := &recordingStore{failNext: map[string]error{"create": errors.New("offline")}}
	sy := started(t, rs)

	sy.Create("local-1", domain.Thought{Text: "lost"})
	sy.Update("local-1", domain.SizePatch(2))
	sy.Delete("local-1")
	flush(t, sy)

	assert.Equal(t, []call{{"create", "lost"}}, rs.Calls())
	assert.Equal(t, int64(3), sy.Failures())
}

func TestSyncer_EmptyPatchIsDropped(t *testing.T) {
	rs := &recordingStore{}
	sy := started(t, rs)

	sy.Update("a", domain.Patch{})
	flush(t, sy)

	assert.Empty(t, rs.Calls())
}

func TestSyncer_Clear(t *testing.T) {
	rs := &recordingStore{}
	sy := started(t, rs)

	sy.Create("local-1", domain.Thought{Text: "x"})
	sy.Clear()
	flush(t, sy)

	assert.Equal(t, []call{{"create", "x"}, {"clear", ""}}, rs.Calls())
}

func TestSyncer_CloseDrainsQueue(t *testing.T) {
	rs := &recordingStore{delay: 5 * time.Millisecond}
	sy := New(rs, quietLogger(), Options{})
	sy.Start()

	for i := 0; i < 10; i++ {
		sy.Delete(fmt.Sprintf("t-%d", i))
	}
	sy.Close()

	assert.Len(t, rs.Calls(), 10)
	assert.ErrorIs(t, sy.Flush(context.Background()), ErrClosed)

	sy.Delete("late")
	assert.Len(t, rs.Calls(), 10)
	sy.Close()
}

func TestSyncer_CloseWithoutStart(t *testing.T) {
	sy := New(&recordingStore{}, nil, Options{})
	sy.Close()
	sy.Close()
}
