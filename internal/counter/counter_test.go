package counter

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory counter. When gate is set, the first `readers`
// GetCounter calls block until all of them have read, forcing two
// allocations to observe the same value.
type memStore struct {
	mu      sync.Mutex
	value   int
	gate    *sync.WaitGroup
	readers int
	getErr  error
	casFail int
}

func (m *memStore) GetCounter(ctx context.Context) (int, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return 0, m.getErr
	}
	v := m.value
	gate := m.gate
	if gate != nil {
		m.readers--
		if m.readers == 0 {
			m.gate = nil
		}
	}
	m.mu.Unlock()

	if gate != nil {
		gate.Done()
		gate.Wait()
	}
	return v, nil
}

func (m *memStore) SetCounter(ctx context.Context, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}

func (m *memStore) CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.casFail > 0 {
		m.casFail--
		return false, nil
	}
	if m.value != old {
		return false, nil
	}
	m.value = new
	return true, nil
}

func gated(value, readers int) *memStore {
	wg := &sync.WaitGroup{}
	wg.Add(readers)
	return &memStore{value: value, gate: wg, readers: readers}
}

func allocateConcurrently(t *testing.T, a Allocator, n int) []int {
	t.Helper()
	results := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Next(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Ints(results)
	return results
}

func TestNew(t *testing.T) {
	s := &memStore{}

	a, err := New("", s)
	require.NoError(t, err)
	assert.IsType(t, &Atomic{}, a)

	a, err = New(ModeNaive, s)
	require.NoError(t, err)
	assert.IsType(t, &Naive{}, a)

	_, err = New("bogus", s)
	assert.Error(t, err)
}

func TestNext_Sequential(t *testing.T) {
	for _, mode := range []string{ModeAtomic, ModeNaive} {
		t.Run(mode, func(t *testing.T) {
			s := &memStore{value: 41}
			a, err := New(mode, s)
			require.NoError(t, err)

			first, err := a.Next(context.Background())
			require.NoError(t, err)
			second, err := a.Next(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 42, first)
			assert.Equal(t, 1, second-first)
			assert.Equal(t, 43, s.value)
		})
	}
}

func TestReset(t *testing.T) {
	for _, mode := range []string{ModeAtomic, ModeNaive} {
		t.Run(mode, func(t *testing.T) {
			s := &memStore{value: 9}
			a, err := New(mode, s)
			require.NoError(t, err)

			require.NoError(t, a.Reset(context.Background()))
			assert.Equal(t, 0, s.value)

			n, err := a.Next(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

// Two allocations that both read 5 before either writes hand out 6 twice.
func TestNaive_RaceIsObservable(t *testing.T) {
	s := gated(5, 2)

	got := allocateConcurrently(t, NewNaive(s), 2)

	assert.Equal(t, []int{6, 6}, got)
	assert.Equal(t, 6, s.value, "one increment was lost")
}

func TestAtomic_SameInterleavingYieldsDistinctNumbers(t *testing.T) {
	s := gated(5, 2)

	got := allocateConcurrently(t, NewAtomic(s), 2)

	assert.Equal(t, []int{6, 7}, got)
	assert.Equal(t, 7, s.value)
}

func TestAtomic_ManyConcurrentCallers(t *testing.T) {
	s := &memStore{}
	a := &Atomic{store: s, maxAttempts: 1000}

	got := allocateConcurrently(t, a, 50)

	for i, v := range got {
		assert.Equal(t, i+1, v)
	}
}

func TestAtomic_Contention(t *testing.T) {
	s := &memStore{casFail: 100}
	a := &Atomic{store: s, maxAttempts: 3}

	_, err := a.Next(context.Background())
	assert.ErrorIs(t, err, ErrContention)
}

func TestNext_StoreFailure(t *testing.T) {
	boom := errors.New("offline")
	for _, mode := range []string{ModeAtomic, ModeNaive} {
		t.Run(mode, func(t *testing.T) {
			a, err := New(mode, &memStore{getErr: boom})
			require.NoError(t, err)

			_, err = a.Next(context.Background())
			assert.ErrorIs(t, err, boom)
		})
	}
}
