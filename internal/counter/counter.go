// Package counter hands out display-order job numbers from the shared
// counter record.
package counter

import (
	"context"
	"errors"
	"fmt"
)

const (
	ModeAtomic = "atomic"
	ModeNaive  = "naive"

	defaultMaxAttempts = 16
)

// ErrContention is returned when the atomic allocator keeps losing the race.
var ErrContention = errors.New("counter contention: too many concurrent allocations")

// Store is the part of the thought store that holds the counter.
type Store interface {
	GetCounter(ctx context.Context) (int, error)
	SetCounter(ctx context.Context, value int) error
	CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error)
}

// Allocator issues job numbers.
type Allocator interface {
	// Next returns the next job number and records it as the counter value.
	Next(ctx context.Context) (int, error)
	// Reset sets the counter back to zero.
	Reset(ctx context.Context) error
}

// New returns the allocator for the given mode.
func New(mode string, s Store) (Allocator, error) {
	switch mode {
	case "", ModeAtomic:
		return NewAtomic(s), nil
	case ModeNaive:
		return NewNaive(s), nil
	}
	return nil, fmt.Errorf("unknown counter mode %q", mode)
}

// Naive reads the counter, adds one and writes it back with no guard.
// Two sessions allocating at the same time can both read the same value and
// hand out the same number. Kept for stores without compare-and-swap.
type Naive struct {
	store Store
}

func NewNaive(s Store) *Naive {
	return &Naive{store: s}
}

func (n *Naive) Next(ctx context.Context) (int, error) {
	value, err := n.store.GetCounter(ctx)
	if err != nil {
		return 0, fmt.Errorf("next job number: %w", err)
	}
	value++
	if err := n.store.SetCounter(ctx, value); err != nil {
		return 0, fmt.Errorf("next job number: %w", err)
	}
	return value, nil
}

func (n *Naive) Reset(ctx context.Context) error {
	return reset(ctx, n.store)
}

// Atomic increments with a compare-and-swap loop, retrying when another
// writer got there first.
type Atomic struct {
	store       Store
	maxAttempts int
}

func NewAtomic(s Store) *Atomic {
	return &Atomic{store: s, maxAttempts: defaultMaxAttempts}
}

func (a *Atomic) Next(ctx context.Context) (int, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		value, err := a.store.GetCounter(ctx)
		if err != nil {
			return 0, fmt.Errorf("next job number: %w", err)
		}
		swapped, err := a.store.CompareAndSwapCounter(ctx, value, value+1)
		if err != nil {
			return 0, fmt.Errorf("next job number: %w", err)
		}
		if swapped {
			return value + 1, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return 0, ErrContention
}

func (a *Atomic) Reset(ctx context.Context) error {
	return reset(ctx, a.store)
}

func reset(ctx context.Context, s Store) error {
	if err := s.SetCounter(ctx, 0); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
