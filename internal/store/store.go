package store

import (
	"context"
	"errors"

	"github.com/pbaille/flux/internal/domain"
)

// ErrNotFound is returned when a thought id does not exist in the store
var ErrNotFound = errors.New("thought not found")

// ThoughtStore is the durable record store for thoughts and the shared counter;
// every implementation must be safe for concurrent use
type ThoughtStore interface {
	// ListThoughts returns every thought, oldest first
	ListThoughts(ctx context.Context) ([]domain.Thought, error)
	// CreateThought persists t and returns it with its assigned ID and CreatedAt
	CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error)
	// UpdateThought applies a partial update, unknown ids yield ErrNotFound
	UpdateThought(ctx context.Context, id string, p domain.Patch) error
	// DeleteThought removes a thought; deleting a missing id is not an error
	DeleteThought(ctx context.Context, id string) error
	// DeleteAllThoughts removes every thought
	DeleteAllThoughts(ctx context.Context) error

	GetCounter(ctx context.Context) (int, error)
	SetCounter(ctx context.Context, value int) error
	// CompareAndSwapCounter sets the counter to new only if it still holds old
	CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error)
}
