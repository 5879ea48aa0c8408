// Package board owns the in-memory list of thoughts on the canvas.
//
// Every mutation is applied locally first and then handed to the persister,
// which writes it to the store in the background. Continuous drift is never
// persisted; only discrete events are (create, resize, delete, clear and the
// end of a drag). All methods are safe to call from input handlers and from
// the tick loop: a tick holds the board for its whole pass, so input never
// interleaves with one.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/flux/internal/counter"
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/interaction"
	"github.com/pbaille/flux/internal/metrics"
	"github.com/pbaille/flux/internal/motion"
)

var (
	ErrUnknownThought = errors.New("unknown thought")
	ErrEmptyText      = errors.New("thought text is empty")
	ErrNoCanvas       = errors.New("canvas is not measured or too small")
)

// Loader reads the initial state from the store.
type Loader interface {
	ListThoughts(ctx context.Context) ([]domain.Thought, error)
	GetCounter(ctx context.Context) (int, error)
}

// Persister receives local mutations for background persistence.
type Persister interface {
	Create(localID string, t domain.Thought)
	Update(id string, p domain.Patch)
	Delete(id string)
	Clear()
}

// Config holds the canvas geometry and simulation constants.
type Config struct {
	Footprint      domain.Footprint
	DtScale        float64
	SidebarWidth   float64
	SidebarVisible bool
	// Rand drives initial placement. Nil uses the global source.
	Rand *rand.Rand
	// Now stamps local creations. Nil uses time.Now.
	Now func() time.Time
}

// Board is the single owner of the thought list.
type Board struct {
	mu sync.Mutex

	cfg     Config
	loader  Loader
	alloc   counter.Allocator
	persist Persister
	logger  *slog.Logger

	session  *interaction.Session
	thoughts []domain.Thought
	canvasW  float64
	canvasH  float64
	counter  int

	onLayout []func()
}

// New returns an empty board. Call Load to fill it from the store.
func New(loader Loader, alloc counter.Allocator, persist Persister, logger *slog.Logger, cfg Config) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DtScale == 0 {
		cfg.DtScale = motion.DefaultDtScale
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Board{
		cfg:     cfg,
		loader:  loader,
		alloc:   alloc,
		persist: persist,
		logger:  logger.With("component", "board"),
		session: interaction.NewSession(cfg.SidebarVisible),
	}
}

// Load replaces the local list with the store's content. A failure here is a
// connectivity failure and is returned to the caller; a failure to read the
// counter only leaves the displayed value at zero.
func (b *Board) Load(ctx context.Context) error {
	thoughts, err := b.loader.ListThoughts(ctx)
	if err != nil {
		return fmt.Errorf("load thoughts: %w", err)
	}
	value, cerr := b.loader.GetCounter(ctx)
	if cerr != nil {
		b.logger.Warn("load counter failed", "error", cerr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.thoughts = thoughts
	if cerr == nil {
		b.counter = value
	}
	b.session.Reset()
	b.changed()
	b.logger.Info("board loaded", "thoughts", len(thoughts), "counter", b.counter)
	return nil
}

// OnLayoutChange registers fn to run after the effective canvas width changes
// because the side panel was shown or hidden.
func (b *Board) OnLayoutChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLayout = append(b.onLayout, fn)
}

// SetCanvas records the measured canvas size, side panel included.
func (b *Board) SetCanvas(width, height float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canvasW, b.canvasH = width, height
}

// Bounds returns the area cards may occupy.
func (b *Board) Bounds() domain.Bounds {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bounds(b.session.Snapshot())
}

func (b *Board) bounds(snap interaction.Snapshot) domain.Bounds {
	w := b.canvasW
	if snap.Sidebar {
		w -= b.cfg.SidebarWidth
	}
	return domain.Bounds{Width: max(w, 0), Height: b.canvasH}
}

func (b *Board) params() motion.Params {
	return motion.Params{Footprint: b.cfg.Footprint, DtScale: b.cfg.DtScale}
}

// Tick advances every drifting thought by one step.
func (b *Board) Tick() motion.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.session.Snapshot()
	next, stats := motion.Step(b.thoughts, snap, b.bounds(snap), b.params())
	b.thoughts = next

	if stats.Skipped {
		metrics.SkippedTicksTotal.Inc()
		return stats
	}
	metrics.TicksTotal.Inc()
	metrics.ThoughtsMovedTotal.Add(float64(stats.Moved))
	metrics.BouncesTotal.Add(float64(stats.Bounces))
	return stats
}

func (b *Board) float() float64 {
	if b.cfg.Rand != nil {
		return b.cfg.Rand.Float64()
	}
	return rand.Float64()
}

// Create adds a thought with a random position and drift. Text longer than
// domain.MaxTextLength characters is cut. The job number is allocated from
// the store before anything is shown; the thought itself appears locally at
// once and is persisted in the background.
func (b *Board) Create(ctx context.Context, text string) (domain.Thought, error) {
	if domain.BlankText(text) {
		return domain.Thought{}, ErrEmptyText
	}
	text = domain.TruncateText(text)

	b.mu.Lock()
	degenerate := b.bounds(b.session.Snapshot()).Degenerate(b.cfg.Footprint)
	b.mu.Unlock()
	if degenerate {
		return domain.Thought{}, ErrNoCanvas
	}

	job, err := b.alloc.Next(ctx)
	if err != nil {
		return domain.Thought{}, err
	}

	b.mu.Lock()
	bounds := b.bounds(b.session.Snapshot())
	fp := b.cfg.Footprint
	t := domain.Thought{
		ID:        uuid.New().String(),
		JobNumber: job,
		Text:      text,
		Size:      domain.MinSize,
		PositionX: fp.Width/2 + b.float()*max(bounds.Width-fp.Width, 0),
		PositionY: fp.Height/2 + b.float()*max(bounds.Height-fp.Height, 0),
		VelocityX: b.float() - 0.5,
		VelocityY: b.float() - 0.5,
		CreatedAt: b.cfg.Now().UTC(),
	}
	b.thoughts = append(b.thoughts, t)
	b.counter = job
	b.changed()
	b.mu.Unlock()

	b.persist.Create(t.ID, t)
	b.logger.Debug("thought created", "thought_id", t.ID, "job_number", job)
	return t, nil
}

func (b *Board) index(id string) int {
	return slices.IndexFunc(b.thoughts, func(t domain.Thought) bool { return t.ID == id })
}

// Grow increases a thought's size by one, up to domain.MaxSize.
func (b *Board) Grow(id string) (int, error) {
	return b.resize(id, 1)
}

// Shrink decreases a thought's size by one, down to domain.MinSize.
func (b *Board) Shrink(id string) (int, error) {
	return b.resize(id, -1)
}

func (b *Board) resize(id string, delta int) (int, error) {
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return 0, ErrUnknownThought
	}
	old := b.thoughts[i].Size
	size := domain.ClampSize(old + delta)
	b.thoughts[i].Size = size
	b.mu.Unlock()

	if size != old {
		b.persist.Update(id, domain.SizePatch(size))
	}
	return size, nil
}

// Delete removes a thought. Deleting the focused thought clears focus.
func (b *Board) Delete(id string) error {
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return ErrUnknownThought
	}
	b.thoughts = slices.Delete(b.thoughts, i, i+1)
	b.session.Forget(id)
	b.changed()
	b.mu.Unlock()

	b.persist.Delete(id)
	return nil
}

// ClearAll removes every thought.
func (b *Board) ClearAll() {
	b.mu.Lock()
	b.thoughts = nil
	b.session.Reset()
	b.changed()
	b.mu.Unlock()

	b.persist.Clear()
}

// ResetCounter sets the shared counter back to zero.
func (b *Board) ResetCounter(ctx context.Context) error {
	if err := b.alloc.Reset(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.counter = 0
	b.mu.Unlock()
	return nil
}

// BeginDrag starts dragging a thought from the given pointer position.
func (b *Board) BeginDrag(id string, pointerX, pointerY float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return ErrUnknownThought
	}
	return b.session.BeginDrag(b.thoughts[i], pointerX, pointerY)
}

// DragTo moves the dragged thought after the pointer. Positions are not
// clamped mid-drag. Returns false when nothing is being dragged.
func (b *Board) DragTo(pointerX, pointerY float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, x, y, ok := b.session.DragTarget(pointerX, pointerY)
	if !ok {
		return false
	}
	i := b.index(id)
	if i < 0 {
		b.session.Forget(id)
		return false
	}
	b.thoughts[i].PositionX, b.thoughts[i].PositionY = x, y
	return true
}

// EndDrag releases the dragged thought where it is, pulled back inside the
// canvas if it was dropped past an edge, and persists the position. Velocity
// is left as it was before the drag.
func (b *Board) EndDrag() (domain.Thought, bool) {
	b.mu.Lock()
	id, ok := b.session.EndDrag()
	if !ok {
		b.mu.Unlock()
		return domain.Thought{}, false
	}
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return domain.Thought{}, false
	}
	t := &b.thoughts[i]
	if bounds := b.bounds(b.session.Snapshot()); !bounds.Degenerate(b.cfg.Footprint) {
		t.PositionX, t.PositionY = bounds.Clamp(b.cfg.Footprint, t.PositionX, t.PositionY)
	}
	released := *t
	b.mu.Unlock()

	b.persist.Update(id, domain.PositionPatch(released.PositionX, released.PositionY))
	return released, true
}

// ToggleFocus focuses a thought, or unfocuses it if it already is.
func (b *Board) ToggleFocus(id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index(id) < 0 {
		return false, ErrUnknownThought
	}
	return b.session.ToggleFocus(id)
}

// ClearFocus unfocuses whichever thought is focused.
func (b *Board) ClearFocus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session.ClearFocus()
}

// TogglePause freezes or resumes drift for every thought.
func (b *Board) TogglePause() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.TogglePause()
}

// ToggleBackupView switches the listed thoughts between active and archived.
func (b *Board) ToggleBackupView() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.ToggleBackupView()
}

// ToggleSidebar shows or hides the side panel.
func (b *Board) ToggleSidebar() bool {
	b.mu.Lock()
	visible := b.session.ToggleSidebar()
	hooks := slices.Clone(b.onLayout)
	b.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return visible
}

// SetSidebar shows or hides the side panel.
func (b *Board) SetSidebar(visible bool) {
	b.mu.Lock()
	changed := b.session.SetSidebar(visible)
	hooks := slices.Clone(b.onLayout)
	b.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn()
		}
	}
}

// State returns the interaction state of a thought.
func (b *Board) State(id string) interaction.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.State(id)
}

// Counter returns the last job number known locally.
func (b *Board) Counter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counter
}

// Thoughts returns a copy of every thought, active and archived.
func (b *Board) Thoughts() []domain.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.thoughts)
}

// Thought returns one thought by id.
func (b *Board) Thought(id string) (domain.Thought, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return domain.Thought{}, false
	}
	return b.thoughts[i], true
}

// Today returns the thoughts created on the same local day as now.
func (b *Board) Today(now time.Time) []domain.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()
	var today []domain.Thought
	for _, t := range b.thoughts {
		if t.SameDay(now) {
			today = append(today, t)
		}
	}
	return today
}

func (b *Board) changed() {
	active := 0
	for _, t := range b.thoughts {
		if !t.IsBackup {
			active++
		}
	}
	metrics.ActiveThoughts.Set(float64(active))
}
