// Package interaction arbitrates between autonomous drift, user dragging
// and focus.
//
// Each thought is Idle, Dragging or Focused. The state is not stored on the
// thought: it is derived from a single Session that holds at most one drag
// and at most one focus, so two focused or two dragged thoughts cannot be
// represented. Session is not safe for concurrent use; its owner serializes
// access and hands immutable Snapshots to the tick.
package interaction

import (
	"errors"

	"github.com/pbaille/flux/internal/domain"
)

var (
	// ErrNotIdle is returned when a transition requires an Idle thought.
	ErrNotIdle = errors.New("thought is not idle")
	// ErrDragActive is returned when another thought is already being dragged.
	ErrDragActive = errors.New("another thought is being dragged")
)

// State is the interaction state of one thought.
type State int

const (
	Idle State = iota
	Dragging
	Focused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Focused:
		return "focused"
	default:
		return "unknown"
	}
}

type drag struct {
	id      string
	offsetX float64
	offsetY float64
}

// Session is the process-wide interaction state.
type Session struct {
	paused     bool
	sidebar    bool
	backupView bool
	focusedID  string
	drag       *drag
}

// NewSession returns a session with nothing focused or dragged.
func NewSession(sidebarVisible bool) *Session {
	return &Session{sidebar: sidebarVisible}
}

// State returns the interaction state of the thought with the given id.
func (s *Session) State(id string) State {
	return s.Snapshot().State(id)
}

// BeginDrag moves an Idle thought to Dragging. The offset between the pointer
// and the thought's position is kept so the card follows the pointer without
// snapping its center onto it.
func (s *Session) BeginDrag(t domain.Thought, pointerX, pointerY float64) error {
	if s.drag != nil {
		if s.drag.id == t.ID {
			return ErrNotIdle
		}
		return ErrDragActive
	}
	if s.State(t.ID) != Idle {
		return ErrNotIdle
	}
	s.drag = &drag{
		id:      t.ID,
		offsetX: pointerX - t.PositionX,
		offsetY: pointerY - t.PositionY,
	}
	return nil
}

// DragTarget returns where the dragged thought should be for the given
// pointer position. ok is false when nothing is being dragged.
func (s *Session) DragTarget(pointerX, pointerY float64) (id string, x, y float64, ok bool) {
	if s.drag == nil {
		return "", 0, 0, false
	}
	return s.drag.id, pointerX - s.drag.offsetX, pointerY - s.drag.offsetY, true
}

// EndDrag returns the dragged thought to Idle.
func (s *Session) EndDrag() (id string, ok bool) {
	if s.drag == nil {
		return "", false
	}
	id = s.drag.id
	s.drag = nil
	return id, true
}

// ToggleFocus flips focus for one thought. Focusing a thought while another
// one is focused releases the previous one first. Returns whether id is now
// focused.
func (s *Session) ToggleFocus(id string) (bool, error) {
	switch s.State(id) {
	case Focused:
		s.focusedID = ""
		return false, nil
	case Dragging:
		return false, ErrNotIdle
	}
	s.focusedID = id
	return true, nil
}

// ClearFocus releases the focused thought, if any.
func (s *Session) ClearFocus() {
	s.focusedID = ""
}

// Forget drops every reference to a deleted thought.
func (s *Session) Forget(id string) {
	if s.focusedID == id {
		s.focusedID = ""
	}
	if s.drag != nil && s.drag.id == id {
		s.drag = nil
	}
}

// Reset clears focus and any drag in progress.
func (s *Session) Reset() {
	s.focusedID = ""
	s.drag = nil
}

// TogglePause flips the global pause flag and returns the new value.
func (s *Session) TogglePause() bool {
	s.paused = !s.paused
	return s.paused
}

// ToggleSidebar flips side panel visibility and returns the new value.
func (s *Session) ToggleSidebar() bool {
	s.sidebar = !s.sidebar
	return s.sidebar
}

// SetSidebar sets side panel visibility and reports whether it changed.
func (s *Session) SetSidebar(visible bool) bool {
	changed := s.sidebar != visible
	s.sidebar = visible
	return changed
}

// ToggleBackupView flips between the active and the archived list.
func (s *Session) ToggleBackupView() bool {
	s.backupView = !s.backupView
	return s.backupView
}

// Snapshot captures the session as an immutable value.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Paused:     s.paused,
		Sidebar:    s.sidebar,
		BackupView: s.backupView,
		FocusedID:  s.focusedID,
	}
	if s.drag != nil {
		snap.DraggingID = s.drag.id
	}
	return snap
}

// Snapshot is a point-in-time copy of a Session. A tick reads one snapshot
// taken when it starts, so input arriving mid-tick only affects the next one.
type Snapshot struct {
	Paused     bool
	Sidebar    bool
	BackupView bool
	FocusedID  string
	DraggingID string
}

// State returns the interaction state of id in this snapshot.
func (s Snapshot) State(id string) State {
	switch {
	case id == "":
		return Idle
	case id == s.DraggingID:
		return Dragging
	case id == s.FocusedID:
		return Focused
	}
	return Idle
}

// Drifts reports whether t advances under the motion integrator.
func (s Snapshot) Drifts(t domain.Thought) bool {
	return !s.Paused && !t.IsBackup && s.State(t.ID) == Idle
}

// Deemphasized reports whether t is dimmed because another thought is focused.
func (s Snapshot) Deemphasized(id string) bool {
	return s.FocusedID != "" && s.FocusedID != id
}
