package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/flux/internal/domain"
)

func card(id string, x, y float64) domain.Thought {
	return domain.Thought{ID: id, PositionX: x, PositionY: y, Size: 1}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "dragging", Dragging.String())
	assert.Equal(t, "focused", Focused.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSession_DragLifecycle(t *testing.T) {
	s := NewSession(true)
	a := card("a", 100, 50)

	require.NoError(t, s.BeginDrag(a, 110, 45))
	assert.Equal(t, Dragging, s.State("a"))

	id, x, y, ok := s.DragTarget(210, 145)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, 200.0, x, "pointer offset is preserved")
	assert.Equal(t, 150.0, y)

	id, ok = s.EndDrag()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, Idle, s.State("a"))

	_, ok = s.EndDrag()
	assert.False(t, ok)
	_, _, _, ok = s.DragTarget(0, 0)
	assert.False(t, ok)
}

func TestSession_SingleDrag(t *testing.T) {
	s := NewSession(false)
	require.NoError(t, s.BeginDrag(card("a", 0, 0), 0, 0))

	assert.ErrorIs(t, s.BeginDrag(card("b", 0, 0), 0, 0), ErrDragActive)
	assert.ErrorIs(t, s.BeginDrag(card("a", 0, 0), 0, 0), ErrNotIdle)
	assert.Equal(t, "a", s.Snapshot().DraggingID)
}

func TestSession_FocusedCannotBeDragged(t *testing.T) {
	s := NewSession(false)
	focused, err := s.ToggleFocus("a")
	require.NoError(t, err)
	require.True(t, focused)

	assert.ErrorIs(t, s.BeginDrag(card("a", 0, 0), 0, 0), ErrNotIdle)
	assert.Equal(t, Focused, s.State("a"))
}

func TestSession_DraggedCannotBeFocused(t *testing.T) {
	s := NewSession(false)
	require.NoError(t, s.BeginDrag(card("a", 0, 0), 0, 0))

	_, err := s.ToggleFocus("a")
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.Empty(t, s.Snapshot().FocusedID)
}

func TestSession_FocusToggle(t *testing.T) {
	s := NewSession(false)

	focused, err := s.ToggleFocus("a")
	require.NoError(t, err)
	assert.True(t, focused)

	focused, err = s.ToggleFocus("b")
	require.NoError(t, err)
	assert.True(t, focused)
	assert.Equal(t, Focused, s.State("b"))
	assert.Equal(t, Idle, s.State("a"), "only one thought is focused at a time")

	focused, err = s.ToggleFocus("b")
	require.NoError(t, err)
	assert.False(t, focused)
	assert.Empty(t, s.Snapshot().FocusedID)
}

func TestSession_Forget(t *testing.T) {
	s := NewSession(false)
	_, err := s.ToggleFocus("a")
	require.NoError(t, err)
	require.NoError(t, s.BeginDrag(card("b", 0, 0), 0, 0))

	s.Forget("a")
	assert.Empty(t, s.Snapshot().FocusedID)
	assert.Equal(t, "b", s.Snapshot().DraggingID)

	s.Forget("b")
	assert.Empty(t, s.Snapshot().DraggingID)
}

func TestSession_Flags(t *testing.T) {
	s := NewSession(true)

	assert.True(t, s.TogglePause())
	assert.False(t, s.ToggleSidebar())
	assert.True(t, s.ToggleBackupView())
	assert.True(t, s.SetSidebar(true))
	assert.False(t, s.SetSidebar(true))

	snap := s.Snapshot()
	assert.True(t, snap.Paused)
	assert.True(t, snap.Sidebar)
	assert.True(t, snap.BackupView)
}

func TestSnapshot_IsolatedFromLaterTransitions(t *testing.T) {
	s := NewSession(false)
	snap := s.Snapshot()

	require.NoError(t, s.BeginDrag(card("a", 0, 0), 0, 0))
	s.TogglePause()

	assert.Equal(t, Idle, snap.State("a"))
	assert.False(t, snap.Paused)
	assert.True(t, snap.Drifts(card("a", 0, 0)))
}

func TestSnapshot_Drifts(t *testing.T) {
	backup := card("c", 0, 0)
	backup.IsBackup = true

	snap := Snapshot{FocusedID: "a", DraggingID: "b"}
	assert.False(t, snap.Drifts(card("a", 0, 0)))
	assert.False(t, snap.Drifts(card("b", 0, 0)))
	assert.False(t, snap.Drifts(backup))
	assert.True(t, snap.Drifts(card("d", 0, 0)))

	snap.Paused = true
	assert.False(t, snap.Drifts(card("d", 0, 0)))

	assert.True(t, snap.Deemphasized("d"))
	assert.False(t, snap.Deemphasized("a"))
	assert.False(t, Snapshot{}.Deemphasized("a"))
}
