package board

import (
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/interaction"
)

// Frame is a consistent copy of everything a host needs to draw the canvas.
type Frame struct {
	// Visible holds the active thoughts, or the archived ones in backup view,
	// oldest first.
	Visible     []domain.Thought
	Session     interaction.Snapshot
	Bounds      domain.Bounds
	Footprint   domain.Footprint
	Counter     int
	ActiveCount int
	BackupCount int
}

// Frame captures the current state under one lock.
func (b *Board) Frame() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.session.Snapshot()
	f := Frame{
		Session:   snap,
		Bounds:    b.bounds(snap),
		Footprint: b.cfg.Footprint,
		Counter:   b.counter,
	}
	for _, t := range b.thoughts {
		if t.IsBackup {
			f.BackupCount++
		} else {
			f.ActiveCount++
		}
		if t.IsBackup == snap.BackupView {
			f.Visible = append(f.Visible, t)
		}
	}
	return f
}

// ThoughtAt returns the top-most visible thought whose card covers (x, y).
// Later thoughts are drawn over earlier ones, and a focused thought is drawn
// over everything.
func (f Frame) ThoughtAt(x, y float64) (string, bool) {
	hit := func(t domain.Thought) bool {
		return x >= t.PositionX-f.Footprint.Width/2 && x <= t.PositionX+f.Footprint.Width/2 &&
			y >= t.PositionY-f.Footprint.Height/2 && y <= t.PositionY+f.Footprint.Height/2
	}
	for _, t := range f.Visible {
		if t.ID == f.Session.FocusedID && hit(t) {
			return t.ID, true
		}
	}
	for i := len(f.Visible) - 1; i >= 0; i-- {
		if hit(f.Visible[i]) {
			return f.Visible[i].ID, true
		}
	}
	return "", false
}
