package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTextLength is the longest thought text kept, in characters.
	MaxTextLength = 40
	// MinSize and MaxSize bound the display size of a thought.
	MinSize = 1
	MaxSize = 10
)

// Thought is a floating text card with a position and a drift velocity.
type Thought struct {
	ID        string    `json:"id"`
	JobNumber int       `json:"job_number"`
	Text      string    `json:"text"`
	Size      int       `json:"size"`
	PositionX float64   `json:"position_x"`
	PositionY float64   `json:"position_y"`
	VelocityX float64   `json:"velocity_x"`
	VelocityY float64   `json:"velocity_y"`
	IsBackup  bool      `json:"is_backup"`
	CreatedAt time.Time `json:"created_at"`
}

// Accent reports whether the thought renders in the accent color.
// Every third job number is accented.
func (t Thought) Accent() bool {
	return t.JobNumber%3 == 0
}

// Patch holds a partial update of a thought. Nil fields are left untouched.
type Patch struct {
	Size      *int     `json:"size,omitempty"`
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
	IsBackup  *bool    `json:"is_backup,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Size == nil && p.PositionX == nil && p.PositionY == nil && p.IsBackup == nil
}

// Apply returns t with the patch fields applied.
func (p Patch) Apply(t Thought) Thought {
	if p.Size != nil {
		t.Size = *p.Size
	}
	if p.PositionX != nil {
		t.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		t.PositionY = *p.PositionY
	}
	if p.IsBackup != nil {
		t.IsBackup = *p.IsBackup
	}
	return t
}

// PositionPatch builds a patch that moves a thought to (x, y).
func PositionPatch(x, y float64) Patch {
	return Patch{PositionX: &x, PositionY: &y}
}

// SizePatch builds a patch that sets the size.
func SizePatch(size int) Patch {
	return Patch{Size: &size}
}

// BackupPatch builds a patch that sets the backup flag.
func BackupPatch(backup bool) Patch {
	return Patch{IsBackup: &backup}
}

// TruncateText cuts text to MaxTextLength characters without splitting a rune.
func TruncateText(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxTextLength {
			return text[:i]
		}
		n++
	}
	return text
}

// BlankText reports whether text has nothing but whitespace.
func BlankText(text string) bool {
	return strings.TrimSpace(text) == ""
}

// ClampSize keeps a size inside [MinSize, MaxSize].
func ClampSize(size int) int {
	return min(max(size, MinSize), MaxSize)
}

// Footprint is the fixed visual extent of a card, centered on its position.
type Footprint struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Bounds is the interior of the canvas available to cards.
type Bounds struct {
	Width  float64
	Height float64
}

// Degenerate reports whether no card with the footprint fits inside the bounds,
// which includes a canvas that has not been measured yet.
func (b Bounds) Degenerate(fp Footprint) bool {
	return b.Width <= 0 || b.Height <= 0 || b.Width < fp.Width || b.Height < fp.Height
}

// Clamp moves a card center so that the footprint stays inside the bounds.
func (b Bounds) Clamp(fp Footprint, x, y float64) (float64, float64) {
	x = min(max(x, fp.Width/2), b.Width-fp.Width/2)
	y = min(max(y, fp.Height/2), b.Height-fp.Height/2)
	return x, y
}

// Contains reports whether the footprint centered on (x, y) lies inside the bounds.
func (b Bounds) Contains(fp Footprint, x, y float64) bool {
	return x-fp.Width/2 >= 0 && x+fp.Width/2 <= b.Width &&
		y-fp.Height/2 >= 0 && y+fp.Height/2 <= b.Height
}

// SameDay reports whether t was created on the local calendar day of now.
func (t Thought) SameDay(now time.Time) bool {
	a := t.CreatedAt.In(now.Location())
	y1, m1, d1 := a.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
