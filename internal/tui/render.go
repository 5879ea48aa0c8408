package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/pbaille/flux/internal/board"
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/interaction"
)

type cell struct {
	r     rune
	style int
}

// grid is a fixed-size character canvas. Cards are stamped onto it in draw
// order and it is flushed as one styled run per style change.
type grid struct {
	w, h  int
	cells []cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: max(w, 0), h: max(h, 0)}
	g.cells = make([]cell, g.w*g.h)
	for i := range g.cells {
		g.cells[i] = cell{r: ' '}
	}
	return g
}

func (g *grid) set(x, y int, r rune, style int) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y*g.w+x] = cell{r: r, style: style}
}

func (g *grid) text(x, y int, s string, style int) {
	for _, r := range s {
		g.set(x, y, r, style)
		if runewidth.RuneWidth(r) == 2 {
			// the second column of a wide rune is covered by the first
			g.set(x+1, y, 0, style)
			x++
		}
		x++
	}
}

func (g *grid) render(st []lipgloss.Style) string {
	var b strings.Builder
	for y := 0; y < g.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		row := g.cells[y*g.w : (y+1)*g.w]
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].style == row[start].style {
				continue
			}
			var run strings.Builder
			for _, c := range row[start:x] {
				if c.r != 0 {
					run.WriteRune(c.r)
				}
			}
			if row[start].style == stylePlain {
				b.WriteString(run.String())
			} else {
				b.WriteString(st[row[start].style].Render(run.String()))
			}
			start = x
		}
	}
	return b.String()
}

// cardRect returns the top-left cell and size of a card centered at (x, y).
func cardRect(fp domain.Footprint, x, y float64) (left, top, w, h int) {
	w, h = int(fp.Width), int(fp.Height)
	left = int(math.Round(x - fp.Width/2))
	top = int(math.Round(y - fp.Height/2))
	return left, top, w, h
}

func cardStyle(t domain.Thought, snap interaction.Snapshot) int {
	switch {
	case snap.DraggingID == t.ID:
		return styleDragging
	case snap.FocusedID == t.ID:
		return styleFocused
	case snap.Deemphasized(t.ID):
		return styleFaint
	case t.Accent():
		return styleAccent
	default:
		return styleCard
	}
}

// drawCard stamps one thought. The top border carries the job number and the
// bottom border the size, since a terminal cannot scale the text itself.
func drawCard(g *grid, fp domain.Footprint, t domain.Thought, style int) {
	left, top, w, h := cardRect(fp, t.PositionX, t.PositionY)
	if w < 4 || h < 3 {
		g.text(left, top, runewidth.Truncate(t.Text, w, ""), style)
		return
	}

	border := lipgloss.RoundedBorder()
	if style == styleFocused {
		border = lipgloss.ThickBorder()
	}
	horizontal := []rune(border.Top)[0]

	for x := left + 1; x < left+w-1; x++ {
		g.set(x, top, horizontal, style)
		g.set(x, top+h-1, horizontal, style)
	}
	g.text(left, top, border.TopLeft, style)
	g.text(left+w-1, top, border.TopRight, style)
	g.text(left, top+h-1, border.BottomLeft, style)
	g.text(left+w-1, top+h-1, border.BottomRight, style)
	for y := top + 1; y < top+h-1; y++ {
		g.text(left, y, border.Left, style)
		g.text(left+w-1, y, border.Right, style)
		for x := left + 1; x < left+w-1; x++ {
			g.set(x, y, ' ', style)
		}
	}

	g.text(left+2, top, fmt.Sprintf("#%d", t.JobNumber), style)
	size := fmt.Sprintf("%s%d", strings.Repeat("•", min(t.Size, w/3)), t.Size)
	g.text(left+w-2-runewidth.StringWidth(size), top+h-1, size, style)

	inner := w - 4
	label := t.Text
	if t.Size >= 5 {
		label = strings.ToUpper(label)
	}
	g.text(left+2, top+(h-1)/2, runewidth.Truncate(label, inner, "…"), style)
}

// renderCanvas draws the visible thoughts, the focused one last.
func renderCanvas(f board.Frame, w, h int, st styles) string {
	g := newGrid(w, h)
	var focused *domain.Thought
	for i := range f.Visible {
		t := f.Visible[i]
		if t.ID == f.Session.FocusedID {
			focused = &f.Visible[i]
			continue
		}
		drawCard(g, f.Footprint, t, cardStyle(t, f.Session))
	}
	if focused != nil {
		drawCard(g, f.Footprint, *focused, cardStyle(*focused, f.Session))
	}
	if len(f.Visible) == 0 {
		msg := "press n to write a thought"
		if f.Session.BackupView {
			msg = "no archived thoughts"
		}
		g.text((w-runewidth.StringWidth(msg))/2, h/2, msg, stylePlain)
	}
	return g.render(st.cells)
}

var helpLines = [][2]string{
	{"n", "new thought"},
	{"drag", "move"},
	{"f / right", "focus"},
	{"esc", "unfocus"},
	{"+ -", "size"},
	{"x", "delete"},
	{"p", "pause"},
	{"b", "backup view"},
	{"space", "panel"},
	{"C", "clear all"},
	{"R", "reset counter"},
	{"q", "quit"},
}

// renderPanel draws the side panel: counter, today's thoughts and key help.
func renderPanel(f board.Frame, today []domain.Thought, w, h int, st styles) string {
	inner := max(w-2, 1)
	var lines []string
	add := func(s string) { lines = append(lines, runewidth.Truncate(s, inner, "…")) }

	lines = append(lines, st.panelTitle.Render("flux"))
	add(fmt.Sprintf("counter  #%d", f.Counter))
	add(fmt.Sprintf("active   %d", f.ActiveCount))
	add(fmt.Sprintf("archived %d", f.BackupCount))
	add("")
	lines = append(lines, st.panelTitle.Render(fmt.Sprintf("today (%d)", len(today))))
	shown := 0
	for i := len(today) - 1; i >= 0 && shown < 5; i-- {
		add(fmt.Sprintf("%s %s", today[i].CreatedAt.Local().Format(time.Kitchen), today[i].Text))
		shown++
	}
	add("")
	for _, kv := range helpLines {
		lines = append(lines, st.muted.Render(runewidth.Truncate(fmt.Sprintf("%-10s %s", kv[0], kv[1]), inner, "…")))
	}

	if len(lines) > h {
		lines = lines[:max(h, 0)]
	}
	return st.panel.Width(max(w-1, 1)).Height(max(h, 0)).Render(strings.Join(lines, "\n"))
}
