// Package tui hosts the thought canvas in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pbaille/flux/internal/board"
	"github.com/pbaille/flux/internal/domain"
	"github.com/pbaille/flux/internal/motion"
)

type mode int

const (
	modeLoading mode = iota
	modeCanvas
	modePrompt
	modeError
)

// Options configures the host.
type Options struct {
	TickInterval time.Duration
	// Now is used for the today list. Nil uses time.Now.
	Now func() time.Time
}

type frameMsg struct{}

type loadedMsg struct{ err error }

type createdMsg struct {
	thought domain.Thought
	err     error
}

type counterResetMsg struct{ err error }

// Model is the bubbletea model for the canvas.
type Model struct {
	ctx    context.Context
	board  *board.Board
	loop   *board.Loop
	frames chan struct{}
	styles styles
	now    func() time.Time

	mode     mode
	input    textinput.Model
	width    int
	height   int
	pointerX float64
	pointerY float64
	status   string
	loadErr  error
}

// New wires a model to b. The tick loop starts once the board has loaded and
// restarts whenever the side panel changes the canvas width.
func New(ctx context.Context, b *board.Board, opts Options) Model {
	frames := make(chan struct{}, 1)
	loop := board.NewLoop(b, opts.TickInterval, func(motion.Stats) {
		select {
		case frames <- struct{}{}:
		default:
		}
	})
	b.OnLayoutChange(loop.Restart)

	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "what's on your mind?"
	ti.CharLimit = domain.MaxTextLength
	ti.Width = domain.MaxTextLength

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return Model{
		ctx:    ctx,
		board:  b,
		loop:   loop,
		frames: frames,
		styles: defaultStyles(),
		now:    now,
		input:  ti,
	}
}

// Stop halts the tick loop. Safe to call more than once.
func (m Model) Stop() {
	m.loop.Stop()
}

// Err returns the load failure shown on the error screen, if any.
func (m Model) Err() error {
	return m.loadErr
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitFrame())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.board.Load(m.ctx)}
	}
}

func (m Model) waitFrame() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.frames:
			return frameMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) create(text string) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.Create(m.ctx, text)
		return createdMsg{thought: t, err: err}
	}
}

func (m Model) resetCounter() tea.Cmd {
	return func() tea.Msg {
		return counterResetMsg{err: m.board.ResetCounter(m.ctx)}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.loop.Stop()
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.board.SetCanvas(float64(msg.Width), float64(max(msg.Height-1, 0)))
		return m, nil

	case frameMsg:
		return m, m.waitFrame()

	case loadedMsg:
		if msg.err != nil {
			m.mode = modeError
			m.loadErr = msg.err
			return m, nil
		}
		m.mode = modeCanvas
		m.loop.Start(m.ctx)
		return m, nil

	case createdMsg:
		if msg.err != nil {
			m.status = createError(msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("added #%d", msg.thought.JobNumber)
		return m, nil

	case counterResetMsg:
		if msg.err != nil {
			m.status = "reset failed: " + msg.err.Error()
		} else {
			m.status = "counter reset"
		}
		return m, nil

	case tea.MouseMsg:
		if m.mode == modeCanvas {
			m.handleMouse(msg)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.mode == modePrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func createError(err error) string {
	switch {
	case errors.Is(err, board.ErrEmptyText):
		return "nothing to add"
	case errors.Is(err, board.ErrNoCanvas):
		return "window too small"
	default:
		return "add failed: " + err.Error()
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	// card centers sit between cells, pointer positions on cell centers
	m.pointerX, m.pointerY = float64(msg.X)+0.5, float64(msg.Y)+0.5

	switch msg.Action {
	case tea.MouseActionPress:
		id, ok := m.board.Frame().ThoughtAt(m.pointerX, m.pointerY)
		if !ok {
			return
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			if err := m.board.BeginDrag(id, m.pointerX, m.pointerY); err != nil {
				m.status = err.Error()
			}
		case tea.MouseButtonRight:
			if _, err := m.board.ToggleFocus(id); err != nil {
				m.status = err.Error()
			}
		}
	case tea.MouseActionMotion:
		m.board.DragTo(m.pointerX, m.pointerY)
	case tea.MouseActionRelease:
		m.board.EndDrag()
	}
}

// target is the thought a key acts on: the focused one, else the one under
// the pointer.
func (m Model) target() (string, bool) {
	f := m.board.Frame()
	if f.Session.FocusedID != "" {
		return f.Session.FocusedID, true
	}
	return f.ThoughtAt(m.pointerX, m.pointerY)
}

// onTarget runs op on the current target and shows its error, if any. The
// thought may be gone by the time op runs.
func (m *Model) onTarget(op func(id string) error) {
	id, ok := m.target()
	if !ok {
		return
	}
	if err := op(id); err != nil {
		m.status = err.Error()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeLoading, modeError:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m.quit()
		}
		return m, nil

	case modePrompt:
		switch msg.Type {
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			m.input.Blur()
			m.mode = modeCanvas
			return m, m.create(text)
		case tea.KeyEsc:
			m.input.Reset()
			m.input.Blur()
			m.mode = modeCanvas
			return m, nil
		case tea.KeyCtrlC:
			return m.quit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "n":
		m.mode = modePrompt
		return m, m.input.Focus()
	case "f":
		id, ok := m.board.Frame().ThoughtAt(m.pointerX, m.pointerY)
		if !ok {
			return m, nil
		}
		if _, err := m.board.ToggleFocus(id); err != nil {
			m.status = err.Error()
		}
	case "esc":
		m.board.ClearFocus()
	case "+", "=":
		m.onTarget(func(id string) error {
			_, err := m.board.Grow(id)
			return err
		})
	case "-", "_":
		m.onTarget(func(id string) error {
			_, err := m.board.Shrink(id)
			return err
		})
	case "x", "delete":
		m.onTarget(m.board.Delete)
	case "p":
		if m.board.TogglePause() {
			m.status = "paused"
		}
	case " ":
		m.board.ToggleSidebar()
	case "b":
		m.board.ToggleBackupView()
	case "C":
		m.board.ClearAll()
		m.status = "cleared"
	case "R":
		return m, m.resetCounter()
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	switch m.mode {
	case modeLoading:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.styles.muted.Render("loading thoughts…"))
	case modeError:
		box := m.styles.errorBox.Render(fmt.Sprintf(
			"Could not load thoughts.\n\n%v\n\npress q to quit", m.loadErr))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	f := m.board.Frame()
	h := max(m.height-1, 0)
	cw := int(f.Bounds.Width)
	body := renderCanvas(f, cw, h, m.styles)
	if f.Session.Sidebar && m.width > cw {
		panel := renderPanel(f, m.board.Today(m.now()), m.width-cw, h, m.styles)
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, panel)
	}
	return body + "\n" + m.statusLine(f)
}

func (m Model) statusLine(f board.Frame) string {
	if m.mode == modePrompt {
		return m.input.View()
	}
	line := fmt.Sprintf("flux · %d thoughts · #%d", f.ActiveCount, f.Counter)
	if f.Session.BackupView {
		line += fmt.Sprintf(" · backup (%d)", f.BackupCount)
	}
	if f.Session.Paused {
		line += " · paused"
	}
	if m.status != "" {
		line += " · " + m.status
	}
	return m.styles.status.Render(line)
}
