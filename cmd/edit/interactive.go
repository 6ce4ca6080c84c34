package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/config"
	"github.com/wippyai/editor-runtime/loader"
	"github.com/wippyai/editor-runtime/termengine"
	"github.com/wippyai/editor-runtime/widget"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	dirtyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Surface notifications cross from widget goroutines into the single-threaded
// update loop as messages.
type (
	loadingMsg  struct{}
	surfErrMsg  struct{ msg string }
	heightMsg   struct{ rows int }
	styleMsg    struct{ id string }
	readyMsg    struct{ ready editorruntime.Ready }
	modifiedMsg struct{}
)

// teaSurface adapts the widget's surface contract onto a message channel.
type teaSurface struct {
	ch chan tea.Msg
}

func newTeaSurface() *teaSurface {
	return &teaSurface{ch: make(chan tea.Msg, 32)}
}

func (s *teaSurface) send(msg tea.Msg) {
	select {
	case s.ch <- msg:
	default:
	}
}

func (s *teaSurface) ShowLoading()            { s.send(loadingMsg{}) }
func (s *teaSurface) ShowError(msg string)    { s.send(surfErrMsg{msg: msg}) }
func (s *teaSurface) SetHeight(rows int)      { s.send(heightMsg{rows: rows}) }
func (s *teaSurface) AdoptStyle(id, _ string) { s.send(styleMsg{id: id}) }
func (s *teaSurface) HasElement(string) bool  { return false }

type editState int

const (
	stateLoading editState = iota
	stateReady
	stateErrored
)

type editModel struct {
	w        *widget.Widget
	surface  *teaSurface
	filename string

	state  editState
	ed     *termengine.Editor
	id     string
	rows   int
	width  int
	dirty  bool
	status string
	errMsg string
}

func newEditModel(w *widget.Widget, surface *teaSurface, filename string) *editModel {
	return &editModel{w: w, surface: surface, filename: filename}
}

func (m *editModel) Init() tea.Cmd {
	return tea.Batch(m.attach, m.listen)
}

// attach starts the widget lifecycle; readiness arrives later via the
// surface channel.
func (m *editModel) attach() tea.Msg {
	if err := m.w.Attach(context.Background()); err != nil {
		return surfErrMsg{msg: err.Error()}
	}
	return nil
}

// listen pumps one surface notification into the update loop.
func (m *editModel) listen() tea.Msg {
	return <-m.surface.ch
}

func (m *editModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.resizeEditor()
		return m, nil

	case loadingMsg:
		m.state = stateLoading
		return m, m.listen

	case surfErrMsg:
		m.state = stateErrored
		m.errMsg = msg.msg
		return m, m.listen

	case readyMsg:
		m.state = stateReady
		m.id = msg.ready.ID
		if ed, ok := msg.ready.Editor.(*termengine.Editor); ok {
			m.ed = ed
		}
		m.resizeEditor()
		if m.ed != nil {
			m.ed.Focus()
		}
		return m, m.listen

	case heightMsg:
		m.rows = msg.rows
		m.resizeEditor()
		return m, m.listen

	case styleMsg:
		m.status = "style " + msg.id
		return m, m.listen

	case modifiedMsg:
		m.dirty = true
		return m, m.listen

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.w.Detach()
			return m, tea.Quit
		case "ctrl+s":
			return m, m.save()
		}
		if m.state == stateReady && m.ed != nil {
			return m, m.ed.Update(msg)
		}
		return m, nil
	}
	return m, nil
}

func (m *editModel) save() tea.Cmd {
	if m.filename == "" {
		m.status = "no file to save to"
		return nil
	}
	if err := os.WriteFile(m.filename, []byte(m.w.Value()), 0o644); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.dirty = false
	m.status = "saved " + m.filename
	return nil
}

func (m *editModel) resizeEditor() {
	if m.ed == nil {
		return
	}
	width := m.width - 2
	if width < 10 {
		width = 10
	}
	m.ed.SetSize(width, m.rows)
}

func (m *editModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Editor"))
	if m.filename != "" {
		b.WriteString(" " + m.filename)
	}
	if m.dirty {
		b.WriteString(" " + dirtyStyle.Render("[modified]"))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateLoading:
		b.WriteString("loading engine...\n")

	case stateErrored:
		b.WriteString(errorStyle.Render("Error: "+m.errMsg) + "\n")

	case stateReady:
		lines := 0
		if m.ed != nil {
			b.WriteString(m.ed.View())
			b.WriteString("\n")
			lines = m.ed.LineCount()
		}
		b.WriteString(statusStyle.Render(fmt.Sprintf("%s • %d lines • %d rows", m.id, lines, m.rows)))
		if m.status != "" {
			b.WriteString("  " + statusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+s save • esc quit"))
	return b.String()
}

func runInteractive(cfg *config.Config, filename string, log *zap.Logger) error {
	// The TUI always hosts the in-process terminal engine; wasm assets are
	// for the non-interactive path.
	ld := termengine.Loader(
		loader.WithPollInterval(cfg.Engine.PollInterval()),
		loader.WithLoadTimeout(cfg.Engine.LoadTimeout()),
		loader.WithLogger(log),
	)

	styleReg, stopStyles, err := newStyles(cfg, log)
	if err != nil {
		return err
	}
	defer stopStyles()

	opts, err := widgetOptions(cfg, filename, false, ld, styleReg, log)
	if err != nil {
		return err
	}

	surface := newTeaSurface()
	w := widget.New(surface, opts...)
	w.OnReady(func(r editorruntime.Ready) { surface.send(readyMsg{ready: r}) })
	w.OnContentChange(func() { surface.send(modifiedMsg{}) })

	p := tea.NewProgram(newEditModel(w, surface, filename), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
