// Package termengine provides an in-process editing engine backed by a
// terminal textarea.
//
// It exists for two reasons: the interactive demo hosts widgets in a terminal
// UI, and tests want a real engine without fetching a wasm asset. In the
// terminal, "pixels" are rows: LineHeight is 1 and container heights are row
// counts.
package termengine

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/errors"
	"github.com/wippyai/editor-runtime/loader"
)

// Engine is the textarea-backed engine. It is ready as soon as it is
// constructed; there is no asynchronous self-registration to poll.
type Engine struct {
	log *zap.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates the in-process engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "textarea" }

// NewEditor creates a fresh textarea-backed session.
func (e *Engine) NewEditor(editorruntime.Surface) (editorruntime.Editor, error) {
	ta := textarea.New()
	ta.Prompt = ""
	ta.ShowLineNumbers = true
	return &Editor{ta: ta, tabSize: 4, log: e.log}, nil
}

func (e *Engine) Close(context.Context) error { return nil }

// Loader returns a loader that bootstraps this engine without fetching
// anything; the in-process engine has no asset.
func Loader(opts ...loader.Option) *loader.Loader {
	base := []loader.Option{
		loader.WithURL("builtin:textarea"),
		loader.WithFetcher(func(context.Context, string) ([]byte, error) {
			return nil, nil
		}),
		loader.WithBootstrapper(func(context.Context, []byte) (editorruntime.Engine, error) {
			return New(), nil
		}),
	}
	return loader.New(append(base, opts...)...)
}

// Editor is one textarea session. The owning widget serializes access; the
// internal mutex only guards against the TUI goroutine racing the widget.
type Editor struct {
	mu        sync.Mutex
	ta        textarea.Model
	mode      string
	theme     string
	readonly  bool
	tabSize   int
	wrap      bool
	row, col  int
	destroyed bool
	onChange  []func()
	log       *zap.Logger
}

func (ed *Editor) Value() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.ta.Value()
}

func (ed *Editor) SetValue(s string) {
	ed.mu.Lock()
	if ed.destroyed {
		ed.mu.Unlock()
		return
	}
	ed.ta.SetValue(s)
	handlers := append([]func(){}, ed.onChange...)
	ed.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (ed *Editor) Cursor() (int, int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.row, ed.col
}

func (ed *Editor) SetCursor(row, col int) error {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	lines := strings.Split(ed.ta.Value(), "\n")
	if row < 0 || row >= len(lines) || col < 0 || col > len(lines[row]) {
		return errors.CursorRestore(row, col)
	}
	ed.row, ed.col = row, col
	return nil
}

func (ed *Editor) ClearSelection() {
	// The textarea has no selection model; nothing to clear.
}

func (ed *Editor) Mode() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.mode
}

func (ed *Editor) SetMode(m string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.mode = m
}

func (ed *Editor) Theme() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.theme
}

func (ed *Editor) SetTheme(t string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.theme = t
}

func (ed *Editor) ReadOnly() bool {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.readonly
}

func (ed *Editor) SetReadOnly(ro bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.readonly = ro
}

func (ed *Editor) SetTabSize(n int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if n > 0 {
		ed.tabSize = n
	}
}

func (ed *Editor) SetWrap(on bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.wrap = on
}

func (ed *Editor) LineCount() int {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return strings.Count(ed.ta.Value(), "\n") + 1
}

// LineHeight is one row per line in a terminal.
func (ed *Editor) LineHeight() int { return 1 }

func (ed *Editor) OnChange(fn func()) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.onChange = append(ed.onChange, fn)
}

func (ed *Editor) Focus() {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.ta.Focus()
}

func (ed *Editor) Refresh() {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	h := strings.Count(ed.ta.Value(), "\n") + 1
	if h < 1 {
		h = 1
	}
	ed.ta.SetHeight(h)
}

func (ed *Editor) Destroy() {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.destroyed = true
	ed.ta.Blur()
	ed.onChange = nil
}

// Update forwards a terminal event to the textarea. Input is dropped while
// read-only or after destroy. Fires change callbacks when the content
// actually changed, which is how user keystrokes notify.
func (ed *Editor) Update(msg tea.Msg) tea.Cmd {
	ed.mu.Lock()
	if ed.destroyed || ed.readonly {
		ed.mu.Unlock()
		return nil
	}
	before := ed.ta.Value()
	var cmd tea.Cmd
	ed.ta, cmd = ed.ta.Update(msg)
	changed := ed.ta.Value() != before
	var handlers []func()
	if changed {
		handlers = append(handlers, ed.onChange...)
	}
	ed.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	return cmd
}

// SetSize propagates the surface dimensions to the textarea.
func (ed *Editor) SetSize(width, height int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if width > 0 {
		ed.ta.SetWidth(width)
	}
	if height > 0 {
		ed.ta.SetHeight(height)
	}
}

// View renders the textarea for the hosting terminal UI.
func (ed *Editor) View() string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.ta.View()
}
