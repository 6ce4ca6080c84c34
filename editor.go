package editorruntime

import "context"

// Surface is the host container a widget renders into. Implementations range
// from a terminal pane to a test double; the widget only ever talks to the
// surface through this interface.
type Surface interface {
	// ShowLoading displays a loading indicator until the engine arrives.
	ShowLoading()

	// ShowError replaces the surface content with a visible failure state.
	ShowError(msg string)

	// SetHeight applies a computed height, in pixels, to the container.
	SetHeight(px int)

	// AdoptStyle copies a style artifact into the surface's isolated style
	// scope. Called repeatedly as the engine injects styles asynchronously;
	// adopting the same id twice replaces the earlier copy.
	AdoptStyle(id, css string)

	// HasElement reports whether an element with the given id already exists
	// in the live document. Used to avoid handing out colliding ids.
	HasElement(id string) bool
}

// Engine is a loaded text-editing capability. Exactly one Engine is acquired
// per process by the loader; all widgets share it.
type Engine interface {
	Name() string

	// NewEditor creates an editor bound to the given surface. The returned
	// Editor is exclusively owned by the caller.
	NewEditor(host Surface) (Editor, error)

	Close(ctx context.Context) error
}

// Editor is one live editing session.
//
// Editors are NOT safe for concurrent use; the owning widget serializes
// access.
type Editor interface {
	Value() string
	SetValue(s string)

	// Cursor returns the current cursor position as zero-based row and column.
	Cursor() (row, col int)

	// SetCursor moves the cursor. Returns a cursor_restore error when the
	// position is out of range for the current content; callers restoring a
	// stale position are expected to swallow it.
	SetCursor(row, col int) error

	ClearSelection()

	Mode() string
	SetMode(mode string)

	Theme() string
	SetTheme(theme string)

	ReadOnly() bool
	SetReadOnly(ro bool)

	SetTabSize(n int)
	SetWrap(on bool)

	// LineCount and LineHeight feed height computation: content height is
	// LineCount() * LineHeight() pixels.
	LineCount() int
	LineHeight() int

	// OnChange subscribes to content mutations. The engine fires for every
	// mutation, programmatic or not; suppression of programmatic writes is
	// the widget's job.
	OnChange(fn func())

	Focus()

	// Refresh asks the engine to re-layout after the container size changed.
	Refresh()

	Destroy()
}

// Evaluator is implemented by engines that can execute resolved content as a
// script. Widgets with the eval attribute use it exactly once after
// initialization.
type Evaluator interface {
	Eval(ctx context.Context, src string, asModule bool) error
}

// Ready is the readiness notification emitted once a widget's editor exists
// and its initial content is applied.
type Ready struct {
	Widget any
	Editor Editor
	ID     string
}
