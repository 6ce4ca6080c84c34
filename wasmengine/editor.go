package wasmengine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/editor-runtime/errors"
)

// Editor is one guest-side editing session, identified by the handle the
// guest returned from editor_new. Engine call failures degrade to zero values
// rather than erroring: the widget contract is that an editor never fails an
// attribute write, it at worst ignores it.
type Editor struct {
	e      *Engine
	handle uint32

	mu        sync.Mutex
	onChange  []func()
	destroyed bool
}

func (ed *Editor) Value() string {
	res, err := ed.e.call(expGetText, uint64(ed.handle))
	if err != nil || len(res) == 0 {
		ed.warn("editor_get_text", err)
		return ""
	}
	s, err := ed.e.readString(res[0])
	if err != nil {
		ed.warn("editor_get_text", err)
		return ""
	}
	return s
}

func (ed *Editor) SetValue(s string) {
	ptr, n, err := ed.e.writeString(s)
	if err != nil {
		ed.warn("editor_set_text", err)
		return
	}
	if _, err := ed.e.call(expSetText, uint64(ed.handle), uint64(ptr), uint64(n)); err != nil {
		ed.warn("editor_set_text", err)
	}
}

func (ed *Editor) Cursor() (int, int) {
	res, err := ed.e.call(expCursor, uint64(ed.handle))
	if err != nil || len(res) == 0 {
		ed.warn("editor_cursor", err)
		return 0, 0
	}
	row, col := unpack(res[0])
	return int(row), int(col)
}

func (ed *Editor) SetCursor(row, col int) error {
	res, err := ed.e.call(expSetCursor, uint64(ed.handle), uint64(uint32(row)), uint64(uint32(col)))
	if err != nil {
		return errors.Wrap(errors.PhaseEngine, errors.KindCursorRestore, err, "editor_set_cursor")
	}
	if len(res) > 0 && res[0] != 0 {
		return errors.CursorRestore(row, col)
	}
	return nil
}

func (ed *Editor) ClearSelection() {
	if _, err := ed.e.call(expClearSelection, uint64(ed.handle)); err != nil {
		ed.warn("editor_clear_selection", err)
	}
}

func (ed *Editor) Mode() string     { return ed.getString(expGetMode) }
func (ed *Editor) SetMode(m string) { ed.setString(expSetMode, m) }

func (ed *Editor) Theme() string     { return ed.getString(expGetTheme) }
func (ed *Editor) SetTheme(t string) { ed.setString(expSetTheme, t) }

func (ed *Editor) ReadOnly() bool {
	res, err := ed.e.call(expGetReadOnly, uint64(ed.handle))
	if err != nil || len(res) == 0 {
		ed.warn("editor_get_readonly", err)
		return false
	}
	return res[0] != 0
}

func (ed *Editor) SetReadOnly(ro bool) {
	ed.setFlag(expSetReadOnly, ro)
}

func (ed *Editor) SetTabSize(n int) {
	if _, err := ed.e.call(expSetTabSize, uint64(ed.handle), uint64(uint32(n))); err != nil {
		ed.warn("editor_set_tab_size", err)
	}
}

func (ed *Editor) SetWrap(on bool) {
	ed.setFlag(expSetWrap, on)
}

func (ed *Editor) LineCount() int {
	res, err := ed.e.call(expLineCount, uint64(ed.handle))
	if err != nil || len(res) == 0 {
		ed.warn("editor_line_count", err)
		return 1
	}
	return int(uint32(res[0]))
}

func (ed *Editor) LineHeight() int {
	res, err := ed.e.call(expLineHeight)
	if err != nil || len(res) == 0 {
		return 0
	}
	return int(uint32(res[0]))
}

func (ed *Editor) OnChange(fn func()) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.onChange = append(ed.onChange, fn)
}

func (ed *Editor) Focus() {
	if _, err := ed.e.call(expFocus, uint64(ed.handle)); err != nil {
		ed.warn("editor_focus", err)
	}
}

func (ed *Editor) Refresh() {
	if _, err := ed.e.call(expRefresh, uint64(ed.handle)); err != nil {
		ed.warn("editor_refresh", err)
	}
}

// Destroy frees the guest session and silences its callbacks. Idempotent.
func (ed *Editor) Destroy() {
	ed.mu.Lock()
	if ed.destroyed {
		ed.mu.Unlock()
		return
	}
	ed.destroyed = true
	ed.onChange = nil
	ed.mu.Unlock()

	ed.e.sessMu.Lock()
	delete(ed.e.sessions, ed.handle)
	ed.e.sessMu.Unlock()

	if _, err := ed.e.call(expEditorFree, uint64(ed.handle)); err != nil {
		ed.warn("editor_free", err)
	}
}

func (ed *Editor) fireChange() {
	ed.mu.Lock()
	handlers := append([]func(){}, ed.onChange...)
	ed.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (ed *Editor) getString(export string) string {
	res, err := ed.e.call(export, uint64(ed.handle))
	if err != nil || len(res) == 0 {
		ed.warn(export, err)
		return ""
	}
	s, err := ed.e.readString(res[0])
	if err != nil {
		ed.warn(export, err)
		return ""
	}
	return s
}

func (ed *Editor) setString(export, s string) {
	ptr, n, err := ed.e.writeString(s)
	if err != nil {
		ed.warn(export, err)
		return
	}
	if _, err := ed.e.call(export, uint64(ed.handle), uint64(ptr), uint64(n)); err != nil {
		ed.warn(export, err)
	}
}

func (ed *Editor) setFlag(export string, on bool) {
	flag := uint64(0)
	if on {
		flag = 1
	}
	if _, err := ed.e.call(export, uint64(ed.handle), flag); err != nil {
		ed.warn(export, err)
	}
}

func (ed *Editor) warn(export string, err error) {
	ed.e.log.Warn("engine call failed",
		zap.String("export", export),
		zap.Uint32("handle", ed.handle),
		zap.Error(err))
}
