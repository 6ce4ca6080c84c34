package widget

import (
	"strconv"

	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
)

// Declarative attribute names.
const (
	AttrValue          = "value"
	AttrLang           = "lang"
	AttrTheme          = "theme"
	AttrReadOnly       = "readonly"
	AttrTabSize        = "tab-size"
	AttrMinHeightPx    = "min-height-px"
	AttrMinHeightLines = "min-height-lines"
	AttrContent        = "content"
	AttrNoDecode       = "data-nolt"
	AttrNoDedent       = "data-notrim"
	AttrEval           = "data-eval"
)

// SetAttribute records an attribute value and, once the editor exists,
// translates the change into engine calls. Before that, changes are only
// buffered and picked up by initial content resolution and configuration.
func (w *Widget) SetAttribute(name, value string) {
	w.changed(name, &value)
}

// RemoveAttribute clears an attribute. For readonly this is the significant
// direction: presence means read-only regardless of value, removal unlocks
// and flushes any pending value.
func (w *Widget) RemoveAttribute(name string) {
	w.changed(name, nil)
}

func (w *Widget) changed(name string, value *string) {
	w.mu.Lock()
	if value == nil {
		delete(w.attrs, name)
	} else {
		w.attrs[name] = *value
	}
	ed := w.editor
	w.mu.Unlock()

	// No editor yet: the change stays buffered, never an error.
	if ed == nil {
		return
	}

	switch name {
	case AttrValue:
		v := ""
		if value != nil {
			v = *value
		}
		w.writeValue(ed, v)

	case AttrLang:
		v := ""
		if value != nil {
			v = *value
		}
		// No validation: an unknown mode is the engine's problem.
		ed.SetMode(v)

	case AttrTheme:
		v := ""
		if value != nil {
			v = *value
		}
		ed.SetTheme(v)

	case AttrReadOnly:
		w.setReadOnly(ed, value != nil)

	case AttrTabSize:
		w.mu.Lock()
		n := w.attrInt(AttrTabSize, 4)
		w.mu.Unlock()
		ed.SetTabSize(n)

	case AttrMinHeightPx, AttrMinHeightLines:
		w.mu.Lock()
		hf := w.heightFn
		w.mu.Unlock()
		if hf != nil {
			hf()
		}
	}
}

// SetValue is the public programmatic write. It behaves like assigning to a
// plain form-field value: the content changes but no content-change
// notification fires. A write while read-only is held as the pending value
// and applied when read-only is lifted.
func (w *Widget) SetValue(s string) {
	w.mu.Lock()
	ed := w.editor
	if ed == nil {
		// Buffered: becomes the controlled value at initialization.
		w.attrs[AttrValue] = s
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.writeValue(ed, s)
}

// Value returns the current content. Before the editor exists it reports the
// buffered controlled value.
func (w *Widget) Value() string {
	w.mu.Lock()
	ed := w.editor
	buffered := w.attrs[AttrValue]
	w.mu.Unlock()
	if ed == nil {
		return buffered
	}
	return ed.Value()
}

// GetValue is an alias for Value matching the imperative surface.
func (w *Widget) GetValue() string { return w.Value() }

// writeValue performs an internally driven value write: queued while locked,
// suppressed and cursor-preserving otherwise.
func (w *Widget) writeValue(ed editorruntime.Editor, s string) {
	w.mu.Lock()
	if w.gate.locked {
		// Held until read-only is lifted; the engine is not called, the
		// displayed content stays as it is.
		pending := s
		w.gate.pending = &pending
		w.mu.Unlock()
		return
	}
	w.programmatic = true
	w.mu.Unlock()

	w.applyValue(ed, s)

	w.mu.Lock()
	w.programmatic = false
	w.mu.Unlock()
}

// applyValue writes s into the engine, preserving the cursor position when
// feasible. Equal values are a no-op so the cursor is not needlessly reset.
func (w *Widget) applyValue(ed editorruntime.Editor, s string) {
	if ed.Value() == s {
		return
	}
	row, col := ed.Cursor()
	ed.SetValue(s)
	if err := ed.SetCursor(row, col); err != nil {
		// Restoring a stale position after a large replacement may fail;
		// that is allowed to happen silently.
		w.log.Debug("cursor restore", zap.Error(err))
	}
	ed.ClearSelection()
}

// setReadOnly drives the read-only gate. Locking passes straight through;
// unlocking flushes the pending value, if any, with the same suppressed,
// cursor-preserving write policy.
func (w *Widget) setReadOnly(ed editorruntime.Editor, on bool) {
	if on {
		w.mu.Lock()
		w.gate.locked = true
		w.mu.Unlock()
		ed.SetReadOnly(true)
		return
	}

	w.mu.Lock()
	w.gate.locked = false
	pending := w.gate.pending
	w.gate.pending = nil
	w.mu.Unlock()

	ed.SetReadOnly(false)
	if pending != nil {
		w.writeValue(ed, *pending)
	}
}

// attrInt parses an integer attribute, falling back when absent or
// malformed. Caller holds w.mu.
func (w *Widget) attrInt(name string, fallback int) int {
	v, ok := w.attrs[name]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		w.log.Warn("invalid integer attribute",
			zap.String("attr", name),
			zap.String("value", v))
		return fallback
	}
	return n
}
