package widget

import (
	"time"

	"github.com/wippyai/editor-runtime/styles"
)

// heightCorrection compensates for the engine's internal padding so the last
// line is never clipped.
const heightCorrection = 2

// fallbackLineHeight is used when the engine cannot report per-line height
// yet, typically before its styles have settled.
const fallbackLineHeight = 16

// updateHeight recomputes and applies the container height: the measured
// content height or the configured minimum, whichever is larger, plus the
// fixed correction. A pixel minimum takes precedence over a line-count
// minimum when both are present.
func (w *Widget) updateHeight() {
	w.mu.Lock()
	ed := w.editor
	if ed == nil {
		w.mu.Unlock()
		return
	}
	minPx := w.attrInt(AttrMinHeightPx, 0)
	minLines := w.attrInt(AttrMinHeightLines, 0)
	surface := w.surface
	w.mu.Unlock()

	lineHeight := ed.LineHeight()
	if lineHeight <= 0 {
		lineHeight = fallbackLineHeight
	}

	height := ed.LineCount() * lineHeight
	min := 0
	switch {
	case minPx > 0:
		min = minPx
	case minLines > 0:
		min = minLines * lineHeight
	}
	if height < min {
		height = min
	}
	height += heightCorrection

	surface.SetHeight(height)
	ed.Refresh()
}

// styleInserted reacts to an engine style artifact appearing in the document.
// The artifact is re-adopted into the widget's isolated scope, then a
// re-measure is scheduled after a short settle delay. There is no "styles are
// complete" signal, so this stays best-effort: every further insertion adopts
// again and pushes the settle timer out.
func (w *Widget) styleInserted(a styles.Artifact) {
	w.mu.Lock()
	if w.editor == nil {
		w.mu.Unlock()
		return
	}
	surface := w.surface
	w.mu.Unlock()

	surface.AdoptStyle(a.ID, a.CSS)

	w.mu.Lock()
	if w.settleTimer != nil {
		w.settleTimer.Stop()
	}
	w.settleTimer = time.AfterFunc(w.settleDelay, w.updateHeight)
	w.mu.Unlock()
}
