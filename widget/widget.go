// Package widget wraps one editor instance: it orchestrates attach and
// detach, owns the editor handle, and keeps declarative attributes and the
// engine in sync.
//
// A widget's life is Detached -> Attaching -> AwaitingEngine -> Ready ->
// Detached, with a terminal Errored state reachable from Attaching (duplicate
// id) or AwaitingEngine (engine load failure). Detach is re-entrant and
// releases everything the widget holds: the editor, the style subscription
// and the instance id. Attaching again afterwards is a fresh instance with
// fresh id and content resolution.
package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/content"
	"github.com/wippyai/editor-runtime/errors"
	"github.com/wippyai/editor-runtime/loader"
	"github.com/wippyai/editor-runtime/registry"
	"github.com/wippyai/editor-runtime/styles"
)

// State is the widget lifecycle state.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAwaitingEngine
	StateReady
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StateAwaitingEngine:
		return "awaiting_engine"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// valueGate is the per-widget read-only sub-machine: Unlocked, or Locked with
// an optional pending value. pending is non-nil only while locked; unlocking
// must flush and clear it.
type valueGate struct {
	locked  bool
	pending *string
}

const defaultSettleDelay = 30 * time.Millisecond

// Widget is one mounted editor instance.
type Widget struct {
	mu sync.Mutex

	surface  editorruntime.Surface
	ld       *loader.Loader
	reg      *registry.Registry
	styleReg *styles.Registry
	log      *zap.Logger

	state      State
	generation int // bumped on attach and detach; stale engine callbacks check it
	id         string
	explicitID string

	attrs     map[string]string
	text      string
	codeBlock *string
	extended  bool

	editor         editorruntime.Editor
	initialContent string
	programmatic   bool
	gate           valueGate
	heightFn       func()
	cancelStyles   func()
	settleTimer    *time.Timer
	settleDelay    time.Duration

	onReady  []func(editorruntime.Ready)
	onChange []func()
}

// Option configures a Widget.
type Option func(*Widget)

// WithLoader sets the engine loader. Defaults to the process-wide loader.
func WithLoader(l *loader.Loader) Option {
	return func(w *Widget) { w.ld = l }
}

// WithRegistry sets the id registry. Defaults to the process-wide registry.
func WithRegistry(r *registry.Registry) Option {
	return func(w *Widget) { w.reg = r }
}

// WithStyles sets the style registry the widget observes for engine-injected
// artifacts. Without one, no style observation happens.
func WithStyles(r *styles.Registry) Option {
	return func(w *Widget) { w.styleReg = r }
}

// WithLogger sets the widget's logger. Logging is off by default.
func WithLogger(log *zap.Logger) Option {
	return func(w *Widget) { w.log = log }
}

// WithID sets an explicit instance id, validated for uniqueness at attach.
func WithID(id string) Option {
	return func(w *Widget) { w.explicitID = id }
}

// WithAttributes seeds the declarative attributes present at attach time.
func WithAttributes(attrs map[string]string) Option {
	return func(w *Widget) {
		for k, v := range attrs {
			w.attrs[k] = v
		}
	}
}

// WithText sets the widget's own text content, the third content source.
func WithText(text string) Option {
	return func(w *Widget) { w.text = text }
}

// WithCodeBlock sets a nested block tagged as source code, the second content
// source, formatting preserved.
func WithCodeBlock(code string) Option {
	return func(w *Widget) { w.codeBlock = &code }
}

// WithExtendedEntities enables decoding of the full entity set instead of
// just &lt;.
func WithExtendedEntities() Option {
	return func(w *Widget) { w.extended = true }
}

// WithSettleDelay overrides the re-measure delay after a style insertion.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Widget) { w.settleDelay = d }
}

// New creates a detached widget bound to a surface.
func New(surface editorruntime.Surface, opts ...Option) *Widget {
	w := &Widget{
		surface:     surface,
		ld:          loader.Default(),
		reg:         registry.Default(),
		log:         zap.NewNop(),
		attrs:       make(map[string]string),
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReady subscribes to the readiness notification. Handlers registered
// after the widget is already ready fire immediately.
func (w *Widget) OnReady(fn func(editorruntime.Ready)) {
	w.mu.Lock()
	if w.state == StateReady {
		ev := editorruntime.Ready{Widget: w, Editor: w.editor, ID: w.id}
		w.mu.Unlock()
		fn(ev)
		return
	}
	w.onReady = append(w.onReady, fn)
	w.mu.Unlock()
}

// OnContentChange subscribes to content-change notifications. Programmatic
// writes are suppressed; user edits notify.
func (w *Widget) OnContentChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// ID returns the instance id, empty while detached.
func (w *Widget) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

// State returns the lifecycle state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Editor is the escape hatch to the wrapped engine session. Nil until Ready.
func (w *Widget) Editor() editorruntime.Editor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor
}

// Attach mounts the widget: resolves its id, shows the loading indicator and
// requests the engine. It returns before the engine is ready; readiness is
// reported via OnReady. The only synchronous failure is a duplicate explicit
// id, which renders a visible error state and aborts construction.
func (w *Widget) Attach(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateDetached && w.state != StateErrored {
		state := w.state
		w.mu.Unlock()
		return errors.InvalidInput(errors.PhaseAttach, "widget already attached ("+state.String()+")")
	}
	w.state = StateAttaching
	w.generation++
	gen := w.generation
	surface := w.surface
	explicit := w.explicitID
	w.mu.Unlock()

	var id string
	if explicit != "" {
		if err := w.reg.Register(explicit); err != nil {
			w.mu.Lock()
			w.state = StateErrored
			w.mu.Unlock()
			w.log.Error("duplicate widget id", zap.String("id", explicit), zap.Error(err))
			surface.ShowError("duplicate editor id: " + explicit)
			return err
		}
		id = explicit
	} else {
		// Generated ids are re-sampled against the live document too.
		for {
			id = w.reg.GenerateID()
			if !surface.HasElement(id) {
				break
			}
			w.reg.Unregister(id)
		}
	}

	w.mu.Lock()
	w.id = id
	w.state = StateAwaitingEngine
	w.mu.Unlock()

	surface.ShowLoading()
	w.log.Debug("widget attached, awaiting engine", zap.String("id", id))

	go func() {
		engine, err := w.ld.Acquire(ctx)
		w.engineReady(gen, engine, err)
	}()
	return nil
}

// engineReady is the loader completion callback. The widget may have been
// detached while the engine was in flight; a stale generation means this
// callback must not touch the surface.
func (w *Widget) engineReady(gen int, engine editorruntime.Engine, loadErr error) {
	w.mu.Lock()
	if w.generation != gen || w.state != StateAwaitingEngine {
		w.mu.Unlock()
		w.log.Debug("engine ready for a detached widget, ignored")
		return
	}
	surface := w.surface
	id := w.id
	w.mu.Unlock()

	if loadErr != nil {
		w.mu.Lock()
		w.state = StateErrored
		w.mu.Unlock()
		w.log.Error("engine load failed", zap.String("id", id), zap.Error(loadErr))
		surface.ShowError("editor engine failed to load")
		return
	}

	ed, err := engine.NewEditor(surface)
	if err != nil {
		w.mu.Lock()
		w.state = StateErrored
		w.mu.Unlock()
		w.log.Error("create editor", zap.String("id", id), zap.Error(err))
		surface.ShowError("editor engine failed to initialize")
		return
	}

	w.configure(ed)

	initial := w.resolveContent()

	// NewEditor and configure run unlocked; a Detach may have interleaved.
	// Publishing the editor on a stale generation would resurrect a detached
	// widget, so the check repeats before every publication step.
	w.mu.Lock()
	if w.generation != gen || w.state != StateAwaitingEngine {
		w.mu.Unlock()
		ed.Destroy()
		w.log.Debug("widget detached during editor creation, discarded", zap.String("id", id))
		return
	}
	w.editor = ed
	w.initialContent = initial
	w.programmatic = true
	w.mu.Unlock()

	ed.OnChange(w.contentChanged)
	ed.SetValue(initial)

	w.mu.Lock()
	w.programmatic = false
	if w.generation != gen || w.state != StateAwaitingEngine {
		// Detach already destroyed the editor it saw; Destroy is idempotent.
		w.mu.Unlock()
		ed.Destroy()
		return
	}
	w.heightFn = w.updateHeight
	if w.styleReg != nil {
		w.cancelStyles = w.styleReg.Subscribe(
			styles.ByClassPrefix(engine.Name()),
			w.styleInserted,
		)
	}
	w.state = StateReady
	ready := editorruntime.Ready{Widget: w, Editor: ed, ID: w.id}
	handlers := append([]func(editorruntime.Ready){}, w.onReady...)
	w.mu.Unlock()

	w.updateHeight()
	w.log.Info("widget ready", zap.String("id", id), zap.String("engine", engine.Name()))

	for _, fn := range handlers {
		fn(ready)
	}

	w.runEval(engine, initial)
}

// configure applies the declarative configuration that must precede the
// first content write.
func (w *Widget) configure(ed editorruntime.Editor) {
	w.mu.Lock()
	tabSize := w.attrInt(AttrTabSize, 4)
	mode := w.attrs[AttrLang]
	theme := w.attrs[AttrTheme]
	_, readonly := w.attrs[AttrReadOnly]
	if readonly {
		w.gate.locked = true
	}
	w.mu.Unlock()

	ed.SetTabSize(tabSize)
	ed.SetWrap(true)
	if mode != "" {
		ed.SetMode(mode)
	}
	if theme != "" {
		ed.SetTheme(theme)
	}
	ed.SetReadOnly(readonly)
}

func (w *Widget) resolveContent() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	src := content.Sources{
		CodeBlock: w.codeBlock,
		Text:      w.text,
	}
	if v, ok := w.attrs[AttrValue]; ok {
		src.Value = &v
	}
	if v, ok := w.attrs[AttrContent]; ok {
		src.Fallback = &v
	}
	_, noDecode := w.attrs[AttrNoDecode]
	_, noDedent := w.attrs[AttrNoDedent]

	return content.Resolve(src, content.Options{
		NoDecode: noDecode,
		Extended: w.extended,
		NoDedent: noDedent,
	})
}

// runEval executes the resolved initial content exactly once when the eval
// attribute is present and the engine can evaluate. The attribute is
// stripped afterwards so a re-attach does not re-execute.
func (w *Widget) runEval(engine editorruntime.Engine, src string) {
	w.mu.Lock()
	mode, ok := w.attrs[AttrEval]
	if ok {
		delete(w.attrs, AttrEval)
	}
	id := w.id
	w.mu.Unlock()
	if !ok {
		return
	}

	ev, can := engine.(editorruntime.Evaluator)
	if !can {
		w.log.Warn("eval requested but engine cannot evaluate", zap.String("id", id))
		return
	}
	if err := ev.Eval(context.Background(), src, mode == "module"); err != nil {
		w.log.Error("eval failed", zap.String("id", id), zap.Error(err))
	}
}

// contentChanged is the engine change callback. It fires for every content
// mutation; writes driven by the widget itself raise the programmatic flag
// for their duration, which suppresses the externally visible notification.
func (w *Widget) contentChanged() {
	w.mu.Lock()
	var handlers []func()
	if !w.programmatic {
		handlers = append(handlers, w.onChange...)
	}
	hf := w.heightFn
	w.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
	// Height tracks the content model regardless of suppression; only the
	// externally visible notification is gated.
	if hf != nil {
		hf()
	}
}

// Detach unmounts the widget: the editor is destroyed, observers stopped and
// the id released for reuse. Detaching an already-detached widget is a no-op.
// A detach while the engine is still in flight is tolerated; the eventual
// engine-ready callback notices the stale generation and does nothing.
func (w *Widget) Detach() {
	w.mu.Lock()
	if w.state == StateDetached {
		w.mu.Unlock()
		return
	}
	w.generation++
	w.state = StateDetached
	ed := w.editor
	w.editor = nil
	cancel := w.cancelStyles
	w.cancelStyles = nil
	if w.settleTimer != nil {
		w.settleTimer.Stop()
		w.settleTimer = nil
	}
	w.heightFn = nil
	w.gate = valueGate{}
	w.initialContent = ""
	id := w.id
	w.id = ""
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ed != nil {
		ed.Destroy()
	}
	if id != "" {
		w.reg.Unregister(id)
	}
	w.log.Debug("widget detached", zap.String("id", id))
}

// Focus forwards focus to the editor. Ignored until Ready.
func (w *Widget) Focus() {
	w.mu.Lock()
	ed := w.editor
	w.mu.Unlock()
	if ed != nil {
		ed.Focus()
	}
}
