package widget

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/errors"
	"github.com/wippyai/editor-runtime/loader"
	"github.com/wippyai/editor-runtime/registry"
	"github.com/wippyai/editor-runtime/styles"
)

// fakeSurface records every call the widget makes against the host.
type fakeSurface struct {
	mu       sync.Mutex
	loading  int
	errs     []string
	heights  []int
	adopted  map[string]string
	elements map[string]bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		adopted:  make(map[string]string),
		elements: make(map[string]bool),
	}
}

func (s *fakeSurface) ShowLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
}

func (s *fakeSurface) ShowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

func (s *fakeSurface) SetHeight(px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heights = append(s.heights, px)
}

func (s *fakeSurface) AdoptStyle(id, css string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopted[id] = css
}

func (s *fakeSurface) HasElement(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements[id]
}

func (s *fakeSurface) errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.errs...)
}

func (s *fakeSurface) lastHeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heights) == 0 {
		return -1
	}
	return s.heights[len(s.heights)-1]
}

func (s *fakeSurface) heightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heights)
}

// fakeEditor is an engine session double. Change callbacks fire synchronously
// on every SetValue, exactly like the real engine.
type fakeEditor struct {
	mu            sync.Mutex
	value         string
	row, col      int
	mode          string
	theme         string
	readonly      bool
	tabSize       int
	wrap          bool
	lineHeight    int
	focused       bool
	destroyed     bool
	refreshes     int
	setValueCalls int
	clearedSel    int
	onChange      []func()
}

func (e *fakeEditor) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *fakeEditor) SetValue(s string) {
	e.mu.Lock()
	e.value = s
	e.setValueCalls++
	handlers := append([]func(){}, e.onChange...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (e *fakeEditor) Cursor() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.row, e.col
}

func (e *fakeEditor) SetCursor(row, col int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := strings.Split(e.value, "\n")
	if row >= len(lines) || col > len(lines[max(0, min(row, len(lines)-1))]) {
		return errors.CursorRestore(row, col)
	}
	e.row, e.col = row, col
	return nil
}

func (e *fakeEditor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearedSel++
}

func (e *fakeEditor) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *fakeEditor) SetMode(m string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
}

func (e *fakeEditor) Theme() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.theme
}

func (e *fakeEditor) SetTheme(t string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.theme = t
}

func (e *fakeEditor) ReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readonly
}

func (e *fakeEditor) SetReadOnly(ro bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readonly = ro
}

func (e *fakeEditor) SetTabSize(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tabSize = n
}

func (e *fakeEditor) SetWrap(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wrap = on
}

func (e *fakeEditor) LineCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Count(e.value, "\n") + 1
}

func (e *fakeEditor) LineHeight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lineHeight
}

func (e *fakeEditor) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

func (e *fakeEditor) Focus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focused = true
}

func (e *fakeEditor) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshes++
}

func (e *fakeEditor) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
}

// typeText mimics a user keystroke: the value changes and the engine fires
// its change callback, with no suppression in play.
func (e *fakeEditor) typeText(s string) {
	e.mu.Lock()
	e.value += s
	handlers := append([]func(){}, e.onChange...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

type fakeEngine struct {
	mu      sync.Mutex
	editors []*fakeEditor
}

func (e *fakeEngine) Name() string { return "ace" }

func (e *fakeEngine) NewEditor(editorruntime.Surface) (editorruntime.Editor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ed := &fakeEditor{lineHeight: 10}
	e.editors = append(e.editors, ed)
	return ed, nil
}

func (e *fakeEngine) Close(context.Context) error { return nil }

func (e *fakeEngine) editor(t *testing.T) *fakeEditor {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.editors) == 0 {
		t.Fatal("no editor created")
	}
	return e.editors[len(e.editors)-1]
}

func (e *fakeEngine) editorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.editors)
}

// evalEngine adds the Evaluator capability.
type evalEngine struct {
	fakeEngine
	mu    sync.Mutex
	evals []string
}

func (e *evalEngine) Eval(_ context.Context, src string, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evals = append(e.evals, src)
	return nil
}

func testLoader(engine editorruntime.Engine) *loader.Loader {
	return loader.New(
		loader.WithURL("test.wasm"),
		loader.WithFetcher(func(context.Context, string) ([]byte, error) {
			return []byte{0}, nil
		}),
		loader.WithBootstrapper(func(context.Context, []byte) (editorruntime.Engine, error) {
			return engine, nil
		}),
	)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func attachReady(t *testing.T, w *Widget) {
	t.Helper()
	if err := w.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	waitFor(t, func() bool { return w.State() == StateReady })
}

func TestAttach_BecomesReady(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	w := New(surface,
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithText("  hello\n    world"),
	)

	var ready *editorruntime.Ready
	var readyMu sync.Mutex
	w.OnReady(func(ev editorruntime.Ready) {
		readyMu.Lock()
		ready = &ev
		readyMu.Unlock()
	})

	attachReady(t, w)

	readyMu.Lock()
	defer readyMu.Unlock()
	if ready == nil {
		t.Fatal("readiness notification not emitted")
	}
	if ready.ID != w.ID() || ready.Editor == nil || ready.Widget != w {
		t.Fatalf("bad readiness payload: %+v", ready)
	}
	if surface.loading != 1 {
		t.Fatalf("loading indicator shown %d times", surface.loading)
	}
	// Dedent applied to text content.
	if got := w.Value(); got != "hello\n  world" {
		t.Fatalf("initial content %q", got)
	}
}

func TestAttach_GeneratedID(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	reg := registry.New()

	// The live document already has the first candidate.
	surface.elements[registry.IDPrefix+"1"] = true

	w := New(surface, WithLoader(testLoader(engine)), WithRegistry(reg))
	attachReady(t, w)

	if got := w.ID(); got != registry.IDPrefix+"2" {
		t.Fatalf("expected document collision skipped, got %q", got)
	}
}

func TestAttach_DuplicateIDAborts(t *testing.T) {
	engine := &fakeEngine{}
	reg := registry.New()
	ld := testLoader(engine)

	first := New(newFakeSurface(), WithLoader(ld), WithRegistry(reg), WithID("shared"))
	attachReady(t, first)

	surface := newFakeSurface()
	second := New(surface, WithLoader(ld), WithRegistry(reg), WithID("shared"))

	err := second.Attach(context.Background())
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindDuplicateID {
		t.Fatalf("expected duplicate_id, got %v", err)
	}
	if second.State() != StateErrored {
		t.Fatalf("expected errored state, got %s", second.State())
	}
	if errs := surface.errors(); len(errs) != 1 || !strings.Contains(errs[0], "shared") {
		t.Fatalf("expected visible error naming the id, got %v", errs)
	}
}

func TestDetach_ReleasesIDForReuse(t *testing.T) {
	engine := &fakeEngine{}
	reg := registry.New()
	ld := testLoader(engine)

	first := New(newFakeSurface(), WithLoader(ld), WithRegistry(reg), WithID("reused"))
	attachReady(t, first)
	ed := engine.editor(t)
	first.Detach()

	if !ed.destroyed {
		t.Fatal("detach must destroy the editor")
	}
	if first.State() != StateDetached || first.ID() != "" {
		t.Fatal("detach must clear state and id")
	}

	second := New(newFakeSurface(), WithLoader(ld), WithRegistry(reg), WithID("reused"))
	if err := second.Attach(context.Background()); err != nil {
		t.Fatalf("released id should be reusable: %v", err)
	}
}

func TestDetach_Reentrant(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)

	w.Detach()
	w.Detach() // no-op
}

func TestDetach_WhileAwaitingEngine(t *testing.T) {
	engine := &fakeEngine{}
	release := make(chan struct{})
	ld := loader.New(
		loader.WithURL("test.wasm"),
		loader.WithFetcher(func(context.Context, string) ([]byte, error) {
			<-release
			return []byte{0}, nil
		}),
		loader.WithBootstrapper(func(context.Context, []byte) (editorruntime.Engine, error) {
			return engine, nil
		}),
	)

	surface := newFakeSurface()
	w := New(surface, WithLoader(ld), WithRegistry(registry.New()))
	if err := w.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.State() == StateAwaitingEngine })

	w.Detach()
	close(release)

	// The engine-ready callback for the stale generation must not build an
	// editor or touch the surface.
	time.Sleep(50 * time.Millisecond)
	if n := engine.editorCount(); n != 0 {
		t.Fatalf("stale engine-ready callback created %d editors", n)
	}
	if len(surface.errors()) != 0 {
		t.Fatalf("stale callback touched the surface: %v", surface.errors())
	}
	if w.State() != StateDetached {
		t.Fatalf("expected detached, got %s", w.State())
	}
}

// blockingEngine parks NewEditor until released, so a detach can be
// interleaved while the engine-ready callback is mid-construction.
type blockingEngine struct {
	fakeEngine
	entered chan struct{}
	release chan struct{}
}

func (e *blockingEngine) NewEditor(s editorruntime.Surface) (editorruntime.Editor, error) {
	close(e.entered)
	<-e.release
	return e.fakeEngine.NewEditor(s)
}

func TestDetach_DuringEditorCreation(t *testing.T) {
	engine := &blockingEngine{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	surface := newFakeSurface()
	styleReg := styles.NewRegistry()
	w := New(surface,
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithStyles(styleReg),
	)

	var readyFired int
	var readyMu sync.Mutex
	w.OnReady(func(editorruntime.Ready) {
		readyMu.Lock()
		readyFired++
		readyMu.Unlock()
	})

	if err := w.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-engine.entered
	w.Detach()
	close(engine.release)

	// The callback resumes against a stale generation: the editor it built
	// must be discarded, not published.
	ed := func() *fakeEditor {
		waitFor(t, func() bool { return engine.editorCount() == 1 })
		return engine.editor(t)
	}()
	waitFor(t, func() bool {
		ed.mu.Lock()
		defer ed.mu.Unlock()
		return ed.destroyed
	})

	if w.State() != StateDetached {
		t.Fatalf("detached widget resurrected: state=%s", w.State())
	}
	if w.Editor() != nil {
		t.Fatal("stale editor published on a detached widget")
	}

	// No dangling style subscription.
	styleReg.Insert(styles.Artifact{ID: "late.css", Class: "ace_editor", CSS: ".z{}"})
	surface.mu.Lock()
	_, adopted := surface.adopted["late.css"]
	surface.mu.Unlock()
	if adopted {
		t.Fatal("detached widget still observing styles")
	}

	readyMu.Lock()
	defer readyMu.Unlock()
	if readyFired != 0 {
		t.Fatalf("readiness emitted %d times for a detached widget", readyFired)
	}
}

func TestAttach_LoadFailureShowsError(t *testing.T) {
	ld := loader.New(
		loader.WithURL("test.wasm"),
		loader.WithFetcher(func(context.Context, string) ([]byte, error) {
			return nil, stderrors.New("boom")
		}),
		loader.WithBootstrapper(func(context.Context, []byte) (editorruntime.Engine, error) {
			return nil, nil
		}),
	)

	surface := newFakeSurface()
	w := New(surface, WithLoader(ld), WithRegistry(registry.New()))
	if err := w.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return w.State() == StateErrored })
	if len(surface.errors()) != 1 {
		t.Fatalf("expected a visible load error, got %v", surface.errors())
	}
}

func TestReadOnly_QueuesAndFlushesPendingValue(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(),
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithText("original"),
	)
	attachReady(t, w)
	ed := engine.editor(t)

	w.SetAttribute(AttrReadOnly, "")
	if !ed.ReadOnly() {
		t.Fatal("readonly not forwarded")
	}

	// A write while read-only is held, not applied.
	w.SetValue("queued")
	if got := ed.Value(); got != "original" {
		t.Fatalf("displayed content changed while read-only: %q", got)
	}

	// Lifting read-only applies the pending value exactly once.
	w.RemoveAttribute(AttrReadOnly)
	if ed.ReadOnly() {
		t.Fatal("readonly not cleared")
	}
	if got := ed.Value(); got != "queued" {
		t.Fatalf("pending value not flushed: %q", got)
	}

	// The pending slot is cleared: locking and unlocking again writes nothing.
	w.SetAttribute(AttrReadOnly, "")
	w.RemoveAttribute(AttrReadOnly)
	if got := ed.Value(); got != "queued" {
		t.Fatalf("stale pending value reapplied: %q", got)
	}
}

func TestReadOnly_PresenceSemantics(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)
	ed := engine.editor(t)

	// Any value, even "false", means read-only.
	w.SetAttribute(AttrReadOnly, "false")
	if !ed.ReadOnly() {
		t.Fatal(`readonly="false" must still lock`)
	}
	w.RemoveAttribute(AttrReadOnly)
	if ed.ReadOnly() {
		t.Fatal("removal must unlock")
	}
}

func TestSetValue_SuppressesChangeNotification(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))

	var notifications int
	var nmu sync.Mutex
	w.OnContentChange(func() {
		nmu.Lock()
		notifications++
		nmu.Unlock()
	})

	attachReady(t, w)
	ed := engine.editor(t)

	w.SetValue("programmatic write")
	nmu.Lock()
	if notifications != 0 {
		nmu.Unlock()
		t.Fatal("programmatic write must not notify")
	}
	nmu.Unlock()

	// A user keystroke always notifies.
	ed.typeText("x")
	nmu.Lock()
	defer nmu.Unlock()
	if notifications != 1 {
		t.Fatalf("expected 1 notification for user edit, got %d", notifications)
	}
}

func TestSetValue_RoundTrip(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)

	// Entity-looking strings pass through untouched: no decoding on the
	// programmatic property channel.
	for _, x := range []string{"", "plain", "&lt;/script&gt;", "a\nb\nc", "  indented"} {
		w.SetValue(x)
		if got := w.GetValue(); got != x {
			t.Fatalf("round trip: set %q, got %q", x, got)
		}
	}
}

func TestValueAttr_EqualValueIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)
	ed := engine.editor(t)

	w.SetValue("same")
	ed.mu.Lock()
	before := ed.setValueCalls
	ed.mu.Unlock()

	w.SetAttribute(AttrValue, "same")
	ed.mu.Lock()
	after := ed.setValueCalls
	ed.mu.Unlock()
	if after != before {
		t.Fatal("equal value must not be rewritten (needless cursor reset)")
	}
}

func TestValueWrite_PreservesCursorBestEffort(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)
	ed := engine.editor(t)

	w.SetValue("line one\nline two")
	if err := ed.SetCursor(1, 3); err != nil {
		t.Fatal(err)
	}

	w.SetValue("line 1\nline 2\nline 3")
	if row, col := ed.Cursor(); row != 1 || col != 3 {
		t.Fatalf("cursor not preserved: %d:%d", row, col)
	}

	// Shrinking the content makes the old position invalid; the restore
	// failure is swallowed, never fatal.
	if err := ed.SetCursor(2, 0); err != nil {
		t.Fatal(err)
	}
	w.SetValue("short")
}

func TestAttributes_BufferedBeforeEngine(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))

	// All of these land before the editor exists; nothing errors.
	w.SetAttribute(AttrLang, "go")
	w.SetAttribute(AttrTheme, "monokai")
	w.SetAttribute(AttrTabSize, "2")
	w.SetAttribute(AttrReadOnly, "")
	w.SetValue("buffered")

	attachReady(t, w)
	ed := engine.editor(t)

	if ed.Mode() != "go" || ed.Theme() != "monokai" {
		t.Fatalf("buffered mode/theme not applied: %q/%q", ed.Mode(), ed.Theme())
	}
	ed.mu.Lock()
	tab := ed.tabSize
	ed.mu.Unlock()
	if tab != 2 {
		t.Fatalf("buffered tab size not applied: %d", tab)
	}
	if !ed.ReadOnly() {
		t.Fatal("buffered readonly not applied")
	}
	// The buffered value became the controlled initial content, verbatim.
	if got := ed.Value(); got != "buffered" {
		t.Fatalf("buffered value not applied: %q", got)
	}
}

func TestLangTheme_ForwardedVerbatim(t *testing.T) {
	engine := &fakeEngine{}
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)
	ed := engine.editor(t)

	w.SetAttribute(AttrLang, "not-a-real-mode")
	if ed.Mode() != "not-a-real-mode" {
		t.Fatal("mode must be forwarded without validation")
	}
	w.SetAttribute(AttrTheme, "no-such-theme")
	if ed.Theme() != "no-such-theme" {
		t.Fatal("theme must be forwarded without validation")
	}
}

func TestHeight_MinimumAndPrecedence(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	w := New(surface, WithLoader(testLoader(engine)), WithRegistry(registry.New()),
		WithText("a\nb\nc")) // 3 lines x 10px
	attachReady(t, w)

	// Content height wins when above the minimum.
	if got := surface.lastHeight(); got != 3*10+heightCorrection {
		t.Fatalf("content height: got %d", got)
	}

	// Line-count minimum.
	w.SetAttribute(AttrMinHeightLines, "8")
	if got := surface.lastHeight(); got != 8*10+heightCorrection {
		t.Fatalf("line minimum: got %d", got)
	}

	// Pixel minimum takes precedence over lines when both are present.
	w.SetAttribute(AttrMinHeightPx, "200")
	if got := surface.lastHeight(); got != 200+heightCorrection {
		t.Fatalf("pixel precedence: got %d", got)
	}
}

func TestHeight_RecomputedOnUserEdit(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	w := New(surface, WithLoader(testLoader(engine)), WithRegistry(registry.New()))
	attachReady(t, w)
	ed := engine.editor(t)

	before := surface.heightCount()
	ed.typeText("one\ntwo\nthree")
	if surface.heightCount() <= before {
		t.Fatal("content change must recompute height")
	}
	if got := surface.lastHeight(); got != 3*10+heightCorrection {
		t.Fatalf("recomputed height: got %d", got)
	}
}

func TestStyles_ReadoptAndRemeasure(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	styleReg := styles.NewRegistry()
	w := New(surface,
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithStyles(styleReg),
		WithSettleDelay(5*time.Millisecond),
	)
	attachReady(t, w)

	before := surface.heightCount()
	styleReg.Insert(styles.Artifact{ID: "theme.css", Class: "ace_editor", CSS: ".x{}"})

	surface.mu.Lock()
	adopted := surface.adopted["theme.css"]
	surface.mu.Unlock()
	if adopted != ".x{}" {
		t.Fatal("matching artifact not adopted")
	}

	// Re-measure lands after the settle delay.
	waitFor(t, func() bool { return surface.heightCount() > before })

	// Non-matching artifacts are ignored.
	styleReg.Insert(styles.Artifact{ID: "other.css", Class: "cm-editor", CSS: ".y{}"})
	surface.mu.Lock()
	_, ok := surface.adopted["other.css"]
	surface.mu.Unlock()
	if ok {
		t.Fatal("artifact with foreign class signature adopted")
	}
}

func TestStyles_SubscriptionCancelledOnDetach(t *testing.T) {
	engine := &fakeEngine{}
	surface := newFakeSurface()
	styleReg := styles.NewRegistry()
	w := New(surface,
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithStyles(styleReg),
	)
	attachReady(t, w)
	w.Detach()

	styleReg.Insert(styles.Artifact{ID: "late.css", Class: "ace_editor", CSS: ".z{}"})
	surface.mu.Lock()
	_, ok := surface.adopted["late.css"]
	surface.mu.Unlock()
	if ok {
		t.Fatal("detached widget still observing styles")
	}
}

func TestEval_RunsOnceAndStripsAttribute(t *testing.T) {
	engine := &evalEngine{}
	w := New(newFakeSurface(),
		WithLoader(testLoader(engine)),
		WithRegistry(registry.New()),
		WithText("print(1)"),
		WithAttributes(map[string]string{AttrEval: ""}),
	)
	attachReady(t, w)

	engine.mu.Lock()
	evals := append([]string{}, engine.evals...)
	engine.mu.Unlock()
	if len(evals) != 1 || evals[0] != "print(1)" {
		t.Fatalf("expected one eval of the resolved content, got %v", evals)
	}

	w.mu.Lock()
	_, still := w.attrs[AttrEval]
	w.mu.Unlock()
	if still {
		t.Fatal("eval attribute must be stripped after execution")
	}
}

func TestMutationsIgnoredWithoutEditor(t *testing.T) {
	w := New(newFakeSurface(), WithLoader(testLoader(&fakeEngine{})), WithRegistry(registry.New()))

	// Never attached: everything is a silent no-op, not an error.
	w.SetAttribute(AttrLang, "go")
	w.RemoveAttribute(AttrTheme)
	w.Focus()
	if got := w.Value(); got != "" {
		t.Fatalf("unexpected value %q", got)
	}
	if w.Editor() != nil {
		t.Fatal("editor must be nil before attach")
	}
}

func TestReattach_IsFreshInstance(t *testing.T) {
	engine := &fakeEngine{}
	reg := registry.New()
	w := New(newFakeSurface(), WithLoader(testLoader(engine)), WithRegistry(reg),
		WithText("static"))
	attachReady(t, w)
	firstID := w.ID()
	w.Detach()

	attachReady(t, w)
	if w.ID() == firstID {
		t.Fatalf("re-attach must resolve a fresh generated id, got %q again", w.ID())
	}
	if engine.editorCount() != 2 {
		t.Fatalf("re-attach must build a new editor, have %d", engine.editorCount())
	}
	// Content resolution runs again for the new instance.
	if got := w.Value(); got != "static" {
		t.Fatalf("content not re-resolved: %q", got)
	}
}
