// Package wasmengine runs the editing engine from a wasm asset.
//
// The asset is expected to export a fixed flat function set (editor_new,
// editor_set_text, editor_get_text, ...) plus alloc/free for linear-memory
// string passing. The engine self-registers by calling the editor-host
// module's register_capability import, which may happen at any point after
// its start function runs; the loader polls CapabilityReady until it does.
package wasmengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/errors"
	"github.com/wippyai/editor-runtime/loader"
)

// Guest export names.
const (
	expAlloc          = "alloc"
	expFree           = "free"
	expStart          = "engine_start"
	expReady          = "engine_ready"
	expName           = "engine_name"
	expEditorNew      = "editor_new"
	expEditorFree     = "editor_free"
	expGetText        = "editor_get_text"
	expSetText        = "editor_set_text"
	expSetMode        = "editor_set_mode"
	expGetMode        = "editor_get_mode"
	expSetTheme       = "editor_set_theme"
	expGetTheme       = "editor_get_theme"
	expSetReadOnly    = "editor_set_readonly"
	expGetReadOnly    = "editor_get_readonly"
	expSetTabSize     = "editor_set_tab_size"
	expSetWrap        = "editor_set_wrap"
	expCursor         = "editor_cursor"
	expSetCursor      = "editor_set_cursor"
	expClearSelection = "editor_clear_selection"
	expLineCount      = "editor_line_count"
	expLineHeight     = "editor_line_height"
	expFocus          = "editor_focus"
	expRefresh        = "editor_refresh"
	expEval           = "eval"
)

// hostModule is the import namespace the guest uses to reach the host.
const hostModule = "editor-host"

// Engine wraps one instantiated wasm editing engine. Safe for concurrent use;
// guest calls are serialized because a wasm instance is single-threaded.
type Engine struct {
	runtime    wazero.Runtime
	module     api.Module
	callMu     sync.Mutex
	registered atomic.Bool
	log        *zap.Logger

	sessMu   sync.Mutex
	sessions map[uint32]*Editor
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New compiles and instantiates the engine asset. The module's optional
// engine_start export runs before New returns; capability registration may
// still arrive later, so callers poll CapabilityReady.
func New(ctx context.Context, asset []byte, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:      zap.NewNop(),
		sessions: make(map[uint32]*Editor),
	}
	for _, opt := range opts {
		opt(e)
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig())
	e.runtime = r

	if err := e.instantiateHost(ctx, r); err != nil {
		r.Close(ctx)
		return nil, errors.LoadFailed("instantiate host module", err)
	}
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, asset)
	if err != nil {
		r.Close(ctx)
		return nil, errors.LoadFailed("compile engine asset", err)
	}

	// No implicit _start: reactor-style engines expose engine_start instead.
	modConfig := wazero.NewModuleConfig().
		WithName("editor").
		WithStartFunctions()
	mod, err := r.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		r.Close(ctx)
		return nil, errors.LoadFailed("instantiate engine", err)
	}
	e.module = mod

	if start := mod.ExportedFunction(expStart); start != nil {
		if _, err := start.Call(ctx); err != nil {
			r.Close(ctx)
			return nil, errors.LoadFailed("engine start", err)
		}
	}

	e.log.Debug("engine instantiated", zap.Bool("registered", e.registered.Load()))
	return e, nil
}

// instantiateHost exposes the editor-host imports: the capability
// registration marker and the content-change notifier.
func (e *Engine) instantiateHost(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(hostModule)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, _ []uint64) {
			e.registered.Store(true)
		}), nil, nil).
		Export("register_capability")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			e.contentChanged(uint32(stack[0]))
		}), []api.ValueType{api.ValueTypeI32}, nil).
		Export("content_changed")

	_, err := builder.Instantiate(ctx)
	return err
}

// CapabilityReady reports whether the engine has self-registered, either via
// the register_capability import or through an engine_ready export.
func (e *Engine) CapabilityReady() bool {
	if e.registered.Load() {
		return true
	}
	fn := e.module.ExportedFunction(expReady)
	if fn == nil {
		return false
	}
	res, err := e.callRaw(fn)
	if err != nil || len(res) == 0 {
		return false
	}
	if res[0] != 0 {
		e.registered.Store(true)
		return true
	}
	return false
}

var _ loader.Bootstrapped = (*Engine)(nil)

// Name asks the guest for its name, falling back to "wasm".
func (e *Engine) Name() string {
	if fn := e.module.ExportedFunction(expName); fn != nil {
		if res, err := e.callRaw(fn); err == nil && len(res) > 0 {
			if s, err := e.readString(res[0]); err == nil && s != "" {
				return s
			}
		}
	}
	return "wasm"
}

// NewEditor creates a guest-side session. The surface is not handed to the
// guest; rendering stays host-side.
func (e *Engine) NewEditor(editorruntime.Surface) (editorruntime.Editor, error) {
	res, err := e.call(expEditorNew)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "create editor session")
	}
	if len(res) == 0 {
		return nil, errors.InvalidInput(errors.PhaseEngine, "editor_new returned nothing")
	}

	ed := &Editor{e: e, handle: uint32(res[0])}
	e.sessMu.Lock()
	e.sessions[ed.handle] = ed
	e.sessMu.Unlock()
	return ed, nil
}

// Close tears down the wazero runtime and every live session with it.
func (e *Engine) Close(ctx context.Context) error {
	e.sessMu.Lock()
	e.sessions = make(map[uint32]*Editor)
	e.sessMu.Unlock()
	return e.runtime.Close(ctx)
}

// Eval executes src inside the guest when it exports an eval function.
func (e *Engine) Eval(ctx context.Context, src string, asModule bool) error {
	if e.module.ExportedFunction(expEval) == nil {
		return errors.InvalidInput(errors.PhaseEngine, "engine has no eval export")
	}
	ptr, n, err := e.writeString(src)
	if err != nil {
		return err
	}
	mod := uint64(0)
	if asModule {
		mod = 1
	}
	res, err := e.call(expEval, uint64(ptr), uint64(n), mod)
	if err != nil {
		return errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "eval")
	}
	if len(res) > 0 && res[0] != 0 {
		return errors.InvalidInput(errors.PhaseEngine, fmt.Sprintf("eval failed with code %d", res[0]))
	}
	return nil
}

// contentChanged dispatches a guest mutation notification to its session.
func (e *Engine) contentChanged(handle uint32) {
	e.sessMu.Lock()
	ed := e.sessions[handle]
	e.sessMu.Unlock()
	if ed != nil {
		ed.fireChange()
	}
}

// call invokes a named export, serialized against all other guest calls.
func (e *Engine) call(name string, params ...uint64) ([]uint64, error) {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("engine does not export %s", name)
	}
	e.callMu.Lock()
	defer e.callMu.Unlock()
	return fn.Call(context.Background(), params...)
}

func (e *Engine) callRaw(fn api.Function) ([]uint64, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	return fn.Call(context.Background())
}

// writeString copies s into guest memory via the alloc export and returns
// the guest pointer and length. Ownership transfers to the guest.
func (e *Engine) writeString(s string) (ptr, length uint32, err error) {
	if s == "" {
		return 0, 0, nil
	}
	res, err := e.call(expAlloc, uint64(len(s)))
	if err != nil {
		return 0, 0, fmt.Errorf("alloc %d bytes: %w", len(s), err)
	}
	if len(res) == 0 || res[0] == 0 {
		return 0, 0, fmt.Errorf("alloc %d bytes: guest returned null", len(s))
	}
	ptr = uint32(res[0])
	if !e.module.Memory().Write(ptr, []byte(s)) {
		return 0, 0, fmt.Errorf("write %d bytes at %d: out of range", len(s), ptr)
	}
	return ptr, uint32(len(s)), nil
}

// readString decodes a packed ptr/len pair returned by the guest and frees
// the guest buffer afterwards.
func (e *Engine) readString(packed uint64) (string, error) {
	ptr, length := unpack(packed)
	if length == 0 {
		return "", nil
	}
	data, ok := e.module.Memory().Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("read %d bytes at %d: out of range", length, ptr)
	}
	s := string(data)
	if e.module.ExportedFunction(expFree) != nil {
		if _, err := e.call(expFree, uint64(ptr), uint64(length)); err != nil {
			e.log.Warn("free guest buffer", zap.Error(err))
		}
	}
	return s, nil
}

// unpack splits a guest u64 into its high/low u32 halves (ptr/len or
// row/col).
func unpack(v uint64) (hi, lo uint32) {
	return uint32(v >> 32), uint32(v)
}

// Bootstrap returns a loader.Bootstrapper for wasm engine assets.
func Bootstrap(opts ...Option) loader.Bootstrapper {
	return func(ctx context.Context, asset []byte) (editorruntime.Engine, error) {
		return New(ctx, asset, opts...)
	}
}
