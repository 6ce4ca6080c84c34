// Package editorruntime manages the lifecycle of widgets that wrap a
// lazily-loaded, stateful text-editing engine.
//
// The engine is treated as an opaque capability: create an editor bound to a
// host surface, get and set its text, mode, theme and read-only state, and
// destroy it. Everything around that capability is what this library
// provides: a process-scoped loader that acquires the engine exactly once no
// matter how many widgets ask for it concurrently, a registry guaranteeing
// unique widget identifiers, a content resolution policy for initial text,
// and a synchronization layer that translates declarative attribute changes
// into engine calls without feedback loops.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	editorruntime/       Root package with the Engine, Editor and Surface interfaces
//	├── widget/          Widget lifecycle, attribute sync and auto-resize
//	├── loader/          Process-scoped singleton engine loader
//	├── registry/        Unique instance-id registry
//	├── content/         Initial content resolution (priority, decode, dedent)
//	├── styles/          Style artifact registry and directory watcher
//	├── wasmengine/      wazero-backed engine loaded from a wasm asset
//	├── termengine/      In-process engine backed by a terminal textarea
//	├── config/          Runtime configuration
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Attach a widget to a surface and wait for the engine:
//
//	ld := loader.New(loader.WithURL("engine/editor.wasm"))
//
//	w := widget.New(surface, widget.WithLoader(ld))
//	w.OnReady(func(ev editorruntime.Ready) {
//	    ev.Editor.Focus()
//	})
//	if err := w.Attach(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Detach()
//
// # Thread Safety
//
// Loader and Registry are safe for concurrent use. A Widget serializes its
// own state behind a mutex; an Editor is exclusively owned by its widget and
// must not be driven from multiple goroutines without external
// synchronization.
//
// # Failure Model
//
// A failed engine load is permanent for the process: widgets attached after a
// failure degrade to a visible error state rather than re-fetching the asset.
// A duplicate widget id is the only error that aborts attachment outright,
// since it signals a caller-side contract violation.
package editorruntime
