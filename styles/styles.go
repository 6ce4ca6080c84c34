// Package styles tracks the style artifacts an engine injects into the
// document after load.
//
// The external engine injects its visual styles asynchronously and
// unpredictably after first paint; there is no "styles are now complete"
// signal. Widgets subscribe for artifacts matching the engine's class
// signature and re-adopt each one into their isolated style scope as it
// appears. Subscriptions are scoped to the widget's lifetime and must be
// cancelled on detach.
package styles

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Artifact is one injected style: an identifying id, the class signature it
// targets, and its CSS text.
type Artifact struct {
	ID    string
	Class string
	CSS   string
}

// Match filters artifacts for a subscriber.
type Match func(Artifact) bool

// ByClassPrefix matches artifacts whose class signature starts with prefix.
func ByClassPrefix(prefix string) Match {
	return func(a Artifact) bool {
		return strings.HasPrefix(a.Class, prefix)
	}
}

type subscription struct {
	match Match
	fn    func(Artifact)
}

// Registry is the document-level collection of injected style artifacts.
// Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	artifacts []Artifact
	subs      map[int]*subscription
	nextSub   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[int]*subscription)}
}

// Insert records an artifact and notifies matching subscribers. Inserting an
// artifact with a known id replaces the earlier copy but still notifies, since
// its CSS may have changed.
func (r *Registry) Insert(a Artifact) {
	r.mu.Lock()
	replaced := false
	for i := range r.artifacts {
		if r.artifacts[i].ID == a.ID {
			r.artifacts[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		r.artifacts = append(r.artifacts, a)
	}
	var notify []func(Artifact)
	for _, s := range r.subs {
		if s.match == nil || s.match(a) {
			notify = append(notify, s.fn)
		}
	}
	r.mu.Unlock()

	// Callbacks run outside the lock so they may re-enter the registry.
	for _, fn := range notify {
		fn(a)
	}
}

// Subscribe registers fn for artifacts accepted by match. Artifacts already
// present are replayed immediately. The returned cancel is idempotent and
// must be called when the subscriber's lifetime ends.
func (r *Registry) Subscribe(match Match, fn func(Artifact)) (cancel func()) {
	r.mu.Lock()
	key := r.nextSub
	r.nextSub++
	r.subs[key] = &subscription{match: match, fn: fn}
	replay := make([]Artifact, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		if match == nil || match(a) {
			replay = append(replay, a)
		}
	}
	r.mu.Unlock()

	for _, a := range replay {
		fn(a)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, key)
			r.mu.Unlock()
		})
	}
}

// Len returns the number of recorded artifacts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.artifacts)
}

// Watcher feeds a Registry from a directory into which the engine drops CSS
// artifacts asynchronously after load.
type Watcher struct {
	registry  *Registry
	watcher   *fsnotify.Watcher
	log       *zap.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Watch starts watching dir for created or rewritten .css files, inserting
// each into reg. The artifact id is the file name, the class signature its
// first line when it is a comment of the form "/* class: ... */".
func Watch(dir string, reg *Registry, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		registry: reg,
		watcher:  fw,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	// Pick up artifacts that landed before the watch started.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !e.IsDir() {
			w.adopt(filepath.Join(dir, e.Name()))
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.adopt(ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("style watch error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) adopt(path string) {
	if filepath.Ext(path) != ".css" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("read style artifact", zap.String("path", path), zap.Error(err))
		return
	}
	css := string(data)
	w.registry.Insert(Artifact{
		ID:    filepath.Base(path),
		Class: classSignature(css),
		CSS:   css,
	})
}

// classSignature extracts the class signature from a leading
// "/* class: ... */" comment, falling back to the first selector token.
func classSignature(css string) string {
	line, _, _ := strings.Cut(css, "\n")
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "/*"); ok {
		rest = strings.TrimSuffix(strings.TrimSpace(rest), "*/")
		if sig, ok := strings.CutPrefix(strings.TrimSpace(rest), "class:"); ok {
			return strings.TrimSpace(sig)
		}
	}
	sel, _, _ := strings.Cut(strings.TrimSpace(css), "{")
	return strings.TrimSpace(sel)
}

// Close stops the watch and releases the underlying notifier. Idempotent.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.closeErr = w.watcher.Close()
		<-w.doneCh
	})
	return w.closeErr
}
