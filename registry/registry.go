// Package registry guarantees every live widget a globally unique identifier.
//
// Ids are either supplied by the caller and validated for uniqueness, or
// generated as "ace-editor-N" with N drawn from a monotonically increasing
// counter. Generated ids are checked against both the registry and, when a
// probe is configured, the live document. Unregistering an id makes it
// available for reuse by later widgets.
package registry

import (
	"strconv"
	"sync"

	"github.com/wippyai/editor-runtime/errors"
)

// IDPrefix is the prefix of generated widget ids.
const IDPrefix = "ace-editor-"

// Probe reports whether an id is already taken by the live document,
// independently of the registry itself.
type Probe func(id string) bool

// Registry tracks the ids of live widgets. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	counter int
	probe   Probe
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// SetProbe installs the live-document collision check consulted by
// GenerateID. A nil probe disables the check.
func (r *Registry) SetProbe(p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probe = p
}

// Register claims an id for a live widget. Returns a duplicate_id error when
// the id is already claimed; this is a hard failure the widget must surface
// visibly, not silently ignore.
func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.ids[id]; taken {
		return errors.DuplicateID(id)
	}
	r.ids[id] = struct{}{}
	return nil
}

// Unregister releases an id. Idempotent: releasing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

// GenerateID produces a fresh "ace-editor-N" id and claims it, re-sampling N
// until neither the registry nor the probe reports a collision. The counter
// never decreases, so released generated ids are not handed out again.
func (r *Registry) GenerateID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		r.counter++
		id := IDPrefix + strconv.Itoa(r.counter)
		if _, taken := r.ids[id]; taken {
			continue
		}
		if r.probe != nil && r.probe(id) {
			continue
		}
		r.ids[id] = struct{}{}
		return id
	}
}

// Len returns the number of live ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// The process-wide default registry. Widgets share it unless constructed with
// an explicit one; the raw state never leaves this package.
var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}
