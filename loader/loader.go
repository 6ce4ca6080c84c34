// Package loader acquires the heavy engine asset exactly once per process.
//
// Any number of widgets may request the engine concurrently; the first
// request starts the fetch and bootstrap, and every request made while
// loading or after completion observes the same outcome. A failed load is
// permanent for the process: a transient failure is unlikely to become a
// success without a restart, so the loader never retries.
//
// Engines may finish self-registration after their code has executed. The
// loader polls the engine's capability marker at a bounded interval and
// converts exhaustion of the configured deadline into a load error rather
// than polling forever.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	editorruntime "github.com/wippyai/editor-runtime"
	"github.com/wippyai/editor-runtime/errors"
)

// State is the lifecycle of the process-wide engine load. Transitions are
// monotonic: there is no path from Ready or Failed back to NotStarted.
type State int

const (
	StateNotStarted State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher resolves the engine asset URL to its bytes.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Bootstrapper initializes an engine from fetched asset bytes.
type Bootstrapper func(ctx context.Context, asset []byte) (editorruntime.Engine, error)

// Bootstrapped is implemented by engines that self-register asynchronously
// after bootstrap. The loader polls CapabilityReady until it reports true or
// the load timeout expires. Engines without it are ready immediately.
type Bootstrapped interface {
	CapabilityReady() bool
}

const (
	defaultPollInterval = 50 * time.Millisecond
	defaultLoadTimeout  = 10 * time.Second
)

// Loader owns the process-wide load state. All mutation happens behind
// Acquire; the raw state is never exposed.
type Loader struct {
	mu     sync.Mutex
	state  State
	url    string
	engine editorruntime.Engine
	err    error
	done   chan struct{}

	fetch        Fetcher
	boot         Bootstrapper
	pollInterval time.Duration
	loadTimeout  time.Duration
	log          *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithURL sets the engine asset URL.
func WithURL(url string) Option {
	return func(l *Loader) { l.url = url }
}

// WithFetcher replaces the default URL fetcher.
func WithFetcher(f Fetcher) Option {
	return func(l *Loader) { l.fetch = f }
}

// WithBootstrapper sets the engine bootstrapper.
func WithBootstrapper(b Bootstrapper) Option {
	return func(l *Loader) { l.boot = b }
}

// WithPollInterval sets the capability poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(l *Loader) { l.pollInterval = d }
}

// WithLoadTimeout bounds the wait for the engine's capability marker.
func WithLoadTimeout(d time.Duration) Option {
	return func(l *Loader) { l.loadTimeout = d }
}

// WithLogger sets the loader's logger. Logging is off by default.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a loader. Most processes use Default instead and configure it
// once at startup; independent loaders exist for tests and embedders running
// multiple engines.
func New(opts ...Option) *Loader {
	l := &Loader{
		fetch:        FetchURL,
		pollInterval: defaultPollInterval,
		loadTimeout:  defaultLoadTimeout,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetURL sets the asset URL programmatically. Ignored once loading has
// started; the load that is already in flight keeps its URL.
func (l *Loader) SetURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateNotStarted {
		l.log.Warn("engine URL set after load started, ignored",
			zap.String("url", url),
			zap.Stringer("state", l.state))
		return
	}
	l.url = url
}

// State returns the current load state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Acquire returns the process-wide engine, starting the load on first call.
// Concurrent callers share one fetch and one bootstrap; all of them receive
// the same engine or the same error.
//
// A cancelled ctx abandons the wait for this caller only. The load itself is
// never cancelled once started: it always completes into Ready or Failed.
func (l *Loader) Acquire(ctx context.Context) (editorruntime.Engine, error) {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		engine := l.engine
		l.mu.Unlock()
		return engine, nil

	case StateFailed:
		err := l.err
		l.mu.Unlock()
		return nil, err

	case StateNotStarted:
		if l.url == "" {
			l.mu.Unlock()
			l.log.Error("cannot load engine", zap.Error(errors.MissingURL()))
			return nil, errors.MissingURL()
		}
		if l.boot == nil {
			l.mu.Unlock()
			return nil, errors.NotInitialized(errors.PhaseLoad, "bootstrapper")
		}
		l.state = StateLoading
		l.done = make(chan struct{})
		url := l.url
		l.mu.Unlock()
		l.log.Info("engine load started", zap.String("url", url))
		go l.load(url)

	case StateLoading:
		l.mu.Unlock()
	}

	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateFailed {
		return nil, l.err
	}
	return l.engine, nil
}

// load runs detached from the first caller: widgets come and go while the
// engine is in flight, so the load is bound to the process, not to any ctx.
func (l *Loader) load(url string) {
	ctx := context.Background()

	asset, err := l.fetch(ctx, url)
	if err != nil {
		l.fail(errors.LoadFailed("fetch "+url, err))
		return
	}

	engine, err := l.boot(ctx, asset)
	if err != nil {
		l.fail(errors.LoadFailed("bootstrap engine", err))
		return
	}

	if err := l.awaitCapability(ctx, engine); err != nil {
		if cerr := engine.Close(ctx); cerr != nil {
			l.log.Warn("close engine after failed load", zap.Error(cerr))
		}
		l.fail(err)
		return
	}

	l.mu.Lock()
	l.state = StateReady
	l.engine = engine
	close(l.done)
	l.mu.Unlock()
	l.log.Info("engine ready", zap.String("engine", engine.Name()))
}

// awaitCapability polls the engine's self-registration marker. Script
// execution finishing before the library registers itself is expected; an
// engine that never registers is a load failure, not an indefinite wait.
func (l *Loader) awaitCapability(ctx context.Context, engine editorruntime.Engine) error {
	b, ok := engine.(Bootstrapped)
	if !ok || b.CapabilityReady() {
		return nil
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(l.loadTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			if b.CapabilityReady() {
				return nil
			}
		case <-deadline.C:
			return errors.CapabilityTimeout(l.loadTimeout.String())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loader) fail(err error) {
	l.mu.Lock()
	l.state = StateFailed
	l.err = err
	close(l.done)
	l.mu.Unlock()
	l.log.Error("engine load failed", zap.Error(err))
}

// FetchURL is the default fetcher: http(s) URLs over the network, anything
// else as a local file path.
func FetchURL(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(url)
}

var (
	defaultLoader     *Loader
	defaultLoaderOnce sync.Once
)

// Default returns the process-wide loader. Configure it before the first
// Acquire via SetURL and the Configure helper.
func Default() *Loader {
	defaultLoaderOnce.Do(func() {
		defaultLoader = New()
	})
	return defaultLoader
}

// Configure applies options to the default loader. Calls made after the
// first Acquire race with the load and are rejected.
func Configure(opts ...Option) error {
	l := Default()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateNotStarted {
		return errors.InvalidInput(errors.PhaseLoad, "loader already started")
	}
	for _, opt := range opts {
		opt(l)
	}
	return nil
}
