package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Closer is a component released at shutdown
type Closer interface {
	Close() error
}

// HookFunc runs during shutdown before any component is closed
type HookFunc func(ctx context.Context) error

// Coordinator releases the run's resources in priority order, once,
// whether the sweep finished or was interrupted.
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu         sync.Mutex
	components []namedComponent
	hooks      []namedHook

	shutdownOnce sync.Once
	triggerOnce  sync.Once
	triggered    chan struct{}
}

type namedComponent struct {
	name      string
	component Closer
	priority  int // Lower = closed first
}

type namedHook struct {
	name     string
	hook     HookFunc
	priority int
}

// New creates a coordinator whose Shutdown gives up after timeout
func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout:   timeout,
		logger:    logger.With().Str("component", "shutdown").Logger(),
		triggered: make(chan struct{}),
	}
}

// Register adds a component to close at shutdown
func (c *Coordinator) Register(name string, component Closer, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = append(c.components, namedComponent{name: name, component: component, priority: priority})

	c.logger.Debug().
		Str("name", name).
		Int("priority", priority).
		Msg("Registered component for shutdown")
}

// RegisterHook adds a function to run at shutdown
func (c *Coordinator) RegisterHook(name string, hook HookFunc, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, namedHook{name: name, hook: hook, priority: priority})
}

// Watch returns a context cancelled on SIGINT/SIGTERM or Trigger. The
// returned stop function releases the signal handler.
func (c *Coordinator) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			c.logger.Warn().Str("signal", sig.String()).Msg("Received signal, interrupting sweep")
			c.Trigger()
			cancel()
		case <-c.triggered:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// Trigger requests shutdown; safe to call concurrently and repeatedly
func (c *Coordinator) Trigger() {
	c.triggerOnce.Do(func() {
		close(c.triggered)
	})
}

// Triggered reports whether shutdown was requested
func (c *Coordinator) Triggered() bool {
	select {
	case <-c.triggered:
		return true
	default:
		return false
	}
}

// Shutdown runs hooks, then closes components, each in priority order.
// Only the first call does any work. The first error is returned; later
// steps still run unless the timeout expires.
func (c *Coordinator) Shutdown() error {
	var shutdownErr error

	c.shutdownOnce.Do(func() {
		c.Trigger()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		c.mu.Lock()
		components := append([]namedComponent(nil), c.components...)
		hooks := append([]namedHook(nil), c.hooks...)
		c.mu.Unlock()

		sort.SliceStable(components, func(i, j int) bool { return components[i].priority < components[j].priority })
		sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].priority < hooks[j].priority })

		start := time.Now()

		for _, h := range hooks {
			if ctx.Err() != nil {
				c.logger.Warn().Str("hook", h.name).Msg("Shutdown timeout reached, skipping remaining hooks")
				shutdownErr = ctx.Err()
				return
			}
			if err := h.hook(ctx); err != nil {
				c.logger.Error().Err(err).Str("hook", h.name).Msg("Shutdown hook failed")
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}

		for _, comp := range components {
			if ctx.Err() != nil {
				c.logger.Warn().Str("component", comp.name).Msg("Shutdown timeout reached, skipping remaining components")
				shutdownErr = ctx.Err()
				return
			}
			if err := closeWithin(ctx, comp.component); err != nil {
				c.logger.Error().Err(err).Str("component", comp.name).Msg("Component shutdown failed")
				if shutdownErr == nil {
					shutdownErr = err
				}
				continue
			}
			c.logger.Debug().Str("component", comp.name).Msg("Component closed")
		}

		c.logger.Debug().Dur("duration", time.Since(start)).Msg("Shutdown complete")
	})

	return shutdownErr
}

// closeWithin stops waiting on a Close that outlives ctx
func closeWithin(ctx context.Context, comp Closer) error {
	done := make(chan error, 1)
	go func() { done <- comp.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown priorities. The ledger closes before storage, the engine last.
const (
	PriorityMetrics  = 10
	PriorityHistory  = 20
	PriorityStorage  = 80
	PriorityDatabase = 90
)
