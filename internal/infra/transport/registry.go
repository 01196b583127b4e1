package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"mcpscout/internal/infra/telemetry"
)

// CloseFunc releases a tracked resource. force skips any graceful shutdown.
type CloseFunc func(force bool) error

// SessionRegistry tracks every session or worker opened during one run so
// that all of them are released before the run returns.
type SessionRegistry struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries []*Handle
}

func NewSessionRegistry(logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{logger: logger}
}

// Handle is the owner's view of a tracked resource.
type Handle struct {
	provider string
	closeFn  CloseFunc
	once     sync.Once
	err      error
	closed   chan struct{}
}

// Track registers a resource. A nil registry returns an untracked handle.
func (r *SessionRegistry) Track(provider string, closeFn CloseFunc) *Handle {
	h := &Handle{provider: provider, closeFn: closeFn, closed: make(chan struct{})}
	if r == nil {
		return h
	}
	r.mu.Lock()
	r.entries = append(r.entries, h)
	r.mu.Unlock()
	return h
}

// Close releases the resource gracefully. Only the first Close or Abort runs.
func (h *Handle) Close() error {
	return h.release(false)
}

// Abort releases the resource without a graceful shutdown.
func (h *Handle) Abort() error {
	return h.release(true)
}

func (h *Handle) release(force bool) error {
	h.once.Do(func() {
		if h.closeFn != nil {
			h.err = h.closeFn(force)
		}
		close(h.closed)
	})
	return h.err
}

func (h *Handle) Closed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

// Open counts handles that have not been released.
func (r *SessionRegistry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := 0
	for _, h := range r.entries {
		if !h.Closed() {
			open++
		}
	}
	return open
}

// Drain force-releases every handle still open and returns how many it closed.
func (r *SessionRegistry) Drain() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	drained := 0
	for _, h := range entries {
		if h.Closed() {
			continue
		}
		if err := h.Abort(); err != nil {
			r.logger.Debug("session close failed during drain", telemetry.ProviderField(h.provider), zap.Error(err))
		}
		drained++
	}
	if drained > 0 {
		r.logger.Info("released open sessions", zap.Int("count", drained), telemetry.EventField(telemetry.EventSessionClosed))
	}
	return drained
}

type registryContextKey struct{}

// WithRegistry scopes a registry to a run.
func WithRegistry(ctx context.Context, registry *SessionRegistry) context.Context {
	return context.WithValue(ctx, registryContextKey{}, registry)
}

// RegistryFromContext returns the run registry, or nil.
func RegistryFromContext(ctx context.Context) *SessionRegistry {
	if ctx == nil {
		return nil
	}
	registry, _ := ctx.Value(registryContextKey{}).(*SessionRegistry)
	return registry
}
