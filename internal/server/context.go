package server

import (
	"context"
	"sync"
	"sync/atomic"
)

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// ServerContext holds the server configuration and shared resources
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	mutex  sync.RWMutex

	// Configuration
	debugMode bool
	logger    Logger

	// getenv is the environment source for registry loads; overridable in tests.
	getenv func(string) string

	// registry is an immutable snapshot, swapped wholesale on reload so
	// concurrent tool invocations never observe a partially built map.
	registry atomic.Pointer[Registry]
}

// ServerOption is a functional option for configuring ServerContext
type ServerOption func(*ServerContext)

// WithDebugMode sets whether debug logging is enabled
func WithDebugMode(enabled bool) ServerOption {
	return func(sc *ServerContext) {
		sc.debugMode = enabled
	}
}

// WithLogger sets the logger for the server context
func WithLogger(logger Logger) ServerOption {
	return func(sc *ServerContext) {
		sc.logger = logger
	}
}

// WithRegistry sets a pre-built server registry, bypassing the environment scan
func WithRegistry(reg *Registry) ServerOption {
	return func(sc *ServerContext) {
		sc.registry.Store(reg)
	}
}

// WithEnviron sets the environment lookup used when loading the registry
func WithEnviron(getenv func(string) string) ServerOption {
	return func(sc *ServerContext) {
		sc.getenv = getenv
	}
}

// NewServerContext creates a new server context with the given options
func NewServerContext(ctx context.Context, opts ...ServerOption) (*ServerContext, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:    serverCtx,
		cancel: cancel,
	}

	// Apply options
	for _, opt := range opts {
		opt(sc)
	}

	// Set default logger if none provided
	if sc.logger == nil {
		sc.logger = &noopLogger{}
	}

	// Load the server registry from the environment if not provided
	if sc.registry.Load() == nil {
		sc.ReloadServers()
	}

	return sc, nil
}

// Context returns the context associated with the server
func (sc *ServerContext) Context() context.Context {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.ctx
}

// IsDebugMode returns whether debug logging is enabled
func (sc *ServerContext) IsDebugMode() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.debugMode
}

// Logger returns the configured logger
func (sc *ServerContext) Logger() Logger {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.logger
}

// Registry returns the current server registry snapshot
func (sc *ServerContext) Registry() *Registry {
	return sc.registry.Load()
}

// ReloadServers rebuilds the registry from the environment and atomically
// replaces the current snapshot. The replacement is a full rebuild, never a
// merge with the previous state.
func (sc *ServerContext) ReloadServers() {
	reg := LoadRegistry(sc.getenv, sc.Logger())
	sc.registry.Store(reg)
	sc.Logger().Info("Loaded Prometheus server registry", "servers", reg.Len())
}

// SetDebugMode dynamically sets whether debug logging is enabled
func (sc *ServerContext) SetDebugMode(enabled bool) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	sc.debugMode = enabled
}

// Shutdown gracefully shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.cancel != nil {
		sc.cancel()
		sc.cancel = nil
	}

	return nil
}

// noopLogger is a logger that does nothing
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}
