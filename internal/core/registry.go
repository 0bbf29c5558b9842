package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vkoudela/koldy/internal/config"
)

// Registry holds the named connections of one application. Adapters are
// created on first lookup and kept until Close.
type Registry struct {
	mu       sync.Mutex
	conns    map[string]config.Connection
	adapters map[string]*Adapter
	def      string
	opts     []Option
}

// NewRegistry returns a registry for cfg, which may be nil. opts are applied
// to every adapter the registry creates. cfg.Default, when set, becomes the
// default connection.
func NewRegistry(cfg *config.Config, opts ...Option) *Registry {
	r := &Registry{
		conns:    map[string]config.Connection{},
		adapters: map[string]*Adapter{},
		opts:     opts,
	}
	if cfg != nil {
		for name, conn := range cfg.Connections {
			r.conns[name] = conn
		}
		r.def = cfg.Default
	}
	return r
}

// Register adds or replaces a named connection. An adapter already created
// for that name is closed and dropped.
func (r *Registry) Register(name string, conn config.Connection) error {
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("connection %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[name]; ok {
		_ = a.Close()
		delete(r.adapters, name)
	}
	r.conns[name] = conn
	return nil
}

// RegisterDefault makes name the default connection.
func (r *Registry) RegisterDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	r.def = name
	return nil
}

// DefaultName returns the default connection name, or "".
func (r *Registry) DefaultName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def
}

// Default returns the adapter of the default connection.
func (r *Registry) Default() (*Adapter, error) {
	return r.Adapter("")
}

// Adapter returns the adapter for name, creating it if needed. An empty name
// selects the default connection.
func (r *Registry) Adapter(name string) (*Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		if r.def == "" {
			return nil, ErrNoDefaultConnection
		}
		name = r.def
	}
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}

	conn, ok := r.conns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	a, err := NewAdapter(name, conn, r.opts...)
	if err != nil {
		return nil, err
	}
	r.adapters[name] = a
	return a, nil
}

// Names returns the registered connection names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.conns))
	for n := range r.conns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every adapter created so far.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, a := range r.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", name, err))
		}
	}
	r.adapters = map[string]*Adapter{}
	return errors.Join(errs...)
}
