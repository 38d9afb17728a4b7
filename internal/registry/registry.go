package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadingError is a configuration fault: the handler source was missing or
// unparseable. It aborts a request before any protocol envelope is built.
type LoadingError struct {
	Path string
	Err  error
}

func (e *LoadingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("registry: %v", e.Err)
	}
	return fmt.Sprintf("registry: %s: %v", e.Path, e.Err)
}

func (e *LoadingError) Unwrap() error { return e.Err }

// Validator inspects a freshly parsed configuration set before it goes
// live. A non-nil error rejects the whole reload.
type Validator func(handlers []*HandlerConfiguration) error

type snapshot struct {
	handlers map[string]*HandlerConfiguration
	ordered  []*HandlerConfiguration
}

// Registry serves handler configurations from a directory of YAML files,
// one handler per file. Reload parses everything into a new snapshot and
// swaps it in with a single atomic store; the live snapshot is never
// mutated in place.
type Registry struct {
	dir       string
	validator Validator
	current   atomic.Pointer[snapshot]
}

type Option func(*Registry)

// WithValidator installs a snapshot validator run on every reload.
func WithValidator(v Validator) Option {
	return func(r *Registry) { r.validator = v }
}

// New creates a registry and performs the initial load.
func New(dir string, opts ...Option) (*Registry, error) {
	r := &Registry{dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload parses every *.yaml file in the configured directory. On any
// error the currently active snapshot stays untouched.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return &LoadingError{Path: r.dir, Err: err}
	}

	next := &snapshot{handlers: make(map[string]*HandlerConfiguration)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(r.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return &LoadingError{Path: path, Err: err}
		}
		h := &HandlerConfiguration{
			LegacyIdentifierPrefix:   "BISIS",
			InternalIdentifierPrefix: "TESLARIS",
		}
		if err := yaml.Unmarshal(data, h); err != nil {
			return &LoadingError{Path: path, Err: err}
		}
		if h.Identifier == "" {
			return &LoadingError{Path: path, Err: fmt.Errorf("handler has no identifier")}
		}
		if _, dup := next.handlers[h.Identifier]; dup {
			return &LoadingError{Path: path, Err: fmt.Errorf("duplicate handler identifier %q", h.Identifier)}
		}
		next.handlers[h.Identifier] = h
	}

	for _, h := range next.handlers {
		next.ordered = append(next.ordered, h)
	}
	sort.Slice(next.ordered, func(i, j int) bool {
		return next.ordered[i].Identifier < next.ordered[j].Identifier
	})

	if r.validator != nil {
		if err := r.validator(next.ordered); err != nil {
			return &LoadingError{Path: r.dir, Err: err}
		}
	}

	r.current.Store(next)
	return nil
}

// Get returns the handler configuration for the given endpoint identifier.
// Absence is a configuration fault at the caller, not a protocol error.
func (r *Registry) Get(identifier string) (*HandlerConfiguration, bool) {
	snap := r.current.Load()
	if snap == nil {
		return nil, false
	}
	h, ok := snap.handlers[identifier]
	return h, ok
}

// All returns every loaded handler, ordered by identifier.
func (r *Registry) All() []*HandlerConfiguration {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	return snap.ordered
}

// Watch reloads on a fixed interval until ctx is cancelled. A failed
// reload is logged and the previous snapshot stays active.
func (r *Registry) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(); err != nil {
				log.Printf("WARN: handler configuration reload failed: %v", err)
			}
		}
	}
}
