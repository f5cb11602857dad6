package markup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store maps tag names to component classes. Classes are registered directly or through a
// Loader that is invoked on first use. Every class handed out by the store is wrapped in an
// error boundary.
type Store struct {
	logger     *slog.Logger
	boundaries *BoundaryRegistry

	mu      sync.RWMutex
	loaders map[string]Loader
	loaded  map[string]*Class

	// group deduplicates concurrent loads of the same tag.
	group singleflight.Group
}

// NewStore creates an empty store. Boundaries may be nil, in which case DefaultBoundaries is
// used.
func NewStore(logger *slog.Logger, boundaries *BoundaryRegistry) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if boundaries == nil {
		boundaries = DefaultBoundaries
	}
	return &Store{
		logger:     logger,
		boundaries: boundaries,
		loaders:    make(map[string]Loader),
		loaded:     make(map[string]*Class),
	}
}

// Register binds a class to a tag.
func (s *Store) Register(tag string, c *Class) error {
	if c == nil || c.New == nil {
		return fmt.Errorf("register %q: class has no constructor", tag)
	}
	return s.RegisterLoader(tag, func(context.Context) (Module, error) { return c, nil })
}

// RegisterLoader binds a loader to a tag. The loader runs on the first LoadComponent call for
// the tag; a failed load is retried on the next call.
func (s *Store) RegisterLoader(tag string, l Loader) error {
	tag = strings.ToLower(tag)
	if tag == "" {
		return fmt.Errorf("register component: empty tag name")
	}
	if l == nil {
		return fmt.Errorf("register %q: nil loader", tag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loaders[tag]; ok {
		return fmt.Errorf("register %q: %w", tag, ErrAlreadyRegistered)
	}
	s.loaders[tag] = l
	s.logger.Debug("Registered component", "tag", tag)
	return nil
}

// HasComponent reports whether a loader exists for tag.
func (s *Store) HasComponent(tag string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loaders[tag]
	return ok
}

// LoadComponent resolves the class for tag. The returned class is wrapped in an error boundary.
func (s *Store) LoadComponent(ctx context.Context, tag string) (*Class, error) {
	s.mu.RLock()
	c, ok := s.loaded[tag]
	l, known := s.loaders[tag]
	s.mu.RUnlock()

	if ok {
		return c, nil
	}
	if !known {
		s.logger.Error("Component not found", "tag", tag)
		return nil, fmt.Errorf("load %q: %w", tag, ErrComponentNotFound)
	}

	// The load is shared by concurrent callers, so it must not depend on the first caller's
	// cancellation. Each caller still stops waiting when its own context is done.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(tag, func() (any, error) {
		s.mu.RLock()
		c, ok := s.loaded[tag]
		s.mu.RUnlock()
		if ok {
			return c, nil
		}

		m, err := l(loadCtx)
		if err != nil {
			return nil, err
		}
		if m == nil || m.Default() == nil {
			return nil, fmt.Errorf("module has no component class")
		}

		c = s.boundaries.Wrap(m.Default())

		s.mu.Lock()
		s.loaded[tag] = c
		s.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %q: %w", tag, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.logger.Error("Load component", "tag", tag, "error", res.Err)
			return nil, fmt.Errorf("load %q: %w", tag, res.Err)
		}
		return res.Val.(*Class), nil
	}
}

// Tags returns the registered tag names, sorted.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make([]string, 0, len(s.loaders))
	for t := range s.loaders {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// NativeRegistry records custom elements defined natively, i.e. implemented by browser scripts
// rather than by a component class. Names are added during setup and only read afterwards.
type NativeRegistry struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewNativeRegistry returns an empty registry.
func NewNativeRegistry() *NativeRegistry {
	return &NativeRegistry{names: make(map[string]struct{})}
}

// Define records a native custom element. Like the browser registry, it rejects names without a
// dash and names that are already defined.
func (r *NativeRegistry) Define(name string) error {
	if name != strings.ToLower(name) || !strings.Contains(name, "-") {
		return fmt.Errorf("define %q: custom element names must be lower case and contain a dash", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("define %q: %w", name, ErrAlreadyRegistered)
	}
	r.names[name] = struct{}{}
	return nil
}

// IsDefined reports whether name was defined.
func (r *NativeRegistry) IsDefined(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Names returns the defined names, sorted.
func (r *NativeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
