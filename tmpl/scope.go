// Package tmpl implements template scopes: isolated registries of named partial templates and
// helper functions, organized as a tree rooted at the Default scope.
//
// Templates use a mustache-like syntax. {{ expr }} evaluates an expression and writes the
// HTML-escaped result, {{{ expr }}} writes it unescaped, {{> name}} includes a partial and
// {{! comment }} is dropped. Expressions are evaluated with github.com/expr-lang/expr.
//
// A Scope never changes after it is built. Deriving a scope with Builder copies the partials
// and helpers of the parent, so registering partials on the derived scope does not affect the
// parent.
package tmpl

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Helper is a function callable from template expressions.
type Helper func(params ...any) (any, error)

// Trace identifies the markup region a scope was created for. It is used in error messages.
type Trace struct {
	ComponentTag string
	ComponentID  string
	TemplateID   string
}

func (t Trace) String() string {
	var parts []string
	if t.ComponentTag != "" {
		parts = append(parts, "<"+t.ComponentTag+">")
	}
	if t.ComponentID != "" {
		parts = append(parts, "id="+t.ComponentID)
	}
	if t.TemplateID != "" {
		parts = append(parts, "template="+t.TemplateID)
	}
	return strings.Join(parts, " ")
}

// Options configures a new scope created with Create or NewBuilder.
type Options struct {
	// Partials are registered in the new scope in sorted id order.
	Partials map[string]string

	// Helpers extend or override the default helpers.
	Helpers map[string]Helper

	Trace Trace
}

// Declaration is a named template found in markup, e.g. <template id="row">...</template>.
type Declaration struct {
	ID     string
	Source string
}

// Scope is a container of partials and helpers. Compiled templates are cached per scope.
type Scope struct {
	trace    Trace
	helpers  map[string]Helper
	partials map[string]*Template

	mu    sync.Mutex
	cache map[string]*Compiled
}

// Default is the process-wide root scope. It holds the default helpers and no partials.
var Default = newScope(DefaultHelpers(), Trace{}, nil)

func newScope(helpers map[string]Helper, trace Trace, partials map[string]*Template) *Scope {
	if partials == nil {
		partials = map[string]*Template{}
	}
	return &Scope{
		trace:    trace,
		helpers:  helpers,
		partials: partials,
		cache:    map[string]*Compiled{},
	}
}

// Create builds a scope from the default helpers and the given options.
func Create(opts Options) (*Scope, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Trace returns the trace the scope was created with.
func (s *Scope) Trace() Trace {
	return s.trace
}

// Partial returns a registered partial by id.
func (s *Scope) Partial(id string) (*Template, bool) {
	t, ok := s.partials[id]
	return t, ok
}

// PartialIDs returns the ids of all partials visible in the scope, sorted.
func (s *Scope) PartialIDs() []string {
	ids := make([]string, 0, len(s.partials))
	for id := range s.partials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Export returns the sources of all partials keyed by id. It can be fed back into Options to
// reproduce the scope elsewhere.
func (s *Scope) Export() map[string]string {
	m := make(map[string]string, len(s.partials))
	for id, t := range s.partials {
		m[id] = t.source
	}
	return m
}

// Compile parses the template and checks that every partial it includes, directly or through
// other partials, is registered in the scope. Results are cached by template text.
func (s *Scope) Compile(source string) (*Compiled, error) {
	s.mu.Lock()
	c, ok := s.cache[source]
	s.mu.Unlock()
	if ok {
		return c, nil
	}

	t, err := parse(source, s.helpers)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(t, map[string]struct{}{}); err != nil {
		return nil, err
	}

	c = &Compiled{tpl: t, scope: s}
	s.mu.Lock()
	s.cache[source] = c
	s.mu.Unlock()
	return c, nil
}

// ClearCache drops compiled templates.
func (s *Scope) ClearCache() {
	s.mu.Lock()
	s.cache = map[string]*Compiled{}
	s.mu.Unlock()
}

func (s *Scope) checkReferences(t *Template, visited map[string]struct{}) error {
	for _, ref := range t.References() {
		if _, ok := visited[ref]; ok {
			continue
		}
		visited[ref] = struct{}{}
		pt, ok := s.partials[ref]
		if !ok {
			return fmt.Errorf("partial %q is not registered", ref)
		}
		if err := s.checkReferences(pt, visited); err != nil {
			return fmt.Errorf("resolve dependencies of partial %q: %w", ref, err)
		}
	}
	return nil
}

// Builder derives a new scope from s. The derived scope starts with the partials and helpers
// of s.
func (s *Scope) Builder() *Builder {
	b := &Builder{
		trace:     s.trace,
		helpers:   make(map[string]Helper, len(s.helpers)),
		inherited: make(map[string]*Template, len(s.partials)),
		local:     map[string]*Template{},
	}
	for k, v := range s.helpers {
		b.helpers[k] = v
	}
	for k, v := range s.partials {
		b.inherited[k] = v
	}
	return b
}

// Builder collects partials for a new scope.
type Builder struct {
	trace     Trace
	helpers   map[string]Helper
	inherited map[string]*Template
	local     map[string]*Template
}

// NewBuilder returns a builder seeded from the Default scope and the given options.
func NewBuilder(opts Options) (*Builder, error) {
	b := Default.Builder()
	b.trace = opts.Trace
	for k, v := range opts.Helpers {
		b.helpers[k] = v
	}

	ids := make([]string, 0, len(opts.Partials))
	for id := range opts.Partials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := b.RegisterPartial(id, opts.Partials[id]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// WithTrace sets the trace of the scope being built.
func (b *Builder) WithTrace(t Trace) *Builder {
	b.trace = t
	return b
}

// RegisterPartial parses source and registers it under id. Registering the same id twice on
// one builder is an error. A local partial shadows an inherited one with the same id.
func (b *Builder) RegisterPartial(id, source string) error {
	if id == "" {
		return fmt.Errorf("template partial id is empty")
	}
	if _, ok := b.local[id]; ok {
		return fmt.Errorf("template partial '%s' already registered", id)
	}
	t, err := parse(source, b.helpers)
	if err != nil {
		return fmt.Errorf("parse template partial '%s': %w", id, err)
	}
	b.local[id] = t
	return nil
}

// Build returns the scope. The builder can still be used afterwards; further registrations do
// not affect scopes that were already built.
func (b *Builder) Build() *Scope {
	partials := make(map[string]*Template, len(b.inherited)+len(b.local))
	for k, v := range b.inherited {
		partials[k] = v
	}
	for k, v := range b.local {
		partials[k] = v
	}
	helpers := make(map[string]Helper, len(b.helpers))
	for k, v := range b.helpers {
		helpers[k] = v
	}
	return newScope(helpers, b.trace, partials)
}
