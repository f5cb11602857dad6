package markup

import (
	"context"
	"sort"

	"golang.org/x/net/html"
)

// Component is a mounted component instance. Render transforms the input into an HTML tree.
// Returning a nil node renders nothing.
type Component interface {
	Render(in *Input) (*html.Node, error)
}

// Input is what a component instance receives on every render.
type Input struct {
	// Props are the coerced properties of the element the instance was mounted for.
	Props Props

	// Children are the rendered child elements.
	Children []*html.Node

	// Context holds values provided by ancestor instances implementing ContextProvider.
	Context map[string]any
}

// Mounter is implemented by components that need to run code when they are mounted.
type Mounter interface {
	Mount(props Props) error
}

// PreUpdater is implemented by components that need to see new props before an update.
type PreUpdater interface {
	WillUpdate(next Props) error
}

// Updater is implemented by components that need to run code after their props changed.
type Updater interface {
	Update(prev Props) error
}

// Unmounter is implemented by components that hold resources. Unmount is called when the
// instance is removed from the tree.
type Unmounter interface {
	Unmount() error
}

// ContextProvider is implemented by components that pass values down to their descendants.
type ContextProvider interface {
	ChildContext() map[string]any
}

// PropType describes a declared component property.
type PropType int

const (
	PropAny PropType = iota
	PropString
	PropNumber
	PropBool
	PropObject
	PropArray
	PropTemplateScope
)

// MarkupTemplateScopeProp is the property through which components receive the template scope
// of the markup region they were declared in.
const MarkupTemplateScopeProp = "markupTemplateScope"

// Class is a component implementation bound to a tag name. Classes are compared by identity.
type Class struct {
	// Name is a human readable name used in logs and error views.
	Name string

	// New creates an instance.
	New func() Component

	// PropTypes is the optional declared property schema.
	PropTypes map[string]PropType
}

// Accepts reports whether the class declares the property name.
func (c *Class) Accepts(name string) bool {
	if c == nil || c.PropTypes == nil {
		return false
	}
	_, ok := c.PropTypes[name]
	return ok
}

// Default returns the class itself. It makes every Class a Module.
func (c *Class) Default() *Class {
	return c
}

// Module is what a Loader produces. A module exposes its component class as the default export.
type Module interface {
	Default() *Class
}

// Loader loads the module implementing a tag. It is called at most once per successful load.
type Loader func(ctx context.Context) (Module, error)

// ComponentFunc adapts a render function to a Component without lifecycle hooks.
type ComponentFunc func(in *Input) (*html.Node, error)

func (f ComponentFunc) Render(in *Input) (*html.Node, error) {
	return f(in)
}

// NewClass returns a class whose instances all use the same render function.
func NewClass(name string, render ComponentFunc, propTypes map[string]PropType) *Class {
	return &Class{
		Name:      name,
		New:       func() Component { return render },
		PropTypes: propTypes,
	}
}

// Props maps camelCased property names to coerced attribute values.
type Props map[string]any

// Clone returns a shallow copy.
func (p Props) Clone() Props {
	c := make(Props, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// String returns the property as a string. Non-string values are reported as missing.
func (p Props) String(name string) (string, bool) {
	s, ok := p[name].(string)
	return s, ok
}

// Bool returns the property as a boolean. Missing or non-boolean values are false.
func (p Props) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Key returns the reconciliation key.
func (p Props) Key() string {
	s, _ := p["key"].(string)
	return s
}

// Names returns the property names, sorted.
func (p Props) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
