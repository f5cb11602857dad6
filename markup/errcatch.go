package markup

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BoundaryRegistry wraps component classes in error boundaries. Each class is wrapped at most
// once; wrapping an already wrapped class returns it unchanged.
type BoundaryRegistry struct {
	Logger  *slog.Logger
	Metrics *Metrics

	mu      sync.Mutex
	wrapped map[*Class]*Class
	outputs map[*Class]struct{}
}

// DefaultBoundaries is the registry used by WithErrorBoundary and by stores created without one.
var DefaultBoundaries = NewBoundaryRegistry(nil, nil)

// NewBoundaryRegistry creates an empty registry. A nil logger discards the log output.
func NewBoundaryRegistry(logger *slog.Logger, metrics *Metrics) *BoundaryRegistry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BoundaryRegistry{
		Logger:  logger,
		Metrics: metrics,
		wrapped: make(map[*Class]*Class),
		outputs: make(map[*Class]struct{}),
	}
}

// WithErrorBoundary wraps c using DefaultBoundaries.
func WithErrorBoundary(c *Class) *Class {
	return DefaultBoundaries.Wrap(c)
}

// Wrap returns a class whose instances delegate to instances of c and turn errors and panics of
// any lifecycle method into an error state. An instance in error state renders
// ErrorNotificationClass until it is unmounted. ErrorNotificationClass itself is never wrapped.
func (r *BoundaryRegistry) Wrap(c *Class) *Class {
	if c == nil || c == ErrorNotificationClass {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.outputs[c]; ok {
		return c
	}
	if w, ok := r.wrapped[c]; ok {
		return w
	}

	w := &Class{
		Name:      c.Name,
		PropTypes: c.PropTypes,
	}
	w.New = func() Component {
		b := &boundary{name: c.Name, reg: r}
		b.guard("construct", func() error {
			b.inner = c.New()
			if b.inner == nil {
				return fmt.Errorf("constructor returned nil")
			}
			return nil
		})
		return b
	}

	r.wrapped[c] = w
	r.outputs[w] = struct{}{}
	return w
}

// IsWrapped reports whether c was produced by Wrap.
func (r *BoundaryRegistry) IsWrapped(c *Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.outputs[c]
	return ok
}

// boundary is the instance created by a wrapped class.
type boundary struct {
	name  string
	reg   *BoundaryRegistry
	inner Component

	// err is the recorded error state. It is cleared only by creating a new instance.
	err error
}

var (
	_ Component       = (*boundary)(nil)
	_ Mounter         = (*boundary)(nil)
	_ PreUpdater      = (*boundary)(nil)
	_ Updater         = (*boundary)(nil)
	_ Unmounter       = (*boundary)(nil)
	_ ContextProvider = (*boundary)(nil)
)

// guard runs fn and records a returned error or a recovered panic as the error state.
func (b *boundary) guard(phase string, fn func() error) (failed bool) {
	defer func() {
		if p := recover(); p != nil {
			b.record(&RenderError{Component: b.name, Phase: phase, Panic: true, Err: panicError(p)})
			failed = true
		}
	}()
	if err := fn(); err != nil {
		b.record(&RenderError{Component: b.name, Phase: phase, Err: err})
		return true
	}
	return false
}

func (b *boundary) record(err *RenderError) {
	b.reg.Logger.Error("Component failed", "component", err.Component, "phase", err.Phase,
		"panic", err.Panic, "error", err.Err)
	b.reg.Metrics.caught(err.Component, err.Phase)
	if b.err == nil {
		b.err = err
	}
}

// Err returns the recorded error state.
func (b *boundary) Err() error {
	return b.err
}

func (b *boundary) Mount(props Props) error {
	if m, ok := b.inner.(Mounter); ok && b.err == nil {
		b.guard("mount", func() error { return m.Mount(props) })
	}
	return nil
}

func (b *boundary) WillUpdate(next Props) error {
	if u, ok := b.inner.(PreUpdater); ok && b.err == nil {
		b.guard("will-update", func() error { return u.WillUpdate(next) })
	}
	return nil
}

func (b *boundary) Update(prev Props) error {
	if u, ok := b.inner.(Updater); ok && b.err == nil {
		b.guard("update", func() error { return u.Update(prev) })
	}
	return nil
}

// Unmount always runs the inner hook so resources are released even after a failure.
func (b *boundary) Unmount() error {
	if u, ok := b.inner.(Unmounter); ok {
		b.guard("unmount", u.Unmount)
	}
	return nil
}

func (b *boundary) ChildContext() map[string]any {
	p, ok := b.inner.(ContextProvider)
	if !ok || b.err != nil {
		return nil
	}
	var ctx map[string]any
	if b.guard("child-context", func() error {
		ctx = p.ChildContext()
		return nil
	}) {
		return nil
	}
	return ctx
}

func (b *boundary) Render(in *Input) (*html.Node, error) {
	if b.err == nil {
		var out *html.Node
		if !b.guard("render", func() error {
			var err error
			out, err = b.inner.Render(in)
			return err
		}) {
			return out, nil
		}
	}
	return renderNotification(b.name, b.err)
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}

// ErrorNotificationClass renders the view shown in place of a failed component. It reads the
// "error" (error) and "component" (string) properties.
var ErrorNotificationClass = NewClass("ErrorNotification", renderErrorNotification, map[string]PropType{
	"error":     PropAny,
	"component": PropString,
})

func renderNotification(component string, err error) (*html.Node, error) {
	return ErrorNotificationClass.New().Render(&Input{Props: Props{"error": err, "component": component}})
}

func renderErrorNotification(in *Input) (*html.Node, error) {
	err, _ := in.Props["error"].(error)
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	component, _ := in.Props.String("component")

	doc := etree.NewElement("div")
	doc.CreateAttr("class", "mp-error-notification")
	doc.CreateAttr("role", "alert")

	title := "Component failed to render"
	if component != "" {
		title = fmt.Sprintf("Component %s failed to render", component)
	}
	doc.CreateElement("strong").SetText(title)
	doc.CreateElement("p").SetText(err.Error())

	causes := Causes(err)
	if len(causes) > 1 {
		details := doc.CreateElement("details")
		details.CreateElement("summary").SetText("Caused by")
		ul := details.CreateElement("ul")
		for _, c := range causes[1:] {
			ul.CreateElement("li").SetText(c.Error())
		}
	}

	return etreeToHTML(doc), nil
}

// etreeToHTML converts an etree element into an html.Node tree.
func etreeToHTML(el *etree.Element) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(el.Tag)),
		Data:     el.Tag,
	}
	for _, a := range el.Attr {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Value})
	}
	for _, t := range el.Child {
		switch t := t.(type) {
		case *etree.Element:
			n.AppendChild(etreeToHTML(t))
		case *etree.CharData:
			n.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
		}
	}
	return n
}
