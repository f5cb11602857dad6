package markup

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/researchspace/semantic-pages/tmpl"
	xhtml "golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Tags of the built-in components that display code.
const (
	CodeExampleTag   = "mp-code-example"
	CodeHighlightTag = "mp-code-highlight"
	CodeBlockTag     = "mp-code-block"
)

// Rule classifies a node and converts it into an element. Rules are evaluated in order and the
// first matching rule processes the node. Process may return a nil element to render nothing.
type Rule struct {
	Name    string
	Match   func(n *Node) bool
	Process func(ctx context.Context, n *Node) (*Element, error)
}

// Parser converts HTML fragments into element trees, resolving custom tags against the Store.
type Parser struct {
	Store *Store
	Gate  *Gate

	// Natives lists custom elements implemented in the browser. Unregistered custom tags that are
	// missing from it are still passed through, but logged.
	Natives *NativeRegistry

	Logger  *slog.Logger
	Metrics *Metrics

	rules []Rule
}

// NewParser returns a parser resolving components in store and checking them with gate. A nil
// gate permits every component.
func NewParser(store *Store, gate *Gate) *Parser {
	p := &Parser{
		Store:  store,
		Gate:   gate,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	p.rules = []Rule{
		{Name: "code-example", Match: isElementNamed(CodeExampleTag), Process: p.processCode(CodeExampleTag, true)},
		{Name: "code", Match: isElementNamed("code"), Process: p.processCode(CodeHighlightTag, false)},
		{Name: "code-block", Match: isElementNamed(CodeBlockTag), Process: p.processCode(CodeBlockTag, false)},
		{Name: "code-child", Match: isCodeChild, Process: skipNode},
		{Name: "style", Match: isElementNamed("style"), Process: processStyle},
		{Name: "style-child", Match: isStyleChild, Process: skipNode},
		{Name: "component", Match: p.isComponent, Process: p.processComponent},
		{Name: "native-component", Match: p.isNativeComponent, Process: p.processNativeComponent},
		{Name: "default", Match: func(n *Node) bool { return !IsTemplate(n) }, Process: p.processDefault},
	}
	return p
}

// Rules returns the classification rules in evaluation order.
func (p *Parser) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// ParseHTML parses an HTML fragment and returns the elements of its top-level content in
// document order. Children of every node are processed concurrently. The first error cancels the
// remaining work.
func (p *Parser) ParseHTML(ctx context.Context, src string) ([]*Element, error) {
	start := time.Now()
	defer func() { p.Metrics.observeParse(time.Since(start).Seconds()) }()

	// A single synthetic root holds the fragment.
	doc, err := Parse(strings.NewReader(`<div key="root">` + src + `</div>`))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var top []*Node
	for i, n := range doc.Children {
		if i == 0 && n.IsElement() && n.Name == "div" {
			top = append(top, n.Children...)
			continue
		}
		// Content after a stray end tag that closed the root.
		top = append(top, n)
	}

	return p.processNodes(ctx, top)
}

// ProcessNode classifies n with the rules and processes it.
func (p *Parser) ProcessNode(ctx context.Context, n *Node) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range p.rules {
		if r.Match(n) {
			return r.Process(ctx, n)
		}
	}
	return nil, nil
}

// processNodes processes nodes concurrently and returns the resulting elements in the order of
// nodes. Whitespace-only text nodes and nodes that render nothing are left out.
func (p *Parser) processNodes(ctx context.Context, nodes []*Node) ([]*Element, error) {
	var valid []*Node
	for _, n := range nodes {
		if n.IsWhitespace() || n.Type == xhtml.CommentNode || n.Type == xhtml.DoctypeNode {
			continue
		}
		valid = append(valid, n)
	}

	out := make([]*Element, len(valid))
	g, ctx := errgroup.WithContext(ctx)
	for i, n := range valid {
		g.Go(func() error {
			el, err := p.ProcessNode(ctx, n)
			if err != nil {
				return err
			}
			out[i] = el
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return compact(out), nil
}

func (p *Parser) processChildren(ctx context.Context, n *Node) ([]*Element, error) {
	return p.processNodes(ctx, n.Children)
}

func isElementNamed(name string) func(n *Node) bool {
	return func(n *Node) bool {
		return n.IsElement() && n.Name == name
	}
}

func isCodeChild(n *Node) bool {
	switch n.ParentName() {
	case "code", CodeExampleTag, CodeBlockTag:
		return true
	}
	return false
}

func isStyleChild(n *Node) bool {
	return n.ParentName() == "style"
}

func (p *Parser) isComponent(n *Node) bool {
	return n.IsElement() && p.Store.HasComponent(n.Name)
}

// isNativeComponent matches custom elements without a registered component. Custom element names
// always contain a dash.
func (p *Parser) isNativeComponent(n *Node) bool {
	return n.IsElement() && strings.Contains(n.Name, "-") && !p.Store.HasComponent(n.Name)
}

func skipNode(context.Context, *Node) (*Element, error) {
	return nil, nil
}

// processCode returns a processor passing the code inside the node as the codeText property to
// the component registered under tag.
func (p *Parser) processCode(tag string, beautify bool) func(ctx context.Context, n *Node) (*Element, error) {
	return func(ctx context.Context, n *Node) (*Element, error) {
		code := strings.TrimSpace(html.UnescapeString(n.InnerHTML()))
		code = strings.Replace(code, "<!--[CDATA[", "", 1)
		code = strings.Replace(code, "]]-->", "", 1)
		if beautify {
			code = BeautifyHTML(code)
		}

		attrs, err := HTMLAttributesToProps(n.Attribs())
		if err != nil {
			return nil, attributeError(n.Name, err)
		}
		props := Props{"codeText": code}
		for k, v := range attrs {
			props[k] = v
		}

		class, err := p.Store.LoadComponent(ctx, tag)
		if err != nil {
			return nil, err
		}
		p.Metrics.resolved(tag)
		return NewComponentElement(tag, class, props, nil, nil), nil
	}
}

// processStyle keeps a style element with its content as written. Empty style elements, e.g.
// injected by browser extensions, are kept empty.
func processStyle(_ context.Context, n *Node) (*Element, error) {
	if len(n.Children) == 0 {
		return Raw("style", ""), nil
	}
	return Raw("style", n.Children[0].Data), nil
}

func (p *Parser) processComponent(ctx context.Context, n *Node) (*Element, error) {
	attrs, err := HTMLAttributesToProps(n.Attribs())
	if err != nil {
		return nil, attributeError(n.Name, err)
	}

	props := attrs.Clone()
	props["key"] = computeKey(attrs)

	// Older semantic components take their options in a config object.
	if strings.HasPrefix(n.Name, "semantic") {
		if config, ok := props["config"].(map[string]any); ok {
			for k, v := range config {
				props[AttributeName(k)] = v
			}
		}
	}

	scope, err := ExtractTemplateScope(n)
	if err != nil {
		return nil, &WrappingError{Message: fmt.Sprintf("Invalid template markup at <%s>", n.Name), Cause: err}
	}

	children, err := p.processChildren(ctx, n)
	if err != nil {
		return nil, err
	}

	fixedKey := attrs["fixedKey"]
	if truthy(fixedKey) && truthy(attrs["reparentable"]) {
		delete(props, "key")
		el, err := p.RenderWebComponent(ctx, n.Name, props, children, scope)
		if el == nil || err != nil {
			return nil, err
		}
		return Slot(keyString(fixedKey), el), nil
	}
	return p.RenderWebComponent(ctx, n.Name, props, children, scope)
}

// RenderWebComponent creates the element for the component registered under tag. It returns a
// nil element when the current user is not permitted to see the component. A nil scope is
// replaced with a new scope traced to the component.
func (p *Parser) RenderWebComponent(ctx context.Context, tag string, props Props, children []*Element, scope *tmpl.Scope) (*Element, error) {
	if scope == nil {
		id, _ := props.String("id")
		scope = tmpl.Default.Builder().WithTrace(tmpl.Trace{ComponentTag: tag, ComponentID: id}).Build()
	}

	ok, err := p.Gate.IsComponentPermitted(ctx, tag)
	if err != nil {
		p.Logger.Warn("Permission check failed, component omitted", "tag", tag, "error", err)
		p.Metrics.denied(tag)
		return nil, nil
	}
	if !ok {
		p.Logger.Debug("Component not permitted", "tag", tag, "right", ComponentRight(tag))
		p.Metrics.denied(tag)
		return nil, nil
	}

	class, err := p.Store.LoadComponent(ctx, tag)
	if err != nil {
		return nil, err
	}

	if class.Accepts(MarkupTemplateScopeProp) {
		props = props.Clone()
		props[MarkupTemplateScopeProp] = scope
	}
	p.Metrics.resolved(tag)
	return NewComponentElement(tag, class, props, scope, children), nil
}

// processNativeComponent passes a custom element through as opaque markup.
func (p *Parser) processNativeComponent(_ context.Context, n *Node) (*Element, error) {
	if !p.Natives.IsDefined(n.Name) {
		p.Logger.Debug("Unknown custom element passed through", "tag", n.Name)
	}
	return Raw("div", n.OuterHTML()), nil
}

func (p *Parser) processDefault(ctx context.Context, n *Node) (*Element, error) {
	switch n.Type {
	case xhtml.TextNode:
		return Text(n.Data), nil
	case xhtml.ElementNode:
		children, err := p.processChildren(ctx, n)
		if err != nil {
			return nil, err
		}
		return Native(n.Name, n.Attr, children...), nil
	}
	return nil, nil
}

func attributeError(tag string, err error) error {
	return &WrappingError{
		Message: fmt.Sprintf("Error while processing attributes for component %q", tag),
		Cause:   err,
	}
}

// computeKey returns the reconciliation key: the key attribute, else fixedKey, else a random key.
// Any present non-empty attribute counts, so key="0" and key="false" are kept as written.
func computeKey(attrs Props) string {
	for _, name := range []string{"key", "fixedKey"} {
		if v, ok := attrs[name]; ok && v != nil && v != "" {
			return keyString(v)
		}
	}
	return uuid.NewString()
}

func keyString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// truthy reports whether a coerced attribute value counts as set.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	}
	return true
}
