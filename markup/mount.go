package markup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Tree mounts element trees into component instances and renders them. Every Render call is a
// render pass: instances matching an element of the previous pass by key, kind, tag and class are
// updated in place, the others are unmounted and mounted fresh.
type Tree struct {
	Logger *slog.Logger

	// Slots retains instances under slot elements across passes. NewTree creates one.
	Slots *SlotRegistry

	mu   sync.Mutex
	root []*mounted
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Slots:  NewSlotRegistry(),
	}
}

// mounted is an element of the previous render pass together with its live instance.
type mounted struct {
	kind  ElementKind
	tag   string
	key   string
	class *Class

	el    *Element
	comp  Component
	props Props

	children []*mounted
}

func (m *mounted) matches(el *Element) bool {
	return m.kind == el.Kind && m.tag == el.Tag && m.class == el.Class
}

// Render runs a render pass over elements and returns a document node holding the output.
func (t *Tree) Render(elements []*Element) (*html.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pass := &renderPass{tree: t}
	t.Slots.begin()

	prev := instances(t.root, nil)
	root, err := pass.reconcile(t.root, elements)
	if err != nil {
		pass.abort(prev)
		return nil, err
	}
	t.root = root

	// Removed instances are unmounted once the whole tree is reconciled.
	for _, m := range pass.removed {
		pass.unmount(m)
	}

	doc := &html.Node{Type: html.DocumentNode}
	for _, m := range t.root {
		if err := pass.render(doc, m, nil); err != nil {
			return nil, err
		}
	}
	pass.afterRender()

	for _, s := range t.Slots.sweep() {
		pass.unmountSlot(s)
	}
	return doc, errors.Join(pass.errs...)
}

// Close unmounts every instance of the tree.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pass := &renderPass{tree: t}
	for _, m := range t.root {
		pass.unmount(m)
	}
	t.root = nil
	t.Slots.begin()
	for _, s := range t.Slots.sweep() {
		pass.unmountSlot(s)
	}
	return errors.Join(pass.errs...)
}

// renderPass holds the state of one Tree.Render call.
type renderPass struct {
	tree *Tree

	// removed collects instances without a match in the new tree.
	removed []*mounted

	// updated collects instances whose Update hook runs after the pass rendered.
	updated []updateCall

	// mounted collects the instances created by the pass, in mount order.
	mounted []*mounted

	// errs collects lifecycle errors of instances without an error boundary. They do not stop
	// the pass.
	errs []error
}

type updateCall struct {
	m    *mounted
	prev Props
}

func (p *renderPass) fail(m *mounted, phase string, err error) {
	if err == nil {
		return
	}
	p.tree.Logger.Error("Component lifecycle failed", "tag", m.tag, "phase", phase, "error", err)
	p.errs = append(p.errs, fmt.Errorf("%s %s: %w", phase, m.tag, err))
}

// reconcile matches next against prev. Keyed elements match the previous instance with the same
// key, unkeyed elements match unkeyed previous instances in order.
func (p *renderPass) reconcile(prev []*mounted, next []*Element) ([]*mounted, error) {
	keyed := make(map[string]*mounted)
	var unkeyed []*mounted
	for _, m := range prev {
		if m.key != "" && m.kind != SlotElement {
			keyed[m.key] = m
		} else if m.kind != SlotElement {
			unkeyed = append(unkeyed, m)
		}
	}

	out := make([]*mounted, 0, len(next))
	for _, el := range next {
		if el.Kind == SlotElement {
			m, err := p.mountSlot(el)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
			continue
		}

		var old *mounted
		if el.Key != "" {
			if m, ok := keyed[el.Key]; ok && m.matches(el) {
				old = m
				delete(keyed, el.Key)
			}
		} else if len(unkeyed) > 0 && unkeyed[0].matches(el) {
			old, unkeyed = unkeyed[0], unkeyed[1:]
		}

		var m *mounted
		var err error
		if old != nil {
			m, err = p.update(old, el)
		} else {
			m, err = p.mount(el)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	for _, m := range keyed {
		p.removed = append(p.removed, m)
	}
	p.removed = append(p.removed, unkeyed...)
	return out, nil
}

func (p *renderPass) mount(el *Element) (*mounted, error) {
	m := &mounted{kind: el.Kind, tag: el.Tag, key: el.Key, class: el.Class, el: el, props: el.Props}

	if el.Kind == ComponentElement {
		if el.Class == nil || el.Class.New == nil {
			return nil, fmt.Errorf("mount %s: element has no component class", el.Tag)
		}
		m.comp = el.Class.New()
		p.mounted = append(p.mounted, m)
		if mc, ok := m.comp.(Mounter); ok {
			p.fail(m, "mount", mc.Mount(el.Props))
		}
	}

	var err error
	m.children, err = p.reconcile(nil, el.Children)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *renderPass) update(m *mounted, el *Element) (*mounted, error) {
	prev := m.props
	if m.comp != nil {
		if u, ok := m.comp.(PreUpdater); ok {
			p.fail(m, "will-update", u.WillUpdate(el.Props))
		}
		p.updated = append(p.updated, updateCall{m: m, prev: prev})
	}
	m.el, m.props = el, el.Props

	var err error
	m.children, err = p.reconcile(m.children, el.Children)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// mountSlot reuses the instance retained under the slot uid, wherever it was in the previous
// pass.
func (p *renderPass) mountSlot(el *Element) (*mounted, error) {
	if p.tree.Slots.seen(el.Key) {
		return nil, fmt.Errorf("slot %q is used more than once", el.Key)
	}
	var prev []*mounted
	if m := p.tree.Slots.get(el.Key); m != nil {
		prev = m.children
	}

	s := &mounted{kind: SlotElement, key: el.Key, el: el}
	var err error
	s.children, err = p.reconcile(prev, el.Children)
	if err != nil {
		return nil, err
	}
	p.tree.Slots.put(el.Key, s)
	return s, nil
}

// unmount calls the Unmount hooks of m and its descendants, children first. Slots are owned by
// the slot registry and are released by unmountSlot when they are not rendered in a pass.
func (p *renderPass) unmount(m *mounted) {
	if m.kind == SlotElement {
		return
	}
	for _, c := range m.children {
		p.unmount(c)
	}
	if u, ok := m.comp.(Unmounter); ok {
		p.fail(m, "unmount", u.Unmount())
	}
}

// abort releases a pass that failed to reconcile. Matched instances were already updated and
// their child lists replaced, so the previous tree cannot be restored: every instance of the
// previous pass and every instance mounted by this one is unmounted and the tree starts empty.
func (p *renderPass) abort(prev []*mounted) {
	released := make(map[*mounted]bool)
	release := func(m *mounted) {
		if released[m] {
			return
		}
		released[m] = true
		if u, ok := m.comp.(Unmounter); ok {
			p.fail(m, "unmount", u.Unmount())
		}
	}
	for i := len(p.mounted) - 1; i >= 0; i-- {
		release(p.mounted[i])
	}
	for _, m := range prev {
		release(m)
	}

	p.tree.root = nil
	p.tree.Slots.begin()
	p.tree.Slots.sweep()
}

// instances appends ms and their descendants to out, children before parents.
func instances(ms []*mounted, out []*mounted) []*mounted {
	for _, m := range ms {
		out = instances(m.children, out)
		out = append(out, m)
	}
	return out
}

func (p *renderPass) unmountSlot(s *mounted) {
	for _, c := range s.children {
		p.unmount(c)
	}
}

func (p *renderPass) afterRender() {
	for _, u := range p.updated {
		if up, ok := u.m.comp.(Updater); ok {
			p.fail(u.m, "update", up.Update(u.prev))
		}
	}
	p.updated = nil
}

// render appends the output of m to parent.
func (p *renderPass) render(parent *html.Node, m *mounted, ctx map[string]any) error {
	switch m.kind {
	case TextElement:
		parent.AppendChild(&html.Node{Type: html.TextNode, Data: m.el.Text})
		return nil
	case RawElement:
		n := newHTMLElement(m.tag, m.el.Attr)
		if err := setInnerHTML(n, m.el.Text); err != nil {
			return fmt.Errorf("render %s: %w", m.tag, err)
		}
		parent.AppendChild(n)
		return nil
	case NativeElement:
		n := newHTMLElement(m.tag, m.el.Attr)
		for _, c := range m.children {
			if err := p.render(n, c, ctx); err != nil {
				return err
			}
		}
		parent.AppendChild(n)
		return nil
	case SlotElement:
		for _, c := range m.children {
			if err := p.render(parent, c, ctx); err != nil {
				return err
			}
		}
		return nil
	case ComponentElement:
		return p.renderComponent(parent, m, ctx)
	}
	return fmt.Errorf("render %s: unknown element kind %s", m.tag, m.kind)
}

func (p *renderPass) renderComponent(parent *html.Node, m *mounted, ctx map[string]any) error {
	childCtx := ctx
	if cp, ok := m.comp.(ContextProvider); ok {
		if provided := cp.ChildContext(); len(provided) > 0 {
			childCtx = make(map[string]any, len(ctx)+len(provided))
			for k, v := range ctx {
				childCtx[k] = v
			}
			for k, v := range provided {
				childCtx[k] = v
			}
		}
	}

	holder := &html.Node{Type: html.DocumentNode}
	for _, c := range m.children {
		if err := p.render(holder, c, childCtx); err != nil {
			return err
		}
	}
	var children []*html.Node
	for c := holder.FirstChild; c != nil; {
		next := c.NextSibling
		holder.RemoveChild(c)
		children = append(children, c)
		c = next
	}

	out, err := m.comp.Render(&Input{Props: m.props, Children: children, Context: ctx})
	if err != nil {
		return fmt.Errorf("render %s: %w", m.tag, err)
	}
	appendOutput(parent, out)
	return nil
}

// setInnerHTML replaces the children of n with the markup in inner. Content of raw text elements
// such as <style> is kept as a single text node, which html.Render writes unescaped.
func setInnerHTML(n *html.Node, inner string) error {
	if inner == "" {
		return nil
	}
	if isRawText(n.Data) {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: inner})
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(inner), &html.Node{
		Type:     html.ElementNode,
		DataAtom: n.DataAtom,
		Data:     n.Data,
	})
	if err != nil {
		return err
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// appendOutput appends n to parent. Document nodes are spliced in as fragments.
func appendOutput(parent, n *html.Node) {
	if n == nil {
		return
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	if n.Type != html.DocumentNode {
		parent.AppendChild(n)
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.AppendChild(c)
		c = next
	}
}

// SlotRegistry retains mounted instances under user chosen uids. An instance is kept as long as
// its slot is rendered in every pass, even when the slot moves to another parent.
type SlotRegistry struct {
	mu        sync.Mutex
	slots     map[string]*mounted
	seenInRun map[string]bool
}

// NewSlotRegistry returns an empty registry.
func NewSlotRegistry() *SlotRegistry {
	return &SlotRegistry{slots: make(map[string]*mounted), seenInRun: make(map[string]bool)}
}

// UIDs returns the uids of the retained slots, sorted.
func (r *SlotRegistry) UIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	uids := make([]string, 0, len(r.slots))
	for uid := range r.slots {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

func (r *SlotRegistry) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seenInRun = make(map[string]bool)
}

func (r *SlotRegistry) get(uid string) *mounted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[uid]
}

func (r *SlotRegistry) put(uid string, m *mounted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[uid] = m
	r.seenInRun[uid] = true
}

func (r *SlotRegistry) seen(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seenInRun[uid]
}

// sweep removes and returns the slots that were not rendered since begin.
func (r *SlotRegistry) sweep() []*mounted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var gone []*mounted
	for uid, m := range r.slots {
		if !r.seenInRun[uid] {
			gone = append(gone, m)
			delete(r.slots, uid)
		}
	}
	return gone
}

// RenderHTML writes the output of a render pass.
func RenderHTML(w io.Writer, doc *html.Node) error {
	return html.Render(w, doc)
}

// RenderString returns the output of a render pass as a string.
func RenderString(doc *html.Node) (string, error) {
	var sb strings.Builder
	if err := RenderHTML(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}
