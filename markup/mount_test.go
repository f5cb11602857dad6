package markup

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type lifecycleLog struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycleLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

// take returns the events recorded since the previous call.
func (l *lifecycleLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := l.events
	l.events = nil
	return ev
}

// probe records its lifecycle and renders a span identifying the instance.
type probe struct {
	id       int
	log      *lifecycleLog
	mountErr error
}

func probeClass(log *lifecycleLog, mountErr error) *Class {
	var n int
	return &Class{Name: "Probe", New: func() Component {
		n++
		log.add("new %d", n)
		return &probe{id: n, log: log, mountErr: mountErr}
	}}
}

func label(p Props) string {
	s, _ := p.String("label")
	return s
}

func (p *probe) Mount(props Props) error {
	p.log.add("mount %d %s", p.id, label(props))
	return p.mountErr
}

func (p *probe) WillUpdate(next Props) error {
	p.log.add("will-update %d %s", p.id, label(next))
	return nil
}

func (p *probe) Update(prev Props) error {
	p.log.add("update %d %s", p.id, label(prev))
	return nil
}

func (p *probe) Unmount() error {
	p.log.add("unmount %d", p.id)
	return nil
}

func (p *probe) Render(in *Input) (*html.Node, error) {
	p.log.add("render %d %s", p.id, label(in.Props))
	attr := []html.Attribute{
		{Key: "data-instance", Val: strconv.Itoa(p.id)},
		{Key: "data-label", Val: label(in.Props)},
	}
	if theme, ok := in.Context["theme"].(string); ok {
		attr = append(attr, html.Attribute{Key: "data-theme", Val: theme})
	}
	n := newHTMLElement("span", attr)
	for _, c := range in.Children {
		n.AppendChild(c)
	}
	return n, nil
}

// themeProvider passes a theme to its descendants.
type themeProvider struct{}

func (themeProvider) ChildContext() map[string]any {
	return map[string]any{"theme": "dark"}
}

func (themeProvider) Render(in *Input) (*html.Node, error) {
	n := newHTMLElement("section", nil)
	if _, ok := in.Context["theme"]; ok {
		n.Attr = append(n.Attr, html.Attribute{Key: "data-leaked", Val: "true"})
	}
	for _, c := range in.Children {
		n.AppendChild(c)
	}
	return n, nil
}

func probeEl(c *Class, key, lbl string, children ...*Element) *Element {
	return NewComponentElement("x-probe", c, Props{"key": key, "label": lbl}, nil, children)
}

func div(id string, children ...*Element) *Element {
	return Native("div", []html.Attribute{{Key: "id", Val: id}}, children...)
}

func renderString(t *testing.T, tree *Tree, els ...*Element) string {
	t.Helper()
	doc, err := tree.Render(els)
	require.NoError(t, err)
	out, err := RenderString(doc)
	require.NoError(t, err)
	return out
}

func requireEvents(t *testing.T, log *lifecycleLog, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, log.take()); diff != "" {
		t.Errorf("lifecycle mismatch (-want +got):\n%s", diff)
	}
}

func TestTree_UpdateReusesInstance(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	out := renderString(t, tree, div("main", probeEl(c, "a", "x")))
	require.Equal(t, `<div id="main"><span data-instance="1" data-label="x"></span></div>`, out)
	requireEvents(t, log, "new 1", "mount 1 x", "render 1 x")

	out = renderString(t, tree, div("main", probeEl(c, "a", "y")))
	require.Equal(t, `<div id="main"><span data-instance="1" data-label="y"></span></div>`, out)
	requireEvents(t, log, "will-update 1 y", "render 1 y", "update 1 x")
}

func TestTree_KeyChangeRemounts(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	renderString(t, tree, probeEl(c, "a", "x"))
	log.take()

	out := renderString(t, tree, probeEl(c, "b", "x"))
	require.Equal(t, `<span data-instance="2" data-label="x"></span>`, out)
	requireEvents(t, log, "new 2", "mount 2 x", "unmount 1", "render 2 x")
}

func TestTree_KeyedReorder(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	renderString(t, tree, probeEl(c, "a", "a"), probeEl(c, "b", "b"))
	log.take()

	out := renderString(t, tree, probeEl(c, "b", "b"), probeEl(c, "a", "a"))
	require.Equal(t, `<span data-instance="2" data-label="b"></span><span data-instance="1" data-label="a"></span>`, out)
	for _, ev := range log.take() {
		require.NotContains(t, ev, "new")
		require.NotContains(t, ev, "unmount")
	}
}

func TestTree_UnkeyedMatchInOrder(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	renderString(t, tree, probeEl(c, "", "a"), probeEl(c, "", "b"))
	log.take()

	out := renderString(t, tree, probeEl(c, "", "c"))
	require.Equal(t, `<span data-instance="1" data-label="c"></span>`, out)
	requireEvents(t, log, "will-update 1 c", "unmount 2", "render 1 c", "update 1 a")
}

func TestTree_SlotMovesBetweenParents(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	out := renderString(t, tree, div("left", Slot("w1", probeEl(c, "", "x"))), div("right"))
	require.Equal(t, `<div id="left"><span data-instance="1" data-label="x"></span></div><div id="right"></div>`, out)
	require.Equal(t, []string{"w1"}, tree.Slots.UIDs())
	log.take()

	out = renderString(t, tree, div("left"), div("right", Slot("w1", probeEl(c, "", "x"))))
	require.Equal(t, `<div id="left"></div><div id="right"><span data-instance="1" data-label="x"></span></div>`, out)
	requireEvents(t, log, "will-update 1 x", "render 1 x", "update 1 x")

	out = renderString(t, tree, div("left"), div("right"))
	require.Equal(t, `<div id="left"></div><div id="right"></div>`, out)
	requireEvents(t, log, "unmount 1")
	require.Empty(t, tree.Slots.UIDs())
}

func TestTree_SlotParentRemoved(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	inner := probeEl(c, "inner", "x", Slot("w1", probeEl(c, "", "y")))
	renderString(t, tree, inner)
	log.take()

	// The slot survives its former parent.
	renderString(t, tree, Slot("w1", probeEl(c, "", "y")))
	requireEvents(t, log, "will-update 2 y", "unmount 1", "render 2 y", "update 2 y")
}

func TestTree_DuplicateSlot(t *testing.T) {
	c := probeClass(&lifecycleLog{}, nil)
	tree := NewTree()

	_, err := tree.Render([]*Element{Slot("w1", probeEl(c, "", "a")), Slot("w1", probeEl(c, "", "b"))})
	require.ErrorContains(t, err, `slot "w1" is used more than once`)
}

func TestTree_FailedPassUnmounts(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	_, err := tree.Render([]*Element{
		probeEl(c, "a", "x"),
		Slot("w1", probeEl(c, "", "s")),
		Slot("w1", probeEl(c, "", "t")),
	})
	require.ErrorContains(t, err, `slot "w1" is used more than once`)
	requireEvents(t, log, "new 1", "mount 1 x", "new 2", "mount 2 s", "unmount 2", "unmount 1")
	require.Empty(t, tree.Slots.UIDs())

	require.NoError(t, tree.Close())
	requireEvents(t, log)
}

func TestTree_FailedPassReleasesPreviousTree(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	renderString(t, tree, probeEl(c, "a", "x"), Slot("w1", probeEl(c, "", "s")))
	log.take()

	_, err := tree.Render([]*Element{
		probeEl(c, "a", "x2"),
		probeEl(c, "b", "y"),
		Slot("w2", probeEl(c, "", "t")),
		Slot("w2", probeEl(c, "", "u")),
	})
	require.Error(t, err)
	requireEvents(t, log,
		"will-update 1 x2", "new 3", "mount 3 y", "new 4", "mount 4 t",
		"unmount 4", "unmount 3", "unmount 1", "unmount 2")
	require.Empty(t, tree.Slots.UIDs())

	require.NoError(t, tree.Close())
	requireEvents(t, log)

	out := renderString(t, tree, probeEl(c, "a", "x"))
	require.Equal(t, `<span data-instance="5" data-label="x"></span>`, out)
}

func TestTree_Context(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	provider := &Class{Name: "ThemeProvider", New: func() Component { return themeProvider{} }}
	tree := NewTree()

	out := renderString(t, tree,
		NewComponentElement("x-theme", provider, Props{}, nil, []*Element{div("d", probeEl(c, "", "x"))}),
		probeEl(c, "", "outside"),
	)
	require.Equal(t,
		`<section><div id="d"><span data-instance="1" data-label="x" data-theme="dark"></span></div></section>`+
			`<span data-instance="2" data-label="outside"></span>`,
		out)
}

func TestTree_Close(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, nil)
	tree := NewTree()

	renderString(t, tree, probeEl(c, "a", "x", probeEl(c, "b", "y")), Slot("w1", probeEl(c, "", "z")))
	log.take()

	require.NoError(t, tree.Close())
	requireEvents(t, log, "unmount 2", "unmount 1", "unmount 3")
	require.Empty(t, tree.Slots.UIDs())
}

func TestTree_LifecycleErrors(t *testing.T) {
	log := &lifecycleLog{}
	c := probeClass(log, errors.New("no data source"))
	tree := NewTree()

	doc, err := tree.Render([]*Element{probeEl(c, "a", "x")})
	require.ErrorContains(t, err, "mount x-probe: no data source")
	require.NotNil(t, doc)

	out, err := RenderString(doc)
	require.NoError(t, err)
	require.Equal(t, `<span data-instance="1" data-label="x"></span>`, out)
}

func TestTree_MissingClass(t *testing.T) {
	tree := NewTree()
	_, err := tree.Render([]*Element{NewComponentElement("x-none", nil, Props{}, nil, nil)})
	require.ErrorContains(t, err, "element has no component class")
}

func TestTree_TextAndRaw(t *testing.T) {
	tree := NewTree()

	out := renderString(t, tree,
		Text("a < b"),
		Raw("style", ".a > b { color: red }"),
		Raw("div", `<b class="x">bold</b>`, html.Attribute{Key: "class", Val: "widget"}),
		Native("p", nil, Text("c")),
	)
	require.Equal(t,
		`a &lt; b<style>.a > b { color: red }</style><div class="widget"><b class="x">bold</b></div><p>c</p>`,
		out)
}

func TestTree_FragmentOutput(t *testing.T) {
	frag := NewClass("Fragment", func(in *Input) (*html.Node, error) {
		doc := &html.Node{Type: html.DocumentNode}
		doc.AppendChild(&html.Node{Type: html.TextNode, Data: "a"})
		doc.AppendChild(newHTMLElement("br", nil))
		doc.AppendChild(&html.Node{Type: html.TextNode, Data: "b"})
		return doc, nil
	}, nil)
	empty := NewClass("Empty", func(in *Input) (*html.Node, error) { return nil, nil }, nil)

	out := renderString(t, NewTree(),
		Native("p", nil,
			NewComponentElement("x-frag", frag, Props{}, nil, nil),
			NewComponentElement("x-empty", empty, Props{}, nil, nil),
		),
	)
	require.Equal(t, `<p>a<br/>b</p>`, out)
}
