package markup

import (
	"fmt"
	"strings"

	"github.com/researchspace/semantic-pages/tmpl"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ElementKind tells how an Element is rendered.
type ElementKind int

const (
	// NativeElement is a plain HTML element with attributes and children.
	NativeElement ElementKind = iota

	// TextElement is a text node.
	TextElement

	// RawElement is a container element whose inner HTML is Text, inserted without escaping.
	RawElement

	// ComponentElement is an instance of a component Class.
	ComponentElement

	// SlotElement retains the instance of its single child across render passes, keyed by Key.
	SlotElement
)

func (k ElementKind) String() string {
	switch k {
	case NativeElement:
		return "native"
	case TextElement:
		return "text"
	case RawElement:
		return "raw"
	case ComponentElement:
		return "component"
	case SlotElement:
		return "slot"
	default:
		return fmt.Sprintf("ElementKind(%d)", int(k))
	}
}

// Element describes what to render. Elements are produced by Parser.ParseHTML and consumed by
// Tree.Render; they are never mutated after creation.
type Element struct {
	Kind ElementKind

	// Tag is the element or component tag name.
	Tag string

	// Key identifies the element among its siblings for reconciliation. Slot elements use it
	// as the slot uid.
	Key string

	// Attr holds the attributes of native and raw elements.
	Attr []html.Attribute

	// Text is the content of text elements and the inner HTML of raw elements.
	Text string

	// Class and Props are set for component elements.
	Class *Class
	Props Props

	// Scope is the template scope of a component element.
	Scope *tmpl.Scope

	Children []*Element
}

// Text returns a text element.
func Text(s string) *Element {
	return &Element{Kind: TextElement, Text: s}
}

// Raw returns a container element with unescaped inner HTML.
func Raw(tag, inner string, attr ...html.Attribute) *Element {
	return &Element{Kind: RawElement, Tag: tag, Text: inner, Attr: attr}
}

// Native returns a plain HTML element.
func Native(tag string, attr []html.Attribute, children ...*Element) *Element {
	return &Element{Kind: NativeElement, Tag: tag, Attr: attr, Children: compact(children)}
}

// Slot wraps el so that its mounted instance is retained under uid across render passes.
func Slot(uid string, el *Element) *Element {
	return &Element{Kind: SlotElement, Key: uid, Children: compact([]*Element{el})}
}

// NewComponentElement returns an element instantiating class with props. The key is taken from
// props.
func NewComponentElement(tag string, class *Class, props Props, scope *tmpl.Scope, children []*Element) *Element {
	return &Element{
		Kind:     ComponentElement,
		Tag:      tag,
		Key:      props.Key(),
		Class:    class,
		Props:    props,
		Scope:    scope,
		Children: compact(children),
	}
}

// String returns a compact debug representation of the element tree.
func (e *Element) String() string {
	var sb strings.Builder
	e.debug(&sb)
	return sb.String()
}

func (e *Element) debug(sb *strings.Builder) {
	if e == nil {
		sb.WriteString("<nil>")
		return
	}
	switch e.Kind {
	case TextElement:
		fmt.Fprintf(sb, "%q", e.Text)
		return
	case RawElement:
		fmt.Fprintf(sb, "%s{raw %q}", e.Tag, e.Text)
		return
	case SlotElement:
		fmt.Fprintf(sb, "slot[%s](", e.Key)
	default:
		fmt.Fprintf(sb, "%s(", e.Tag)
	}
	for i, c := range e.Children {
		if i > 0 {
			sb.WriteString(" ")
		}
		c.debug(sb)
	}
	sb.WriteString(")")
}

func compact(els []*Element) []*Element {
	out := els[:0:0]
	for _, el := range els {
		if el != nil {
			out = append(out, el)
		}
	}
	return out
}

func newHTMLElement(tag string, attr []html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
		Attr:     append([]html.Attribute(nil), attr...),
	}
}
