package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is one parsed HTML node. The tree is built by Parse and never mutated afterwards.
type Node struct {
	Parent   *Node
	Children []*Node

	Type     html.NodeType
	DataAtom atom.Atom

	// Name is the lower-cased tag name of an element node.
	Name string

	// Data is the content of a text or comment node.
	Data string

	// Attr lists the attributes in source order. Keys keep their original case, so
	// fixedKey stays fixedKey.
	Attr []html.Attribute
}

// IsElement reports whether n is an element node.
func (n *Node) IsElement() bool {
	return n != nil && n.Type == html.ElementNode
}

// IsWhitespace reports whether n is a text node made of whitespace only.
func (n *Node) IsWhitespace() bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Attribs returns the attributes as a fresh map.
func (n *Node) Attribs() map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}

// Attribute returns the value of the attribute key, compared case-insensitively.
func (n *Node) Attribute(key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// ParentName returns the tag name of the parent element, or "" for top-level nodes.
func (n *Node) ParentName() string {
	if n.Parent == nil {
		return ""
	}
	return n.Parent.Name
}

func (n *Node) appendChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// toHTML converts the subtree into a golang.org/x/net/html tree for serialization.
func (n *Node) toHTML() *html.Node {
	h := &html.Node{
		Type:     n.Type,
		DataAtom: n.DataAtom,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
	switch n.Type {
	case html.ElementNode:
		h.Data = n.Name
	default:
		h.Data = n.Data
	}
	for _, c := range n.Children {
		h.AppendChild(c.toHTML())
	}
	return h
}

// OuterHTML serializes the node and its subtree.
func (n *Node) OuterHTML() string {
	var sb strings.Builder
	_ = html.Render(&sb, n.toHTML())
	return sb.String()
}

// InnerHTML serializes the children of the node.
func (n *Node) InnerHTML() string {
	var sb strings.Builder
	if n.Type == html.ElementNode && isRawText(n.Name) {
		// html.Render writes raw text children of these elements verbatim only when it sees
		// the parent; render the parent-less text directly instead.
		for _, c := range n.Children {
			sb.WriteString(c.Data)
		}
		return sb.String()
	}
	for _, c := range n.Children {
		_ = html.Render(&sb, c.toHTML())
	}
	return sb.String()
}

func isRawText(name string) bool {
	switch name {
	case "style", "script", "xmp", "iframe", "noembed", "noframes", "plaintext":
		return true
	}
	return false
}

// nodeStack is a stack of open elements.
type nodeStack []*Node

// top returns the most recently pushed node, or nil if the stack is empty.
func (s *nodeStack) top() *Node {
	if i := len(*s); i > 0 {
		return (*s)[i-1]
	}
	return nil
}
