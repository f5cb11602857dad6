package components

import (
	"strings"

	"github.com/researchspace/semantic-pages/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(a atom.Atom, class string, attr ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	n.Attr = append(n.Attr, attr...)
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// classes joins base with the className property.
func classes(base string, p markup.Props) string {
	if cn, ok := p.String("className"); ok && strings.TrimSpace(cn) != "" {
		return base + " " + strings.TrimSpace(cn)
	}
	return base
}
