package markup

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	a "golang.org/x/net/html/atom"
)

// treeBuilder builds a Node tree from the tokens of golang.org/x/net/html. Unlike html.Parse it
// does not apply the browser insertion modes: the tree stays as close to the source as possible,
// so that <template> content, custom elements and self-closing tags appear where they were
// written.
type treeBuilder struct {
	tokenizer *html.Tokenizer
	doc       *Node
	oe        nodeStack
}

func (b *treeBuilder) top() *Node {
	if n := b.oe.top(); n != nil {
		return n
	}
	return b.doc
}

// addText appends text to the preceding text node, or adds a new text node.
func (b *treeBuilder) addText(text string) {
	if text == "" {
		return
	}
	t := b.top()
	if l := len(t.Children); l > 0 && t.Children[l-1].Type == html.TextNode {
		t.Children[l-1].Data += text
		return
	}
	t.appendChild(&Node{Type: html.TextNode, Data: text})
}

func (b *treeBuilder) addElement(tok html.Token, raw []byte, selfClosing bool) {
	n := &Node{
		Type:     html.ElementNode,
		DataAtom: tok.DataAtom,
		Name:     tok.Data,
		Attr:     restoreAttrCase(tok.Attr, scanAttrNames(raw)),
	}
	b.top().appendChild(n)

	if selfClosing || isVoid(tok.DataAtom) {
		return
	}
	b.oe = append(b.oe, n)

	// Parse <noscript> content as markup rather than raw text.
	if tok.DataAtom == a.Noscript {
		b.tokenizer.NextIsNotRawText()
	}
}

// closeElement pops the open elements up to and including the nearest element named name.
// An end tag without a matching open element is ignored.
func (b *treeBuilder) closeElement(name string) {
	for i := len(b.oe) - 1; i >= 0; i-- {
		if b.oe[i].Name == name {
			b.oe = b.oe[:i]
			return
		}
	}
}

func (b *treeBuilder) parse() error {
	for {
		tt := b.tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := b.tokenizer.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.TextToken:
			d := strings.ReplaceAll(b.tokenizer.Token().Data, "\x00", "")
			b.addText(d)
		case html.StartTagToken, html.SelfClosingTagToken:
			// Raw is only valid until Token is called.
			raw := append([]byte(nil), b.tokenizer.Raw()...)
			b.addElement(b.tokenizer.Token(), raw, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			b.closeElement(b.tokenizer.Token().Data)
		case html.CommentToken:
			b.top().appendChild(&Node{Type: html.CommentNode, Data: b.tokenizer.Token().Data})
		case html.DoctypeToken:
			// fragments carry no doctype
		}
	}
}

// Parse returns the parsed *Node tree for the HTML from the given Reader. The returned node is a
// document node whose children are the top-level nodes of the input. The input is assumed to be
// UTF-8 encoded.
func Parse(r io.Reader) (*Node, error) {
	b := &treeBuilder{
		tokenizer: html.NewTokenizer(r),
		doc:       &Node{Type: html.DocumentNode},
	}
	if err := b.parse(); err != nil {
		return nil, fmt.Errorf("tokenize html: %w", err)
	}
	return b.doc, nil
}

func isVoid(t a.Atom) bool {
	switch t {
	case a.Area, a.Base, a.Br, a.Col, a.Embed, a.Hr, a.Img, a.Input, a.Keygen, a.Link, a.Meta,
		a.Param, a.Source, a.Track, a.Wbr:
		return true
	}
	return false
}

// restoreAttrCase replaces the lower-cased keys produced by the tokenizer with the keys as they
// were written, when the raw scan agrees with the tokenizer on the attribute list.
func restoreAttrCase(attrs []html.Attribute, names []string) []html.Attribute {
	out := make([]html.Attribute, len(attrs))
	copy(out, attrs)
	if len(names) != len(attrs) {
		return out
	}
	for i := range out {
		if strings.EqualFold(out[i].Key, names[i]) {
			out[i].Key = names[i]
		}
	}
	return out
}

// scanAttrNames scans the raw start tag token and returns the attribute names in source order
// with their original case.
func scanAttrNames(raw []byte) []string {
	var names []string

	pos := 0
	if pos < len(raw) && raw[pos] == '<' {
		pos++
	}
	// Skip tag name
	for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
		pos++
	}

	for pos < len(raw) {
		for pos < len(raw) && (isAttrSpace(raw[pos]) || raw[pos] == '/') {
			pos++
		}
		if pos >= len(raw) || raw[pos] == '>' {
			break
		}

		// An attribute name may start with '=' per the tokenizer rules.
		start := pos
		pos++
		for pos < len(raw) && raw[pos] != '=' && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
			pos++
		}
		names = append(names, string(raw[start:pos]))

		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) || raw[pos] != '=' {
			continue // attribute without value
		}
		pos++ // skip '='
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) {
			break
		}

		if q := raw[pos]; q == '"' || q == '\'' {
			pos++
			for pos < len(raw) && raw[pos] != q {
				pos++
			}
			pos++ // skip closing quote
		} else {
			for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' {
				pos++
			}
		}
	}

	return names
}

func isAttrSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
