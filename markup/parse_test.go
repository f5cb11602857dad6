package markup

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// dump returns a compact representation of the tree for comparisons.
func dump(n *Node) string {
	var sb strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(strconv.Quote(n.Data))
			return
		case html.CommentNode:
			sb.WriteString("<!--" + n.Data + "-->")
			return
		case html.ElementNode:
			sb.WriteString(n.Name)
			for _, a := range n.Attr {
				sb.WriteString("[" + a.Key + "=" + a.Val + "]")
			}
		}
		sb.WriteString("(")
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteString(" ")
			}
			walk(c)
		}
		sb.WriteString(")")
	}
	walk(n)
	return sb.String()
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"attribute case is kept",
			`<my-comp fixedKey="a" Data-X='b'></my-comp>`,
			`(my-comp[fixedKey=a][Data-X=b]())`,
		},
		{
			"self-closing custom element",
			`<div><my-comp key="1"/><p>x</p></div>`,
			`(div(my-comp[key=1]() p("x")))`,
		},
		{
			"void elements",
			`<p>a<br>b<img src="x.png">c</p>`,
			`(p("a" br() "b" img[src=x.png]() "c"))`,
		},
		{
			"comments",
			`<div><!-- note --></div>`,
			`(div(<!-- note -->))`,
		},
		{
			"template content stays in place",
			`<template id="t"><tr><td>x</td></tr></template>`,
			`(template[id=t](tr(td("x"))))`,
		},
		{
			"entities are decoded",
			`<p title="a &amp; b">1 &lt; 2</p>`,
			`(p[title=a & b]("1 < 2"))`,
		},
		{
			"style is raw text",
			`<style>a > b { color: red }</style>`,
			`(style("a > b { color: red }"))`,
		},
		{
			"noscript content is markup",
			`<noscript><b>x</b></noscript>`,
			`(noscript(b("x")))`,
		},
		{
			"stray end tags are ignored",
			`<div>a</span>b</div>c`,
			`(div("ab") "c")`,
		},
		{
			"unclosed elements end at eof",
			`<div><p>a`,
			`(div(p("a")))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(strings.NewReader(tt.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, dump(doc)); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParse_Parents(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<code><b>x</b></code>`))
	require.NoError(t, err)

	code := doc.Children[0]
	require.Equal(t, "", code.ParentName())
	require.Equal(t, "code", code.Children[0].ParentName())
	require.Equal(t, "b", code.Children[0].Children[0].ParentName())
}

func TestNode_HTML(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<p class="x">a &amp; b<br></p><style>a > b {}</style>`))
	require.NoError(t, err)

	require.Equal(t, `<p class="x">a &amp; b<br/></p>`, doc.Children[0].OuterHTML())
	require.Equal(t, `a &amp; b<br/>`, doc.Children[0].InnerHTML())
	require.Equal(t, `a > b {}`, doc.Children[1].InnerHTML())

	v, ok := doc.Children[0].Attribute("CLASS")
	require.True(t, ok)
	require.Equal(t, "x", v)
	require.Equal(t, map[string]string{"class": "x"}, doc.Children[0].Attribs())
}

func TestScanAttrNames(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{`<a href="x" data-Foo=bar disabled>`, []string{"href", "data-Foo", "disabled"}},
		{`<a x = 'y z' B>`, []string{"x", "B"}},
		{`<my-comp fixedKey="a"/>`, []string{"fixedKey"}},
		{`<br>`, nil},
		{`<a title="x>y" Id=1>`, []string{"title", "Id"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, scanAttrNames([]byte(tt.raw))); diff != "" {
				t.Errorf("scanAttrNames(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}
