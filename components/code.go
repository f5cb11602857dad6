package components

import (
	"strings"

	"github.com/researchspace/semantic-pages/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var codePropTypes = map[string]markup.PropType{
	"codeText":  markup.PropString,
	"mode":      markup.PropString,
	"className": markup.PropString,
}

// CodeHighlight renders inline code, e.g. <code>x := 1</code>.
var CodeHighlight = markup.NewClass("CodeHighlight", renderCodeHighlight, codePropTypes)

// CodeBlock renders a block of code with an optional language mode.
var CodeBlock = markup.NewClass("CodeBlock", renderCodeBlock, codePropTypes)

// CodeExample renders markup both as a preview and as highlighted source.
var CodeExample = markup.NewClass("CodeExample", renderCodeExample, map[string]markup.PropType{
	"codeText":          markup.PropString,
	"showCodeByDefault": markup.PropBool,
	"className":         markup.PropString,
})

func renderCodeHighlight(in *markup.Input) (*html.Node, error) {
	code, _ := in.Props.String("codeText")
	n := element(atom.Code, classes("mp-code-highlight", in.Props), modeAttr(in.Props)...)
	n.AppendChild(text(code))
	return n, nil
}

func renderCodeBlock(in *markup.Input) (*html.Node, error) {
	code, _ := in.Props.String("codeText")
	pre := element(atom.Pre, classes("mp-code-block", in.Props))
	c := element(atom.Code, languageClass(in.Props))
	c.AppendChild(text(code))
	pre.AppendChild(c)
	return pre, nil
}

// renderCodeExample shows the code as static markup next to its source. Components inside the
// example are not resolved.
func renderCodeExample(in *markup.Input) (*html.Node, error) {
	code, _ := in.Props.String("codeText")

	root := element(atom.Div, classes("mp-code-example", in.Props))

	preview := element(atom.Div, "mp-code-example__preview")
	nodes, err := html.ParseFragment(strings.NewReader(code), preview)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		preview.AppendChild(n)
	}
	root.AppendChild(preview)

	details := element(atom.Details, "mp-code-example__source")
	if in.Props.Bool("showCodeByDefault") {
		details.Attr = append(details.Attr, html.Attribute{Key: "open"})
	}
	summary := element(atom.Summary, "")
	summary.AppendChild(text("Source"))
	details.AppendChild(summary)

	pre := element(atom.Pre, "")
	c := element(atom.Code, "language-html")
	c.AppendChild(text(code))
	pre.AppendChild(c)
	details.AppendChild(pre)
	root.AppendChild(details)

	return root, nil
}

func modeAttr(p markup.Props) []html.Attribute {
	if mode, ok := p.String("mode"); ok && mode != "" {
		return []html.Attribute{{Key: "data-mode", Val: mode}}
	}
	return nil
}

func languageClass(p markup.Props) string {
	if mode, ok := p.String("mode"); ok && mode != "" {
		return "language-" + mode
	}
	return ""
}
