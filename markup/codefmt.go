package markup

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// blockElements start on their own line and indent their content when code is beautified.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"dd": true, "details": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "head": true, "header": true, "hr": true,
	"html": true, "li": true, "link": true, "main": true, "meta": true, "nav": true, "ol": true,
	"p": true, "section": true, "summary": true, "table": true, "tbody": true, "td": true,
	"template": true, "tfoot": true, "th": true, "thead": true, "tr": true, "ul": true,
}

// verbatimElements keep their content untouched.
var verbatimElements = map[string]bool{
	"pre": true, "script": true, "style": true, "textarea": true,
}

// BeautifyHTML indents markup for display. Block elements and custom elements go on their own
// lines, inline elements and text stay on the line they belong to. Tokens are written as in the
// source, only whitespace between them changes.
func BeautifyHTML(src string) string {
	f := &codeFormatter{}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())

		if f.verbatim > 0 {
			if tt == html.EndTagToken {
				name, _ := z.TagName()
				if verbatimElements[string(name)] {
					f.verbatim--
				}
			}
			f.write(raw)
			continue
		}

		switch tt {
		case html.TextToken:
			f.text(raw)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !isBlock(tag) {
				f.indent()
				f.write(raw)
				if tt == html.StartTagToken && verbatimElements[tag] {
					f.verbatim++
				}
				continue
			}
			f.newline()
			f.indent()
			f.write(raw)
			f.newline()
			if tt == html.StartTagToken && !isVoidName(tag) {
				f.depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if !isBlock(string(name)) {
				f.indent()
				f.write(raw)
				continue
			}
			f.newline()
			if f.depth > 0 {
				f.depth--
			}
			f.indent()
			f.write(raw)
			f.newline()
		case html.CommentToken, html.DoctypeToken:
			f.newline()
			f.indent()
			f.write(raw)
			f.newline()
		}
	}
	return strings.TrimSpace(f.buf.String())
}

func isBlock(tag string) bool {
	return blockElements[tag] || strings.Contains(tag, "-")
}

func isVoidName(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "keygen", "link", "meta",
		"param", "source", "track", "wbr":
		return true
	}
	return false
}

type codeFormatter struct {
	buf       bytes.Buffer
	depth     int
	verbatim  int
	lineStart bool
}

func (f *codeFormatter) write(s string) {
	f.buf.WriteString(s)
	f.lineStart = false
}

func (f *codeFormatter) newline() {
	if f.buf.Len() == 0 || f.lineStart {
		return
	}
	b := bytes.TrimRight(f.buf.Bytes(), " \t")
	f.buf.Truncate(len(b))
	f.buf.WriteByte('\n')
	f.lineStart = true
}

func (f *codeFormatter) indent() {
	if f.lineStart {
		f.buf.WriteString(strings.Repeat("  ", f.depth))
		f.lineStart = false
	}
}

// text writes s with whitespace runs collapsed to a single space. Leading whitespace is dropped
// at the start of a line.
func (f *codeFormatter) text(s string) {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		if s != "" && !f.lineStart && f.buf.Len() > 0 {
			f.buf.WriteByte(' ')
		}
		return
	}
	if startsWithSpace(s) && !f.lineStart && f.buf.Len() > 0 {
		collapsed = " " + collapsed
	}
	if endsWithSpace(s) {
		collapsed += " "
	}
	f.indent()
	f.write(collapsed)
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n\f") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n\f") != s
}
