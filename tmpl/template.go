package tmpl

import (
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// maxPartialDepth bounds nested partial inclusion, which also stops self-including partials.
const maxPartialDepth = 32

type partKind int

const (
	partText partKind = iota
	partExpr
	partRaw
	partPartial
)

type part struct {
	kind partKind
	text string      // literal text, expression source or partial name
	prog *vm.Program // compiled expression for partExpr and partRaw
}

// Template is a parsed template body. Expressions are compiled with the helpers of the scope
// that parsed the template.
type Template struct {
	source string
	parts  []part
}

// Source returns the template text the template was parsed from.
func (t *Template) Source() string {
	return t.source
}

// References returns the names of the partials included by the template, in order of
// appearance and without duplicates.
func (t *Template) References() []string {
	var refs []string
	seen := map[string]struct{}{}
	for _, p := range t.parts {
		if p.kind != partPartial {
			continue
		}
		if _, ok := seen[p.text]; ok {
			continue
		}
		seen[p.text] = struct{}{}
		refs = append(refs, p.text)
	}
	return refs
}

// parse lexes and compiles the source. Helpers are exposed to expressions as functions.
func parse(source string, helpers map[string]Helper) (*Template, error) {
	t := &Template{source: source}

	opts := []expr.Option{expr.AllowUndefinedVariables()}
	for name, fn := range helpers {
		opts = append(opts, expr.Function(name, fn))
	}

	for _, it := range lex(source) {
		switch it.typ {
		case itemError:
			return nil, errors.New(it.val)
		case itemEOF:
			return t, nil
		case itemComment:
			// dropped
		case itemText:
			t.parts = append(t.parts, part{kind: partText, text: it.val})
		case itemPartial:
			if strings.ContainsAny(it.val, " \t\r\n") {
				return nil, fmt.Errorf("invalid partial reference %q", it.val)
			}
			t.parts = append(t.parts, part{kind: partPartial, text: it.val})
		case itemExpr, itemRaw:
			// Sources taken from markup are serialized HTML, so a > b arrives as a &gt; b.
			prog, err := expr.Compile(html.UnescapeString(it.val), opts...)
			if err != nil {
				return nil, fmt.Errorf("compile expression %q: %w", it.val, err)
			}
			kind := partExpr
			if it.typ == itemRaw {
				kind = partRaw
			}
			t.parts = append(t.parts, part{kind: kind, text: it.val, prog: prog})
		}
	}
	return t, nil
}

// Compiled is a template bound to the scope it was compiled in. Partial references are
// resolved against that scope.
type Compiled struct {
	tpl   *Template
	scope *Scope
}

// Execute renders the template with the given data into w.
func (c *Compiled) Execute(w io.Writer, data map[string]any) error {
	if c == nil || c.tpl == nil {
		return nil
	}
	return c.scope.execute(w, c.tpl, data, 0)
}

// String renders the template with the given data and returns the result.
func (c *Compiled) String(data map[string]any) (string, error) {
	var sb strings.Builder
	if err := c.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (s *Scope) execute(w io.Writer, t *Template, data map[string]any, depth int) error {
	if depth > maxPartialDepth {
		return fmt.Errorf("partials nested deeper than %d levels", maxPartialDepth)
	}
	if data == nil {
		data = map[string]any{}
	}
	for _, p := range t.parts {
		var out string
		switch p.kind {
		case partText:
			out = p.text
		case partExpr, partRaw:
			v, err := expr.Run(p.prog, data)
			if err != nil {
				return fmt.Errorf("eval %q: %w", p.text, err)
			}
			if v != nil {
				out = fmt.Sprint(v)
			}
			if p.kind == partExpr {
				out = html.EscapeString(out)
			}
		case partPartial:
			pt, ok := s.partials[p.text]
			if !ok {
				return fmt.Errorf("partial %q is not registered", p.text)
			}
			if err := s.execute(w, pt, data, depth+1); err != nil {
				return fmt.Errorf("partial %q: %w", p.text, err)
			}
			continue
		}
		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	return nil
}
