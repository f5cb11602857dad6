package markup

import (
	"fmt"

	"github.com/researchspace/semantic-pages/tmpl"
	"golang.org/x/net/html"
)

// IsTemplate reports whether n declares a template partial: a <template> element with an id.
func IsTemplate(n *Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Name != "template" {
		return false
	}
	id, ok := n.Attribute("id")
	return ok && id != ""
}

// ExtractTemplates returns the template declarations among the direct children of n, in document
// order. The source of a declaration is the inner HTML of its <template> element.
func ExtractTemplates(n *Node) []tmpl.Declaration {
	var decls []tmpl.Declaration
	for _, c := range n.Children {
		if !IsTemplate(c) {
			continue
		}
		id, _ := c.Attribute("id")
		decls = append(decls, tmpl.Declaration{ID: id, Source: c.InnerHTML()})
	}
	return decls
}

// ExtractTemplateScope builds a scope holding the template partials declared in n, derived from
// the default scope. It returns nil when n declares no templates.
func ExtractTemplateScope(n *Node) (*tmpl.Scope, error) {
	decls := ExtractTemplates(n)
	if len(decls) == 0 {
		return nil, nil
	}

	b := tmpl.Default.Builder()
	for _, d := range decls {
		if err := b.RegisterPartial(d.ID, d.Source); err != nil {
			return nil, &WrappingError{
				Message: fmt.Sprintf("Failed to register <template id='%s'>", d.ID),
				Cause:   err,
			}
		}
	}
	return b.Build(), nil
}
