package components

import (
	"fmt"
	"strings"

	"github.com/researchspace/semantic-pages/markup"
	"github.com/researchspace/semantic-pages/tmpl"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Template renders a partial declared in the markup around it:
//
//	<mp-template template="row" data='{"name": "Alice"}'>
//	  <template id="row"><b>{{ name }}</b></template>
//	</mp-template>
//
// The render context of ancestors is available to the partial under "context".
var Template = &markup.Class{
	Name: "Template",
	New:  func() markup.Component { return &templateComponent{} },
	PropTypes: map[string]markup.PropType{
		"template":                     markup.PropString,
		"data":                         markup.PropObject,
		"className":                    markup.PropString,
		markup.MarkupTemplateScopeProp: markup.PropTemplateScope,
	},
}

type templateComponent struct {
	compiled *tmpl.Compiled
	source   string
}

var _ markup.Mounter = (*templateComponent)(nil)
var _ markup.PreUpdater = (*templateComponent)(nil)

func (c *templateComponent) Mount(props markup.Props) error {
	return c.compile(props)
}

func (c *templateComponent) WillUpdate(next markup.Props) error {
	return c.compile(next)
}

func (c *templateComponent) compile(props markup.Props) error {
	id, ok := props.String("template")
	if !ok || id == "" {
		return fmt.Errorf("template property is required")
	}
	scope, _ := props[markup.MarkupTemplateScopeProp].(*tmpl.Scope)
	if scope == nil {
		scope = tmpl.Default
	}

	source := "{{> " + id + "}}"
	if c.compiled != nil && c.source == source {
		return nil
	}
	compiled, err := scope.Compile(source)
	if err != nil {
		return fmt.Errorf("compile template %q: %w", id, err)
	}
	c.compiled, c.source = compiled, source
	return nil
}

func (c *templateComponent) Render(in *markup.Input) (*html.Node, error) {
	if c.compiled == nil {
		if err := c.compile(in.Props); err != nil {
			return nil, err
		}
	}

	data := map[string]any{"context": in.Context}
	if d, ok := in.Props["data"].(map[string]any); ok {
		for k, v := range d {
			data[k] = v
		}
	}

	out, err := c.compiled.String(data)
	if err != nil {
		return nil, err
	}

	root := element(atom.Div, classes("mp-template", in.Props))
	nodes, err := html.ParseFragment(strings.NewReader(out), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}
