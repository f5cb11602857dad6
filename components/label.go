package components

import (
	"strings"

	"github.com/researchspace/semantic-pages/markup"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Label renders the label of a resource. Without a label property the local name of the IRI is
// shown.
var Label = markup.NewClass("Label", renderLabel, map[string]markup.PropType{
	"iri":       markup.PropString,
	"label":     markup.PropString,
	"className": markup.PropString,
})

func renderLabel(in *markup.Input) (*html.Node, error) {
	iri, _ := in.Props.String("iri")
	label, _ := in.Props.String("label")
	if label == "" {
		label = localName(iri)
	}

	var attr []html.Attribute
	if iri != "" {
		attr = append(attr, html.Attribute{Key: "title", Val: iri})
	}
	n := element(atom.Span, classes("mp-label", in.Props), attr...)
	n.AppendChild(text(label))
	return n, nil
}

// localName returns the part of iri after the last '#' or '/'.
func localName(iri string) string {
	iri = strings.TrimRight(iri, "/#")
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}
