// Package components holds the built-in components of semantic pages.
package components

import (
	"errors"

	"github.com/researchspace/semantic-pages/markup"
)

// Builtins maps the tags of the built-in components to their classes.
func Builtins() map[string]*markup.Class {
	return map[string]*markup.Class{
		markup.CodeExampleTag:   CodeExample,
		markup.CodeHighlightTag: CodeHighlight,
		markup.CodeBlockTag:     CodeBlock,
		"mp-template":           Template,
		"mp-label":              Label,
	}
}

// Register adds the built-in components to store.
func Register(store *markup.Store) error {
	var errs []error
	for tag, c := range Builtins() {
		errs = append(errs, store.Register(tag, c))
	}
	return errors.Join(errs...)
}
