package components

import (
	"context"
	"testing"

	"github.com/researchspace/semantic-pages/markup"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, src string) string {
	t.Helper()

	store := markup.NewStore(nil, markup.NewBoundaryRegistry(nil, nil))
	require.NoError(t, Register(store))

	els, err := markup.NewParser(store, nil).ParseHTML(context.Background(), src)
	require.NoError(t, err)

	tree := markup.NewTree()
	defer tree.Close()
	doc, err := tree.Render(els)
	require.NoError(t, err)

	out, err := markup.RenderString(doc)
	require.NoError(t, err)
	return out
}

func TestComponents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"inline code",
			`<p>Use <code mode="go">x := &lt;-ch</code></p>`,
			`<p>Use <code class="mp-code-highlight" data-mode="go">x := &lt;-ch</code></p>`,
		},
		{
			"code block",
			`<mp-code-block mode="sparql" class="big">SELECT * WHERE {}</mp-code-block>`,
			`<pre class="mp-code-block big"><code class="language-sparql">SELECT * WHERE {}</code></pre>`,
		},
		{
			"code block without mode",
			`<mp-code-block>x</mp-code-block>`,
			`<pre class="mp-code-block"><code>x</code></pre>`,
		},
		{
			"code example",
			`<mp-code-example><b>hi</b></mp-code-example>`,
			`<div class="mp-code-example"><div class="mp-code-example__preview"><b>hi</b></div>` +
				`<details class="mp-code-example__source"><summary>Source</summary>` +
				`<pre><code class="language-html">&lt;b&gt;hi&lt;/b&gt;</code></pre></details></div>`,
		},
		{
			"code example shown by default",
			`<mp-code-example show-code-by-default="true">x</mp-code-example>`,
			`<div class="mp-code-example"><div class="mp-code-example__preview">x</div>` +
				`<details class="mp-code-example__source" open=""><summary>Source</summary>` +
				`<pre><code class="language-html">x</code></pre></details></div>`,
		},
		{
			"template",
			`<mp-template template="row" data='{"name": "<Alice>"}'><template id="row"><b>{{ name }}</b></template></mp-template>`,
			`<div class="mp-template"><b>&lt;Alice&gt;</b></div>`,
		},
		{
			"template including a partial",
			`<mp-template template="list" data='{"items": ["a", "b"]}'>` +
				`<template id="list"><ul>{{> count}}</ul></template>` +
				`<template id="count"><li>{{ len(items) }} items</li></template>` +
				`</mp-template>`,
			`<div class="mp-template"><ul><li>2 items</li></ul></div>`,
		},
		{
			"label from iri",
			`<mp-label iri="http://example.org/ns#Person"></mp-label>`,
			`<span class="mp-label" title="http://example.org/ns#Person">Person</span>`,
		},
		{
			"label",
			`<mp-label iri="http://example.org/p/1" label="Alice" class="strong"></mp-label>`,
			`<span class="mp-label strong" title="http://example.org/p/1">Alice</span>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, render(t, tt.src))
		})
	}
}

func TestTemplate_Errors(t *testing.T) {
	out := render(t, `<mp-template></mp-template>`)
	require.Contains(t, out, `class="mp-error-notification"`)
	require.Contains(t, out, "template property is required")

	out = render(t, `<mp-template template="missing"></mp-template>`)
	require.Contains(t, out, "Component Template failed to render")
	require.Contains(t, out, `partial &#34;missing&#34; is not registered`)
}

func TestLocalName(t *testing.T) {
	tests := map[string]string{
		"http://example.org/ns#Person": "Person",
		"http://example.org/people/1":  "1",
		"http://example.org/people/":   "people",
		"urn:isbn":                     "urn:isbn",
		"":                             "",
	}
	for iri, want := range tests {
		require.Equal(t, want, localName(iri), iri)
	}
}

func TestRegister(t *testing.T) {
	store := markup.NewStore(nil, nil)
	require.NoError(t, Register(store))
	require.Equal(t, []string{"mp-code-block", "mp-code-example", "mp-code-highlight", "mp-label", "mp-template"}, store.Tags())

	require.ErrorIs(t, Register(store), markup.ErrAlreadyRegistered)
}
