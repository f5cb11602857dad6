package pages

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/researchspace/semantic-pages/markup"
	"github.com/researchspace/semantic-pages/tmpl"
)

// errorPage is the fallback page rendered when a page fails. It is a template executed with the
// error rather than a page parsed for components, so it renders even when the component pipeline
// is broken.
type errorPage struct {
	name     string
	compiled *tmpl.Compiled
}

func newErrorPage(fsys fs.FS, name string) (*errorPage, error) {
	src, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read error page %s: %w", name, err)
	}

	scope, err := tmpl.Create(tmpl.Options{Trace: tmpl.Trace{TemplateID: name}})
	if err != nil {
		return nil, err
	}
	c, err := scope.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile error page %s: %w", name, err)
	}
	return &errorPage{name: name, compiled: c}, nil
}

func (ep *errorPage) render(w io.Writer, r *http.Request, err error) error {
	var causes []string
	for _, c := range markup.Causes(err)[1:] {
		causes = append(causes, c.Error())
	}

	return ep.compiled.Execute(w, map[string]any{
		"error":  err.Error(),
		"causes": causes,
		"path":   r.URL.Path,
	})
}
