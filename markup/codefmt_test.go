package markup

import "testing"

func TestBeautifyHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline stays inline", `<b>hi</b>`, `<b>hi</b>`},
		{"nested blocks", `<div><p>a</p></div>`, "<div>\n  <p>\n    a\n  </p>\n</div>"},
		{
			"inline inside block",
			`<ul><li>one</li><li>two <em>x</em></li></ul>`,
			"<ul>\n  <li>\n    one\n  </li>\n  <li>\n    two <em>x</em>\n  </li>\n</ul>",
		},
		{"custom elements are blocks", `<my-comp a="1"></my-comp>`, "<my-comp a=\"1\">\n</my-comp>"},
		{"pre is verbatim", "<div><pre>  a\n  b</pre></div>", "<div>\n  <pre>  a\n  b</pre>\n</div>"},
		{"whitespace collapsed", "  <span>a   b</span>  ", `<span>a b</span>`},
		{"void block", `<div><hr></div>`, "<div>\n  <hr>\n</div>"},
		{"void inline", `<div><br><img src="a.png"></div>`, "<div>\n  <br><img src=\"a.png\">\n</div>"},
		{"comment", `<p>x</p><!-- c -->`, "<p>\n  x\n</p>\n<!-- c -->"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BeautifyHTML(tt.in); got != tt.want {
				t.Errorf("BeautifyHTML(%q) =\n%s\nwant\n%s", tt.in, got, tt.want)
			}
		})
	}
}
