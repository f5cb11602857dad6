package tmpl

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultHelpers returns the helpers available in every scope. String helpers such as upper,
// lower or trim are expr builtins and need no helper.
func DefaultHelpers() map[string]Helper {
	return map[string]Helper{
		"json": func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("json: expected 1 argument, got %d", len(params))
			}
			b, err := json.Marshal(params[0])
			if err != nil {
				return nil, fmt.Errorf("json: %w", err)
			}
			return string(b), nil
		},
		"orDefault": func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("orDefault: expected 2 arguments, got %d", len(params))
			}
			if params[0] == nil || params[0] == "" {
				return params[1], nil
			}
			return params[0], nil
		},
		"capitalize": func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("capitalize: expected 1 argument, got %d", len(params))
			}
			if params[0] == nil {
				return "", nil
			}
			s := fmt.Sprint(params[0])
			r, size := utf8.DecodeRuneInString(s)
			if r == utf8.RuneError {
				return s, nil
			}
			return string(unicode.ToUpper(r)) + strings.ToLower(s[size:]), nil
		},
	}
}
