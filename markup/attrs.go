package markup

import (
	"encoding/json"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
)

// RawStyleAttribute is the property that keeps the original style attribute. The style property
// itself holds the parsed declarations, but components that manage DOM outside of this tree need
// the CSS text as written.
const RawStyleAttribute = "__style"

var (
	attrPrefixRegex   = regexp.MustCompile(`(?i)^(x|data)[-_:]`)
	attrSeparatorRe   = regexp.MustCompile(`[-_:](.)`)
	jsonObjectRegex   = regexp.MustCompile(`^\{.*\}$`)
	jsonArrayRegex    = regexp.MustCompile(`^\[.*\]$`)
	lineBreaksReplace = strings.NewReplacer("\r\n", "", "\n", "", "\r", "", "\t", "")
)

// HTMLAttributesToProps converts raw HTML attributes into component properties. It does not
// modify attribs and always returns a new map.
func HTMLAttributesToProps(attribs map[string]string) (Props, error) {
	props := make(Props, len(attribs))
	for key, val := range attribs {
		if key == "style" {
			raw := html.UnescapeString(val)
			props[AttributeName(key)] = ParseStyle(raw)
			props[RawStyleAttribute] = raw
			continue
		}
		v, err := AttributeValue(key, val)
		if err != nil {
			return nil, err
		}
		props[AttributeName(key)] = v
	}
	return props, nil
}

// AttributeName maps an HTML attribute name to a property name: class becomes className, a
// leading x- or data- prefix is dropped and the remaining separators are camelCased.
// data-flex-layout and data-flex-self are kept as is for CSS layout libraries.
func AttributeName(name string) string {
	switch name {
	case "class":
		return "className"
	case "data-flex-layout", "data-flex-self":
		return name
	}
	name = attrPrefixRegex.ReplaceAllString(name, "")
	return attrSeparatorRe.ReplaceAllStringFunc(name, func(m string) string {
		return strings.ToUpper(m[1:])
	})
}

// AttributeValue decodes HTML entities in val and coerces the result to a boolean, a number or a
// JSON value when it looks like one. Values wrapped in {{ }} are template expressions and stay
// strings. The empty string stays a string.
func AttributeValue(name, val string) (any, error) {
	decoded := html.UnescapeString(val)

	if decoded == "true" || decoded == "false" {
		return decoded == "true", nil
	}
	if decoded != "" {
		if f, ok := parseNumber(decoded); ok {
			return f, nil
		}
	}
	return parseJSONValue(name, decoded)
}

// parseNumber mirrors the numeric conversion of a string in a browser: surrounding whitespace
// is ignored, and hexadecimal, octal and binary literals are accepted.
func parseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if len(t) > 2 && t[0] == '0' {
		base := 0
		switch t[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(t[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	// Reject forms that ParseFloat accepts but a browser does not.
	if strings.ContainsAny(t, "_xXpP") || strings.EqualFold(strings.TrimLeft(t, "+-"), "inf") ||
		strings.EqualFold(strings.TrimLeft(t, "+-"), "infinity") || strings.EqualFold(t, "nan") {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseJSONValue(name, value string) (any, error) {
	if value == "" {
		return value, nil
	}

	flat := lineBreaksReplace.Replace(value)
	match := jsonObjectRegex.FindString(flat)
	if match == "" {
		match = jsonArrayRegex.FindString(flat)
	}
	mustache := strings.HasPrefix(flat, "{{") && strings.HasSuffix(flat, "}}")
	if match == "" || mustache {
		return value, nil
	}

	var v any
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return nil, &AttributeError{Name: name, Err: err}
	}
	return v, nil
}

// ParseStyle parses an inline CSS declaration list into camelCased property names. Entries
// without a colon, with an empty name or with an empty value are skipped.
func ParseStyle(css string) map[string]string {
	styles := map[string]string{}
	for _, entry := range strings.Split(css, ";") {
		i := strings.Index(entry, ":")
		if i <= 0 || i == len(entry)-1 {
			continue
		}
		key := cssCamelCase(entry[:i])
		val := strings.TrimSpace(entry[i+1:])
		if key == "" || val == "" {
			continue
		}
		styles[key] = val
	}
	return styles
}

// cssCamelCase converts a CSS property name to camelCase: "margin-top" and "MARGIN_TOP" both
// become "marginTop". Custom properties such as --main-color become "mainColor".
func cssCamelCase(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var words []string
	for _, f := range fields {
		if strings.ToUpper(f) == f {
			words = append(words, f)
			continue
		}
		words = append(words, camelcase.Split(f)...)
	}

	var sb strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 && w != "" {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		sb.WriteString(w)
	}
	return sb.String()
}
