package tmpl

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	eof        rune = -1
	leftDelim       = "{{"
	rightDelim      = "}}"
	leftRaw         = "{{{"
	rightRaw        = "}}}"
)

// Implementation of the lexer is based on https://go.dev/talks/2011/lex.slide

// lexer holds the state of the scanner.
type lexer struct {
	input       string // the string being scanned
	start       int    // start position of this item.
	pos         int    // current position in the input.
	width       int    // width of last rune read from input.
	bracesDepth int    // nesting depth of braces {} inside an action
	right       string // closing delimiter of the current action
	items       []item
}

type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemText
	itemExpr    // {{ expr }}
	itemRaw     // {{{ expr }}}
	itemPartial // {{> name }}
	itemComment // {{! ... }} or {{!-- ... --}}
)

type item struct {
	typ itemType
	val string
	pos int
}

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

func lex(input string) []item {
	l := &lexer{input: input}
	for state := lexText; state != nil; {
		state = state(l)
	}
	return l.items
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{t, l.input[l.start:l.pos], l.start})
	l.start = l.pos
}

// errorf appends an error token and terminates the scan.
func (l *lexer) errorf(format string, args ...any) stateFn {
	l.items = append(l.items, item{itemError, fmt.Sprintf(format, args...), l.start})
	return nil
}

// next returns the next rune in the input.
func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) scanString(quote rune) bool {
	for ch := l.next(); ch != quote; ch = l.next() {
		if ch == '\n' || ch == eof {
			return false
		}
		if ch == '\\' {
			l.next()
		}
	}
	return true
}

func lexText(l *lexer) stateFn {
	if x := strings.Index(l.input[l.pos:], leftDelim); x >= 0 {
		if x > 0 {
			l.pos += x
			l.emit(itemText)
		}
		return lexLeftDelim
	}
	l.pos = len(l.input)
	if l.pos > l.start {
		l.emit(itemText)
	}
	l.emit(itemEOF)
	return nil
}

func lexLeftDelim(l *lexer) stateFn {
	rest := l.input[l.pos:]
	switch {
	case strings.HasPrefix(rest, leftRaw):
		l.pos += len(leftRaw)
		l.ignore()
		l.right = rightRaw
		return lexAction(itemRaw)
	case strings.HasPrefix(rest, leftDelim+"!--"):
		return lexComment("--" + rightDelim)
	case strings.HasPrefix(rest, leftDelim+"!"):
		return lexComment(rightDelim)
	case strings.HasPrefix(rest, leftDelim+">"):
		l.pos += len(leftDelim) + 1
		l.ignore()
		l.right = rightDelim
		return lexAction(itemPartial)
	case strings.HasPrefix(rest, leftDelim+"&gt;"):
		// {{> name}} taken from serialized markup.
		l.pos += len(leftDelim) + len("&gt;")
		l.ignore()
		l.right = rightDelim
		return lexAction(itemPartial)
	}
	l.pos += len(leftDelim)
	l.ignore()
	l.right = rightDelim
	return lexAction(itemExpr)
}

func lexComment(end string) stateFn {
	return func(l *lexer) stateFn {
		x := strings.Index(l.input[l.pos:], end)
		if x < 0 {
			return l.errorf("unclosed comment")
		}
		l.pos += x + len(end)
		l.emit(itemComment)
		return lexText
	}
}

func lexAction(typ itemType) stateFn {
	var fn stateFn
	fn = func(l *lexer) stateFn {
		if l.bracesDepth == 0 && strings.HasPrefix(l.input[l.pos:], l.right) {
			val := strings.TrimSpace(l.input[l.start:l.pos])
			if val == "" {
				return l.errorf("empty action at offset %d", l.start)
			}
			l.items = append(l.items, item{typ, val, l.start})
			l.pos += len(l.right)
			l.ignore()
			return lexText
		}
		switch r := l.next(); {
		case r == eof:
			return l.errorf("unclosed action starting at offset %d", l.start)
		case r == '\'' || r == '"' || r == '`':
			if !l.scanString(r) {
				return l.errorf("unterminated string in action starting at offset %d", l.start)
			}
		case r == '{':
			l.bracesDepth++
		case r == '}':
			if l.bracesDepth == 0 {
				return l.errorf("unexpected '}' in action starting at offset %d", l.start)
			}
			l.bracesDepth--
		}
		return fn
	}
	return fn
}
