package mapcss

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax = errors.New("mapcss: syntax error")
	ErrType   = errors.New("mapcss: type error")
)

// ParseError locates a stylesheet error. Line is 1-based, Column is the
// 0-based byte offset of the offending token within its line.
type ParseError struct {
	Kind   error
	Msg    string
	Line   int
	Column int
}

func (e *ParseError) Error() string { return e.Msg }

func (e *ParseError) Unwrap() error { return e.Kind }

func syntaxError(t token, expected string) *ParseError {
	return &ParseError{
		Kind:   ErrSyntax,
		Msg:    fmt.Sprintf("Unexpected token '%s' at %d:%d, expected: %s", t.display(), t.line, t.col, expected),
		Line:   t.line,
		Column: t.col,
	}
}

func typeError(t token, want ValueType) *ParseError {
	return &ParseError{
		Kind:   ErrType,
		Msg:    fmt.Sprintf("Unexpected type at %d:%d (want %s)", t.line, t.col, want),
		Line:   t.line,
		Column: t.col,
	}
}
