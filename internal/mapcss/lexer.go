package mapcss

import (
	"io"

	tdparse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type token struct {
	tt   css.TokenType
	text string
	line int
	col  int
	eof  bool
}

func (t token) display() string {
	if t.eof {
		return "<EOF>"
	}
	return t.text
}

func (t token) delim(c byte) bool {
	return t.tt == css.DelimToken && len(t.text) == 1 && t.text[0] == c
}

// lexer adapts the CSS tokenizer, dropping whitespace and comments and
// tracking the line and column of every token.
type lexer struct {
	l    *css.Lexer
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{l: css.NewLexer(tdparse.NewInputString(src)), line: 1}
}

func (lx *lexer) advance(data []byte) {
	for _, c := range data {
		if c == '\n' {
			lx.line++
			lx.col = 0
			continue
		}
		lx.col++
	}
}

func (lx *lexer) next() token {
	for {
		tt, data := lx.l.Next()
		tok := token{tt: tt, text: string(data), line: lx.line, col: lx.col}
		lx.advance(data)

		switch tt {
		case css.WhitespaceToken, css.CommentToken:
			continue
		case css.ErrorToken:
			tok.eof = lx.l.Err() == io.EOF
			if !tok.eof && tok.text == "" {
				tok.text = lx.l.Err().Error()
			}
		}
		return tok
	}
}
