// Package scanner turns Triangle source text into a token stream.
// Comments run from ! to end of line. Operators are maximal-munch over
// the operator character set, so <= \/ // and friends come out as one
// token.
package scanner

import (
	"triangle/report"
)

type Kind int

const (
	EOF Kind = iota
	Ident
	IntLit
	CharLit
	Operator

	Array
	Begin
	Const
	Do
	Else
	End
	Func
	If
	In
	Let
	Of
	Proc
	Record
	Repeat
	Then
	Type
	Until
	Var
	While

	Becomes   // :=
	Is        // ~
	Colon     // :
	Semicolon // ;
	Comma     // ,
	Dot       // .
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	LBrace    // {
	RBrace    // }
)

var keywords = map[string]Kind{
	"array":  Array,
	"begin":  Begin,
	"const":  Const,
	"do":     Do,
	"else":   Else,
	"end":    End,
	"func":   Func,
	"if":     If,
	"in":     In,
	"let":    Let,
	"of":     Of,
	"proc":   Proc,
	"record": Record,
	"repeat": Repeat,
	"then":   Then,
	"type":   Type,
	"until":  Until,
	"var":    Var,
	"while":  While,
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    report.Pos
}

type Scanner struct {
	src      []byte
	offset   int
	line     int
	col      int
	reporter *report.Reporter
}

func New(src []byte, reporter *report.Reporter) *Scanner {
	return &Scanner{src: src, line: 1, col: 1, reporter: reporter}
}

// Tokenize scans the whole source and returns the token stream, ending
// with a single EOF token. Lexical errors are reported and the
// offending character skipped.
func (s *Scanner) Tokenize() []Token {
	var tokens []Token
	for {
		tok := s.next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens
		}
	}
}

func (s *Scanner) peek() byte {
	if s.offset >= len(s.src) {
		return 0
	}
	return s.src[s.offset]
}

func (s *Scanner) advance() byte {
	b := s.src[s.offset]
	s.offset++
	if b == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return b
}

func (s *Scanner) pos() report.Pos {
	return report.Pos{Line: s.line, Col: s.col}
}

func (s *Scanner) skipBlanksAndComments() {
	for s.offset < len(s.src) {
		b := s.peek()
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			s.advance()
			continue
		}
		if b == '!' {
			for s.offset < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
			continue
		}
		return
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isOperatorChar(b byte) bool {
	switch b {
	case '+', '-', '*', '/', '<', '>', '=', '\\', '&', '@', '%', '^', '?':
		return true
	}
	return false
}

func (s *Scanner) next() Token {
	s.skipBlanksAndComments()
	pos := s.pos()
	if s.offset >= len(s.src) {
		return Token{Kind: EOF, Pos: pos}
	}
	b := s.peek()
	switch {
	case isLetter(b):
		start := s.offset
		for s.offset < len(s.src) && (isLetter(s.peek()) || isDigit(s.peek())) {
			s.advance()
		}
		lexeme := string(s.src[start:s.offset])
		if kind, ok := keywords[lexeme]; ok {
			return Token{Kind: kind, Lexeme: lexeme, Pos: pos}
		}
		return Token{Kind: Ident, Lexeme: lexeme, Pos: pos}
	case isDigit(b):
		start := s.offset
		for s.offset < len(s.src) && isDigit(s.peek()) {
			s.advance()
		}
		return Token{Kind: IntLit, Lexeme: string(s.src[start:s.offset]), Pos: pos}
	case isOperatorChar(b):
		start := s.offset
		for s.offset < len(s.src) && isOperatorChar(s.peek()) {
			s.advance()
		}
		return Token{Kind: Operator, Lexeme: string(s.src[start:s.offset]), Pos: pos}
	case b == '\'':
		s.advance()
		if s.offset+1 < len(s.src) && s.src[s.offset+1] == '\'' {
			ch := s.advance()
			s.advance()
			return Token{Kind: CharLit, Lexeme: string(ch), Pos: pos}
		}
		s.reporter.Report(pos, "malformed character literal")
		if s.offset < len(s.src) {
			s.advance()
		}
		return s.next()
	}
	s.advance()
	switch b {
	case ':':
		if s.peek() == '=' {
			s.advance()
			return Token{Kind: Becomes, Lexeme: ":=", Pos: pos}
		}
		return Token{Kind: Colon, Lexeme: ":", Pos: pos}
	case '~':
		return Token{Kind: Is, Lexeme: "~", Pos: pos}
	case ';':
		return Token{Kind: Semicolon, Lexeme: ";", Pos: pos}
	case ',':
		return Token{Kind: Comma, Lexeme: ",", Pos: pos}
	case '.':
		return Token{Kind: Dot, Lexeme: ".", Pos: pos}
	case '(':
		return Token{Kind: LParen, Lexeme: "(", Pos: pos}
	case ')':
		return Token{Kind: RParen, Lexeme: ")", Pos: pos}
	case '[':
		return Token{Kind: LBracket, Lexeme: "[", Pos: pos}
	case ']':
		return Token{Kind: RBracket, Lexeme: "]", Pos: pos}
	case '{':
		return Token{Kind: LBrace, Lexeme: "{", Pos: pos}
	case '}':
		return Token{Kind: RBrace, Lexeme: "}", Pos: pos}
	}
	s.reporter.Report(pos, "unexpected character %q", string(b))
	return s.next()
}
