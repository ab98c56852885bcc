// Package parser implements the text syntax for row conditions used by the
// command line tools, and compiles it into cif.Condition values.
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenNumber
	TokenString

	// Keywords
	TokenAnd
	TokenOr
	TokenNot
	TokenIs
	TokenNull
	TokenLike
	TokenTrue

	// Operators
	TokenEq     // =
	TokenNe     // <> or !=
	TokenLt     // <
	TokenGt     // >
	TokenLe     // <=
	TokenGe     // >=
	TokenMatch  // ~
	TokenStar   // *
	TokenLParen // (
	TokenRParen // )
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in input
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, %d}", t.Type.String(), t.Literal, t.Pos)
}

var tokenNames = map[TokenType]string{
	TokenEOF:    "EOF",
	TokenError:  "ERROR",
	TokenIdent:  "IDENT",
	TokenNumber: "NUMBER",
	TokenString: "STRING",
	TokenAnd:    "AND",
	TokenOr:     "OR",
	TokenNot:    "NOT",
	TokenIs:     "IS",
	TokenNull:   "NULL",
	TokenLike:   "LIKE",
	TokenTrue:   "TRUE",
	TokenEq:     "=",
	TokenNe:     "<>",
	TokenLt:     "<",
	TokenGt:     ">",
	TokenLe:     "<=",
	TokenGe:     ">=",
	TokenMatch:  "~",
	TokenStar:   "*",
	TokenLParen: "(",
	TokenRParen: ")",
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// keywords maps keywords to their token types. Keywords are case
// insensitive; quote a value to use one literally.
var keywords = map[string]TokenType{
	"AND":  TokenAnd,
	"OR":   TokenOr,
	"NOT":  TokenNot,
	"IS":   TokenIs,
	"NULL": TokenNull,
	"LIKE": TokenLike,
	"TRUE": TokenTrue,
}

// Lexer tokenizes condition expressions.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	startPos := l.pos
	var tok Token

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
		}
		tok = Token{Type: TokenEq, Literal: "=", Pos: startPos}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenLe, Literal: "<=", Pos: startPos}
		} else if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "<>", Pos: startPos}
		} else {
			tok = Token{Type: TokenLt, Literal: "<", Pos: startPos}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenGe, Literal: ">=", Pos: startPos}
		} else {
			tok = Token{Type: TokenGt, Literal: ">", Pos: startPos}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "!=", Pos: startPos}
		} else {
			tok = Token{Type: TokenError, Literal: string(l.ch), Pos: startPos}
		}
	case '~':
		tok = Token{Type: TokenMatch, Literal: "~", Pos: startPos}
	case '(':
		tok = Token{Type: TokenLParen, Literal: "(", Pos: startPos}
	case ')':
		tok = Token{Type: TokenRParen, Literal: ")", Pos: startPos}
	case '\'', '"':
		tok = l.readString(l.ch)
	case 0:
		tok = Token{Type: TokenEOF, Literal: "", Pos: startPos}
	default:
		return l.readWord()
	}

	l.readChar()
	return tok
}

// isDelimiter reports whether ch ends a bare word.
func isDelimiter(ch byte) bool {
	return strings.IndexByte(" \t\r\n=<>!~()'\"", ch) >= 0 || ch == 0
}

// readWord reads a bare word: a keyword, a tag name, a number or an
// unquoted value. A lone * is the any-item marker.
func (l *Lexer) readWord() Token {
	start := l.pos
	for !isDelimiter(l.ch) {
		l.readChar()
	}
	literal := l.input[start:l.pos]

	if literal == "*" {
		return Token{Type: TokenStar, Literal: literal, Pos: start}
	}
	if tokType, ok := keywords[strings.ToUpper(literal)]; ok {
		return Token{Type: tokType, Literal: strings.ToUpper(literal), Pos: start}
	}
	if isNumberStart(literal[0]) {
		if _, err := strconv.ParseFloat(literal, 64); err == nil {
			return Token{Type: TokenNumber, Literal: literal, Pos: start}
		}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: start}
}

func isNumberStart(ch byte) bool {
	return (ch >= '0' && ch <= '9') || ch == '+' || ch == '-' || ch == '.'
}

// readString reads a literal enclosed in quote. A doubled quote stands for
// itself.
func (l *Lexer) readString(quote byte) Token {
	startPos := l.pos
	l.readChar() // Skip opening quote

	var sb strings.Builder
	for {
		if l.ch == 0 && l.pos >= len(l.input) {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: startPos}
		}
		if l.ch == quote {
			if l.peekChar() != quote {
				break
			}
			l.readChar()
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}

	// The closing quote is consumed by NextToken
	return Token{Type: TokenString, Literal: sb.String(), Pos: startPos}
}

// Tokenize returns all tokens from the input.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
