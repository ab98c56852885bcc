// Package cifparser tokenizes and parses the CIF exchange format and hands
// the recognized structure to a Producer.
package cifparser

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenTag
	TokenValue

	// Reserved words
	TokenData
	TokenSave
	TokenLoop
	TokenStop
	TokenGlobal
)

// Token represents a lexical token. For TokenData and TokenSave the literal
// holds the name following the prefix.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, %d}", t.Type.String(), t.Literal, t.Line)
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "ERROR"
	case TokenTag:
		return "TAG"
	case TokenValue:
		return "VALUE"
	case TokenData:
		return "DATA"
	case TokenSave:
		return "SAVE"
	case TokenLoop:
		return "LOOP"
	case TokenStop:
		return "STOP"
	case TokenGlobal:
		return "GLOBAL"
	default:
		return "UNKNOWN"
	}
}

// reserved maps the fixed reserved words to their token types.
var reserved = map[string]TokenType{
	"loop_":   TokenLoop,
	"stop_":   TokenStop,
	"global_": TokenGlobal,
}

// Lexer tokenizes CIF input.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
	line    int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
	}
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

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// atLineStart reports whether the current character is the first on its line.
func (l *Lexer) atLineStart() bool {
	return l.pos == 0 || l.input[l.pos-1] == '\n'
}

// skipWhitespace skips whitespace and comments.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() {
		switch {
		case isSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.atEOF() {
		return Token{Type: TokenEOF, Line: l.line}
	}

	switch {
	case l.ch == ';' && l.atLineStart():
		return l.readTextField()
	case l.ch == '\'' || l.ch == '"':
		return l.readQuoted()
	case l.ch == '_':
		tok := l.readWord()
		tok.Type = TokenTag
		return tok
	default:
		return l.classify(l.readWord())
	}
}

// readWord reads up to the next whitespace.
func (l *Lexer) readWord() Token {
	line := l.line
	start := l.pos
	for !l.atEOF() && !isSpace(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenValue, Literal: l.input[start:l.pos], Line: line}
}

// classify turns a bare word into a reserved word token where applicable.
func (l *Lexer) classify(tok Token) Token {
	lower := strings.ToLower(tok.Literal)
	if tt, ok := reserved[lower]; ok {
		tok.Type = tt
		return tok
	}
	switch {
	case strings.HasPrefix(lower, "data_"):
		tok.Type = TokenData
		tok.Literal = tok.Literal[len("data_"):]
	case strings.HasPrefix(lower, "save_"):
		tok.Type = TokenSave
		tok.Literal = tok.Literal[len("save_"):]
	}
	return tok
}

// readQuoted reads a value delimited by ' or ". The closing quote only
// counts when followed by whitespace or the end of input.
func (l *Lexer) readQuoted() Token {
	line := l.line
	quote := l.ch
	l.readChar() // Skip opening quote
	start := l.pos

	for {
		if l.atEOF() || l.ch == '\n' || l.ch == '\r' {
			return Token{Type: TokenError, Literal: "unterminated quoted string", Line: line}
		}
		if l.ch == quote {
			next := l.peekChar()
			if next == 0 || isSpace(next) {
				literal := l.input[start:l.pos]
				l.readChar() // Skip closing quote
				return Token{Type: TokenValue, Literal: literal, Line: line}
			}
		}
		l.readChar()
	}
}

// readTextField reads a semicolon delimited text field. The value excludes
// the opening semicolon and the final newline-semicolon pair.
func (l *Lexer) readTextField() Token {
	line := l.line
	l.readChar() // Skip opening semicolon
	start := l.pos

	for {
		if l.atEOF() {
			return Token{Type: TokenError, Literal: "unterminated text field", Line: line}
		}
		if l.ch == '\n' && l.peekChar() == ';' {
			end := l.pos
			if end > start && l.input[end-1] == '\r' {
				end--
			}
			literal := l.input[start:end]
			l.readChar() // newline
			l.readChar() // closing semicolon
			return Token{Type: TokenValue, Literal: literal, Line: line}
		}
		l.readChar()
	}
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

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
