package cifparser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

// Producer receives the structure recognized by the parser. Item values are
// delivered exactly as they appear in the input, with quoting removed.
type Producer interface {
	ProduceDatablock(name string) error
	ProduceCategory(name string) error
	ProduceRow() error
	ProduceItem(category, item, value string) error
}

// SaveFrameProducer is implemented by producers that accept save frames,
// such as dictionary loaders. Categories, rows and items between
// BeginSaveFrame and EndSaveFrame belong to the frame.
type SaveFrameProducer interface {
	Producer
	BeginSaveFrame(name string) error
	EndSaveFrame() error
}

// ParseError represents a parsing error with location information.
type ParseError struct {
	Message string
	Line    int
	Token   Token
}

func (e *ParseError) Error() string {
	if e.Token.Literal != "" {
		return fmt.Sprintf("parse error at line %d: %s (got %q)", e.Line, e.Message, e.Token.Literal)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// Parser parses CIF input and feeds a Producer.
type Parser struct {
	lexer    *Lexer
	curToken Token
	producer Producer
}

// NewParser creates a new Parser for the given input.
func NewParser(input string, producer Producer) *Parser {
	p := &Parser{
		lexer:    NewLexer(input),
		producer: producer,
	}
	p.nextToken()
	return p
}

// Parse reads all of r and parses it into producer.
func Parse(r io.Reader, producer Producer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCategoryStructure, cerrors.CodeParseError, "failed to read input", err)
	}
	return ParseString(string(data), producer)
}

// ParseString parses input into producer.
func ParseString(input string, producer Producer) error {
	return NewParser(input, producer).ParseFile()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	pe := &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    p.curToken.Line,
		Token:   p.curToken,
	}
	return cerrors.Wrap(cerrors.ErrCategoryStructure, cerrors.CodeParseError, pe.Message, pe).
		WithDetails(map[string]interface{}{"line": pe.Line})
}

// produce wraps producer errors that are not already store errors.
func (p *Parser) produce(err error) error {
	if err == nil {
		return nil
	}
	var se *cerrors.StoreError
	if errors.As(err, &se) {
		return err
	}
	return cerrors.Wrap(cerrors.ErrCategoryStructure, cerrors.CodeParseError,
		fmt.Sprintf("producer failed at line %d", p.curToken.Line), err)
}

// ParseFile parses the complete input.
func (p *Parser) ParseFile() error {
	if p.curTokenIs(TokenError) {
		return p.errorf("%s", p.curToken.Literal)
	}
	if !p.curTokenIs(TokenData) && !p.curTokenIs(TokenGlobal) && !p.curTokenIs(TokenEOF) {
		return p.errorf("this file does not seem to be a CIF file")
	}

	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenGlobal:
			if err := p.parseGlobal(); err != nil {
				return err
			}
		case TokenData:
			if p.curToken.Literal == "" {
				return p.errorf("empty datablock name")
			}
			if err := p.produce(p.producer.ProduceDatablock(p.curToken.Literal)); err != nil {
				return err
			}
			p.nextToken()
			if err := p.parseDataBlock(false); err != nil {
				return err
			}
		case TokenError:
			return p.errorf("%s", p.curToken.Literal)
		default:
			return p.errorf("expected a datablock")
		}
	}
	return nil
}

// parseGlobal skips a global block.
func (p *Parser) parseGlobal() error {
	p.nextToken()
	for p.curTokenIs(TokenTag) || p.curTokenIs(TokenValue) || p.curTokenIs(TokenLoop) {
		p.nextToken()
	}
	if p.curTokenIs(TokenError) {
		return p.errorf("%s", p.curToken.Literal)
	}
	return nil
}

// parseDataBlock parses the contents of a datablock or, when inFrame is
// set, a save frame. It stops at the first token that cannot continue the
// block; a save frame also consumes its closing save_.
func (p *Parser) parseDataBlock(inFrame bool) error {
	category, open := "", false

	for {
		switch p.curToken.Type {
		case TokenLoop:
			if err := p.parseLoop(); err != nil {
				return err
			}
			open = false

		case TokenTag:
			cat, item := types.SplitTagName(p.curToken.Literal)
			if !open || !strings.EqualFold(cat, category) {
				category, open = cat, true
				if err := p.produce(p.producer.ProduceCategory(cat)); err != nil {
					return err
				}
				if err := p.produce(p.producer.ProduceRow()); err != nil {
					return err
				}
			}
			p.nextToken()
			if !p.curTokenIs(TokenValue) {
				return p.errorf("expected a value for %s", types.JoinTagName(cat, item))
			}
			if err := p.produce(p.producer.ProduceItem(cat, item, p.curToken.Literal)); err != nil {
				return err
			}
			p.nextToken()

		case TokenSave:
			if p.curToken.Literal == "" {
				if !inFrame {
					return p.errorf("save frame end without a save frame")
				}
				p.nextToken()
				return nil
			}
			if inFrame {
				return p.errorf("save frames cannot be nested")
			}
			if err := p.parseSaveFrame(); err != nil {
				return err
			}
			open = false

		case TokenError:
			return p.errorf("%s", p.curToken.Literal)

		case TokenStop:
			p.nextToken()

		default:
			if inFrame {
				return p.errorf("unterminated save frame")
			}
			if p.curTokenIs(TokenValue) {
				return p.errorf("unexpected value")
			}
			return nil
		}
	}
}

func (p *Parser) parseLoop() error {
	p.nextToken() // Skip loop_

	var category string
	var items []string
	for p.curTokenIs(TokenTag) {
		cat, item := types.SplitTagName(p.curToken.Literal)
		if len(items) == 0 {
			category = cat
		} else if !strings.EqualFold(cat, category) {
			return p.errorf("inconsistent categories in loop_")
		}
		items = append(items, item)
		p.nextToken()
	}
	if len(items) == 0 {
		return p.errorf("loop_ without tags")
	}

	if err := p.produce(p.producer.ProduceCategory(category)); err != nil {
		return err
	}

	col := 0
	for p.curTokenIs(TokenValue) {
		if col == 0 {
			if err := p.produce(p.producer.ProduceRow()); err != nil {
				return err
			}
		}
		if err := p.produce(p.producer.ProduceItem(category, items[col], p.curToken.Literal)); err != nil {
			return err
		}
		col = (col + 1) % len(items)
		p.nextToken()
	}
	if col != 0 {
		return p.errorf("number of values in loop_ is not a multiple of the number of tags")
	}
	return nil
}

func (p *Parser) parseSaveFrame() error {
	sp, ok := p.producer.(SaveFrameProducer)
	if !ok {
		return p.errorf("a regular CIF file should not contain a save frame")
	}
	if err := p.produce(sp.BeginSaveFrame(p.curToken.Literal)); err != nil {
		return err
	}
	p.nextToken()
	if err := p.parseDataBlock(true); err != nil {
		return err
	}
	return p.produce(sp.EndSaveFrame())
}
