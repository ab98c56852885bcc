package cifparser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// recorder logs every producer call as a string.
type recorder struct {
	calls []string
}

func (r *recorder) ProduceDatablock(name string) error {
	r.calls = append(r.calls, "data "+name)
	return nil
}

func (r *recorder) ProduceCategory(name string) error {
	r.calls = append(r.calls, "cat "+name)
	return nil
}

func (r *recorder) ProduceRow() error {
	r.calls = append(r.calls, "row")
	return nil
}

func (r *recorder) ProduceItem(category, item, value string) error {
	r.calls = append(r.calls, fmt.Sprintf("item %s.%s=%s", category, item, value))
	return nil
}

type frameRecorder struct {
	recorder
}

func (r *frameRecorder) BeginSaveFrame(name string) error {
	r.calls = append(r.calls, "save "+name)
	return nil
}

func (r *frameRecorder) EndSaveFrame() error {
	r.calls = append(r.calls, "end save")
	return nil
}

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
		literals []string
	}{
		{
			"data_TEST _a.b c",
			[]TokenType{TokenData, TokenTag, TokenValue, TokenEOF},
			[]string{"TEST", "_a.b", "c", ""},
		},
		{
			"LOOP_ stop_ Global_ save_x save_",
			[]TokenType{TokenLoop, TokenStop, TokenGlobal, TokenSave, TokenSave, TokenEOF},
			[]string{"LOOP_", "stop_", "Global_", "x", "", ""},
		},
		{
			"'it''s' \"a b\" 'don't'",
			[]TokenType{TokenValue, TokenValue, TokenValue, TokenEOF},
			[]string{"it''s", "a b", "don't", ""},
		},
		{
			"# comment\n. ? # trailing\nloop_x",
			[]TokenType{TokenValue, TokenValue, TokenValue, TokenEOF},
			[]string{".", "?", "loop_x", ""},
		},
		{
			";line one\nline two\n;\nnext",
			[]TokenType{TokenValue, TokenValue, TokenEOF},
			[]string{"line one\nline two", "next", ""},
		},
		{
			"a;b",
			[]TokenType{TokenValue, TokenEOF},
			[]string{"a;b", ""},
		},
	}

	for _, tt := range tests {
		tokens := NewLexer(tt.input).Tokenize()
		if len(tokens) != len(tt.expected) {
			t.Errorf("input %q: expected %d tokens, got %d: %v", tt.input, len(tt.expected), len(tokens), tokens)
			continue
		}
		for i, tok := range tokens {
			if tok.Type != tt.expected[i] {
				t.Errorf("input %q token %d: expected %s, got %s", tt.input, i, tt.expected[i], tok.Type)
			}
			if tok.Literal != tt.literals[i] {
				t.Errorf("input %q token %d: expected literal %q, got %q", tt.input, i, tt.literals[i], tok.Literal)
			}
		}
	}
}

func TestLexerErrors(t *testing.T) {
	for _, input := range []string{"'open", "\"open\nx\"", ";never closed\n"} {
		tokens := NewLexer(input).Tokenize()
		if last := tokens[len(tokens)-1]; last.Type != TokenError {
			t.Errorf("input %q: expected error token, got %v", input, last)
		}
	}
}

func TestLexerLineNumbers(t *testing.T) {
	tokens := NewLexer("data_x\n\n_a.b\n;\ntext\n;\n_a.c v").Tokenize()
	want := []int{1, 3, 4, 7, 7}
	for i, line := range want {
		if tokens[i].Line != line {
			t.Errorf("token %d (%v): expected line %d", i, tokens[i], line)
		}
	}
}

func TestParse(t *testing.T) {
	input := `data_TEST
#
_test.id   1
_test.name aap
#
loop_
_cat_2.id
_cat_2.desc
1 'Een dier'
2 ?
#
_test.id 2
`
	r := &recorder{}
	if err := ParseString(input, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"data TEST",
		"cat test", "row", "item test.id=1", "item test.name=aap",
		"cat cat_2", "row", "item cat_2.id=1", "item cat_2.desc=Een dier",
		"row", "item cat_2.id=2", "item cat_2.desc=?",
		"cat test", "row", "item test.id=2",
	}
	if strings.Join(r.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls mismatch\n got: %v\nwant: %v", r.calls, want)
	}
}

func TestParseMultipleBlocks(t *testing.T) {
	r := &recorder{}
	if err := ParseString("global_ _x.y z data_a _a.b 1 data_b _b.c 2", r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.calls[0] != "data a" || r.calls[4] != "data b" {
		t.Errorf("unexpected calls: %v", r.calls)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"not cif", "Hello, world!", "does not seem to be a CIF file"},
		{"mixed loop", "data_x loop_ _a.b _c.d 1 2", "inconsistent categories in loop_"},
		{"short loop", "data_x loop_ _a.b _a.c 1 2 3", "not a multiple"},
		{"missing value", "data_x _a.b _a.c 1", "expected a value"},
		{"save frame", "data_x save_frame _a.b 1 save_", "should not contain a save frame"},
		{"stray value", "data_x _a.b 1 2", "unexpected value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseString(tt.input, &recorder{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected error containing %q, got %v", tt.msg, err)
			}
			if cerrors.GetCode(err) != cerrors.CodeParseError {
				t.Errorf("expected PARSE_ERROR, got %s", cerrors.GetCode(err))
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Line != 1 {
				t.Errorf("expected ParseError at line 1, got %v", err)
			}
		})
	}
}

func TestParseSaveFrames(t *testing.T) {
	input := `data_dict
_dictionary.title test
save_cat_1
_category.id cat_1
save_
save__cat_1.id
_item.name '_cat_1.id'
save_
`
	r := &frameRecorder{}
	if err := ParseString(input, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"data dict",
		"cat dictionary", "row", "item dictionary.title=test",
		"save cat_1", "cat category", "row", "item category.id=cat_1", "end save",
		"save _cat_1.id", "cat item", "row", "item item.name=_cat_1.id", "end save",
	}
	if strings.Join(r.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls mismatch\n got: %v\nwant: %v", r.calls, want)
	}

	if err := ParseString("data_d save_x _a.b 1", &frameRecorder{}); err == nil {
		t.Error("expected error for unterminated save frame")
	}
}

type failing struct{ recorder }

func (f *failing) ProduceItem(category, item, value string) error {
	return errors.New("boom")
}

func TestParseProducerError(t *testing.T) {
	err := ParseString("data_x _a.b 1", &failing{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected producer error, got %v", err)
	}
	if cerrors.GetCategory(err) != cerrors.ErrCategoryStructure {
		t.Errorf("expected STRUCTURE category, got %s", cerrors.GetCategory(err))
	}
}
