package cif

import "testing"

func TestQuote(t *testing.T) {
	tests := []struct {
		value     string
		want      string
		textField bool
	}{
		{"", "?", false},
		{".", ".", false},
		{"?", "?", false},
		{"aap", "aap", false},
		{"1.25(3)", "1.25(3)", false},
		{"it's", "it's", false},
		{"a b", "'a b'", false},
		{" leading", "' leading'", false},
		{"it's a", `"it's a"`, false},
		{`say "hi"`, `'say "hi"'`, false},
		{`say "hi", it's`, `say "hi", it's`, true},
		{"two\nlines", "two\nlines", true},
		{"_x", "'_x'", false},
		{"#x", "'#x'", false},
		{"$x", "'$x'", false},
		{";x", "';x'", false},
		{"[x]", "'[x]'", false},
		{"data_x", "'data_x'", false},
		{"LOOP_", "'LOOP_'", false},
		{"save_x", "'save_x'", false},
		{"global_", "'global_'", false},
		{"stop_", "'stop_'", false},
		{"dataset", "dataset", false},
	}

	for _, tt := range tests {
		got, textField := quote(tt.value)
		if got != tt.want || textField != tt.textField {
			t.Errorf("quote(%q) = %q, %v; want %q, %v", tt.value, got, textField, tt.want, tt.textField)
		}
	}
}

func TestIsWritable(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"aap", true},
		{";x", true},
		{";x\ny", true},
		{"a\r\nb", true},
		{"a;\nb", true},
		{"a\n;b", false},
		{"a\n;", false},
		{"a\r", false},
	}

	for _, tt := range tests {
		if got := isWritable(tt.value); got != tt.want {
			t.Errorf("isWritable(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
