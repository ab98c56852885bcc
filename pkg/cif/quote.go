package cif

import (
	"regexp"
	"strings"

	"github.com/arkilian/cifstore/pkg/types"
)

var reservedPrefix = regexp.MustCompile(`(?i)^(data_|save_|loop_|stop_|global_)`)

// isOrdinaryLead reports whether ch may start an unquoted value.
func isOrdinaryLead(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '"', '#', '$', '\'', ';', '[', ']', '_', 0x7f:
		return false
	}
	return ch > ' ' && ch < 0x7f
}

// isUnquotedSafe reports whether value can be written without quotes.
func isUnquotedSafe(value string) bool {
	if value == "" || !isOrdinaryLead(value[0]) {
		return false
	}
	for i := 1; i < len(value); i++ {
		if value[i] <= ' ' || value[i] >= 0x7f {
			return false
		}
	}
	return !reservedPrefix.MatchString(value)
}

// needsTextField reports whether value can only be written as a text field.
func needsTextField(value string) bool {
	if strings.ContainsAny(value, "\n\r") {
		return true
	}
	return strings.ContainsRune(value, '\'') && strings.ContainsRune(value, '"')
}

// isWritable reports whether value survives being written and read back.
// A line starting with a semicolon would close the text field holding it,
// and a carriage return before the closing semicolon is dropped on read.
func isWritable(value string) bool {
	return !strings.Contains(value, "\n;") && !strings.HasSuffix(value, "\r")
}

// quote returns value in the form it is written in. Text fields are
// returned without their delimiters and textField is set.
func quote(value string) (out string, textField bool) {
	switch {
	case value == "":
		return types.Unknown, false
	case needsTextField(value):
		return value, true
	case isUnquotedSafe(value):
		return value, false
	case !strings.ContainsRune(value, '\''):
		return "'" + value + "'", false
	default:
		return `"` + value + `"`, false
	}
}
