package systems

import (
	"strconv"
	"strings"
)

/**
 * @brief Splits shader script text into whitespace separated tokens. Line
 * and block comments are skipped and double quoted strings form one token.
 * Line breaks are significant to directives that take a variable number of
 * arguments, so Next can refuse to cross them.
 */
type scriptTokenizer struct {
	data string
	pos  int
	line int
}

func newScriptTokenizer(text string) *scriptTokenizer {
	return &scriptTokenizer{data: text, line: 1}
}

// skipWhitespace stops before a newline unless allowLineBreaks is set and
// reports whether one was found.
func (t *scriptTokenizer) skipWhitespace(allowLineBreaks bool) (newline bool) {
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		switch {
		case c == '\n':
			if !allowLineBreaks {
				return true
			}
			t.line++
			t.pos++
		case c <= ' ':
			t.pos++
		case c == '/' && t.pos+1 < len(t.data) && t.data[t.pos+1] == '/':
			for t.pos < len(t.data) && t.data[t.pos] != '\n' {
				t.pos++
			}
		case c == '/' && t.pos+1 < len(t.data) && t.data[t.pos+1] == '*':
			t.pos += 2
			for t.pos < len(t.data) && !strings.HasPrefix(t.data[t.pos:], "*/") {
				if t.data[t.pos] == '\n' {
					t.line++
				}
				t.pos++
			}
			t.pos = min(t.pos+2, len(t.data))
		default:
			return false
		}
	}
	return false
}

// Next returns the next token, or "" at the end of the text or, when
// allowLineBreaks is false, at the end of the line.
func (t *scriptTokenizer) Next(allowLineBreaks bool) string {
	if t.skipWhitespace(allowLineBreaks) || t.pos >= len(t.data) {
		return ""
	}

	if t.data[t.pos] == '"' {
		t.pos++
		start := t.pos
		for t.pos < len(t.data) && t.data[t.pos] != '"' && t.data[t.pos] != '\n' {
			t.pos++
		}
		tok := t.data[start:t.pos]
		if t.pos < len(t.data) && t.data[t.pos] == '"' {
			t.pos++
		}
		return tok
	}

	start := t.pos
	for t.pos < len(t.data) && t.data[t.pos] > ' ' {
		t.pos++
	}
	return t.data[start:t.pos]
}

// Float parses the next token on the line, 0 when it is missing or invalid.
func (t *scriptTokenizer) Float() (float32, bool) {
	tok := t.Next(false)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

// SkipRestOfLine discards everything up to and including the next newline.
func (t *scriptTokenizer) SkipRestOfLine() {
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		t.pos++
		if c == '\n' {
			t.line++
			return
		}
	}
}

// SkipBracedSection consumes a balanced { } section starting at the next
// token. It returns false when the text ends first.
func (t *scriptTokenizer) SkipBracedSection() bool {
	depth := 0
	for {
		tok := t.Next(true)
		switch tok {
		case "":
			return false
		case "{":
			depth++
		case "}":
			depth--
		}
		if depth == 0 {
			return true
		}
	}
}

// Line is the current line number, for warnings.
func (t *scriptTokenizer) Line() int {
	return t.line
}

// Pos is the byte offset of the next unread character.
func (t *scriptTokenizer) Pos() int {
	return t.pos
}
