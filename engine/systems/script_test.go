package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptTokenizer_SkipsComments(t *testing.T) {
	tok := newScriptTokenizer("// header\nfirst /* block\ncomment */ \"quoted token\" last")

	assert.Equal(t, "first", tok.Next(true))
	assert.Equal(t, "quoted token", tok.Next(true))
	assert.Equal(t, "last", tok.Next(true))
	assert.Equal(t, "", tok.Next(true))
	assert.Equal(t, 3, tok.Line())
}

func TestScriptTokenizer_StopsAtLineBreak(t *testing.T) {
	tok := newScriptTokenizer("a b\nc")

	assert.Equal(t, "a", tok.Next(false))
	assert.Equal(t, "b", tok.Next(false))
	assert.Equal(t, "", tok.Next(false))
	assert.Equal(t, "c", tok.Next(true))
}

func TestScriptTokenizer_Float(t *testing.T) {
	tok := newScriptTokenizer("1.5 x\n2")

	v, ok := tok.Float()
	assert.True(t, ok)
	assert.Equal(t, float32(1.5), v)

	_, ok = tok.Float()
	assert.False(t, ok)

	// the number on the next line is out of reach
	_, ok = tok.Float()
	assert.False(t, ok)
}

func TestScriptTokenizer_SkipBracedSection(t *testing.T) {
	tok := newScriptTokenizer("{ a { b } c } after")
	assert.True(t, tok.SkipBracedSection())
	assert.Equal(t, "after", tok.Next(true))

	tok = newScriptTokenizer("{ a { b }")
	assert.False(t, tok.SkipBracedSection())
}

func TestScriptTokenizer_SkipRestOfLine(t *testing.T) {
	tok := newScriptTokenizer("qer_editorimage foo bar\nnext")
	assert.Equal(t, "qer_editorimage", tok.Next(true))
	tok.SkipRestOfLine()
	assert.Equal(t, "next", tok.Next(true))
	assert.Equal(t, 2, tok.Line())
}
