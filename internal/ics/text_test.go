package ics

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeText(t *testing.T) {
	cases := map[string]string{
		"Meeting; bring, snacks\nbring a pen": `Meeting\; bring\, snacks\nbring a pen`,
		`C:\path`:                             `C:\\path`,
		"a\r\nb":                              `a\nb`,
		"a\rb":                                `a\nb`,
		"a\n\nb":                              `a\n\nb`,
		`already \n`:                          `already \\n`,
		"plain":                               "plain",
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeText(in), "input %q", in)
	}
}

func TestFoldLine_Short(t *testing.T) {
	line := "SUMMARY:" + strings.Repeat("x", 67)
	require.Len(t, line, 75)
	assert.Equal(t, []string{line}, FoldLine(line))
}

func TestFoldLine_140Octets(t *testing.T) {
	line := "SUMMARY:" + strings.Repeat("a", 132)
	require.Len(t, line, 140)

	parts := FoldLine(line)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 75)
	assert.Equal(t, " ", parts[1][:1])
	assert.Len(t, parts[1], 66)

	joined := strings.Join(parts, "\r\n")
	assert.Equal(t, line, strings.ReplaceAll(joined, "\r\n ", ""))
}

func TestFoldLine_ManyContinuations(t *testing.T) {
	line := "DESCRIPTION:" + strings.Repeat("0123456789", 40)
	parts := FoldLine(line)
	require.Greater(t, len(parts), 3)
	assert.Len(t, parts[0], 75)
	for _, p := range parts[1:] {
		assert.True(t, strings.HasPrefix(p, " "))
		assert.LessOrEqual(t, len(p), 75)
	}
	for _, p := range parts[1 : len(parts)-1] {
		assert.Len(t, p, 75)
	}
	assert.Equal(t, line, strings.ReplaceAll(strings.Join(parts, "\r\n"), "\r\n ", ""))
}

func TestFoldLine_KeepsMultibyteRunesWhole(t *testing.T) {
	line := "SUMMARY:" + strings.Repeat("가", 60)
	parts := FoldLine(line)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p), "part %q", p)
		assert.LessOrEqual(t, len(p), 75)
	}
	assert.Equal(t, line, strings.ReplaceAll(strings.Join(parts, "\r\n"), "\r\n ", ""))
}
