package ics

import (
	"strings"
	"unicode/utf8"
)

const (
	maxLineOctets         = 75
	maxContinuationOctets = maxLineOctets - 1 // leading space counts
	crlf                  = "\r\n"
)

// CRLF must precede the lone CR/LF entries so it collapses to one token.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
)

// EscapeText escapes a TEXT value per RFC 5545 section 3.3.11.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// FoldLine splits a content line into RFC 5545 section 3.1 physical lines:
// the first holds at most 75 octets, each continuation a single space plus
// at most 74 octets. Splits never land inside a UTF-8 sequence.
func FoldLine(line string) []string {
	if len(line) <= maxLineOctets {
		return []string{line}
	}

	cut := runeCut(line, maxLineOctets)
	out := []string{line[:cut]}
	rest := line[cut:]
	for rest != "" {
		cut = runeCut(rest, maxContinuationOctets)
		out = append(out, " "+rest[:cut])
		rest = rest[cut:]
	}
	return out
}

// runeCut returns the largest index <= limit that falls on a rune boundary.
func runeCut(s string, limit int) int {
	if len(s) <= limit {
		return len(s)
	}
	i := limit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == 0 {
		return limit
	}
	return i
}
