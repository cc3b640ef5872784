package mt

import (
	"strings"
	"unicode/utf8"
)

// chattyPrefixes are boilerplate openers LLM backends prepend despite being
// asked for the bare translation.
var chattyPrefixes = []string{
	"Here is the translation:",
	"Here's the translation:",
	"Translation:",
	"The translation is:",
	"Translated text:",
}

// quotePairs are the surrounding quote styles stripped from cleaned output.
var quotePairs = [][2]string{
	{`"`, `"`},
	{"'", "'"},
	{"“", "”"}, // curly double
	{"‘", "’"}, // curly single
	{"「", "」"}, // CJK corner brackets
}

// Clean normalizes raw LLM output into a bare translation: it strips known
// boilerplate prefixes, keeps only the first line with actual content, and
// removes one pair of matching surrounding quotes.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)

	for _, p := range chattyPrefixes {
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 1 {
			text = line
			break
		}
	}

	for _, q := range quotePairs {
		if len(text) > len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			text = strings.TrimSpace(text[len(q[0]) : len(text)-len(q[1])])
			break
		}
	}
	return text
}
