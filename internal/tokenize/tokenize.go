// Package tokenize implements the two tokenization strategies selectable at
// startup (spec §1, §3): word mode (runs of alphanumeric characters) and
// trigram mode (every length-3 lowercase window of a line, short lines
// space-padded).
package tokenize

import "strings"

// Mode selects a tokenization strategy.
type Mode int

const (
	// Word tokenizes into lowercased alphanumeric runs.
	Word Mode = iota
	// Trigram tokenizes into overlapping 3-character windows.
	Trigram
)

// ParseMode parses a configuration string into a Mode. Defaults to Word for
// anything other than "trigram".
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "trigram") {
		return Trigram
	}
	return Word
}

func (m Mode) String() string {
	if m == Trigram {
		return "trigram"
	}
	return "word"
}

// Tokens returns the deduplicated set of tokens content produces under m.
func Tokens(m Mode, content string) map[string]struct{} {
	switch m {
	case Trigram:
		return trigramTokens(content)
	default:
		return wordTokens(content)
	}
}

// QueryTokens splits a word-mode query into its ordered, non-deduplicated
// alphanumeric runs: the word-mode query algorithm (spec §4.3) cares about
// token *count* and *position* ("tokens[0]", "tokens[-1]"), not the set of
// distinct tokens, so this does not reuse the indexing-side dedup in
// Tokens. Only meaningful for Word mode; trigram-mode query handling keys
// off the raw query's character length instead (spec §4.3).
func QueryTokens(query string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range query {
		if isAlnum(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func wordTokens(content string) map[string]struct{} {
	out := make(map[string]struct{})
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out[strings.ToLower(cur.String())] = struct{}{}
			cur.Reset()
		}
	}
	for _, r := range content {
		if isAlnum(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// trigramTokens windows every line of content into overlapping 3-byte
// lowercase fragments, padding lines shorter than 3 characters with spaces
// so a one- or two-character line still yields a window.
func trigramTokens(content string) map[string]struct{} {
	out := make(map[string]struct{})
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		l := strings.ToLower(line)
		for len(l) < 3 {
			l += " "
		}
		for i := 0; i+3 <= len(l); i++ {
			out[l[i:i+3]] = struct{}{}
		}
	}
	return out
}
