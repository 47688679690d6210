package sql

import (
	"strings"
	"unicode"
)

// MaxSearchTermLength is the longest search term kept, in runes.
const MaxSearchTermLength = 100

// NormalizeSearchTerm trims whitespace, drops control characters and caps the
// term at MaxSearchTermLength runes. An empty result means "no filter".
func NormalizeSearchTerm(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) > MaxSearchTermLength {
		cleaned = strings.TrimSpace(string(runes[:MaxSearchTermLength]))
	}
	return cleaned
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern returns an ILIKE pattern matching term as a literal substring.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
