package tokens

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxTitleLength is the rune count below which an upper-case line reads as
// a title.
const maxTitleLength = 50

// Structure is a coarse layout of recognized text.
type Structure struct {
	Titles     []string `json:"titles"`
	Paragraphs []string `json:"paragraphs"`
	TotalLines int      `json:"total_lines"`
}

// Analyze splits text into titles and paragraphs. Blank lines are skipped
// and every other line is trimmed; short lines written entirely in upper
// case are titles.
func Analyze(text string) Structure {
	s := Structure{Titles: []string{}, Paragraphs: []string{}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.TotalLines++
		if utf8.RuneCountInString(line) < maxTitleLength && isUpper(line) {
			s.Titles = append(s.Titles, line)
		} else {
			s.Paragraphs = append(s.Paragraphs, line)
		}
	}
	return s
}

// isUpper reports whether s has at least one cased letter and no lower-case
// letters.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
