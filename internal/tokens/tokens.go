package tokens

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a numeric token. The values are part of the JSON output
// and stay stable.
type Kind string

const (
	KindFlowRate     Kind = "caudal"
	KindVolume       Kind = "volumen"
	KindDecimal      Kind = "decimal"
	KindDigitsLetter Kind = "numero_letra"
	KindInteger      Kind = "entero"
	KindPercentage   Kind = "porcentaje"
	KindCurrency     Kind = "moneda"
	KindDate         Kind = "fecha"
	KindPhone        Kind = "telefono"
)

// Token is a numeric substring found in recognized text.
type Token struct {
	Kind Kind `json:"kind"`

	// Value is the matched literal, units and signs included.
	Value string `json:"value"`

	// Offset is the character (not byte) index of Value in the scanned text.
	Offset int `json:"offset"`

	// Line is the 1-based line of Value. Only set by tokenizers created
	// with line tracking.
	Line int `json:"line,omitempty"`
}

// Pattern is one entry of an ordered pattern list.
type Pattern struct {
	Kind Kind
	Expr *regexp.Regexp
}

// RegionPatterns classify text read from a single meter mark. Order matters:
// output follows this list. The patterns overlap on purpose: a flow rate also
// yields the volume, decimal and integers inside it.
var RegionPatterns = []Pattern{
	// The "h" is optional so a flow rate survives OCR dropping it.
	{Kind: KindFlowRate, Expr: regexp.MustCompile(`[+\-]?\d+\.?\d*\s*m³/h?`)},
	{Kind: KindVolume, Expr: regexp.MustCompile(`[+\-]?\d+\.?\d*\s*m³`)},
	{Kind: KindDecimal, Expr: regexp.MustCompile(`[+\-]?\d+\.\d+`)},
	{Kind: KindDigitsLetter, Expr: regexp.MustCompile(`\d+[a-zA-Z]`)},
	{Kind: KindInteger, Expr: regexp.MustCompile(`\d+`)},
}

// DocumentPatterns classify text read from a whole image.
var DocumentPatterns = []Pattern{
	{Kind: KindDecimal, Expr: regexp.MustCompile(`\d+\.\d+`)},
	{Kind: KindInteger, Expr: regexp.MustCompile(`\b\d+\b`)},
	{Kind: KindPercentage, Expr: regexp.MustCompile(`\d+\.?\d*\s*%`)},
	{Kind: KindCurrency, Expr: regexp.MustCompile(`[\$€£]\s*\d+\.?\d*`)},
	{Kind: KindDate, Expr: regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)},
	{Kind: KindPhone, Expr: regexp.MustCompile(`[\d\s\-\(\)]{10,}`)},
}

// Tokenizer scans text with an ordered pattern list. It holds no mutable
// state and is safe for concurrent use.
type Tokenizer struct {
	patterns  []Pattern
	withLines bool
}

// New creates a Tokenizer for patterns. When withLines is set, every token
// carries its line number.
func New(patterns []Pattern, withLines bool) *Tokenizer {
	return &Tokenizer{patterns: patterns, withLines: withLines}
}

// NewRegion returns the tokenizer used on per-mark text.
func NewRegion() *Tokenizer {
	return New(RegionPatterns, false)
}

// NewDocument returns the tokenizer used on whole-image text.
func NewDocument() *Tokenizer {
	return New(DocumentPatterns, true)
}

// Tokenize returns every match of every pattern.
//
// Tokens are deduplicated on (Value, Offset) only, keeping the first. The
// same literal at the same offset is therefore reported once even if a
// later pattern would give it another kind, while overlapping matches of
// different lengths (a decimal and the integer inside it) are all kept.
// Output is ordered by pattern, then by position within a pattern.
// Values are the exact matched literals. Matches without any digit are
// ignored.
func (t *Tokenizer) Tokenize(text string) []Token {
	type key struct {
		value  string
		offset int
	}
	seen := make(map[key]struct{})
	out := make([]Token, 0)

	for _, p := range t.patterns {
		for _, loc := range p.Expr.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			value := text[start:end]
			if !strings.ContainsFunc(value, unicode.IsDigit) {
				continue
			}

			offset := utf8.RuneCountInString(text[:start])
			k := key{value, offset}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}

			tok := Token{Kind: p.Kind, Value: value, Offset: offset}
			if t.withLines {
				tok.Line = strings.Count(text[:start], "\n") + 1
			}
			out = append(out, tok)
		}
	}
	return out
}

// CountByKind tallies tokens per kind.
func CountByKind(toks []Token) map[Kind]int {
	counts := make(map[Kind]int)
	for _, tok := range toks {
		counts[tok.Kind]++
	}
	return counts
}
