package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/tokens"
)

// Mode names how a result was produced.
type Mode string

const (
	ModeAutomatic Mode = "automatic"
	ModeManual    Mode = "manual"
	ModeFull      Mode = "full"
)

// MessageNoRegions explains an automatic run that found no marks.
const MessageNoRegions = "no marked regions detected"

// Entry is the recognized text of one region.
type Entry struct {
	Region   int            `json:"region"`
	Text     string         `json:"text"`
	Original detection.Rect `json:"original"`
	Expanded detection.Rect `json:"expanded"`
}

// Summary holds result counts.
type Summary struct {
	Regions int                 `json:"regions"`
	Entries int                 `json:"entries"`
	Tokens  int                 `json:"tokens"`
	ByKind  map[tokens.Kind]int `json:"by_kind"`
}

// Result is the outcome of one pipeline run. It is not modified after it is
// returned.
type Result struct {
	Source      string            `json:"source"`
	Mode        Mode              `json:"mode"`
	Entries     []Entry           `json:"entries"`
	Text        string            `json:"text"`
	RegionCount int               `json:"region_count"`
	Tokens      []tokens.Token    `json:"tokens"`
	Summary     Summary           `json:"summary"`
	Message     string            `json:"message,omitempty"`
	Structure   *tokens.Structure `json:"structure,omitempty"`
}

// newResult assembles a result from per-region texts. Empty texts still
// count as regions but produce no entry.
func newResult(source string, mode Mode, regions []detection.Candidate, texts []string, tok *tokens.Tokenizer) *Result {
	entries := make([]Entry, 0, len(regions))
	parts := make([]string, 0, len(regions))
	for i, c := range regions {
		if texts[i] == "" {
			continue
		}
		entries = append(entries, Entry{
			Region:   c.Index,
			Text:     texts[i],
			Original: c.Original,
			Expanded: c.Expanded,
		})
		parts = append(parts, texts[i])
	}

	text := strings.Join(parts, " ")
	toks := tok.Tokenize(text)

	return &Result{
		Source:      source,
		Mode:        mode,
		Entries:     entries,
		Text:        text,
		RegionCount: len(regions),
		Tokens:      toks,
		Summary: Summary{
			Regions: len(regions),
			Entries: len(entries),
			Tokens:  len(toks),
			ByKind:  tokens.CountByKind(toks),
		},
	}
}

// WriteJSON stores r as indented JSON at path. Non-ASCII characters such
// as "m³" are written as is.
func WriteJSON(r *Result, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
