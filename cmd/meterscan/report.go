package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ironsheep/meterscan/internal/pipeline"
	"github.com/ironsheep/meterscan/internal/tokens"
)

// printResult writes a human readable report of res.
func printResult(w io.Writer, res *pipeline.Result) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "RESULTS FOR: %s (%s)\n", res.Source, res.Mode)
	fmt.Fprintln(w, rule)

	if res.Mode != pipeline.ModeFull {
		fmt.Fprintf(w, "\nMarked areas: %d\n", res.RegionCount)
		if res.Message != "" {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
		if len(res.Entries) > 0 {
			fmt.Fprintln(w, "\n--- TEXT IN MARKED AREAS ---")
			for _, e := range res.Entries {
				fmt.Fprintf(w, "  Area %d: %s\n", e.Region, e.Text)
			}
		}
	}

	fmt.Fprintf(w, "\n--- NUMBERS AND VALUES (%d) ---\n", len(res.Tokens))
	if len(res.Tokens) == 0 {
		fmt.Fprintln(w, "  none found")
	}
	for _, t := range res.Tokens {
		if t.Line > 0 {
			fmt.Fprintf(w, "  [%s] %s (line %d)\n", t.Kind, t.Value, t.Line)
			continue
		}
		fmt.Fprintf(w, "  [%s] %s\n", t.Kind, t.Value)
	}

	if len(res.Summary.ByKind) > 0 {
		fmt.Fprintln(w, "\n--- BY KIND ---")
		kinds := make([]tokens.Kind, 0, len(res.Summary.ByKind))
		for k := range res.Summary.ByKind {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, res.Summary.ByKind[k])
		}
	}

	if res.Structure != nil && len(res.Structure.Titles) > 0 {
		fmt.Fprintln(w, "\n--- TITLES ---")
		for _, t := range res.Structure.Titles {
			fmt.Fprintf(w, "  * %s\n", t)
		}
	}

	fmt.Fprintln(w, "\n--- FULL TEXT ---")
	fmt.Fprintln(w, res.Text)
	fmt.Fprintln(w)
}
