// Package tokens extracts typed numeric literals from recognized text.
//
// Each pattern list is scanned pattern by pattern; results keep that order
// and are deduplicated on (value, offset). Values are literals, never parsed
// numbers: "+0.377 m³/h" stays a string with its sign and unit.
package tokens
