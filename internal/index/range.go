// Package index holds the per-file index model shared by the indexer, the
// document store and the definition resolver: positions, ranges,
// declarations, call sites and the IndexedDocument that groups them.
package index

import "fmt"

// Position is a zero-based (line, column) pair. Columns count bytes from the
// start of the line, matching the parser's points.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Compare returns -1, 0 or 1 ordering p against other lexicographically.
func (p Position) Compare(other Position) int {
	switch {
	case p.Before(other):
		return -1
	case other.Before(p):
		return 1
	default:
		return 0
	}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a source extent. End is the column just past the identifier's
// last character, so a one-letter name at column 0 spans 0..1.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// IdentifierRange returns the range covered by name starting at start.
// Identifiers never span lines.
func IdentifierRange(name string, start Position) Range {
	return Range{
		Start: start,
		End:   Position{Line: start.Line, Column: start.Column + len(name)},
	}
}

// Contains reports whether start <= pos <= end.
func (r Range) Contains(pos Position) bool {
	return r.Start.Compare(pos) <= 0 && pos.Compare(r.End) <= 0
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Location is a range inside a specific file.
type Location struct {
	Path  string `json:"path"`
	Range Range  `json:"range"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Range.Start.Line, l.Range.Start.Column)
}
