package types

import "slices"

// Position is a zero-based line/character point in source text.
// Character counts UTF-16 code units, matching LSP text positions.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Compare orders positions by line, then character.
func (p Position) Compare(o Position) int {
	if p.Line != o.Line {
		return cmpInt(p.Line, o.Line)
	}
	return cmpInt(p.Character, o.Character)
}

// Range is a [Start, End) span between two positions - half-open interval.
// Ranges are not validated; callers must keep Start <= End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange builds a range from four coordinates.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// Contains reports whether p falls inside the half-open range.
func (r Range) Contains(p Position) bool {
	return r.Start.Compare(p) <= 0 && p.Compare(r.End) < 0
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Ranged is implemented by values that may carry a source range.
// A nil range means the value was synthesized rather than parsed.
type Ranged interface {
	SourceRange() *Range
}

// CompareByRange is a three-way comparator over optional source ranges.
// Values without a range sort after values with one; two values without
// a range compare equal.
func CompareByRange(a, b Ranged) int {
	return CompareRanges(rangeOf(a), rangeOf(b))
}

// CompareRanges compares two optional ranges field by field:
// start line, start character, end line, end character.
func CompareRanges(a, b *Range) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return a.End.Compare(b.End)
}

// SortByRange stably sorts items by their source range.
func SortByRange[T Ranged](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return CompareByRange(a, b)
	})
}

func rangeOf(v Ranged) *Range {
	if v == nil {
		return nil
	}
	return v.SourceRange()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
