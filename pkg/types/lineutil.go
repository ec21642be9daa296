package types

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// LineIndex maps byte offsets to positions for a fixed piece of content.
type LineIndex struct {
	content    []byte
	lineStarts []int
}

// NewLineIndex records the start offset of every line in content.
func NewLineIndex(content []byte) *LineIndex {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{content: content, lineStarts: starts}
}

// Position converts a byte offset into a zero-based Position whose
// character counts UTF-16 code units. Offsets outside the content clamp.
func (li *LineIndex) Position(byteOffset int) Position {
	if byteOffset < 0 {
		byteOffset = 0
	}
	if byteOffset > len(li.content) {
		byteOffset = len(li.content)
	}

	// Last line whose start is <= offset
	line := sort.Search(len(li.lineStarts), func(i int) bool {
		return li.lineStarts[i] > byteOffset
	}) - 1

	character := 0
	for i := li.lineStarts[line]; i < byteOffset; {
		r, size := utf8.DecodeRune(li.content[i:])
		if n := utf16.RuneLen(r); n > 0 {
			character += n
		} else {
			character++
		}
		i += size
	}
	return Position{Line: line, Character: character}
}

// Range converts a [start, end) byte span into a Range.
func (li *LineIndex) Range(start, end int) Range {
	return Range{Start: li.Position(start), End: li.Position(end)}
}
