package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ranged struct {
	name string
	r    *Range
}

func (r ranged) SourceRange() *Range { return r.r }

func rng(sl, sc, el, ec int) *Range {
	r := NewRange(sl, sc, el, ec)
	return &r
}

func TestCompareByRange_MissingRange(t *testing.T) {
	r := rng(0, 0, 0, 1)

	assert.Positive(t, CompareByRange(ranged{}, ranged{r: r}), "absent sorts after present")
	assert.Negative(t, CompareByRange(ranged{r: r}, ranged{}), "present sorts before absent")
	assert.Zero(t, CompareByRange(ranged{}, ranged{}), "two absent ranges tie")
}

func TestCompareByRange_NilValues(t *testing.T) {
	var nilElement *Element
	el := &Element{Range: rng(2, 0, 2, 4)}

	assert.Zero(t, CompareByRange(nil, nil))
	assert.Positive(t, CompareByRange(nil, el))
	assert.Negative(t, CompareByRange(el, nilElement))
	assert.Zero(t, CompareByRange(nilElement, &Element{}))
}

func TestCompareByRange_TieBreakChain(t *testing.T) {
	tests := []struct {
		name string
		a, b *Range
		want int
	}{
		{name: "earlier start line", a: rng(0, 9, 5, 0), b: rng(1, 0, 1, 1), want: -1},
		{name: "earlier start character", a: rng(1, 2, 9, 9), b: rng(1, 3, 1, 4), want: -1},
		{name: "earlier end line", a: rng(1, 5, 1, 10), b: rng(1, 5, 2, 0), want: -1},
		{name: "earlier end character", a: rng(1, 5, 2, 0), b: rng(1, 5, 2, 1), want: -1},
		{name: "later end line", a: rng(1, 5, 3, 0), b: rng(1, 5, 2, 7), want: 1},
		{name: "identical", a: rng(4, 1, 4, 8), b: rng(4, 1, 4, 8), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareByRange(ranged{r: tt.a}, ranged{r: tt.b})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, -tt.want, CompareByRange(ranged{r: tt.b}, ranged{r: tt.a}), "antisymmetric")
		})
	}
}

func TestCompareByRange_Transitive(t *testing.T) {
	var items []Ranged
	items = append(items, ranged{})
	for sl := 0; sl < 2; sl++ {
		for sc := 0; sc < 2; sc++ {
			for el := sl; el < 3; el++ {
				for ec := 0; ec < 2; ec++ {
					items = append(items, ranged{r: rng(sl, sc, el, ec)})
				}
			}
		}
	}

	for _, a := range items {
		for _, b := range items {
			for _, c := range items {
				if CompareByRange(a, b) < 0 && CompareByRange(b, c) < 0 {
					assert.Negative(t, CompareByRange(a, c), "%v < %v < %v", a, b, c)
				}
				if CompareByRange(a, b) == 0 && CompareByRange(b, c) == 0 {
					assert.Zero(t, CompareByRange(a, c))
				}
			}
		}
	}
}

func TestSortByRange(t *testing.T) {
	items := []ranged{
		{name: "synthesized-1"},
		{name: "third", r: rng(3, 0, 3, 5)},
		{name: "first", r: rng(0, 4, 0, 9)},
		{name: "synthesized-2"},
		{name: "second", r: rng(0, 4, 1, 0)},
	}

	SortByRange(items)

	var names []string
	for _, it := range items {
		names = append(names, it.name)
	}
	assert.Equal(t, []string{"first", "second", "third", "synthesized-1", "synthesized-2"}, names)
}

func TestRange_Contains(t *testing.T) {
	r := NewRange(1, 5, 2, 3)

	assert.True(t, r.Contains(Position{Line: 1, Character: 5}), "start is inclusive")
	assert.True(t, r.Contains(Position{Line: 1, Character: 80}))
	assert.True(t, r.Contains(Position{Line: 2, Character: 2}))
	assert.False(t, r.Contains(Position{Line: 2, Character: 3}), "end is exclusive")
	assert.False(t, r.Contains(Position{Line: 0, Character: 9}))
}

func TestRange_IsEmpty(t *testing.T) {
	assert.True(t, NewRange(3, 2, 3, 2).IsEmpty())
	assert.False(t, NewRange(3, 2, 3, 3).IsEmpty())
}

func TestPosition_Compare(t *testing.T) {
	assert.Equal(t, -1, Position{Line: 0, Character: 9}.Compare(Position{Line: 1, Character: 0}))
	assert.Equal(t, 1, Position{Line: 1, Character: 2}.Compare(Position{Line: 1, Character: 1}))
	assert.Equal(t, 0, Position{Line: 1, Character: 1}.Compare(Position{Line: 1, Character: 1}))
}
