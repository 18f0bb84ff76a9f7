package wordcount

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/folio/internal/docmodel"
)

func TestCountWords(t *testing.T) {
	cases := map[string]int{
		"":             0,
		"   ":          0,
		"one":          1,
		"  a   b  c ":  3,
		"tab\tsep\nnl": 3,
	}
	for in, want := range cases {
		assert.Equal(t, want, CountWords(in), "CountWords(%q)", in)
	}
}

func TestClassifyCommand(t *testing.T) {
	c, ok := ClassifyCommand("backspace-word")
	assert.True(t, ok)
	assert.Equal(t, Backspace, c)
	_, ok = ClassifyCommand("bold")
	assert.False(t, ok)
}

func TestRecountDeleteIncludesNextBlock(t *testing.T) {
	c := docmodel.New(
		docmodel.NewBlock("a", docmodel.Unstyled, "one two"),
		docmodel.NewBlock("b", docmodel.Unstyled, "three four five"),
		docmodel.NewBlock("c", docmodel.Unstyled, "six"),
	)
	before := docmodel.State{Content: c, Selection: docmodel.Collapsed("a", 7)}
	merged := c.RemoveRange(docmodel.Span("a", 7, "b", 0))
	after := docmodel.State{Content: merged, Selection: docmodel.Collapsed("a", 7)}

	got := Recount(before, after, Delete)
	assert.Equal(t, Counts{"a": 4, "b": -1}, got)

	counts := CountAll(c)
	counts.Merge(got)
	assert.Equal(t, Counts{"a": 4, "c": 1}, counts)
}

func TestRecountBackspaceIncludesPreviousBlock(t *testing.T) {
	c := docmodel.New(
		docmodel.NewBlock("a", docmodel.Unstyled, "one"),
		docmodel.NewBlock("b", docmodel.Unstyled, "two"),
	)
	before := docmodel.State{Content: c, Selection: docmodel.Collapsed("b", 0)}
	merged := c.RemoveRange(docmodel.Span("a", 3, "b", 0))
	after := docmodel.State{Content: merged, Selection: docmodel.Collapsed("a", 3)}

	assert.Equal(t, Counts{"a": 1, "b": -1}, Recount(before, after, Backspace))
}

func TestRecountSplitBlock(t *testing.T) {
	c := docmodel.New(docmodel.NewBlock("a", docmodel.Unstyled, "one two"))
	before := docmodel.State{Content: c, Selection: docmodel.Collapsed("a", 3)}
	split, lower := c.SplitBlock(before.Selection)
	after := docmodel.State{Content: split, Selection: docmodel.Collapsed(lower, 0)}

	assert.Equal(t, Counts{"a": 1, lower: 1}, Recount(before, after, SplitBlock))
}

func TestRecountFull(t *testing.T) {
	c := docmodel.FromLines("a b", "c")
	after := docmodel.NewState(docmodel.FromLines("x"))
	got := Recount(docmodel.NewState(c), after, Full)
	assert.Len(t, got, 3)

	counts := CountAll(c)
	counts.Merge(got)
	assert.Equal(t, CountAll(after.Content), counts)
	assert.Equal(t, 1, counts.Total())
}
