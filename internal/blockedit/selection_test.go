package blockedit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/folio/internal/docmodel"
)

func linked(t *testing.T) *docmodel.Content {
	t.Helper()
	c := docmodel.New(
		docmodel.NewBlock("a", docmodel.Unstyled, "hello world"),
		docmodel.NewBlock("b", docmodel.Unstyled, "more text"),
		docmodel.NewBlock("s", docmodel.WikiSection, "Title"),
	)
	c, key := c.CreateEntity(docmodel.Entity{Type: docmodel.EntityLinkSource, LinkID: 0})
	return c.ApplyEntity(docmodel.Span("a", 6, "b", 4), key)
}

func TestRemoveEndingNewline(t *testing.T) {
	c := linked(t)
	s := RemoveEndingNewline(docmodel.State{Content: c, Selection: docmodel.Span("a", 0, "b", 0)})
	assert.Equal(t, docmodel.Span("a", 0, "a", 11), s.Selection)

	in := docmodel.State{Content: c, Selection: docmodel.Span("a", 0, "b", 2)}
	assert.Equal(t, in.Selection, RemoveEndingNewline(in).Selection)
}

func TestSelectionHasEntityType(t *testing.T) {
	c := linked(t)
	assert.True(t, SelectionHasEntityType(docmodel.State{Content: c, Selection: docmodel.Span("a", 5, "a", 7)}, docmodel.EntityLinkSource))
	assert.False(t, SelectionHasEntityType(docmodel.State{Content: c, Selection: docmodel.Span("a", 0, "a", 6)}, docmodel.EntityLinkSource))
	assert.False(t, SelectionHasEntityType(docmodel.State{Content: c, Selection: docmodel.Span("a", 6, "b", 4)}, docmodel.EntityImage))
}

func TestSelectionInMiddleOfLink(t *testing.T) {
	c := linked(t)
	cases := []struct {
		name string
		sel  docmodel.Selection
		want bool
	}{
		{"inside", docmodel.Collapsed("a", 8), true},
		{"at link start", docmodel.Collapsed("a", 6), false},
		{"across block break", docmodel.Collapsed("b", 0), true},
		{"end of block inside link", docmodel.Collapsed("a", 11), true},
		{"after link", docmodel.Collapsed("b", 4), false},
		{"document start", docmodel.Collapsed("a", 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectionInMiddleOfLink(docmodel.State{Content: c, Selection: tc.sel})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelectionContainsBlockType(t *testing.T) {
	c := linked(t)
	assert.True(t, SelectionContainsBlockType(docmodel.State{Content: c, Selection: docmodel.Span("b", 0, "s", 1)}, docmodel.WikiSection))
	assert.False(t, SelectionContainsBlockType(docmodel.State{Content: c, Selection: docmodel.Span("a", 0, "b", 1)}, docmodel.WikiSection))
}
