package linksync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextLinkID(t *testing.T) {
	assert.Equal(t, LinkID(0), Registry{}.NextLinkID())
	reg := Registry{}.
		WithLink(4, Link{Source: "a"}, "t").
		WithLink(2, Link{Source: "a"}, "t")
	assert.Equal(t, LinkID(5), reg.NextLinkID())
}

func TestRegistryIsImmutable(t *testing.T) {
	base := oneLink("v1", "D")
	changed := base.WithContent(0, "v2").WithLink(1, Link{Source: "src", Content: "x"}, "D")

	assert.Equal(t, "v1", base.Content(0))
	assert.Equal(t, []LinkID{0}, base.TagLinks("D"))
	assert.Equal(t, "v2", changed.Content(0))
	assert.Equal(t, []LinkID{0, 1}, changed.TagLinks("D"))
	assert.Greater(t, changed.Version(), base.Version())

	removed := changed.WithoutLink(0)
	assert.Equal(t, []LinkID{0, 1}, changed.TagLinks("D"))
	assert.Equal(t, []LinkID{1}, removed.TagLinks("D"))
	assert.NoError(t, removed.Validate())
}

func TestWithoutLinkUnknownIsNoop(t *testing.T) {
	reg := oneLink("v", "D")
	assert.Equal(t, reg.Version(), reg.WithoutLink(99).Version())
}

func TestWithoutLinkCleansOrphans(t *testing.T) {
	reg := NewBuilder(3).TagLink("D", 5).DocLink("src", 5, "D").Registry()
	require.Error(t, reg.Validate())

	clean := reg.WithoutLink(5)
	assert.Empty(t, clean.TagLinks("D"))
	assert.Empty(t, clean.DocLinks("src"))
	assert.NoError(t, clean.Validate())
}

func TestWithoutTagCascades(t *testing.T) {
	reg := Registry{}.
		WithLink(0, Link{Source: "a"}, "D").
		WithLink(1, Link{Source: "b"}, "D").
		WithLink(2, Link{Source: "a"}, "E").
		WithDocTag("a", "D").
		WithDocTag("a", "E")

	out := reg.WithoutTag("a", "D")
	assert.Equal(t, []LinkID{2}, out.LinkIDs())
	assert.Empty(t, out.TagLinks("D"))
	assert.NotContains(t, out.Tags(), "D")
	assert.Equal(t, []string{"E"}, out.DocTags("a"))
	assert.Empty(t, out.DocLinks("b"))
	assert.NoError(t, out.Validate())

	// The original value still holds everything.
	assert.Len(t, reg.LinkIDs(), 3)
}

func TestValidateReportsMismatches(t *testing.T) {
	reg := NewBuilder(0).
		Link(0, Link{Source: "a"}).
		DocLink("a", 0, "D").
		TagLink("E", 0).
		Registry()
	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `listed under tag "E"`)
	assert.Contains(t, err.Error(), `missing from tag "D"`)
}

func TestRegistryJSON(t *testing.T) {
	reg := oneLink("hello\nworld", "D").
		WithAlias(0, "X").
		WithDocTag("src", "D")
	data, err := json.Marshal(reg)
	require.NoError(t, err)

	var back Registry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, reg.Version(), back.Version())
	l, ok := back.Link(0)
	require.True(t, ok)
	assert.Equal(t, "hello\nworld", l.Content)
	assert.True(t, l.Aliased())
	assert.Equal(t, []LinkID{0}, back.TagLinks("D"))
	assert.Equal(t, []string{"D"}, back.DocTags("src"))
	assert.NoError(t, back.Validate())

	// The decoded value is usable for further updates.
	next := back.WithContent(0, "x")
	assert.Equal(t, "x", next.Content(0))
	assert.Equal(t, "hello\nworld", back.Content(0))
}
