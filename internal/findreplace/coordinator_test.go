package findreplace

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/findreg"
)

type counts struct {
	mu   sync.Mutex
	last map[string]int
	all  []int
}

func (c *counts) record(term string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = map[string]int{}
	}
	c.last[term] = n
	c.all = append(c.all, n)
}

func (c *counts) get(term string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.last[term]
	return n, ok
}

func doc() *docmodel.Content {
	return docmodel.New(
		docmodel.NewBlock("a", docmodel.Unstyled, "cat and Cat"),
		docmodel.NewBlock("s", docmodel.WikiSection, "Cat section"),
		docmodel.NewBlock("b", docmodel.Unstyled, "no match"),
		docmodel.NewBlock("c", docmodel.Unstyled, "last cat"),
	)
}

func newCoordinator(t *testing.T, rec *counts) *Coordinator {
	t.Helper()
	co := New(Options{
		CountDelay:      10 * time.Millisecond,
		ReplaceAllDelay: 10 * time.Millisecond,
		OnCount:         rec.record,
	})
	t.Cleanup(co.Close)
	return co
}

func TestSetTermBuildsOrderedMatches(t *testing.T) {
	rec := &counts{}
	co := newCoordinator(t, rec)
	c := doc()
	co.SetTerm(c, "CAT")

	want := []findreg.Match{{BlockKey: "a", Start: 0}, {BlockKey: "a", Start: 8}, {BlockKey: "c", Start: 5}}
	assert.Equal(t, want, co.Matches())
	assert.Eventually(t, func() bool {
		n, ok := rec.get("CAT")
		return ok && n == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCountIsDebounced(t *testing.T) {
	rec := &counts{}
	co := newCoordinator(t, rec)
	c := doc()
	co.SetTerm(c, "cat")
	for range 5 {
		co.Rescan(c, "a", "c")
	}
	time.Sleep(60 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{3}, rec.all)
}

func TestStepSeedsFromVisibleAndWraps(t *testing.T) {
	co := newCoordinator(t, &counts{})
	c := doc()
	co.SetTerm(c, "cat")

	m, i, ok := co.Step(c, []string{"b", "c"}, true)
	require.True(t, ok)
	assert.Equal(t, 2, i)
	assert.Equal(t, "c", m.BlockKey)

	_, i, _ = co.Step(c, nil, true)
	assert.Equal(t, 0, i)
	_, i, _ = co.Step(c, nil, false)
	assert.Equal(t, 2, i)
}

func TestReplaceOne(t *testing.T) {
	co := newCoordinator(t, &counts{})
	c := doc()
	co.SetTerm(c, "cat")
	co.Step(c, []string{"a"}, true)

	s, ok := co.ReplaceOne(docmodel.NewState(c), "dog")
	require.True(t, ok)
	assert.Equal(t, "dog and Cat", s.Content.BlockForKey("a").Text())
	assert.Equal(t, docmodel.Collapsed("a", 3), s.Selection)
	assert.Len(t, co.Matches(), 2)

	// The next match moved into the current slot.
	m, _, ok := co.Current()
	require.True(t, ok)
	assert.Equal(t, findreg.Match{BlockKey: "a", Start: 8}, m)
}

func TestReplaceOneStaleMatch(t *testing.T) {
	co := newCoordinator(t, &counts{})
	c := doc()
	co.SetTerm(c, "cat")
	co.Step(c, []string{"a"}, true)

	edited := c.ReplaceText(docmodel.Span("a", 0, "a", 3), "cow", 0, "")
	_, ok := co.ReplaceOne(docmodel.NewState(edited), "dog")
	assert.False(t, ok)
	assert.Len(t, co.Matches(), 2, "the stale block was rescanned")
}

func TestReplaceAllSkipsSections(t *testing.T) {
	done := make(chan int, 1)
	co := New(Options{
		CountDelay:      5 * time.Millisecond,
		ReplaceAllDelay: 5 * time.Millisecond,
		OnReplaceAll:    func(_ string, n int) { done <- n },
	})
	t.Cleanup(co.Close)
	c := doc()
	co.SetTerm(c, "cat")

	s, n := co.ReplaceAll(docmodel.NewState(c), "lion")
	assert.Equal(t, 3, n)
	assert.Equal(t, "lion and lion", s.Content.BlockForKey("a").Text())
	assert.Equal(t, "Cat section", s.Content.BlockForKey("s").Text())
	assert.Equal(t, "last lion", s.Content.BlockForKey("c").Text())
	assert.Empty(t, co.Matches())

	select {
	case got := <-done:
		assert.Equal(t, 3, got)
	case <-time.After(time.Second):
		t.Fatal("replace-all completion not reported")
	}
}

func TestReplaceKeepsEntity(t *testing.T) {
	co := newCoordinator(t, &counts{})
	c := docmodel.New(docmodel.NewBlock("a", docmodel.Unstyled, "see cat run"))
	c, key := c.CreateEntity(docmodel.Entity{Type: docmodel.EntityLinkSource, LinkID: 1})
	c = c.ApplyEntity(docmodel.Span("a", 0, "a", 11), key)
	co.SetTerm(c, "cat")

	s, n := co.ReplaceAll(docmodel.NewState(c), "tiger")
	require.Equal(t, 1, n)
	b := s.Content.FirstBlock()
	assert.Equal(t, "see tiger run", b.Text())
	for i := range b.Length() {
		assert.Equal(t, key, b.EntityAt(i))
	}
}
