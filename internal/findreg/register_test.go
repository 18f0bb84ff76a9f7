package findreg

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keys []string

func (k keys) Len() int           { return len(k) }
func (k keys) KeyAt(i int) string { return k[i] }
func (k keys) IndexOf(key string) int {
	return slices.Index(k, key)
}

var doc = keys{"a", "b", "c", "d", "e"}

func TestUpdateOrdersByBlockThenOffset(t *testing.T) {
	r := New()
	r.Update(doc, "c", 4, "Foo")
	r.Update(doc, "a", 9, "foo")
	r.Update(doc, "e", 0, "FOO")
	r.Update(doc, "c", 1, "foo")
	r.Update(doc, "c", 7, "foo")
	r.Update(doc, "b", 2, "foo")

	want := []Match{{"a", 9}, {"b", 2}, {"c", 1}, {"c", 4}, {"c", 7}, {"e", 0}}
	assert.Equal(t, want, r.Matches("foo"))
	assert.True(t, r.Ordered(doc, "foo"))
}

func TestUpdateIsIdempotent(t *testing.T) {
	r := New()
	r.Update(doc, "b", 3, "x")
	r.Update(doc, "b", 3, "x")
	assert.Equal(t, 1, r.Count("x"))
}

func TestUpdateUnknownBlockAppends(t *testing.T) {
	r := New()
	r.Update(doc, "b", 0, "x")
	r.Update(doc, "zz", 0, "x")
	r.Update(doc, "a", 0, "x")
	assert.Equal(t, []Match{{"a", 0}, {"b", 0}, {"zz", 0}}, r.Matches("x"))
}

func TestRemoveBlock(t *testing.T) {
	r := New()
	r.Update(doc, "a", 0, "x")
	r.Update(doc, "b", 0, "x")
	r.Update(doc, "b", 5, "x")
	r.RemoveBlock("b", "X")
	assert.Equal(t, []Match{{"a", 0}}, r.Matches("x"))

	r.RemoveBlock("a", "missing")
	assert.Equal(t, 0, r.Count("missing"))
}

func TestOrderingHoldsAfterEveryUpdate(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	r := New()
	for range 500 {
		key := doc[rng.IntN(len(doc))]
		if rng.IntN(6) == 0 {
			r.RemoveBlock(key, "t")
		} else {
			r.Update(doc, key, rng.IntN(40), "t")
		}
		require.True(t, r.Ordered(doc, "t"), "unordered: %v", r.Matches("t"))
	}
}

func TestResetAndClear(t *testing.T) {
	r := New()
	r.Update(doc, "a", 0, "x")
	r.Update(doc, "a", 0, "y")
	r.Reset("x")
	assert.Equal(t, 0, r.Count("x"))
	assert.Equal(t, 1, r.Count("y"))
	r.Clear()
	assert.Equal(t, 0, r.Count("y"))
}
