// Package findreg keeps, per search term, the list of matches in a document
// ordered the way a forward scan of the document would report them.
package findreg

import (
	"slices"
	"strings"
)

// Match is one occurrence of a term: the block it lives in and its rune
// offset within that block.
type Match struct {
	BlockKey string `json:"blockKey"`
	Start    int    `json:"start"`
}

// BlockOrder exposes the document's block key order.
type BlockOrder interface {
	Len() int
	KeyAt(i int) string
	IndexOf(key string) int
}

// Register maps lower-cased terms to ordered matches. It is owned by one
// document session and is not safe for concurrent use.
type Register struct {
	terms map[string][]Match
}

// New returns an empty register.
func New() *Register {
	return &Register{terms: map[string][]Match{}}
}

func norm(term string) string { return strings.ToLower(term) }

// Update records a match of term at (blockKey, start), keeping the list in
// block order then ascending start. Recording an existing match is a no-op.
func (r *Register) Update(order BlockOrder, blockKey string, start int, term string) {
	term = norm(term)
	list := r.terms[term]

	first := -1
	for i, m := range list {
		if m.BlockKey != blockKey {
			continue
		}
		if m.Start == start {
			return
		}
		if first < 0 {
			first = i
		}
	}

	if first >= 0 {
		for i := first; i < len(list); i++ {
			if list[i].BlockKey != blockKey || list[i].Start > start {
				r.terms[term] = slices.Insert(list, i, Match{blockKey, start})
				return
			}
		}
		r.terms[term] = append(list, Match{blockKey, start})
		return
	}

	pos := order.IndexOf(blockKey)
	if pos >= 0 && len(list) > 0 {
		firstOf := make(map[string]int, len(list))
		for i, m := range list {
			if _, ok := firstOf[m.BlockKey]; !ok {
				firstOf[m.BlockKey] = i
			}
		}
		for j := pos + 1; j < order.Len(); j++ {
			if i, ok := firstOf[order.KeyAt(j)]; ok {
				r.terms[term] = slices.Insert(list, i, Match{blockKey, start})
				return
			}
		}
	}
	r.terms[term] = append(list, Match{blockKey, start})
}

// RemoveBlock drops every match of term in blockKey.
func (r *Register) RemoveBlock(blockKey, term string) {
	term = norm(term)
	list, ok := r.terms[term]
	if !ok {
		return
	}
	r.terms[term] = slices.DeleteFunc(list, func(m Match) bool { return m.BlockKey == blockKey })
}

// Reset clears the matches of term.
func (r *Register) Reset(term string) {
	r.terms[norm(term)] = nil
}

// Clear drops every term.
func (r *Register) Clear() {
	clear(r.terms)
}

// Count returns the number of matches of term.
func (r *Register) Count(term string) int {
	return len(r.terms[norm(term)])
}

// Matches returns a copy of the ordered matches of term.
func (r *Register) Matches(term string) []Match {
	return slices.Clone(r.terms[norm(term)])
}

// Ordered reports whether the matches of term follow order. Blocks missing
// from order sort last.
func (r *Register) Ordered(order BlockOrder, term string) bool {
	pos := func(key string) int {
		if i := order.IndexOf(key); i >= 0 {
			return i
		}
		return order.Len()
	}
	return slices.IsSortedFunc(r.terms[norm(term)], func(a, b Match) int {
		if c := pos(a.BlockKey) - pos(b.BlockKey); c != 0 {
			return c
		}
		return a.Start - b.Start
	})
}
