package findreg

import "slices"

// Navigator tracks the current match while stepping through results.
type Navigator struct {
	index  int
	seeded bool
}

// Index returns the current match index and whether navigation has started.
func (n *Navigator) Index() (int, bool) { return n.index, n.seeded }

// Reset forgets the current position; the next step seeds again.
func (n *Navigator) Reset() {
	n.index, n.seeded = 0, false
}

// Seed picks the first match inside a visible block. When none is visible it
// walks forward from the last visible block, wrapping to the first block, and
// stops at the first block that has a match. It reports false when there are
// no matches.
func (n *Navigator) Seed(matches []Match, order BlockOrder, visible []string) bool {
	if len(matches) == 0 {
		return false
	}
	for i, m := range matches {
		if slices.Contains(visible, m.BlockKey) {
			n.index, n.seeded = i, true
			return true
		}
	}

	firstOf := make(map[string]int, len(matches))
	for i, m := range matches {
		if _, ok := firstOf[m.BlockKey]; !ok {
			firstOf[m.BlockKey] = i
		}
	}
	start := -1
	if len(visible) > 0 {
		start = order.IndexOf(visible[len(visible)-1])
	}
	for step := 1; step <= order.Len(); step++ {
		j := (start + step) % order.Len()
		if j < 0 {
			j += order.Len()
		}
		if i, ok := firstOf[order.KeyAt(j)]; ok {
			n.index, n.seeded = i, true
			return true
		}
	}
	// Matches in blocks the order does not know about.
	n.index, n.seeded = 0, true
	return true
}

// Next advances to the following match, wrapping to the first.
func (n *Navigator) Next(count int) {
	if count == 0 {
		return
	}
	if n.index >= count-1 {
		n.index = 0
	} else {
		n.index++
	}
}

// Prev moves to the preceding match, wrapping to the last.
func (n *Navigator) Prev(count int) {
	if count == 0 {
		return
	}
	if n.index <= 0 || n.index > count-1 {
		n.index = count - 1
	} else {
		n.index--
	}
}

// Clamp resets the index to 0 when the match count shrank below it.
func (n *Navigator) Clamp(count int) {
	if n.index > count-1 {
		n.index = 0
	}
}
