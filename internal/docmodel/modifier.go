package docmodel

import (
	"slices"
)

// Edit primitives. Each returns a new snapshot and leaves c untouched. A
// selection that does not match c (see ValidSelection) leaves the content
// unchanged; callers that need to report that case check it up front.

// bounds resolves sel to block positions and clamped offsets.
func (c *Content) bounds(sel Selection) (si, so, ei, eo int, ok bool) {
	if !c.ValidSelection(sel) {
		return 0, 0, 0, 0, false
	}
	si, ei = c.IndexOf(sel.StartKey()), c.IndexOf(sel.EndKey())
	so, eo = sel.StartOffset(), sel.EndOffset()
	if ei < si || (si == ei && eo < so) {
		return 0, 0, 0, 0, false
	}
	return si, so, ei, eo, true
}

// RemoveRange deletes the selected characters. When the range spans blocks,
// the start block keeps its key, type and data and absorbs the remainder of
// the end block.
func (c *Content) RemoveRange(sel Selection) *Content {
	si, so, ei, eo, ok := c.bounds(sel)
	if !ok || (si == ei && so == eo) {
		return c
	}
	start, end := c.blocks[si], c.blocks[ei]
	text := slices.Concat(start.text[:so], end.text[eo:])
	chars := slices.Concat(start.chars[:so], end.chars[eo:])
	merged := start.withText(text, chars)
	if si == ei {
		return c.replaceBlocks(map[int]*Block{si: merged})
	}
	return c.WithBlocks(slices.Concat(c.blocks[:si], []*Block{merged}, c.blocks[ei+1:]))
}

// InsertText inserts text at the selection start. Newlines are inserted
// literally; use SplitBlock to break a block.
func (c *Content) InsertText(at Selection, text string, style Style, entity EntityKey) *Content {
	b := c.BlockForKey(at.StartKey())
	if b == nil || text == "" {
		return c
	}
	off := clamp(at.StartOffset(), b.Length())
	ins := []rune(text)
	meta := make([]CharMeta, len(ins))
	for i := range meta {
		meta[i] = CharMeta{Entity: entity, Style: style}
	}
	newText := slices.Concat(b.text[:off], ins, b.text[off:])
	newChars := slices.Concat(b.chars[:off], meta, b.chars[off:])
	return c.replaceBlocks(map[int]*Block{c.index[b.key]: b.withText(newText, newChars)})
}

// ReplaceText removes the selected range and inserts text at its start.
func (c *Content) ReplaceText(sel Selection, text string, style Style, entity EntityKey) *Content {
	if _, _, _, _, ok := c.bounds(sel); !ok {
		return c
	}
	removed := c.RemoveRange(sel)
	return removed.InsertText(Collapsed(sel.StartKey(), sel.StartOffset()), text, style, entity)
}

// SplitBlock removes the selected range and splits the start block at the
// selection start. The upper half keeps the key, type and data; the lower
// half gets a fresh key, the same type and empty data. It returns the key of
// the lower block, or "" when the selection does not match c.
func (c *Content) SplitBlock(sel Selection) (*Content, string) {
	if _, _, _, _, ok := c.bounds(sel); !ok {
		return c, ""
	}
	c = c.RemoveRange(sel)
	i := c.IndexOf(sel.StartKey())
	b := c.blocks[i]
	off := clamp(sel.StartOffset(), b.Length())

	above := b.withText(slices.Clone(b.text[:off]), slices.Clone(b.chars[:off]))
	below := &Block{
		key:   c.NewKey(),
		typ:   b.typ,
		text:  slices.Clone(b.text[off:]),
		chars: slices.Clone(b.chars[off:]),
	}
	blocks := slices.Concat(c.blocks[:i], []*Block{above, below}, c.blocks[i+1:])
	return c.WithBlocks(blocks), below.key
}

// SetBlockType retypes every block touched by sel.
func (c *Content) SetBlockType(sel Selection, typ BlockType) *Content {
	si, _, ei, _, ok := c.bounds(sel)
	if !ok {
		return c
	}
	repl := make(map[int]*Block, ei-si+1)
	for i := si; i <= ei; i++ {
		repl[i] = c.blocks[i].withType(typ)
	}
	return c.replaceBlocks(repl)
}

// SetBlockData replaces the metadata of every block touched by sel.
func (c *Content) SetBlockData(sel Selection, data BlockData) *Content {
	si, _, ei, _, ok := c.bounds(sel)
	if !ok {
		return c
	}
	repl := make(map[int]*Block, ei-si+1)
	for i := si; i <= ei; i++ {
		repl[i] = c.blocks[i].withData(data)
	}
	return c.replaceBlocks(repl)
}

// ApplyEntity attaches key to every selected character. An empty key removes
// any entity from the selection.
func (c *Content) ApplyEntity(sel Selection, key EntityKey) *Content {
	return c.mapChars(sel, func(m CharMeta) CharMeta {
		m.Entity = key
		return m
	})
}

// ClearEntities removes the entity from selected characters whose entity
// satisfies match.
func (c *Content) ClearEntities(sel Selection, match func(Entity) bool) *Content {
	return c.mapChars(sel, func(m CharMeta) CharMeta {
		if e, ok := c.Entity(m.Entity); ok && match(e) {
			m.Entity = ""
		}
		return m
	})
}

func (c *Content) mapChars(sel Selection, fn func(CharMeta) CharMeta) *Content {
	si, so, ei, eo, ok := c.bounds(sel)
	if !ok {
		return c
	}
	repl := make(map[int]*Block, ei-si+1)
	for i := si; i <= ei; i++ {
		b := c.blocks[i]
		start, end := 0, b.Length()
		if i == si {
			start = so
		}
		if i == ei {
			end = eo
		}
		if start >= end {
			continue
		}
		chars := slices.Clone(b.chars)
		for j := start; j < end; j++ {
			chars[j] = fn(chars[j])
		}
		repl[i] = b.withText(b.text, chars)
	}
	if len(repl) == 0 {
		return c
	}
	return c.replaceBlocks(repl)
}

// InsertBlocks inserts blocks before position at. Positions past the end
// append.
func (c *Content) InsertBlocks(at int, blocks ...*Block) *Content {
	at = clamp(at, len(c.blocks))
	return c.WithBlocks(slices.Concat(c.blocks[:at], blocks, c.blocks[at:]))
}

// RemoveBlocks deletes the blocks with the given keys. Removing every block
// leaves a single empty unstyled block behind.
func (c *Content) RemoveBlocks(keys ...string) *Content {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	kept := make([]*Block, 0, len(c.blocks))
	for _, b := range c.blocks {
		if _, ok := drop[b.key]; !ok {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(c.blocks) {
		return c
	}
	return c.WithBlocks(kept)
}
