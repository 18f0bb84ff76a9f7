package blockedit

import "github.com/starford/folio/internal/docmodel"

// RemoveEndingNewline pulls a selection that ends at offset 0 of a later
// block back to the end of the block before, so the trailing block break is
// not part of the selection.
func RemoveEndingNewline(s docmodel.State) docmodel.State {
	sel := s.Selection
	if sel.IsCollapsed() || sel.EndOffset() != 0 || sel.StartKey() == sel.EndKey() {
		return s
	}
	prev := s.Content.BlockBefore(sel.EndKey())
	if prev == nil {
		return s
	}
	s.Selection = docmodel.Span(sel.StartKey(), sel.StartOffset(), prev.Key(), prev.Length())
	return s
}

// SelectionHasEntityType reports whether any selected character carries an
// entity of type typ.
func SelectionHasEntityType(s docmodel.State, typ docmodel.EntityType) bool {
	c, sel := s.Content, s.Selection
	for _, b := range c.SelectedBlocks(sel) {
		start, end := 0, b.Length()
		if b.Key() == sel.StartKey() {
			start = sel.StartOffset()
		}
		if b.Key() == sel.EndKey() {
			end = sel.EndOffset()
		}
		for i := start; i < end; i++ {
			if e, ok := c.Entity(b.EntityAt(i)); ok && e.Type == typ {
				return true
			}
		}
	}
	return false
}

// SelectionInMiddleOfLink reports whether the characters on both sides of the
// selection belong to the same LINK-SOURCE entity, so an insertion there
// would land inside the link. Block boundaries are looked across.
func SelectionInMiddleOfLink(s docmodel.State) bool {
	c, sel := s.Content, s.Selection
	if !c.ValidSelection(sel) {
		return false
	}
	startKey, so := sel.StartKey(), sel.StartOffset()
	endKey, eo := sel.EndKey(), sel.EndOffset()

	var before docmodel.EntityKey
	if so == 0 {
		prev := c.BlockBefore(startKey)
		if prev == nil {
			return false
		}
		before = prev.EntityAt(prev.Length() - 1)
	} else {
		before = c.BlockForKey(startKey).EntityAt(so - 1)
	}

	var after docmodel.EntityKey
	if end := c.BlockForKey(endKey); eo >= end.Length() {
		next := c.BlockAfter(endKey)
		if next == nil {
			return false
		}
		after = next.EntityAt(0)
	} else {
		after = end.EntityAt(eo)
	}

	if before == "" || before != after {
		return false
	}
	e, ok := c.Entity(before)
	return ok && e.Type == docmodel.EntityLinkSource
}

// SelectionContainsBlockType reports whether any selected block has type typ.
func SelectionContainsBlockType(s docmodel.State, typ docmodel.BlockType) bool {
	for _, b := range s.Content.SelectedBlocks(s.Selection) {
		if b.Type() == typ {
			return true
		}
	}
	return false
}
