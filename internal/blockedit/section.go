// Package blockedit implements the structural edits of the editor: section
// titles, wiki-section split fix-up, block image metadata and selection
// queries. Every edit takes a state and returns the next state together with
// the selection to restore.
package blockedit

import (
	"errors"
	"fmt"

	"github.com/starford/folio/internal/docmodel"
)

// ErrImageNotFound is returned when a block holds no image with the given ids.
var ErrImageNotFound = errors.New("image not found in block")

func checkSelection(op string, s docmodel.State) error {
	if s.Content == nil || !s.Content.ValidSelection(s.Selection) {
		return fmt.Errorf("blockedit: %s: %w", op, docmodel.ErrStaleSelection)
	}
	return nil
}

// InsertSection turns the block at the caret into a new section titled
// title, or inserts one next to it, and selects the title text.
//
// An empty block under a collapsed caret becomes the section. A caret at the
// end of its block inserts the section after that block. Otherwise the block
// is split at its start: the section takes the upper (original) key and the
// block's metadata moves down with its text.
func InsertSection(s docmodel.State, title string) (docmodel.State, error) {
	if err := checkSelection("insert section", s); err != nil {
		return s, err
	}
	c, sel := s.Content, s.Selection
	startKey := sel.StartKey()
	start := c.BlockForKey(startKey)

	var key string
	switch {
	case sel.IsCollapsed() && start.Length() == 0:
		key = startKey
	case sel.IsCollapsed() && sel.StartOffset() == start.Length():
		c, key = c.SplitBlock(sel)
	default:
		var lower string
		c, lower = c.SplitBlock(docmodel.Collapsed(startKey, 0))
		c = c.SetBlockData(docmodel.Collapsed(lower, 0), start.Data())
		key = startKey
	}

	at := docmodel.Collapsed(key, 0)
	c = c.SetBlockData(at, docmodel.BlockData{WikiSection: &docmodel.WikiSectionData{IsNew: true}})
	c = c.SetBlockType(at, docmodel.WikiSection)
	c = c.InsertText(at, title, 0, "")

	return docmodel.State{
		Content:   c,
		Selection: docmodel.Span(key, 0, key, len([]rune(title))),
	}, nil
}

// FixWikiSectionSplit performs a block split at the selection when it sits
// on a wiki-section boundary, so the split never leaves two section blocks
// behind. It reports false, and leaves s alone, when the selection is not on
// such a boundary and a plain split applies.
//
// At offset 0 the empty upper block becomes unstyled and the section metadata
// stays with the title below. At the end of the title the new lower block
// becomes unstyled. Either way the caret lands at the start of the lower
// block.
func FixWikiSectionSplit(s docmodel.State) (docmodel.State, bool, error) {
	if err := checkSelection("split section", s); err != nil {
		return s, false, err
	}
	c, sel := s.Content, s.Selection

	startKey := sel.StartKey()
	start := c.BlockForKey(startKey)
	if sel.StartOffset() == 0 && start.Type() == docmodel.WikiSection {
		data := start.Data()
		c, lower := c.SplitBlock(sel)
		upper := docmodel.Collapsed(startKey, 0)
		c = c.SetBlockType(upper, docmodel.Unstyled)
		c = c.SetBlockData(upper, docmodel.BlockData{})
		c = c.SetBlockData(docmodel.Collapsed(lower, 0), data)
		return docmodel.State{Content: c, Selection: docmodel.Collapsed(lower, 0)}, true, nil
	}

	end := c.BlockForKey(sel.EndKey())
	if end.Type() == docmodel.WikiSection && sel.EndOffset() == end.Length() {
		c, lower := c.SplitBlock(sel)
		at := docmodel.Collapsed(lower, 0)
		c = c.SetBlockType(at, docmodel.Unstyled)
		return docmodel.State{Content: c, Selection: at}, true, nil
	}
	return s, false, nil
}
