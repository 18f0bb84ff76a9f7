package workspace

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/blockedit"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/wordcount"
)

// EditKind names an editor event.
type EditKind string

// Editor events accepted by ApplyEdit.
const (
	EditInsertText   EditKind = "insert-text"
	EditRemoveRange  EditKind = "remove-range"
	EditSplitBlock   EditKind = "split-block"
	EditSetSelection EditKind = "set-selection"
)

// Edit is one editor event against an open document. Command is the editor
// key command that produced it, when there is one; it selects which blocks
// get their word counts recomputed. IfMatch, when set, must match the
// checksum of the document the client last saw.
type Edit struct {
	Kind      EditKind           `json:"kind"`
	Selection docmodel.Selection `json:"selection"`
	Text      string             `json:"text,omitempty"`
	Style     docmodel.Style     `json:"style,omitempty"`
	Command   string             `json:"command,omitempty"`
	IfMatch   string             `json:"ifMatch,omitempty"`
}

// Validate checks the event shape. Selections are checked against the
// document when the edit is applied.
func (e Edit) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Kind, validation.Required,
			validation.In(EditInsertText, EditRemoveRange, EditSplitBlock, EditSetSelection)),
		validation.Field(&e.Text, validation.When(e.Kind == EditInsertText, validation.Required)),
	)
}

func (k EditKind) class() wordcount.EditClass {
	if k == EditSplitBlock {
		return wordcount.SplitBlock
	}
	return wordcount.Edited
}

// ApplyEdit applies one editor event to document id and returns the new
// state. A selection that does not fit the current snapshot fails with
// docmodel.ErrStaleSelection so the client can re-derive it.
func (s *Service) ApplyEdit(_ context.Context, id string, e Edit) (*DocumentView, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	if e.IfMatch != "" && !checksum.Matches(e.IfMatch, sess.checksum) {
		return nil, apperr.ErrConflict
	}
	content := sess.state.Content
	if !content.ValidSelection(e.Selection) {
		return nil, fmt.Errorf("workspace: edit: %w", docmodel.ErrStaleSelection)
	}
	sess.state.Selection = content.Normalize(e.Selection)
	before := sess.state

	class := e.Kind.class()
	if c, ok := wordcount.ClassifyCommand(e.Command); ok {
		class = c
	}

	var next docmodel.State
	switch e.Kind {
	case EditSetSelection:
		return s.viewLocked(sess), nil
	case EditInsertText:
		next = insertText(before, e.Text, e.Style)
	case EditRemoveRange:
		if before.Selection.IsCollapsed() {
			return s.viewLocked(sess), nil
		}
		sel := before.Selection
		next = docmodel.State{
			Content:   content.RemoveRange(sel),
			Selection: docmodel.Collapsed(sel.StartKey(), sel.StartOffset()),
		}
	case EditSplitBlock:
		if next, err = splitBlock(before); err != nil {
			return nil, err
		}
	}

	if err := s.commitLocked(sess, next, class); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// insertText replaces the selection with text. Text typed inside a link
// joins that link.
func insertText(s docmodel.State, text string, style docmodel.Style) docmodel.State {
	var entity docmodel.EntityKey
	if blockedit.SelectionInMiddleOfLink(s) {
		entity = entityBefore(s.Content, s.Selection)
	}
	sel := s.Selection
	var c *docmodel.Content
	if sel.IsCollapsed() {
		c = s.Content.InsertText(sel, text, style, entity)
	} else {
		c = s.Content.ReplaceText(sel, text, style, entity)
	}
	return docmodel.State{
		Content:   c,
		Selection: docmodel.Collapsed(sel.StartKey(), sel.StartOffset()+len([]rune(text))),
	}
}

// entityBefore returns the entity of the character before the selection
// start, looking into the previous block at offset 0.
func entityBefore(c *docmodel.Content, sel docmodel.Selection) docmodel.EntityKey {
	if off := sel.StartOffset(); off > 0 {
		return c.BlockForKey(sel.StartKey()).EntityAt(off - 1)
	}
	if prev := c.BlockBefore(sel.StartKey()); prev != nil && prev.Length() > 0 {
		return prev.EntityAt(prev.Length() - 1)
	}
	return ""
}

// splitBlock breaks the block at the selection, keeping section titles whole.
func splitBlock(s docmodel.State) (docmodel.State, error) {
	next, fixed, err := blockedit.FixWikiSectionSplit(s)
	if err != nil {
		return s, err
	}
	if fixed {
		return next, nil
	}
	c, lower := s.Content.SplitBlock(s.Selection)
	if lower == "" {
		return s, fmt.Errorf("workspace: split: %w", docmodel.ErrStaleSelection)
	}
	return docmodel.State{Content: c, Selection: docmodel.Collapsed(lower, 0)}, nil
}
