package linksync

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/scanner"
)

// Errors returned by the source-side operations.
var (
	ErrEmptySelection = errors.New("selection is empty")
	ErrNoTag          = errors.New("tag is required")
)

// CreateOptions describes a new source link.
type CreateOptions struct {
	Tag               string
	DocumentID        string
	InitialSectionKey string
	NewSection        *NewSectionOptions
}

// CreateResult is the outcome of CreateSourceLink.
type CreateResult struct {
	State    docmodel.State
	Registry Registry
	LinkID   LinkID
	// Removal reports the links that were cleared from the selection first.
	Removal RemovalResult
}

// CreateSourceLink tags the selected text of document opts.DocumentID with
// opts.Tag. Links already in the selection are removed first, then a
// LINK-SOURCE entity with a fresh id is applied and the selected text becomes
// the link content.
func CreateSourceLink(s docmodel.State, reg Registry, opts CreateOptions) (CreateResult, error) {
	if opts.Tag == "" {
		return CreateResult{}, fmt.Errorf("linksync: create: %w", ErrNoTag)
	}
	if !s.Content.ValidSelection(s.Selection) {
		return CreateResult{}, fmt.Errorf("linksync: create: %w", docmodel.ErrStaleSelection)
	}
	if s.Selection.IsCollapsed() {
		return CreateResult{}, fmt.Errorf("linksync: create: %w", ErrEmptySelection)
	}
	s.Selection = s.Content.Normalize(s.Selection)

	id := reg.NextLinkID()
	removal, err := RemoveSourceLinks(s, reg)
	if err != nil {
		return CreateResult{}, err
	}

	sel := s.Selection
	c, key := removal.State.Content.CreateEntity(docmodel.Entity{Type: docmodel.EntityLinkSource, LinkID: int(id)})
	c = c.ApplyEntity(sel, key)

	next := removal.Registry.WithLink(id, Link{
		Source:            opts.DocumentID,
		Content:           c.TextInSelection(sel),
		SourceEntityKey:   key,
		InitialSectionKey: opts.InitialSectionKey,
		NewSection:        opts.NewSection,
	}, opts.Tag)

	return CreateResult{
		State:    docmodel.State{Content: c, Selection: sel},
		Registry: next,
		LinkID:   id,
		Removal:  removal,
	}, nil
}

// RemovalResult is the outcome of RemoveSourceLinks.
type RemovalResult struct {
	State    docmodel.State
	Registry Registry
	// Deleted holds links whose whole text was selected; their rows are gone.
	Deleted []LinkID
	// NeedsResync holds links only partly selected. Their rows are unchanged
	// and their content must be refreshed from what is left of the source.
	NeedsResync []LinkID
}

// RemoveSourceLinks strips LINK-SOURCE entities from the selection. For each
// link touched, the selected part of its text is compared with the registry
// content: a full match deletes the link, anything else queues it for
// resynchronization.
func RemoveSourceLinks(s docmodel.State, reg Registry) (RemovalResult, error) {
	c, sel := s.Content, s.Selection
	if !c.ValidSelection(sel) {
		return RemovalResult{}, fmt.Errorf("linksync: remove: %w", docmodel.ErrStaleSelection)
	}
	sel = c.Normalize(sel)

	var order []LinkID
	fragments := map[LinkID]*joinedText{}
	source := scanner.EntityStrategy(docmodel.EntityLinkSource)
	for _, b := range c.SelectedBlocks(sel) {
		for r := range source(c, b) {
			start, end := r.Start, r.End
			if b.Key() == sel.StartKey() {
				start = max(start, sel.StartOffset())
			}
			if b.Key() == sel.EndKey() {
				end = min(end, sel.EndOffset())
			}
			if start >= end {
				continue
			}
			e, _ := c.Entity(b.EntityAt(r.Start))
			id := LinkID(e.LinkID)
			if _, seen := fragments[id]; !seen {
				order = append(order, id)
				fragments[id] = &joinedText{}
			}
			fragments[id].add(b.Key(), b.Slice(start, end))
		}
	}

	out := RemovalResult{Registry: reg}
	for _, id := range order {
		l, ok := reg.Link(id)
		if !ok {
			continue
		}
		if fragments[id].String() == l.Content {
			out.Registry = out.Registry.WithoutLink(id)
			out.Deleted = append(out.Deleted, id)
		} else {
			out.NeedsResync = append(out.NeedsResync, id)
		}
	}

	out.State = docmodel.State{
		Content:   c.ClearEntities(sel, isLinkSource),
		Selection: sel,
	}
	return out, nil
}

func isLinkSource(e docmodel.Entity) bool { return e.Type == docmodel.EntityLinkSource }

// RefreshReport lists what RefreshSourceContent changed.
type RefreshReport struct {
	Updated []LinkID `json:"updated,omitempty"`
	Deleted []LinkID `json:"deleted,omitempty"`
}

// RefreshSourceContent recomputes the content of links whose source is docID
// from the LINK-SOURCE text still present in c. A link with no text left is
// deleted. Ids that are unknown or belong to another document are skipped.
func RefreshSourceContent(c *docmodel.Content, reg Registry, docID string, ids []LinkID) (Registry, RefreshReport) {
	var report RefreshReport
	texts := SourceTexts(c)
	for _, id := range ids {
		l, ok := reg.Link(id)
		if !ok || l.Source != docID {
			continue
		}
		text, present := texts[id]
		switch {
		case !present:
			reg = reg.WithoutLink(id)
			report.Deleted = append(report.Deleted, id)
		case text != l.Content:
			reg = reg.WithContent(id, text)
			report.Updated = append(report.Updated, id)
		}
	}
	return reg, report
}

// SourceTexts returns, per link id, the LINK-SOURCE text in c with block
// breaks rendered as newlines.
func SourceTexts(c *docmodel.Content) map[LinkID]string {
	fragments := map[LinkID]*joinedText{}
	source := scanner.EntityStrategy(docmodel.EntityLinkSource)
	for i := range c.Len() {
		b := c.BlockAt(i)
		for r := range source(c, b) {
			e, _ := c.Entity(b.EntityAt(r.Start))
			id := LinkID(e.LinkID)
			if fragments[id] == nil {
				fragments[id] = &joinedText{}
			}
			fragments[id].add(b.Key(), b.Slice(r.Start, r.End))
		}
	}
	out := make(map[LinkID]string, len(fragments))
	for id, f := range fragments {
		out[id] = f.String()
	}
	return out
}

// joinedText concatenates the fragments of one link. Fragments from the same
// block are joined directly; a newline separates blocks.
type joinedText struct {
	sb      strings.Builder
	lastKey string
	started bool
}

func (j *joinedText) add(blockKey, fragment string) {
	if j.started && blockKey != j.lastKey {
		j.sb.WriteByte('\n')
	}
	j.sb.WriteString(fragment)
	j.lastKey, j.started = blockKey, true
}

func (j *joinedText) String() string { return j.sb.String() }

// SourceLinkIDs returns the ids of the LINK-SOURCE entities in c, ascending.
func SourceLinkIDs(c *docmodel.Content) []LinkID {
	texts := SourceTexts(c)
	ids := make([]LinkID, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
