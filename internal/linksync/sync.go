// Package linksync keeps inline link markers, the cross-document link
// registry and the destination copies of linked text consistent.
//
// A LINK-SOURCE entity marks tagged text in its source document. Every
// document whose id is the tag receives a copy of that text as
// link-destination blocks carrying a LINK-DEST entity with the same link id.
// Synchronize refreshes those copies from the registry; the source-side
// functions keep the registry in step with edits of the tagged text.
package linksync

import (
	"slices"
	"strings"

	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/scanner"
)

// SyncReport lists what Synchronize changed, by link id.
type SyncReport struct {
	Inserted []LinkID `json:"inserted,omitempty"`
	Updated  []LinkID `json:"updated,omitempty"`
	Removed  []LinkID `json:"removed,omitempty"`
	Aliased  []LinkID `json:"aliased,omitempty"`
}

// Changed reports whether the document was modified.
func (r SyncReport) Changed() bool {
	return len(r.Inserted)+len(r.Updated)+len(r.Removed) > 0
}

// destGroup is one logical destination copy: every range carrying the same
// LINK-DEST entity key, wherever it occurs.
type destGroup struct {
	entity      docmodel.EntityKey
	linkID      LinkID
	startKey    string
	startOffset int
	endKey      string
	endOffset   int
	blockKeys   []string
}

func (g *destGroup) span() docmodel.Selection {
	return docmodel.Span(g.startKey, g.startOffset, g.endKey, g.endOffset)
}

// Synchronize brings the destination copies in c, the document docID, in line
// with reg.
//
// Links registered for docID without a copy in c are inserted at their anchor.
// Existing copies whose text differs from the registry are rewritten, or
// removed when the registry content is empty. Copies of aliased links are left
// alone. Running Synchronize on its own output changes nothing.
func Synchronize(c *docmodel.Content, reg Registry, docID string) (*docmodel.Content, SyncReport) {
	var report SyncReport
	groups, used := scanDestinations(c, reg, &report)

	var unused []LinkID
	for _, id := range reg.TagLinks(docID) {
		if !used[id] && !slices.Contains(unused, id) {
			unused = append(unused, id)
		}
	}

	for _, id := range unused {
		content := reg.Content(id)
		if strings.Trim(content, "\n") == "" {
			// Nothing would carry the entity, so the copy could never be
			// found again.
			continue
		}
		l, _ := reg.Link(id)
		c = insertDestination(c, id, l, content)
		report.Inserted = append(report.Inserted, id)
	}

	// Later groups first, so edits never shift the offsets of groups that
	// have yet to be processed.
	slices.SortStableFunc(groups, func(a, b *destGroup) int {
		if d := c.IndexOf(a.startKey) - c.IndexOf(b.startKey); d != 0 {
			return d
		}
		return a.startOffset - b.startOffset
	})
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		content := reg.Content(g.linkID)
		if c.TextInSelection(g.span()) == content {
			continue
		}
		if content == "" {
			c = removeDestination(c, g)
			report.Removed = append(report.Removed, g.linkID)
			continue
		}
		c = rewriteDestination(c, g, content)
		report.Updated = append(report.Updated, g.linkID)
	}
	return c, report
}

// scanDestinations groups LINK-DEST ranges by entity key in document order and
// returns the set of link ids present in c. Aliased links count as present
// but are not grouped.
func scanDestinations(c *docmodel.Content, reg Registry, report *SyncReport) ([]*destGroup, map[LinkID]bool) {
	used := map[LinkID]bool{}
	byKey := map[docmodel.EntityKey]*destGroup{}
	var groups []*destGroup
	dest := scanner.EntityStrategy(docmodel.EntityLinkDest)

	for i := range c.Len() {
		b := c.BlockAt(i)
		for r := range dest(c, b) {
			key := b.EntityAt(r.Start)
			e, _ := c.Entity(key)
			id := LinkID(e.LinkID)
			used[id] = true
			if l, ok := reg.Link(id); ok && l.Aliased() {
				if !slices.Contains(report.Aliased, id) {
					report.Aliased = append(report.Aliased, id)
				}
				continue
			}
			g, ok := byKey[key]
			if !ok {
				g = &destGroup{entity: key, linkID: id, startKey: b.Key(), startOffset: r.Start}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.endKey, g.endOffset = b.Key(), r.End
			if !slices.Contains(g.blockKeys, b.Key()) {
				g.blockKeys = append(g.blockKeys, b.Key())
			}
		}
	}
	absorbEmptyLines(c, reg, groups)
	return groups, used
}

// absorbEmptyLines extends groups over the empty link-destination blocks that
// directly follow or precede them. Those blocks hold the empty lines of a
// multi-line copy and carry no characters for the entity to mark. A group
// takes at most as many as its registry content has leading or trailing
// newlines, so a neighbouring copy keeps its own empty lines. Groups whose
// content is gone go last and sweep up whatever empty lines are left, so
// removing them leaves no orphan blocks.
func absorbEmptyLines(c *docmodel.Content, reg Registry, groups []*destGroup) {
	claimed := map[string]bool{}
	for _, g := range groups {
		for _, k := range g.blockKeys {
			claimed[k] = true
		}
	}
	var emptied []*destGroup
	for _, g := range groups {
		content := reg.Content(g.linkID)
		if content == "" {
			emptied = append(emptied, g)
			continue
		}
		leading := len(content) - len(strings.TrimLeft(content, "\n"))
		trailing := len(content) - len(strings.TrimRight(content, "\n"))
		g.absorb(c, claimed, leading, trailing)
	}
	for _, g := range emptied {
		g.absorb(c, claimed, c.Len(), c.Len())
	}
}

// absorb extends g over up to leading empty link-destination blocks before it
// and trailing ones after it, skipping blocks already claimed.
func (g *destGroup) absorb(c *docmodel.Content, claimed map[string]bool, leading, trailing int) {
	emptyDest := func(b *docmodel.Block) bool {
		return b != nil && b.Type() == docmodel.LinkDestination && b.Length() == 0 && !claimed[b.Key()]
	}
	if g.endOffset == c.BlockForKey(g.endKey).Length() {
		for n := 0; n < trailing; n++ {
			next := c.BlockAfter(g.endKey)
			if !emptyDest(next) {
				break
			}
			claimed[next.Key()] = true
			g.endKey, g.endOffset = next.Key(), 0
			g.blockKeys = append(g.blockKeys, next.Key())
		}
	}
	if g.startOffset == 0 {
		for n := 0; n < leading; n++ {
			prev := c.BlockBefore(g.startKey)
			if !emptyDest(prev) {
				break
			}
			claimed[prev.Key()] = true
			g.startKey = prev.Key()
			g.blockKeys = append([]string{prev.Key()}, g.blockKeys...)
		}
	}
}

// insertDestination adds the copy of link id to c: one link-destination block
// per content line, optionally under a new section title, with one LINK-DEST
// entity spanning all of them.
func insertDestination(c *docmodel.Content, id LinkID, l Link, content string) *docmodel.Content {
	lines := strings.Split(content, "\n")
	blocks := c.Blocks()
	if len(blocks) == 1 && blocks[0].Length() == 0 {
		blocks = nil
	}

	keys := c.NewKeys(len(lines) + 1)
	anchor := l.InitialSectionKey
	if ns := l.NewSection; ns != nil {
		section := docmodel.NewBlock(keys[len(lines)], docmodel.WikiSection, ns.NewName)
		at := len(blocks)
		if ns.InsertBeforeKey == TopOfPage {
			at = 0
		} else if i := indexOf(blocks, ns.InsertBeforeKey); i >= 0 {
			at = i
		}
		blocks = slices.Insert(blocks, at, section)
		anchor = section.Key()
	}

	at := len(blocks)
	switch anchor {
	case TopOfPage:
		at = 0
	case BottomOfPage:
	default:
		if i := indexOf(blocks, anchor); i >= 0 {
			at = i + 1
		}
	}
	for i, line := range lines {
		blocks = slices.Insert(blocks, at, docmodel.NewBlock(keys[i], docmodel.LinkDestination, line))
		at++
	}

	c = c.WithBlocks(blocks)
	c, entity := c.CreateEntity(docmodel.Entity{Type: docmodel.EntityLinkDest, LinkID: int(id)})
	last := c.BlockForKey(keys[len(lines)-1])
	return c.ApplyEntity(docmodel.Span(keys[0], 0, last.Key(), last.Length()), entity)
}

// removeDestination deletes a copy. When the copy fills its blocks entirely
// the blocks themselves go, so no empty line is left behind.
func removeDestination(c *docmodel.Content, g *destGroup) *docmodel.Content {
	si, ei := c.IndexOf(g.startKey), c.IndexOf(g.endKey)
	if g.startOffset == 0 && g.endOffset == c.BlockAt(ei).Length() {
		keys := make([]string, 0, ei-si+1)
		for i := si; i <= ei; i++ {
			keys = append(keys, c.KeyAt(i))
		}
		return c.RemoveBlocks(keys...)
	}
	return c.RemoveRange(g.span())
}

// rewriteDestination replaces the text of a copy with content, keeping its
// entity, then splits the result back into one block per line.
func rewriteDestination(c *docmodel.Content, g *destGroup, content string) *docmodel.Content {
	c = c.ReplaceText(g.span(), content, 0, g.entity)
	for {
		nl := lastIndex([]rune(c.BlockForKey(g.startKey).Text()), '\n')
		if nl < 0 {
			return c
		}
		c, _ = c.SplitBlock(docmodel.Span(g.startKey, nl, g.startKey, nl+1))
	}
}

func lastIndex(s []rune, r rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == r {
			return i
		}
	}
	return -1
}

func indexOf(blocks []*docmodel.Block, key string) int {
	return slices.IndexFunc(blocks, func(b *docmodel.Block) bool { return b.Key() == key })
}
