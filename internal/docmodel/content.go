package docmodel

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Content is an immutable document snapshot: an ordered block list plus the
// entity arena its characters reference. Every edit returns a new Content that
// shares unedited blocks with its parent.
type Content struct {
	blocks     []*Block
	index      map[string]int
	entities   map[EntityKey]Entity
	lastEntity int
}

// New builds a snapshot from blocks. A document always has at least one
// block, so an empty argument list yields a single empty unstyled block.
func New(blocks ...*Block) *Content {
	c := &Content{entities: map[EntityKey]Entity{}}
	return c.WithBlocks(blocks)
}

// FromLines builds a snapshot with one unstyled block per line.
func FromLines(lines ...string) *Content {
	c := &Content{entities: map[EntityKey]Entity{}}
	blocks := make([]*Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, NewBlock(c.newKey(blocks), Unstyled, line))
	}
	return c.WithBlocks(blocks)
}

// WithBlocks returns a snapshot holding blocks and c's entity arena.
func (c *Content) WithBlocks(blocks []*Block) *Content {
	if len(blocks) == 0 {
		blocks = []*Block{NewBlock(c.newKey(nil), Unstyled, "")}
	}
	out := &Content{
		blocks:     slices.Clone(blocks),
		index:      make(map[string]int, len(blocks)),
		entities:   c.entities,
		lastEntity: c.lastEntity,
	}
	for i, b := range out.blocks {
		out.index[b.key] = i
	}
	return out
}

// replaceBlocks swaps blocks in place without changing the key order, so the
// key index can be shared with c.
func (c *Content) replaceBlocks(repl map[int]*Block) *Content {
	out := &Content{
		blocks:     slices.Clone(c.blocks),
		index:      c.index,
		entities:   c.entities,
		lastEntity: c.lastEntity,
	}
	for i, b := range repl {
		out.blocks[i] = b
	}
	return out
}

// Len returns the number of blocks.
func (c *Content) Len() int { return len(c.blocks) }

// BlockAt returns the block at position i.
func (c *Content) BlockAt(i int) *Block { return c.blocks[i] }

// KeyAt returns the key of the block at position i.
func (c *Content) KeyAt(i int) string { return c.blocks[i].key }

// IndexOf returns the position of the block with key, or -1.
func (c *Content) IndexOf(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

// Blocks returns the blocks in document order.
func (c *Content) Blocks() []*Block { return slices.Clone(c.blocks) }

// BlockKeys returns the block keys in document order.
func (c *Content) BlockKeys() []string {
	keys := make([]string, len(c.blocks))
	for i, b := range c.blocks {
		keys[i] = b.key
	}
	return keys
}

// BlockForKey returns the block with key, or nil.
func (c *Content) BlockForKey(key string) *Block {
	if i, ok := c.index[key]; ok {
		return c.blocks[i]
	}
	return nil
}

// BlockBefore returns the block preceding key, or nil.
func (c *Content) BlockBefore(key string) *Block {
	if i, ok := c.index[key]; ok && i > 0 {
		return c.blocks[i-1]
	}
	return nil
}

// BlockAfter returns the block following key, or nil.
func (c *Content) BlockAfter(key string) *Block {
	if i, ok := c.index[key]; ok && i+1 < len(c.blocks) {
		return c.blocks[i+1]
	}
	return nil
}

// KeyBefore returns the key of the block preceding key, or "".
func (c *Content) KeyBefore(key string) string {
	if b := c.BlockBefore(key); b != nil {
		return b.key
	}
	return ""
}

// KeyAfter returns the key of the block following key, or "".
func (c *Content) KeyAfter(key string) string {
	if b := c.BlockAfter(key); b != nil {
		return b.key
	}
	return ""
}

// FirstBlock returns the first block.
func (c *Content) FirstBlock() *Block { return c.blocks[0] }

// LastBlock returns the last block.
func (c *Content) LastBlock() *Block { return c.blocks[len(c.blocks)-1] }

// Entity returns the entity stored under key.
func (c *Content) Entity(key EntityKey) (Entity, bool) {
	if key == "" {
		return Entity{}, false
	}
	e, ok := c.entities[key]
	return e, ok
}

// EntityOfType returns the entity at offset of b when it has type typ.
func (c *Content) EntityOfType(b *Block, offset int, typ EntityType) (Entity, EntityKey, bool) {
	key := b.EntityAt(offset)
	e, ok := c.Entity(key)
	if !ok || e.Type != typ {
		return Entity{}, "", false
	}
	return e, key, true
}

// CreateEntity adds e to the arena and returns the new snapshot and the key.
func (c *Content) CreateEntity(e Entity) (*Content, EntityKey) {
	next := c.lastEntity + 1
	key := EntityKey(strconv.Itoa(next))
	entities := maps.Clone(c.entities)
	if e.Data != nil {
		e.Data = maps.Clone(e.Data)
	}
	entities[key] = e
	return &Content{
		blocks:     c.blocks,
		index:      c.index,
		entities:   entities,
		lastEntity: next,
	}, key
}

// PlainText joins the block texts with newlines.
func (c *Content) PlainText() string {
	var sb strings.Builder
	for i, b := range c.blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(b.text))
	}
	return sb.String()
}

// ValidSelection reports whether both ends of sel exist in c.
func (c *Content) ValidSelection(sel Selection) bool {
	a, f := c.BlockForKey(sel.AnchorKey), c.BlockForKey(sel.FocusKey)
	if a == nil || f == nil {
		return false
	}
	return sel.AnchorOffset >= 0 && sel.AnchorOffset <= a.Length() &&
		sel.FocusOffset >= 0 && sel.FocusOffset <= f.Length()
}

// Normalize sets IsBackward according to the block order of c.
func (c *Content) Normalize(sel Selection) Selection {
	ai, fi := c.IndexOf(sel.AnchorKey), c.IndexOf(sel.FocusKey)
	sel.IsBackward = fi < ai || (fi == ai && sel.FocusOffset < sel.AnchorOffset)
	return sel
}

// SelectedBlocks returns the blocks from the selection start through its end.
func (c *Content) SelectedBlocks(sel Selection) []*Block {
	si, ei := c.IndexOf(sel.StartKey()), c.IndexOf(sel.EndKey())
	if si < 0 || ei < 0 || ei < si {
		return nil
	}
	return slices.Clone(c.blocks[si : ei+1])
}

// TextInSelection returns the selected text with block boundaries rendered as
// newlines.
func (c *Content) TextInSelection(sel Selection) string {
	blocks := c.SelectedBlocks(sel)
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		start, end := 0, b.Length()
		if b.key == sel.StartKey() {
			start = sel.StartOffset()
		}
		if b.key == sel.EndKey() {
			end = sel.EndOffset()
		}
		parts = append(parts, b.Slice(start, end))
	}
	return strings.Join(parts, "\n")
}

// NewKey returns a block key that is unused in c.
func (c *Content) NewKey() string {
	return c.newKey(nil)
}

func (c *Content) newKey(pending []*Block) string {
	for {
		key := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if c.index != nil {
			if _, taken := c.index[key]; taken {
				continue
			}
		}
		if slices.ContainsFunc(pending, func(b *Block) bool { return b.key == key }) {
			continue
		}
		return key
	}
}

// NewKeys returns n distinct block keys that are unused in c.
func (c *Content) NewKeys(n int) []string {
	pending := make([]*Block, 0, n)
	keys := make([]string, 0, n)
	for range n {
		key := c.newKey(pending)
		pending = append(pending, &Block{key: key})
		keys = append(keys, key)
	}
	return keys
}
