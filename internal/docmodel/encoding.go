package docmodel

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RawDocument is the persisted form of a Content snapshot. Ranges are
// expressed as rune offsets and lengths.
type RawDocument struct {
	Blocks    []RawBlock           `json:"blocks"`
	EntityMap map[EntityKey]Entity `json:"entityMap"`
}

// RawBlock is the persisted form of a Block.
type RawBlock struct {
	Key          string           `json:"key"`
	Type         BlockType        `json:"type"`
	Text         string           `json:"text"`
	StyleRanges  []RawStyleRange  `json:"inlineStyleRanges,omitempty"`
	EntityRanges []RawEntityRange `json:"entityRanges,omitempty"`
	Data         BlockData        `json:"data"`
}

// RawStyleRange marks a run of characters carrying one inline style.
type RawStyleRange struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Style  string `json:"style"`
}

// RawEntityRange marks a run of characters carrying one entity.
type RawEntityRange struct {
	Offset int       `json:"offset"`
	Length int       `json:"length"`
	Key    EntityKey `json:"key"`
}

var styleNames = []struct {
	style Style
	name  string
}{
	{StyleBold, "BOLD"},
	{StyleItalic, "ITALIC"},
	{StyleUnderline, "UNDERLINE"},
	{StyleStrikethrough, "STRIKETHROUGH"},
}

// Raw converts c to its persisted form. Only entities referenced by some
// character are emitted.
func (c *Content) Raw() RawDocument {
	doc := RawDocument{
		Blocks:    make([]RawBlock, 0, len(c.blocks)),
		EntityMap: map[EntityKey]Entity{},
	}
	for _, b := range c.blocks {
		rb := RawBlock{Key: b.key, Type: b.typ, Text: string(b.text), Data: b.data.clone()}
		b.FindEntityRanges(func(m CharMeta) bool { return m.Entity != "" }, func(start, end int) {
			key := b.chars[start].Entity
			rb.EntityRanges = append(rb.EntityRanges, RawEntityRange{Offset: start, Length: end - start, Key: key})
			if e, ok := c.entities[key]; ok {
				doc.EntityMap[key] = e
			}
		})
		for _, sn := range styleNames {
			for start := 0; start < len(b.chars); start++ {
				if b.chars[start].Style&sn.style == 0 {
					continue
				}
				end := start + 1
				for end < len(b.chars) && b.chars[end].Style&sn.style != 0 {
					end++
				}
				rb.StyleRanges = append(rb.StyleRanges, RawStyleRange{Offset: start, Length: end - start, Style: sn.name})
				start = end
			}
		}
		doc.Blocks = append(doc.Blocks, rb)
	}
	return doc
}

// FromRaw rebuilds a snapshot from its persisted form.
func FromRaw(doc RawDocument) (*Content, error) {
	c := &Content{entities: make(map[EntityKey]Entity, len(doc.EntityMap))}
	for key, e := range doc.EntityMap {
		c.entities[key] = e
		if n, err := strconv.Atoi(string(key)); err == nil && n > c.lastEntity {
			c.lastEntity = n
		}
	}
	blocks := make([]*Block, 0, len(doc.Blocks))
	seen := make(map[string]struct{}, len(doc.Blocks))
	for _, rb := range doc.Blocks {
		if rb.Key == "" {
			return nil, fmt.Errorf("block %d: missing key", len(blocks))
		}
		if _, dup := seen[rb.Key]; dup {
			return nil, fmt.Errorf("block %q: duplicate key", rb.Key)
		}
		seen[rb.Key] = struct{}{}
		typ := rb.Type
		if typ == "" {
			typ = Unstyled
		}
		b := NewBlockWithData(rb.Key, typ, rb.Text, rb.Data)
		for _, r := range rb.EntityRanges {
			if _, ok := c.entities[r.Key]; !ok {
				return nil, fmt.Errorf("block %q: unknown entity %q", rb.Key, r.Key)
			}
			if err := eachOffset(b, r.Offset, r.Length, func(i int) { b.chars[i].Entity = r.Key }); err != nil {
				return nil, err
			}
		}
		for _, r := range rb.StyleRanges {
			style, ok := parseStyle(r.Style)
			if !ok {
				continue
			}
			if err := eachOffset(b, r.Offset, r.Length, func(i int) { b.chars[i].Style |= style }); err != nil {
				return nil, err
			}
		}
		blocks = append(blocks, b)
	}
	return c.WithBlocks(blocks), nil
}

func eachOffset(b *Block, offset, length int, fn func(int)) error {
	if offset < 0 || length < 0 || offset+length > len(b.chars) {
		return fmt.Errorf("block %q: range [%d,%d) out of bounds", b.key, offset, offset+length)
	}
	for i := offset; i < offset+length; i++ {
		fn(i)
	}
	return nil
}

func parseStyle(name string) (Style, bool) {
	for _, sn := range styleNames {
		if sn.name == name {
			return sn.style, true
		}
	}
	return 0, false
}

// MarshalJSON encodes c in its raw form.
func (c *Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Raw())
}

// UnmarshalJSON decodes a raw document into c.
func (c *Content) UnmarshalJSON(data []byte) error {
	var doc RawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out, err := FromRaw(doc)
	if err != nil {
		return err
	}
	*c = *out
	return nil
}
