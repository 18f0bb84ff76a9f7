// Package docmodel implements the immutable block document model the editor
// algorithms are built on: blocks, per-character metadata, an entity arena,
// selections, and the edit primitives that produce new snapshots.
package docmodel

import "slices"

// BlockType tags the structural role of a block.
type BlockType string

// Block types used by the editor.
const (
	Unstyled        BlockType = "unstyled"
	WikiSection     BlockType = "wiki-section"
	LinkDestination BlockType = "link-destination"
)

// Style is a bit set of inline styles applied to a character.
type Style uint8

// Inline styles.
const (
	StyleBold Style = 1 << iota
	StyleItalic
	StyleUnderline
	StyleStrikethrough
)

// CharMeta is the metadata carried by every character of a block.
type CharMeta struct {
	Entity EntityKey
	Style  Style
}

// ImageRef points a block at an image asset. ImageUseID distinguishes two
// placements of the same image.
type ImageRef struct {
	ImageID    string `json:"imageId"`
	ImageUseID string `json:"imageUseId"`
	Caption    string `json:"caption,omitempty"`
	Width      int    `json:"width,omitempty"`
}

// WikiSectionData is attached to wiki-section blocks.
type WikiSectionData struct {
	IsNew bool `json:"isNew"`
}

// BlockData is the key-value metadata of a block.
type BlockData struct {
	Images      []ImageRef        `json:"images,omitempty"`
	WikiSection *WikiSectionData  `json:"wikiSection,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether d carries no metadata.
func (d BlockData) IsZero() bool {
	return len(d.Images) == 0 && d.WikiSection == nil && len(d.Extra) == 0
}

// WithImages returns a copy of d holding images.
func (d BlockData) WithImages(images []ImageRef) BlockData {
	out := d.clone()
	out.Images = slices.Clone(images)
	return out
}

func (d BlockData) clone() BlockData {
	out := BlockData{Images: slices.Clone(d.Images)}
	if d.WikiSection != nil {
		ws := *d.WikiSection
		out.WikiSection = &ws
	}
	if d.Extra != nil {
		out.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Block is an immutable unit of document structure. Offsets into a block are
// rune offsets.
type Block struct {
	key   string
	typ   BlockType
	text  []rune
	chars []CharMeta
	data  BlockData
}

// NewBlock creates a block whose characters carry no entity and no style.
func NewBlock(key string, typ BlockType, text string) *Block {
	runes := []rune(text)
	return &Block{
		key:   key,
		typ:   typ,
		text:  runes,
		chars: make([]CharMeta, len(runes)),
	}
}

// NewBlockWithData is NewBlock with metadata attached.
func NewBlockWithData(key string, typ BlockType, text string, data BlockData) *Block {
	b := NewBlock(key, typ, text)
	b.data = data.clone()
	return b
}

// Key returns the block's stable key.
func (b *Block) Key() string { return b.key }

// Type returns the block type.
func (b *Block) Type() BlockType { return b.typ }

// Text returns the block text.
func (b *Block) Text() string { return string(b.text) }

// Length returns the number of characters in the block.
func (b *Block) Length() int { return len(b.text) }

// Data returns a copy of the block metadata.
func (b *Block) Data() BlockData { return b.data.clone() }

// Slice returns the text in [start, end), clamped to the block.
func (b *Block) Slice(start, end int) string {
	start, end = clamp(start, len(b.text)), clamp(end, len(b.text))
	if start >= end {
		return ""
	}
	return string(b.text[start:end])
}

// CharAt returns the metadata of the character at offset. Out of range
// offsets return the zero value.
func (b *Block) CharAt(offset int) CharMeta {
	if offset < 0 || offset >= len(b.chars) {
		return CharMeta{}
	}
	return b.chars[offset]
}

// EntityAt returns the entity key at offset, or "" when there is none.
func (b *Block) EntityAt(offset int) EntityKey {
	return b.CharAt(offset).Entity
}

// FindEntityRanges calls fn for every maximal run of characters sharing one
// entity key whose first character satisfies filter. Runs are reported in
// ascending order.
func (b *Block) FindEntityRanges(filter func(CharMeta) bool, fn func(start, end int)) {
	n := len(b.chars)
	for start := 0; start < n; {
		end := start + 1
		for end < n && b.chars[end].Entity == b.chars[start].Entity {
			end++
		}
		if filter(b.chars[start]) {
			fn(start, end)
		}
		start = end
	}
}

func (b *Block) withType(typ BlockType) *Block {
	out := *b
	out.typ = typ
	return &out
}

func (b *Block) withData(data BlockData) *Block {
	out := *b
	out.data = data.clone()
	return &out
}

func (b *Block) withText(text []rune, chars []CharMeta) *Block {
	out := *b
	out.text = text
	out.chars = chars
	return &out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
