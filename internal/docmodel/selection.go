package docmodel

// Selection is a caret or range between two block positions. Anchor is where
// the selection started and Focus where it ended; IsBackward is true when the
// focus precedes the anchor in document order.
type Selection struct {
	AnchorKey    string `json:"anchorKey"`
	AnchorOffset int    `json:"anchorOffset"`
	FocusKey     string `json:"focusKey"`
	FocusOffset  int    `json:"focusOffset"`
	IsBackward   bool   `json:"isBackward,omitempty"`
}

// Collapsed returns a caret at offset in block key.
func Collapsed(key string, offset int) Selection {
	return Selection{AnchorKey: key, AnchorOffset: offset, FocusKey: key, FocusOffset: offset}
}

// Span returns a forward selection from (startKey, startOffset) to
// (endKey, endOffset).
func Span(startKey string, startOffset int, endKey string, endOffset int) Selection {
	return Selection{AnchorKey: startKey, AnchorOffset: startOffset, FocusKey: endKey, FocusOffset: endOffset}
}

// StartKey returns the block key of the selection start.
func (s Selection) StartKey() string {
	if s.IsBackward {
		return s.FocusKey
	}
	return s.AnchorKey
}

// StartOffset returns the offset of the selection start.
func (s Selection) StartOffset() int {
	if s.IsBackward {
		return s.FocusOffset
	}
	return s.AnchorOffset
}

// EndKey returns the block key of the selection end.
func (s Selection) EndKey() string {
	if s.IsBackward {
		return s.AnchorKey
	}
	return s.FocusKey
}

// EndOffset returns the offset of the selection end.
func (s Selection) EndOffset() int {
	if s.IsBackward {
		return s.AnchorOffset
	}
	return s.FocusOffset
}

// IsCollapsed reports whether the selection is a caret.
func (s Selection) IsCollapsed() bool {
	return s.AnchorKey == s.FocusKey && s.AnchorOffset == s.FocusOffset
}

// State pairs a content snapshot with the selection to restore alongside it.
type State struct {
	Content   *Content
	Selection Selection
}

// NewState returns a state with the caret at the start of the first block.
func NewState(c *Content) State {
	return State{Content: c, Selection: Collapsed(c.FirstBlock().Key(), 0)}
}
