// Package wordcount keeps per-block word counts and recomputes only the
// blocks an edit can have touched.
package wordcount

import (
	"strings"

	"github.com/starford/folio/internal/docmodel"
)

// EditClass selects which blocks an edit forces a recount for.
type EditClass int

const (
	// Edited recounts only the blocks the selection covered.
	Edited EditClass = iota
	// Delete also recounts the block after the selection.
	Delete
	// Backspace also recounts the block before the selection.
	Backspace
	// SplitBlock also recounts the block created by the split.
	SplitBlock
	// Full recounts every block present before or after the edit.
	Full
)

func (c EditClass) String() string {
	switch c {
	case Delete:
		return "delete"
	case Backspace:
		return "backspace"
	case SplitBlock:
		return "split-block"
	case Full:
		return "full"
	default:
		return "edited"
	}
}

// ClassifyCommand maps an editor key command to its edit class. Unknown
// commands report false.
func ClassifyCommand(command string) (EditClass, bool) {
	switch command {
	case "delete", "delete-word":
		return Delete, true
	case "backspace", "backspace-word", "backspace-to-start-of-line":
		return Backspace, true
	case "split-block":
		return SplitBlock, true
	case "undo", "redo":
		return Full, true
	}
	return Edited, false
}

// CountWords returns the number of whitespace-delimited runs in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Counts maps block keys to word counts.
type Counts map[string]int

// Total sums the counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Merge overwrites c with the entries of update. Blocks that no longer exist
// are dropped.
func (c Counts) Merge(update Counts) {
	for k, v := range update {
		if v < 0 {
			delete(c, k)
			continue
		}
		c[k] = v
	}
}

// CountAll counts every block of content.
func CountAll(content *docmodel.Content) Counts {
	out := make(Counts, content.Len())
	for i := range content.Len() {
		b := content.BlockAt(i)
		out[b.Key()] = CountWords(b.Text())
	}
	return out
}

// Recount returns fresh counts for the blocks touched by an edit that turned
// before into after. Blocks that disappeared are reported as -1 so Merge
// drops them.
func Recount(before, after docmodel.State, class EditClass) Counts {
	var keys []string
	if class == Full {
		keys = append(before.Content.BlockKeys(), after.Content.BlockKeys()...)
	} else {
		for _, b := range before.Content.SelectedBlocks(before.Selection) {
			keys = append(keys, b.Key())
		}
		switch class {
		case Delete:
			keys = append(keys, before.Content.KeyAfter(before.Selection.EndKey()))
		case Backspace:
			keys = append(keys, before.Content.KeyBefore(before.Selection.StartKey()))
		case SplitBlock:
			end := after.Selection.EndKey()
			keys = append(keys, after.Content.KeyBefore(end), end)
		}
	}

	out := make(Counts, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if b := after.Content.BlockForKey(k); b != nil {
			out[k] = CountWords(b.Text())
		} else {
			out[k] = -1
		}
	}
	return out
}
