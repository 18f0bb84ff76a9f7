// Package scanner derives decoration ranges from block content: entity runs,
// whole blocks of a given type, and case-insensitive keyword matches.
package scanner

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/findreg"
)

// Range is a half-open rune range within one block.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Strategy yields the ranges of b that a renderer should decorate.
type Strategy func(c *docmodel.Content, b *docmodel.Block) iter.Seq[Range]

// Ranges yields the maximal runs of b whose characters share one entity key
// and whose first character satisfies pred. The sequence may be iterated
// more than once.
func Ranges(b *docmodel.Block, pred func(docmodel.CharMeta) bool) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		n := b.Length()
		for start := 0; start < n; {
			first := b.CharAt(start)
			end := start + 1
			for end < n && b.CharAt(end).Entity == first.Entity {
				end++
			}
			if pred(first) && !yield(Range{start, end}) {
				return
			}
			start = end
		}
	}
}

// EntityStrategy matches characters carrying an entity of type typ.
func EntityStrategy(typ docmodel.EntityType) Strategy {
	return func(c *docmodel.Content, b *docmodel.Block) iter.Seq[Range] {
		return Ranges(b, func(m docmodel.CharMeta) bool {
			e, ok := c.Entity(m.Entity)
			return ok && e.Type == typ
		})
	}
}

// BlockStrategy matches the whole of every block of type typ.
func BlockStrategy(typ docmodel.BlockType) Strategy {
	return func(_ *docmodel.Content, b *docmodel.Block) iter.Seq[Range] {
		return func(yield func(Range) bool) {
			if b.Type() == typ {
				yield(Range{0, b.Length()})
			}
		}
	}
}

// MatchHook observes keyword matches as they are discovered.
type MatchHook interface {
	// BeginBlock is called before a block is scanned, including blocks
	// that are skipped for their type.
	BeginBlock(blockKey string)
	// Found is called for every match before it is yielded.
	Found(blockKey string, start int)
}

// KeywordStrategy matches any of terms, case-insensitively, outside
// wiki-section blocks. Terms are literal text. hook may be nil.
func KeywordStrategy(terms []string, hook MatchHook) Strategy {
	re := compileTerms(terms)
	return func(_ *docmodel.Content, b *docmodel.Block) iter.Seq[Range] {
		return func(yield func(Range) bool) {
			if re == nil {
				return
			}
			if hook != nil {
				hook.BeginBlock(b.Key())
			}
			if b.Type() == docmodel.WikiSection {
				return
			}
			text := b.Text()
			// Byte offsets from the regexp are converted to rune offsets
			// incrementally; matches arrive in ascending order.
			runes, at := 0, 0
			for _, loc := range re.FindAllStringIndex(text, -1) {
				runes += utf8.RuneCountInString(text[at:loc[0]])
				start := runes
				runes += utf8.RuneCountInString(text[loc[0]:loc[1]])
				at = loc[1]
				if hook != nil {
					hook.Found(b.Key(), start)
				}
				if !yield(Range{start, runes}) {
					return
				}
			}
		}
	}
}

func compileTerms(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile("(?i)(?:" + strings.Join(quoted, "|") + ")")
}

// RegisterHook feeds keyword matches into a find register for one term.
type RegisterHook struct {
	Register *findreg.Register
	Order    findreg.BlockOrder
	Term     string
}

// BeginBlock drops the stale matches of the block.
func (h RegisterHook) BeginBlock(blockKey string) {
	h.Register.RemoveBlock(blockKey, h.Term)
}

// Found records a match.
func (h RegisterHook) Found(blockKey string, start int) {
	h.Register.Update(h.Order, blockKey, start, h.Term)
}

// Collect runs s over every block of c and returns the ranges per block key.
// Blocks without ranges are omitted.
func Collect(c *docmodel.Content, s Strategy) map[string][]Range {
	out := map[string][]Range{}
	for i := range c.Len() {
		b := c.BlockAt(i)
		for r := range s(c, b) {
			out[b.Key()] = append(out[b.Key()], r)
		}
	}
	return out
}
