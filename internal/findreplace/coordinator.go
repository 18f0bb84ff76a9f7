// Package findreplace drives find and replace for one open document: it owns
// the find register and the navigator, publishes the match count after edits
// settle, and performs single and bulk replacement.
package findreplace

import (
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/debounce"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/findreg"
	"github.com/starford/folio/internal/scanner"
)

// Options configures a Coordinator.
type Options struct {
	// CountDelay is the quiet period before a changed match count is
	// published.
	CountDelay time.Duration
	// ReplaceAllDelay is the quiet period after the last replace-all before
	// it is reported complete.
	ReplaceAllDelay time.Duration
	// OnCount receives the match count of the current term.
	OnCount func(term string, count int)
	// OnReplaceAll receives the number of replacements made by a burst of
	// replace-all calls once it settles.
	OnReplaceAll func(term string, replaced int)
}

// Coordinator is safe for concurrent use; the debounced callbacks run on
// their own goroutines.
type Coordinator struct {
	opts Options

	mu       sync.Mutex
	reg      *findreg.Register
	nav      findreg.Navigator
	term     string
	replaced int

	countTask      *debounce.Task
	replaceAllTask *debounce.Task
}

// New returns an idle coordinator with no search term.
func New(opts Options) *Coordinator {
	c := &Coordinator{opts: opts, reg: findreg.New()}
	c.countTask = debounce.New(opts.CountDelay, c.publishCount)
	c.replaceAllTask = debounce.New(opts.ReplaceAllDelay, c.finishReplaceAll)
	return c
}

func (c *Coordinator) publishCount() {
	c.mu.Lock()
	term := c.term
	count := c.reg.Count(term)
	c.nav.Clamp(count)
	c.mu.Unlock()
	if c.opts.OnCount != nil {
		c.opts.OnCount(term, count)
	}
}

func (c *Coordinator) finishReplaceAll() {
	c.mu.Lock()
	term, n := c.term, c.replaced
	c.replaced = 0
	c.mu.Unlock()
	if c.opts.OnReplaceAll != nil {
		c.opts.OnReplaceAll(term, n)
	}
	c.publishCount()
}

// Close cancels pending callbacks.
func (c *Coordinator) Close() {
	c.countTask.Cancel()
	c.replaceAllTask.Cancel()
}

// Term returns the current search term.
func (c *Coordinator) Term() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

// SetTerm switches to term and rebuilds its matches over the whole document.
// Navigation restarts from the visible blocks on the next step.
func (c *Coordinator) SetTerm(content *docmodel.Content, term string) {
	c.mu.Lock()
	c.term = term
	c.reg.Clear()
	c.nav.Reset()
	if term != "" {
		strategy := c.strategy(content)
		for i := range content.Len() {
			drain(strategy(content, content.BlockAt(i)))
		}
	}
	c.mu.Unlock()
	c.countTask.Trigger()
}

// Rescan refreshes the matches of the given blocks after an edit. Keys that
// no longer exist in content have their matches dropped.
func (c *Coordinator) Rescan(content *docmodel.Content, keys ...string) {
	c.mu.Lock()
	if c.term == "" {
		c.mu.Unlock()
		return
	}
	c.rescanLocked(content, keys)
	c.mu.Unlock()
	c.countTask.Trigger()
}

func (c *Coordinator) rescanLocked(content *docmodel.Content, keys []string) {
	strategy := c.strategy(content)
	for _, k := range keys {
		b := content.BlockForKey(k)
		if b == nil {
			c.reg.RemoveBlock(k, c.term)
			continue
		}
		drain(strategy(content, b))
	}
}

func (c *Coordinator) strategy(order findreg.BlockOrder) scanner.Strategy {
	hook := scanner.RegisterHook{Register: c.reg, Order: order, Term: c.term}
	return scanner.KeywordStrategy([]string{c.term}, hook)
}

func drain(seq iter.Seq[scanner.Range]) {
	for range seq {
	}
}

// Matches returns the matches of the current term in document order.
func (c *Coordinator) Matches() []findreg.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Matches(c.term)
}

// Current returns the selected match and its index.
func (c *Coordinator) Current() (findreg.Match, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Coordinator) currentLocked() (findreg.Match, int, bool) {
	i, ok := c.nav.Index()
	matches := c.reg.Matches(c.term)
	if !ok || i >= len(matches) {
		return findreg.Match{}, 0, false
	}
	return matches[i], i, true
}

// Step moves to the next match (forward) or the previous one. The first step
// after a term change selects the first match in a visible block, or the
// first one after them.
func (c *Coordinator) Step(content *docmodel.Content, visible []string, forward bool) (findreg.Match, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches := c.reg.Matches(c.term)
	if len(matches) == 0 {
		return findreg.Match{}, 0, false
	}
	if _, seeded := c.nav.Index(); !seeded {
		c.nav.Seed(matches, content, visible)
	} else if forward {
		c.nav.Next(len(matches))
	} else {
		c.nav.Prev(len(matches))
	}
	return c.currentLocked()
}

// matchSpan returns the selection covering m when the text there still
// matches the term.
func (c *Coordinator) matchSpan(content *docmodel.Content, m findreg.Match) (docmodel.Selection, bool) {
	b := content.BlockForKey(m.BlockKey)
	if b == nil || b.Type() == docmodel.WikiSection {
		return docmodel.Selection{}, false
	}
	end := m.Start + len([]rune(c.term))
	if end > b.Length() || !strings.EqualFold(b.Slice(m.Start, end), c.term) {
		return docmodel.Selection{}, false
	}
	return docmodel.Span(m.BlockKey, m.Start, m.BlockKey, end), true
}

func replaceAt(content *docmodel.Content, sel docmodel.Selection, replacement string) *docmodel.Content {
	meta := content.BlockForKey(sel.StartKey()).CharAt(sel.StartOffset())
	return content.ReplaceText(sel, replacement, meta.Style, meta.Entity)
}

// ReplaceOne replaces the selected match with replacement. The replacement
// keeps the style and entity of the first replaced character. It reports
// false when there is no selected match or the document no longer holds the
// term at that position.
func (c *Coordinator) ReplaceOne(s docmodel.State, replacement string) (docmodel.State, bool) {
	c.mu.Lock()
	m, _, ok := c.currentLocked()
	if !ok {
		c.mu.Unlock()
		return s, false
	}
	sel, ok := c.matchSpan(s.Content, m)
	if !ok {
		c.rescanLocked(s.Content, []string{m.BlockKey})
		c.mu.Unlock()
		c.countTask.Trigger()
		return s, false
	}

	content := replaceAt(s.Content, sel, replacement)
	c.rescanLocked(content, []string{m.BlockKey})
	c.nav.Clamp(c.reg.Count(c.term))
	c.mu.Unlock()
	c.countTask.Trigger()

	caret := docmodel.Collapsed(m.BlockKey, m.Start+len([]rune(replacement)))
	return docmodel.State{Content: content, Selection: caret}, true
}

// ReplaceAll replaces every match of the current term outside section titles
// and returns the new state and the number of replacements. Completion is
// reported through OnReplaceAll once no further replace-all follows within
// the quiet period.
func (c *Coordinator) ReplaceAll(s docmodel.State, replacement string) (docmodel.State, int) {
	c.mu.Lock()
	matches := c.reg.Matches(c.term)
	content := s.Content
	var touched []string
	n := 0
	// Back to front, so earlier offsets in the same block stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		sel, ok := c.matchSpan(content, matches[i])
		if !ok {
			continue
		}
		content = replaceAt(content, sel, replacement)
		if len(touched) == 0 || touched[len(touched)-1] != matches[i].BlockKey {
			touched = append(touched, matches[i].BlockKey)
		}
		n++
	}
	c.rescanLocked(content, touched)
	c.replaced += n
	c.mu.Unlock()

	c.replaceAllTask.Trigger()
	if n == 0 {
		return s, 0
	}
	if !content.ValidSelection(s.Selection) {
		s.Selection = docmodel.Collapsed(content.FirstBlock().Key(), 0)
	}
	return docmodel.State{Content: content, Selection: s.Selection}, n
}
