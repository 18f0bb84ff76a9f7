package workspace

import (
	"context"

	"github.com/starford/folio/internal/findreg"
	"github.com/starford/folio/internal/wordcount"
)

// FindView is the find state of a document.
type FindView struct {
	Term    string          `json:"term"`
	Count   int             `json:"count"`
	Matches []findreg.Match `json:"matches"`
	Current *findreg.Match  `json:"current,omitempty"`
	Index   int             `json:"index"`
}

// ReplaceResult is the outcome of Replace.
type ReplaceResult struct {
	Replaced int           `json:"replaced"`
	Find     FindView      `json:"find"`
	Document *DocumentView `json:"document"`
}

// WordCountView reports the word count of a document.
type WordCountView struct {
	Total  int              `json:"total"`
	Blocks wordcount.Counts `json:"blocks"`
}

func findView(sess *session) FindView {
	matches := sess.find.Matches()
	v := FindView{Term: sess.find.Term(), Count: len(matches), Matches: matches, Index: -1}
	if v.Matches == nil {
		v.Matches = []findreg.Match{}
	}
	if m, i, ok := sess.find.Current(); ok {
		v.Current, v.Index = &m, i
	}
	return v
}

// Find sets the search term of document id and returns its matches. An empty
// term clears the search.
func (s *Service) Find(_ context.Context, id, term string) (FindView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return FindView{}, err
	}
	sess.find.SetTerm(sess.state.Content, term)
	return findView(sess), nil
}

// Step moves to the next or previous match. The first step starts from the
// first match inside visible, a list of block keys on screen.
func (s *Service) Step(_ context.Context, id string, visible []string, forward bool) (FindView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return FindView{}, err
	}
	sess.find.Step(sess.state.Content, visible, forward)
	return findView(sess), nil
}

// Replace replaces the current match, or every match when all is set, with
// replacement.
func (s *Service) Replace(_ context.Context, id, replacement string, all bool) (*ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}

	next, n := sess.state, 0
	if all {
		next, n = sess.find.ReplaceAll(sess.state, replacement)
	} else if st, ok := sess.find.ReplaceOne(sess.state, replacement); ok {
		next, n = st, 1
	}
	if n > 0 {
		if err := s.commitLocked(sess, next, wordcount.Full); err != nil {
			return nil, err
		}
	}
	return &ReplaceResult{Replaced: n, Find: findView(sess), Document: s.viewLocked(sess)}, nil
}

// WordCount returns the word counts of document id.
func (s *Service) WordCount(_ context.Context, id string) (WordCountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return WordCountView{}, err
	}
	blocks := make(wordcount.Counts, len(sess.counts))
	blocks.Merge(sess.counts)
	return WordCountView{Total: blocks.Total(), Blocks: blocks}, nil
}
