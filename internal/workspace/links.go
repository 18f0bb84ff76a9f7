package workspace

import (
	"context"
	"log/slog"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/wordcount"
)

// LinkRequest tags the selected text of a document.
type LinkRequest struct {
	Selection         docmodel.Selection          `json:"selection"`
	Tag               string                      `json:"tag"`
	InitialSectionKey string                      `json:"initialSectionKey,omitempty"`
	NewSection        *linksync.NewSectionOptions `json:"newSection,omitempty"`
}

// LinkResult is the outcome of CreateLink.
type LinkResult struct {
	LinkID   linksync.LinkID `json:"linkId"`
	Document *DocumentView   `json:"document"`
}

// RemoveLinksResult is the outcome of RemoveLinks.
type RemoveLinksResult struct {
	Deleted     []linksync.LinkID `json:"deleted"`
	NeedsResync []linksync.LinkID `json:"needsResync"`
	Document    *DocumentView     `json:"document"`
}

// Sync brings the destination copies of document id in line with the
// registry.
func (s *Service) Sync(_ context.Context, id string) (linksync.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.openLocked(id); err != nil {
		return linksync.SyncReport{}, err
	}
	return s.resyncLocked(id)
}

// CreateLink tags the selected text of document id with req.Tag and copies it
// into the document named by the tag.
func (s *Service) CreateLink(_ context.Context, id string, req LinkRequest) (*LinkResult, error) {
	if err := validateID(req.Tag); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	prev := s.registry
	c := sess.state.Content
	state := docmodel.State{Content: c, Selection: c.Normalize(req.Selection)}
	res, err := linksync.CreateSourceLink(state, prev, linksync.CreateOptions{
		Tag:               req.Tag,
		DocumentID:        id,
		InitialSectionKey: req.InitialSectionKey,
		NewSection:        req.NewSection,
	})
	if err != nil {
		return nil, err
	}

	tags := append(tagsOf(prev, id, res.Removal.Deleted), req.Tag)
	tags = append(tags, tagsOf(prev, id, res.Removal.NeedsResync)...)
	sess.resync.Push(res.Removal.NeedsResync...)
	s.registry = res.Registry.WithDocTag(id, req.Tag)

	if err := s.commitLocked(sess, res.State, wordcount.Edited, tags...); err != nil {
		return nil, err
	}
	s.logger.Info("workspace: link created",
		slog.String("doc", id), slog.String("tag", req.Tag), slog.Int("link", int(res.LinkID)))
	return &LinkResult{LinkID: res.LinkID, Document: s.viewLocked(sess)}, nil
}

// RemoveLinks strips links from the selected text of document id. Links
// wholly inside the selection are deleted; the rest keep their remaining text.
func (s *Service) RemoveLinks(_ context.Context, id string, sel docmodel.Selection) (*RemoveLinksResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	prev := s.registry
	c := sess.state.Content
	state := docmodel.State{Content: c, Selection: c.Normalize(sel)}
	res, err := linksync.RemoveSourceLinks(state, prev)
	if err != nil {
		return nil, err
	}

	tags := append(tagsOf(prev, id, res.Deleted), tagsOf(prev, id, res.NeedsResync)...)
	sess.resync.Push(res.NeedsResync...)
	s.registry = res.Registry

	if err := s.commitLocked(sess, res.State, wordcount.Edited, tags...); err != nil {
		return nil, err
	}
	return &RemoveLinksResult{
		Deleted:     nonNil(res.Deleted),
		NeedsResync: nonNil(res.NeedsResync),
		Document:    s.viewLocked(sess),
	}, nil
}

// SetAlias detaches the destination copies of link from its source, or
// re-attaches them when doc is empty.
func (s *Service) SetAlias(_ context.Context, link linksync.LinkID, doc string) error {
	if doc != "" {
		if err := validateID(doc); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.registry.Link(link)
	if !ok {
		return apperr.ErrNotFound
	}
	s.registry = s.registry.WithAlias(link, doc)
	if err := s.saveRegistryLocked(); err != nil {
		return err
	}
	return s.propagateLocked([]string{s.registry.DocLinks(l.Source)[link]})
}

// DeleteTag removes tag from document id and deletes every link registered
// under it. Their markers are stripped from the source documents and their
// copies from the tag's page.
func (s *Service) DeleteTag(_ context.Context, id, tag string) error {
	if err := validateID(tag); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.openLocked(id)
	if err != nil {
		return err
	}
	prev := s.registry
	doomed := map[int]bool{}
	sources := map[string]bool{}
	for _, lid := range prev.TagLinks(tag) {
		doomed[int(lid)] = true
		if l, ok := prev.Link(lid); ok {
			sources[l.Source] = true
		}
	}
	s.registry = prev.WithoutTag(id, tag)

	for src := range sources {
		sess, err := s.openLocked(src)
		if err != nil {
			s.logger.Warn("workspace: strip links failed", slog.String("doc", src), slog.String("error", err.Error()))
			continue
		}
		c := sess.state.Content
		all := docmodel.Span(c.FirstBlock().Key(), 0, c.LastBlock().Key(), c.LastBlock().Length())
		next := docmodel.State{
			Content: c.ClearEntities(all, func(e docmodel.Entity) bool {
				return e.Type == docmodel.EntityLinkSource && doomed[e.LinkID]
			}),
			Selection: sess.state.Selection,
		}
		if err := s.commitLocked(sess, next, wordcount.Edited); err != nil {
			return err
		}
	}

	if err := s.saveRegistryLocked(); err != nil {
		return err
	}
	if err := s.persistLocked(owner, index.ChangeUpdated); err != nil {
		return err
	}
	s.logger.Info("workspace: tag deleted", slog.String("doc", id), slog.String("tag", tag), slog.Int("links", len(doomed)))
	return s.propagateLocked([]string{tag, id})
}

// tagsOf returns the tags ids were registered under as links of doc.
func tagsOf(reg linksync.Registry, doc string, ids []linksync.LinkID) []string {
	owned := reg.DocLinks(doc)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if tag, ok := owned[id]; ok {
			out = append(out, tag)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
