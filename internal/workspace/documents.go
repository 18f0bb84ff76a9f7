package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/wordcount"
)

// DocumentSummary is a lightweight item in a list response.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Words     int       `json:"words"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery selects a page of documents.
type ListQuery struct {
	Limit  int
	Offset int
	Tag    string
	Sort   string
}

// CreateRequest describes a new document. Markdown, when set, is imported:
// headings become sections, [[target]] spans become links tagged target and
// #tags are assigned to the document.
type CreateRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// ListDocuments returns a page of indexed documents and the total count.
func (s *Service) ListDocuments(_ context.Context, q ListQuery) ([]DocumentSummary, int, error) {
	rows, total, err := s.db.ListDocuments(q.Limit, q.Offset, q.Tag, q.Sort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DocumentSummary, len(rows))
	for i, r := range rows {
		out[i] = DocumentSummary{
			ID:        r.ID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      r.Tags,
			Words:     r.Words,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out, total, nil
}

// Search runs a full-text query over titles, text and tags.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalid)
	}
	return s.db.Search(query, limit)
}

// OpenDocument returns document id, synchronizing its destination copies with
// the registry on first open.
func (s *Service) OpenDocument(_ context.Context, id string) (*DocumentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// CreateDocument stores a new document and synchronizes the links already
// tagged with its id into it.
func (s *Service) CreateDocument(_ context.Context, req CreateRequest) (*DocumentView, error) {
	if err := validateID(req.ID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[req.ID]; ok {
		return nil, apperr.ErrAlreadyExists
	}
	if _, err := s.store.Read(storage.DocumentPath(req.ID)); err == nil {
		return nil, apperr.ErrAlreadyExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	title := req.Title
	content := docmodel.New()
	var imported *parser.Result
	if req.Markdown != "" {
		res, err := parser.Parse([]byte(req.Markdown))
		if err != nil {
			return nil, fmt.Errorf("%w: markdown: %v", apperr.ErrInvalid, err)
		}
		if content, err = res.Content(); err != nil {
			return nil, fmt.Errorf("%w: markdown: %v", apperr.ErrInvalid, err)
		}
		if title == "" {
			title = res.Title
		}
		imported = res
	}
	if title == "" {
		title = path.Base(req.ID)
	}

	sess := s.newSession(req.ID, models.Document{Title: title})
	sess.state = docmodel.NewState(content)
	s.sessions[req.ID] = sess

	var tags []string
	if imported != nil {
		tags = s.importLinksLocked(sess, imported)
	}
	s.synchronizeLocked(sess)
	sess.counts = wordcount.CountAll(sess.state.Content)

	if err := s.persistLocked(sess, index.ChangeCreated); err != nil {
		s.dropLocked(req.ID)
		return nil, err
	}
	if err := s.saveRegistryLocked(); err != nil {
		return nil, err
	}
	if err := s.propagateLocked(tags); err != nil {
		s.logger.Warn("workspace: propagate failed", slog.String("doc", req.ID), slog.String("error", err.Error()))
	}
	s.logger.Info("workspace: document created", slog.String("doc", req.ID), slog.Int("links", len(tags)))
	return s.viewLocked(sess), nil
}

// importLinksLocked turns the tags and wikilinks of an imported document into
// registry entries and returns the tags its links were created under.
func (s *Service) importLinksLocked(sess *session, res *parser.Result) []string {
	for _, tag := range res.Tags {
		s.registry = s.registry.WithDocTag(sess.id, tag)
	}

	var tags []string
	state := sess.state
	for _, l := range res.Links {
		if err := validateID(l.Target); err != nil {
			s.logger.Warn("workspace: skipping link", slog.String("doc", sess.id), slog.String("error", err.Error()))
			continue
		}
		key := state.Content.KeyAt(l.Block)
		state.Selection = docmodel.Span(key, l.Offset, key, l.Offset+l.Length)
		created, err := linksync.CreateSourceLink(state, s.registry, linksync.CreateOptions{
			Tag:        l.Target,
			DocumentID: sess.id,
		})
		if err != nil {
			s.logger.Warn("workspace: skipping link", slog.String("doc", sess.id), slog.String("error", err.Error()))
			continue
		}
		state = created.State
		s.registry = created.Registry.WithDocTag(sess.id, l.Target)
		tags = append(tags, l.Target)
	}
	sess.state = docmodel.NewState(state.Content)
	return tags
}

// DeleteDocument moves document id to the trash and removes the links it is
// the source of. Links tagged with id stay registered and reappear if a
// document with that id is created again.
func (s *Service) DeleteDocument(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := storage.DocumentPath(id)
	if _, err := s.store.Read(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.dropLocked(id)
	if err := s.store.Move(p, path.Join(storage.TrashDir, p)); err != nil {
		return fmt.Errorf("workspace: trash %s: %w", id, err)
	}
	if err := s.db.DeleteDocument(id); err != nil {
		s.logger.Warn("workspace: unindex failed", slog.String("doc", id), slog.String("error", err.Error()))
	}

	var tags []string
	for lid, tag := range s.registry.DocLinks(id) {
		s.registry = s.registry.WithoutLink(lid)
		tags = append(tags, tag)
	}
	if err := s.saveRegistryLocked(); err != nil {
		return err
	}
	s.publishDocument(index.ChangeDeleted, id)
	s.logger.Info("workspace: document deleted", slog.String("doc", id), slog.Int("links", len(tags)))
	return s.propagateLocked(tags)
}

// Reload reacts to a document changed outside the service. A session whose
// file no longer holds what the service last wrote is dropped and reopened on
// next use; echoes of the service's own writes are ignored.
func (s *Service) Reload(kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if kind != index.ChangeDeleted {
			data, err := s.store.Read(storage.DocumentPath(id))
			if err == nil && checksum.Sum(data) == sess.checksum {
				return
			}
		}
		s.dropLocked(id)
		s.logger.Info("workspace: session reloaded", slog.String("doc", id), slog.String("change", kind))
	}
	s.publishDocument(kind, id)
}
