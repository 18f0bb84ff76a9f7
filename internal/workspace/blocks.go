package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/blockedit"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/wordcount"
)

// ImageResult is the outcome of AttachImage.
type ImageResult struct {
	BlockKey string            `json:"blockKey"`
	Image    docmodel.ImageRef `json:"image"`
	Document *DocumentView     `json:"document"`
}

// InsertSection adds a section titled title at sel. An empty title uses the
// configured default.
func (s *Service) InsertSection(_ context.Context, id string, sel docmodel.Selection, title string) (*DocumentView, error) {
	if title == "" {
		title = s.opts.SectionTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	c := sess.state.Content
	next, err := blockedit.InsertSection(docmodel.State{Content: c, Selection: c.Normalize(sel)}, title)
	if err != nil {
		return nil, err
	}
	if err := s.commitLocked(sess, next, wordcount.Full); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// AttachImage records img on the block at sel, or the nearest block that can
// hold images.
func (s *Service) AttachImage(_ context.Context, id string, sel docmodel.Selection, img docmodel.ImageRef) (*ImageResult, error) {
	if img.ImageID == "" || img.ImageUseID == "" {
		return nil, fmt.Errorf("%w: image and image use ids are required", apperr.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	c := sess.state.Content
	next, key, err := blockedit.AttachImage(docmodel.State{Content: c, Selection: c.Normalize(sel)}, img)
	if err != nil {
		return nil, err
	}
	if err := s.commitLocked(sess, next, wordcount.Full); err != nil {
		return nil, err
	}
	return &ImageResult{BlockKey: key, Image: img, Document: s.viewLocked(sess)}, nil
}

// UpdateImage replaces the image (imageID, imageUseID) of blockKey with img.
func (s *Service) UpdateImage(_ context.Context, id, blockKey, imageID, imageUseID string, img docmodel.ImageRef) (*DocumentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(id)
	if err != nil {
		return nil, err
	}
	next, err := blockedit.UpdateImage(sess.state, blockKey, imageID, imageUseID, img)
	if err != nil {
		if errors.Is(err, blockedit.ErrImageNotFound) || errors.Is(err, docmodel.ErrBlockNotFound) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
		}
		return nil, err
	}
	if err := s.commitLocked(sess, next, wordcount.Edited); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}
