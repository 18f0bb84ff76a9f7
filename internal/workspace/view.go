package workspace

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/linksync"
)

// idRe accepts slash-separated segments that do not start with a dot, so an
// id can neither climb out of the workspace nor name a hidden file.
var idRe = regexp.MustCompile(`^[\p{L}\p{N}_][\p{L}\p{N} _.,'()-]*(/[\p{L}\p{N}_][\p{L}\p{N} _.,'()-]*)*$`)

func validateID(id string) error {
	err := validation.Validate(id,
		validation.Required,
		validation.Length(1, 200),
		validation.Match(idRe).Error("must be a relative name without hidden segments"),
	)
	if err != nil {
		return fmt.Errorf("%w: id %q: %v", apperr.ErrInvalid, id, err)
	}
	return nil
}

// DocumentView is the state of an open document as returned to clients.
type DocumentView struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Checksum  string             `json:"checksum"`
	Content   *docmodel.Content  `json:"content"`
	Selection docmodel.Selection `json:"selection"`
	Words     int                `json:"words"`
	Tags      []string           `json:"tags"`
	Links     []LinkView         `json:"links"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// LinkView is one link whose source is the viewed document.
type LinkView struct {
	ID      linksync.LinkID `json:"id"`
	Tag     string          `json:"tag"`
	Content string          `json:"content"`
	Alias   string          `json:"alias,omitempty"`
}

func (s *Service) viewLocked(sess *session) *DocumentView {
	tags := s.registry.DocTags(sess.id)
	if tags == nil {
		tags = []string{}
	}
	return &DocumentView{
		ID:        sess.id,
		Title:     sess.title,
		Checksum:  sess.checksum,
		Content:   sess.state.Content,
		Selection: sess.state.Selection,
		Words:     sess.counts.Total(),
		Tags:      tags,
		Links:     linkViews(s.registry, sess.id),
		CreatedAt: sess.createdAt,
		UpdatedAt: sess.updatedAt,
	}
}

// linkViews lists the links sourced in doc by ascending id.
func linkViews(reg linksync.Registry, doc string) []LinkView {
	owned := reg.DocLinks(doc)
	out := make([]LinkView, 0, len(owned))
	for id, tag := range owned {
		l, _ := reg.Link(id)
		out = append(out, LinkView{ID: id, Tag: tag, Content: l.Content, Alias: l.Alias})
	}
	slices.SortFunc(out, func(a, b LinkView) int { return int(a.ID) - int(b.ID) })
	return out
}
