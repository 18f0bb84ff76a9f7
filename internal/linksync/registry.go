package linksync

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/starford/folio/internal/docmodel"
)

// LinkID identifies a source-destination link pair.
type LinkID int

// Absolute insertion anchors for destination content.
const (
	TopOfPage    = "##topOfPage"
	BottomOfPage = "##bottomOfPage"
)

// NewSectionOptions asks for destination content to be placed under a new
// section title. InsertBeforeKey is a block key or TopOfPage; an unknown key
// appends the section at the end of the document.
type NewSectionOptions struct {
	NewName         string `json:"newName"`
	InsertBeforeKey string `json:"insertBeforeKey"`
}

// Link is one registry row.
type Link struct {
	Source            string             `json:"source"`
	Content           string             `json:"content"`
	Alias             string             `json:"alias,omitempty"`
	SourceEntityKey   docmodel.EntityKey `json:"sourceEntityKey"`
	InitialSectionKey string             `json:"initialSectionKey"`
	NewSection        *NewSectionOptions `json:"newSectionOptions,omitempty"`
}

// Aliased reports whether destination copies are detached from the source.
func (l Link) Aliased() bool { return l.Alias != "" }

// Registry is the cross-document link bookkeeping. It is an immutable value:
// every With/Without method returns a new Registry with a bumped version and
// copies only the maps along the changed path. The zero value is an empty
// registry.
type Registry struct {
	version  uint64
	links    map[LinkID]Link
	docLinks map[string]map[LinkID]string
	tagLinks map[string][]LinkID
	docTags  map[string][]string
}

// Version increases with every mutation.
func (r Registry) Version() uint64 { return r.version }

// Link returns the row for id.
func (r Registry) Link(id LinkID) (Link, bool) {
	l, ok := r.links[id]
	return l, ok
}

// Content returns the content of id. A missing row reads as empty content.
func (r Registry) Content(id LinkID) string {
	return r.links[id].Content
}

// Len returns the number of links.
func (r Registry) Len() int { return len(r.links) }

// LinkIDs returns every link id in ascending order.
func (r Registry) LinkIDs() []LinkID {
	return slices.Sorted(maps.Keys(r.links))
}

// TagLinks returns the ids destined for the page of tag, in insertion order.
func (r Registry) TagLinks(tag string) []LinkID {
	return slices.Clone(r.tagLinks[tag])
}

// Tags returns every tag with links, sorted.
func (r Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.tagLinks))
}

// DocLinks returns the links whose source is doc, mapped to their tag.
func (r Registry) DocLinks(doc string) map[LinkID]string {
	return maps.Clone(r.docLinks[doc])
}

// DocTags returns the tags assigned to doc.
func (r Registry) DocTags(doc string) []string {
	return slices.Clone(r.docTags[doc])
}

// NextLinkID returns one more than the highest id, or 0 for an empty
// registry.
func (r Registry) NextLinkID() LinkID {
	if len(r.links) == 0 {
		return 0
	}
	return slices.Max(slices.Collect(maps.Keys(r.links))) + 1
}

func (r Registry) next() Registry {
	r.version++
	return r
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return maps.Clone(m)
}

// WithLink stores l under id and registers it for tag. The link's source
// document records tag as the keyword the link was made with.
func (r Registry) WithLink(id LinkID, l Link, tag string) Registry {
	out := r.next()
	out.links = cloneMap(r.links)
	out.links[id] = l

	out.docLinks = cloneMap(r.docLinks)
	dl := cloneMap(r.docLinks[l.Source])
	dl[id] = tag
	out.docLinks[l.Source] = dl

	if !slices.Contains(r.tagLinks[tag], id) {
		out.tagLinks = cloneMap(r.tagLinks)
		out.tagLinks[tag] = append(slices.Clone(r.tagLinks[tag]), id)
	}
	return out
}

// WithoutLink removes id from links, its source's docLinks and the tag list
// it was registered under. Removing an unknown id returns r unchanged.
func (r Registry) WithoutLink(id LinkID) Registry {
	l, inLinks := r.links[id]
	source, tag, found := l.Source, "", false
	if inLinks {
		tag, found = r.docLinks[source][id]
	}
	if !found {
		// Orphaned references: find the id wherever it is still listed.
		for doc, dl := range r.docLinks {
			if t, ok := dl[id]; ok {
				source, tag, found = doc, t, true
				break
			}
		}
	}
	if !inLinks && !found && !r.inAnyTag(id) {
		return r
	}

	out := r.next()
	if inLinks {
		out.links = maps.Clone(r.links)
		delete(out.links, id)
	}
	if found {
		out.docLinks = maps.Clone(r.docLinks)
		dl := maps.Clone(r.docLinks[source])
		delete(dl, id)
		if len(dl) == 0 {
			delete(out.docLinks, source)
		} else {
			out.docLinks[source] = dl
		}
	}
	var touched []string
	for t, ids := range r.tagLinks {
		if (!found || t == tag) && slices.Contains(ids, id) {
			touched = append(touched, t)
		}
	}
	if len(touched) > 0 {
		out.tagLinks = maps.Clone(r.tagLinks)
		for _, t := range touched {
			out.tagLinks[t] = slices.DeleteFunc(slices.Clone(r.tagLinks[t]), func(x LinkID) bool { return x == id })
		}
	}
	return out
}

func (r Registry) inAnyTag(id LinkID) bool {
	for _, ids := range r.tagLinks {
		if slices.Contains(ids, id) {
			return true
		}
	}
	return false
}

// WithContent replaces the content of id. Unknown ids are ignored.
func (r Registry) WithContent(id LinkID, content string) Registry {
	l, ok := r.links[id]
	if !ok || l.Content == content {
		return r
	}
	l.Content = content
	return r.withRow(id, l)
}

// WithAlias detaches the destination copies of id from synchronization,
// naming doc as the alias target. An empty doc re-attaches them.
func (r Registry) WithAlias(id LinkID, doc string) Registry {
	l, ok := r.links[id]
	if !ok || l.Alias == doc {
		return r
	}
	l.Alias = doc
	return r.withRow(id, l)
}

func (r Registry) withRow(id LinkID, l Link) Registry {
	out := r.next()
	out.links = maps.Clone(r.links)
	out.links[id] = l
	return out
}

// WithDocTag assigns tag to doc.
func (r Registry) WithDocTag(doc, tag string) Registry {
	if slices.Contains(r.docTags[doc], tag) {
		return r
	}
	out := r.next()
	out.docTags = cloneMap(r.docTags)
	out.docTags[doc] = append(slices.Clone(r.docTags[doc]), tag)
	return out
}

// WithoutTag removes tag from doc and deletes every link registered for tag:
// their rows, their docLinks entries and the tag's list itself.
func (r Registry) WithoutTag(doc, tag string) Registry {
	out := r
	if slices.Contains(r.docTags[doc], tag) {
		out = out.next()
		out.docTags = maps.Clone(r.docTags)
		out.docTags[doc] = slices.DeleteFunc(slices.Clone(r.docTags[doc]), func(t string) bool { return t == tag })
	}
	for _, id := range r.tagLinks[tag] {
		out = out.WithoutLink(id)
	}
	if _, ok := out.tagLinks[tag]; ok {
		tl := maps.Clone(out.tagLinks)
		delete(tl, tag)
		out = out.next()
		out.tagLinks = tl
	}
	return out
}

// Validate reports every broken invariant: tag lists and docLinks must agree
// in membership and every listed id must have a row.
func (r Registry) Validate() error {
	var errs []error
	for tag, ids := range r.tagLinks {
		for _, id := range ids {
			l, ok := r.links[id]
			if !ok {
				errs = append(errs, fmt.Errorf("tag %q lists link %d without a row", tag, id))
				continue
			}
			if got := r.docLinks[l.Source][id]; got != tag {
				errs = append(errs, fmt.Errorf("link %d is listed under tag %q but docLinks says %q", id, tag, got))
			}
		}
	}
	for doc, dl := range r.docLinks {
		for id, tag := range dl {
			l, ok := r.links[id]
			if !ok {
				errs = append(errs, fmt.Errorf("docLinks[%q] lists link %d without a row", doc, id))
				continue
			}
			if l.Source != doc {
				errs = append(errs, fmt.Errorf("link %d has source %q but is listed under %q", id, l.Source, doc))
			}
			if !slices.Contains(r.tagLinks[tag], id) {
				errs = append(errs, fmt.Errorf("link %d is missing from tag %q", id, tag))
			}
		}
	}
	return errors.Join(errs...)
}

type registryJSON struct {
	Version  uint64                       `json:"version"`
	Links    map[LinkID]Link              `json:"links"`
	DocLinks map[string]map[LinkID]string `json:"docLinks"`
	TagLinks map[string][]LinkID          `json:"tagLinks"`
	DocTags  map[string][]string          `json:"docTags,omitempty"`
}

// MarshalJSON encodes the registry.
func (r Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(registryJSON{
		Version:  r.version,
		Links:    cloneMap(r.links),
		DocLinks: cloneMap(r.docLinks),
		TagLinks: cloneMap(r.tagLinks),
		DocTags:  r.docTags,
	})
}

// UnmarshalJSON decodes a registry.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw registryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Registry{
		version:  raw.Version,
		links:    raw.Links,
		docLinks: raw.DocLinks,
		tagLinks: raw.TagLinks,
		docTags:  raw.DocTags,
	}
	return nil
}

// Builder assembles a registry from stored rows without bumping the version
// per row.
type Builder struct {
	r Registry
}

// NewBuilder starts a registry at version.
func NewBuilder(version uint64) *Builder {
	return &Builder{r: Registry{
		version:  version,
		links:    map[LinkID]Link{},
		docLinks: map[string]map[LinkID]string{},
		tagLinks: map[string][]LinkID{},
		docTags:  map[string][]string{},
	}}
}

// Link adds a row.
func (b *Builder) Link(id LinkID, l Link) *Builder {
	b.r.links[id] = l
	return b
}

// DocLink records that doc's link id uses tag.
func (b *Builder) DocLink(doc string, id LinkID, tag string) *Builder {
	if b.r.docLinks[doc] == nil {
		b.r.docLinks[doc] = map[LinkID]string{}
	}
	b.r.docLinks[doc][id] = tag
	return b
}

// TagLink appends id to tag's list.
func (b *Builder) TagLink(tag string, id LinkID) *Builder {
	if !slices.Contains(b.r.tagLinks[tag], id) {
		b.r.tagLinks[tag] = append(b.r.tagLinks[tag], id)
	}
	return b
}

// DocTag assigns tag to doc.
func (b *Builder) DocTag(doc, tag string) *Builder {
	if !slices.Contains(b.r.docTags[doc], tag) {
		b.r.docTags[doc] = append(b.r.docTags[doc], tag)
	}
	return b
}

// Registry returns the assembled value. The builder must not be used after.
func (b *Builder) Registry() Registry { return b.r }

// Docs returns every document that is a link source or has tags.
func (r Registry) Docs() []string {
	seen := map[string]struct{}{}
	for d := range r.docLinks {
		seen[d] = struct{}{}
	}
	for d := range r.docTags {
		seen[d] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}
