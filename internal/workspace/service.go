// Package workspace is the application service around the editor algorithms.
// It owns the link registry and one session per open document, and it
// serializes every event on a single mutex: each event reads the latest
// snapshot, registry and find register and installs the next version of each
// before the next event runs.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/findreplace"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/wordcount"
)

// DefaultSectionTitle is the title of a section inserted without one.
const DefaultSectionTitle = "New section"

// Event types published besides the document change events.
const (
	EventFindCount    = "find.count"
	EventFindReplaced = "find.replaced"
	EventRegistry     = "registry.changed"
)

// Publisher receives workspace events. *sse.Broker satisfies it.
type Publisher interface {
	Publish(event sse.Event)
	PublishDocumentEvent(kind, id string)
}

// Options configures a Service.
type Options struct {
	SectionTitle    string
	CountDelay      time.Duration
	ReplaceAllDelay time.Duration
	Logger          *slog.Logger
	Events          Publisher
}

type session struct {
	id        string
	title     string
	createdAt time.Time
	updatedAt time.Time
	checksum  string

	state  docmodel.State
	counts wordcount.Counts
	find   *findreplace.Coordinator
	resync linksync.ResyncQueue
}

// Service coordinates document sessions, the link registry, storage and the
// index.
type Service struct {
	store  storage.Provider
	db     index.DocumentIndex
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	registry linksync.Registry
	saved    uint64
	sessions map[string]*session
}

// NewService loads the registry from db and returns a service with no open
// sessions.
func NewService(store storage.Provider, db index.DocumentIndex, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SectionTitle == "" {
		opts.SectionTitle = DefaultSectionTitle
	}
	reg, err := db.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("workspace: load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		logger.Warn("workspace: registry inconsistent", slog.String("error", err.Error()))
	}
	return &Service{
		store:    store,
		db:       db,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		registry: reg,
		saved:    reg.Version(),
		sessions: map[string]*session{},
	}, nil
}

// Close stops the debounced tasks of every open session.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.find.Close()
		delete(s.sessions, id)
	}
}

// Registry returns the current link registry.
func (s *Service) Registry() linksync.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

func (s *Service) publish(event sse.Event) {
	if s.opts.Events != nil {
		s.opts.Events.Publish(event)
	}
}

func (s *Service) publishDocument(kind, id string) {
	if s.opts.Events != nil {
		s.opts.Events.PublishDocumentEvent(kind, id)
	}
}

func (s *Service) newSession(id string, doc models.Document) *session {
	sess := &session{
		id:        id,
		title:     doc.Title,
		createdAt: doc.CreatedAt,
		updatedAt: doc.UpdatedAt,
	}
	sess.find = findreplace.New(findreplace.Options{
		CountDelay:      s.opts.CountDelay,
		ReplaceAllDelay: s.opts.ReplaceAllDelay,
		OnCount: func(term string, count int) {
			s.publish(sse.Event{Type: EventFindCount, Doc: id, Data: map[string]any{
				"id": id, "term": term, "count": count,
			}})
		},
		OnReplaceAll: func(term string, replaced int) {
			s.publish(sse.Event{Type: EventFindReplaced, Doc: id, Data: map[string]any{
				"id": id, "term": term, "replaced": replaced,
			}})
		},
	})
	return sess
}

// openLocked returns the session of id, loading and synchronizing the
// document on first use.
func (s *Service) openLocked(id string) (*session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	data, err := s.store.Read(storage.DocumentPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workspace: decode %s: %w", id, err)
	}
	if doc.Content == nil {
		doc.Content = docmodel.New()
	}

	sess := s.newSession(id, doc)
	sess.checksum = checksum.Sum(data)
	sess.state = docmodel.NewState(doc.Content)
	sess.counts = wordcount.CountAll(doc.Content)
	s.sessions[id] = sess

	if report := s.synchronizeLocked(sess); report.Changed() {
		s.logger.Info("workspace: synchronized on open",
			slog.String("doc", id),
			slog.Int("inserted", len(report.Inserted)),
			slog.Int("updated", len(report.Updated)),
			slog.Int("removed", len(report.Removed)))
		if err := s.persistLocked(sess, index.ChangeUpdated); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// dropLocked closes the session of id, if any.
func (s *Service) dropLocked(id string) {
	if sess, ok := s.sessions[id]; ok {
		sess.find.Close()
		delete(s.sessions, id)
	}
}

// synchronizeLocked refreshes the destination copies of sess from the
// registry. The caller persists when the report says something changed.
func (s *Service) synchronizeLocked(sess *session) linksync.SyncReport {
	before := sess.state
	content, report := linksync.Synchronize(before.Content, s.registry, sess.id)
	if !report.Changed() {
		return report
	}
	next := docmodel.State{Content: content, Selection: before.Selection}
	if !content.ValidSelection(next.Selection) {
		next.Selection = docmodel.Collapsed(content.FirstBlock().Key(), 0)
	}
	sess.state = next
	sess.counts.Merge(wordcount.Recount(before, next, wordcount.Full))
	sess.find.Rescan(content, changedKeys(before.Content, content)...)
	return report
}

// persistLocked writes sess to the store, refreshes its index row and
// announces the change.
func (s *Service) persistLocked(sess *session, kind string) error {
	sess.updatedAt = s.now().UTC()
	if sess.createdAt.IsZero() {
		sess.createdAt = sess.updatedAt
	}
	data, err := json.MarshalIndent(models.Document{
		ID:        sess.id,
		Title:     sess.title,
		Content:   sess.state.Content,
		CreatedAt: sess.createdAt,
		UpdatedAt: sess.updatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: encode %s: %w", sess.id, err)
	}
	if err := s.store.Write(storage.DocumentPath(sess.id), data); err != nil {
		return fmt.Errorf("workspace: write %s: %w", sess.id, err)
	}
	sess.checksum = checksum.Sum(data)

	row, body, err := index.Describe(sess.id, data, s.registry.DocTags(sess.id))
	if err == nil {
		err = s.db.UpsertDocument(row, body)
	}
	if err != nil {
		s.logger.Warn("workspace: index failed", slog.String("doc", sess.id), slog.String("error", err.Error()))
	}
	s.publishDocument(kind, sess.id)
	return nil
}

// saveRegistryLocked stores the registry when it changed since the last save.
func (s *Service) saveRegistryLocked() error {
	if s.registry.Version() == s.saved {
		return nil
	}
	if err := s.db.SaveRegistry(s.registry); err != nil {
		return fmt.Errorf("workspace: save registry: %w", err)
	}
	s.saved = s.registry.Version()
	s.publish(sse.Event{Type: EventRegistry, Data: map[string]any{"version": s.saved}})
	return nil
}

// commitLocked installs next as the state of sess and runs the work every
// edit shares: source-side link refresh, word counts, find rescan,
// persistence, and resynchronization of the pages named by the affected
// tags.
func (s *Service) commitLocked(sess *session, next docmodel.State, class wordcount.EditClass, tags ...string) error {
	before := sess.state
	sess.state = next

	prev := s.registry
	owned := prev.DocLinks(sess.id)
	ids := make([]linksync.LinkID, 0, len(owned)+sess.resync.Len())
	for id := range owned {
		ids = append(ids, id)
	}
	ids = append(ids, sess.resync.Drain()...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	reg, report := linksync.RefreshSourceContent(next.Content, prev, sess.id, ids)
	s.registry = reg
	for _, id := range slices.Concat(report.Updated, report.Deleted) {
		tags = append(tags, owned[id])
	}

	sess.counts.Merge(wordcount.Recount(before, next, class))
	sess.find.Rescan(next.Content, changedKeys(before.Content, next.Content)...)

	if err := s.persistLocked(sess, index.ChangeUpdated); err != nil {
		return err
	}
	if err := s.saveRegistryLocked(); err != nil {
		return err
	}
	return s.propagateLocked(tags)
}

// propagateLocked synchronizes the document of every tag. Tags without a
// document are skipped: their links materialize when it is created.
func (s *Service) propagateLocked(tags []string) error {
	slices.Sort(tags)
	tags = slices.Compact(tags)
	var errs []error
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := s.resyncLocked(tag); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, fmt.Errorf("workspace: resync %s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

// resyncLocked synchronizes document id with the registry and persists it
// when anything changed.
func (s *Service) resyncLocked(id string) (linksync.SyncReport, error) {
	sess, open := s.sessions[id]
	if !open {
		// Opening synchronizes.
		_, err := s.openLocked(id)
		return linksync.SyncReport{}, err
	}
	report := s.synchronizeLocked(sess)
	if !report.Changed() {
		return report, nil
	}
	return report, s.persistLocked(sess, index.ChangeUpdated)
}

// changedKeys returns the keys of blocks that differ between before and
// after: new or replaced blocks of after, then blocks gone from before.
func changedKeys(before, after *docmodel.Content) []string {
	var keys []string
	for i := range after.Len() {
		b := after.BlockAt(i)
		if before.BlockForKey(b.Key()) != b {
			keys = append(keys, b.Key())
		}
	}
	for i := range before.Len() {
		if k := before.KeyAt(i); after.IndexOf(k) < 0 {
			keys = append(keys, k)
		}
	}
	return keys
}
