// Package memstore is an in-memory implementation of the repositories. It
// keeps every stored version of each document so tests can inspect history.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"
)

type Store struct {
	mu sync.Mutex

	documents      map[string]*types.Document
	history        map[string][]types.Document
	audit          []*types.AuditLogEntry
	notifications  []*types.Notification
	roles          map[string]*types.Role
	fields         map[string]*types.FieldConfiguration
	communications map[string]*types.CommunicationLog

	// TransitionErr, when it returns an error, fails the transition before
	// anything is written. It runs with the store locked.
	TransitionErr func(t *types.DocumentTransition) error
}

func New() *Store {
	return &Store{
		documents:      make(map[string]*types.Document),
		history:        make(map[string][]types.Document),
		roles:          make(map[string]*types.Role),
		fields:         make(map[string]*types.FieldConfiguration),
		communications: make(map[string]*types.CommunicationLog),
	}
}

// clone deep-copies through JSON-visible fields plus the hidden deletion mark.
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func cloneDocument(d *types.Document) *types.Document {
	out := clone(d)
	out.DeletedAt = d.DeletedAt
	return out
}

func later(current time.Time) time.Time {
	now := time.Now()
	if now.Before(current) {
		return current
	}
	return now
}

func (s *Store) record(doc *types.Document) {
	s.documents[doc.ID] = doc
	s.history[doc.ID] = append(s.history[doc.ID], *cloneDocument(doc))
}

func (s *Store) appendAudit(entry *types.AuditLogEntry) {
	if entry == nil {
		return
	}
	entry.ID = utils.NanoID()
	entry.CreatedAt = time.Now()
	s.audit = append(s.audit, entry)
}

func (s *Store) liveDocument(id string) (*types.Document, error) {
	doc, ok := s.documents[id]
	if !ok || doc.DeletedAt != nil {
		return nil, types.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *types.Document, actor types.AuditContext) error {
	now := time.Now()
	doc.ID = utils.NanoID()
	doc.Status = types.DocumentStatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.DeletedAt = nil
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(cloneDocument(doc))
	s.appendAudit(actor.Entry(types.AuditActionCreateDocument, types.EntityDocument, doc.ID, nil, doc))
	return nil
}

func (s *Store) Document(ctx context.Context, id string) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.liveDocument(id)
	if err != nil {
		return nil, err
	}
	return cloneDocument(doc), nil
}

func (s *Store) Documents(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	out := make([]*types.Document, 0)
	for _, doc := range s.documents {
		if doc.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.LetterType != "" && utils.PtrString(doc.LetterType) != filter.LetterType {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(utils.PtrString(doc.Subject)), search) &&
			!strings.Contains(strings.ToLower(utils.PtrString(doc.Topic)), search) {
			continue
		}
		out = append(out, cloneDocument(doc))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateDocument(ctx context.Context, id string, update *types.DocumentUpdate, actor types.AuditContext) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.liveDocument(id)
	if err != nil {
		return nil, err
	}

	updated := cloneDocument(current)
	updated.LetterFields.Apply(update.LetterFields)
	if update.OCRText != nil {
		updated.OCRText = utils.StringPtr(*update.OCRText)
	}
	if actor.UserID != "" {
		updated.ProcessedBy = utils.StringPtr(actor.UserID)
	}
	updated.UpdatedAt = later(current.UpdatedAt)

	s.appendAudit(actor.Entry(types.AuditActionUpdateDocument, types.EntityDocument, id, current, updated))
	s.record(updated)
	return cloneDocument(updated), nil
}

func (s *Store) TransitionDocument(ctx context.Context, t *types.DocumentTransition) (*types.Document, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TransitionErr != nil {
		if err := s.TransitionErr(t); err != nil {
			return nil, err
		}
	}

	current, err := s.liveDocument(t.DocumentID)
	if err != nil {
		return nil, err
	}
	if current.Status != t.From {
		return nil, fmt.Errorf("%w: document %s is not %s", types.ErrInvalidTransition, t.DocumentID, t.From)
	}

	updated := cloneDocument(current)
	updated.Status = t.To
	if e := t.Enrichment; e != nil {
		if e.OCRText != nil {
			updated.OCRText = utils.StringPtr(*e.OCRText)
		}
		if e.OCRConfidence != nil {
			updated.OCRConfidence = utils.Float64Ptr(*e.OCRConfidence)
		}
		if e.ExtractedData != nil {
			updated.ExtractedData = clone(e.ExtractedData)
			if t.FillMetadata {
				updated.LetterFields.FillMissing(e.ExtractedData.Letter())
			}
		}
		if e.AIAnalysis != nil {
			updated.AIAnalysis = clone(e.AIAnalysis)
		}
	}
	if t.ProcessedBy != nil {
		updated.ProcessedBy = utils.StringPtr(*t.ProcessedBy)
	}
	updated.UpdatedAt = later(current.UpdatedAt)

	s.appendAudit(t.Audit)
	s.record(updated)
	return cloneDocument(updated), nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string, actor types.AuditContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.liveDocument(id)
	if err != nil {
		return err
	}

	deleted := cloneDocument(current)
	now := later(current.UpdatedAt)
	deleted.DeletedAt = &now
	deleted.UpdatedAt = now

	s.appendAudit(actor.Entry(types.AuditActionDeleteDocument, types.EntityDocument, id, nil, nil))
	s.record(deleted)
	return nil
}

// History returns every stored version of a document, oldest first.
func (s *Store) History(id string) []types.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.history[id])
}

// DocumentCount includes soft-deleted documents.
func (s *Store) DocumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.documents)
}

func (s *Store) Append(ctx context.Context, entry *types.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendAudit(entry)
	return nil
}

func (s *Store) Entries(ctx context.Context, filter types.AuditFilter) ([]*types.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.AuditLogEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if filter.UserID != "" && utils.PtrString(e.UserID) != filter.UserID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if filter.Limit > 0 && uint64(len(out)) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *types.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = utils.NanoID()
	n.CreatedAt = time.Now()
	copied := *n
	s.notifications = append(s.notifications, &copied)
	return nil
}

func (s *Store) NotificationsForUser(ctx context.Context, userID string, unreadOnly bool) ([]*types.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		copied := *n
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				now := time.Now()
				n.ReadAt = &now
			}
			return nil
		}
	}
	return types.ErrNotificationNotFound
}

func (s *Store) DocumentStats(ctx context.Context) (*types.DocumentStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := new(types.DocumentStats)
	var sum float64
	var scored int
	for _, doc := range s.documents {
		if doc.DeletedAt != nil {
			continue
		}
		stats.Total++
		switch doc.Status {
		case types.DocumentStatusPending:
			stats.Pending++
		case types.DocumentStatusProcessing:
			stats.Processing++
		case types.DocumentStatusProcessed:
			stats.Processed++
		case types.DocumentStatusFailed:
			stats.Failed++
		}
		if doc.OCRConfidence != nil {
			sum += *doc.OCRConfidence
			scored++
		}
	}
	if scored > 0 {
		stats.AverageConfidence = utils.Float64Ptr(utils.RoundFloat64(sum/float64(scored), 2))
	}
	return stats, nil
}
