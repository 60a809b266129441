// Package workflow drives uploaded documents from pending through OCR and
// analysis to a terminal status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"html"
	"path"
	"strings"
	"sync"
	"time"

	"epatra/internal/enrich"
	"epatra/internal/metrics"
	"epatra/internal/storage"
	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var ErrShuttingDown = errors.New("processor is shutting down")

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *types.Document, actor types.AuditContext) error
	Document(ctx context.Context, id string) (*types.Document, error)
	UpdateDocument(ctx context.Context, id string, update *types.DocumentUpdate, actor types.AuditContext) (*types.Document, error)
	TransitionDocument(ctx context.Context, t *types.DocumentTransition) (*types.Document, error)
	DeleteDocument(ctx context.Context, id string, actor types.AuditContext) error
}

type Notifier interface {
	CreateNotification(ctx context.Context, n *types.Notification) error
}

type Options struct {
	OCR                 enrich.Policy
	Analysis            enrich.Policy
	OCRConcurrency      int64
	AnalysisConcurrency int64
	SystemUserID        string
	MaxUploadBytes      int64
}

func OptionsFromConfig(c *types.Config) Options {
	backoff := time.Duration(c.AIRetryBackoffMs) * time.Millisecond
	return Options{
		OCR: enrich.Policy{
			Timeout:     time.Duration(c.OCRTimeoutSec) * time.Second,
			MaxAttempts: int(c.AIMaxAttempts),
			Backoff:     backoff,
		},
		Analysis: enrich.Policy{
			Timeout:     time.Duration(c.AnalysisTimeoutSec) * time.Second,
			MaxAttempts: int(c.AIMaxAttempts),
			Backoff:     backoff,
		},
		OCRConcurrency:      c.OCRConcurrency,
		AnalysisConcurrency: c.AnalysisConcurrency,
		SystemUserID:        c.SystemUserID,
		MaxUploadBytes:      c.MaxUploadBytes,
	}
}

type Processor struct {
	logger    *logrus.Logger
	opts      Options
	store     DocumentStore
	notifier  Notifier
	blobs     storage.Provider
	extractor enrich.TextExtractor
	analyzer  enrich.TextAnalyzer
	metrics   *metrics.Metrics
	sanitizer *bluemonday.Policy

	ocrSem      *semaphore.Weighted
	analysisSem *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
	closed  bool
}

func New(
	logger *logrus.Logger,
	opts Options,
	store DocumentStore,
	notifier Notifier,
	blobs storage.Provider,
	extractor enrich.TextExtractor,
	analyzer enrich.TextAnalyzer,
	m *metrics.Metrics,
) *Processor {
	if opts.OCRConcurrency < 1 {
		opts.OCRConcurrency = 1
	}
	if opts.AnalysisConcurrency < 1 {
		opts.AnalysisConcurrency = 1
	}
	if opts.SystemUserID == "" {
		opts.SystemUserID = "system"
	}

	baseCtx, stop := context.WithCancel(context.Background())

	return &Processor{
		logger:      logger,
		opts:        opts,
		store:       store,
		notifier:    notifier,
		blobs:       blobs,
		extractor:   extractor,
		analyzer:    analyzer,
		metrics:     m,
		sanitizer:   bluemonday.StrictPolicy(),
		ocrSem:      semaphore.NewWeighted(opts.OCRConcurrency),
		analysisSem: semaphore.NewWeighted(opts.AnalysisConcurrency),
		baseCtx:     baseCtx,
		stop:        stop,
		running:     make(map[string]context.CancelFunc),
	}
}

// Submit stores the file, creates the document in pending and schedules its
// enrichment. It returns as soon as the document exists.
func (p *Processor) Submit(ctx context.Context, upload *Upload, actor types.AuditContext) (*types.Document, error) {
	if err := ValidateUpload(upload, p.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	if actor.UserID == "" {
		return nil, types.NewValidationError("uploadedBy", "uploader is required")
	}

	key := storage.DocumentKey(upload.OriginalName, time.Now())
	if err := p.blobs.Put(ctx, key, upload.Body, upload.Size, upload.MimeType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &types.Document{
		FileName:     path.Base(key),
		OriginalName: upload.OriginalName,
		MimeType:     upload.MimeType,
		FileSize:     upload.Size,
		FilePath:     key,
		LetterFields: p.sanitizeFields(upload.Metadata, true),
		UploadedBy:   actor.UserID,
	}

	if err := p.store.CreateDocument(ctx, doc, actor); err != nil {
		if delErr := p.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			p.logger.WithError(delErr).WithField("key", key).Warn("failed to remove orphaned upload")
		}
		return nil, err
	}

	if err := p.Enqueue(doc.ID); err != nil {
		p.logger.WithError(err).WithField("document_id", doc.ID).Warn("document left pending")
	}

	return doc, nil
}

// Enqueue schedules enrichment for a pending document without blocking. A
// document that is already scheduled is not scheduled twice.
func (p *Processor) Enqueue(documentID string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := p.running[documentID]; ok {
		p.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(p.baseCtx)
	p.running[documentID] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.EnrichmentStarted()

	go func() {
		defer p.wg.Done()
		defer p.metrics.EnrichmentDone()
		defer func() {
			p.mu.Lock()
			delete(p.running, documentID)
			p.mu.Unlock()
			cancel()
		}()

		p.run(ctx, documentID)
	}()

	return nil
}

// Cancel stops the in-flight enrichment of a document, if any.
func (p *Processor) Cancel(documentID string) {
	p.mu.Lock()
	cancel, ok := p.running[documentID]
	p.mu.Unlock()

	if ok {
		cancel()
	}
}

// Wait blocks until every scheduled enrichment has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting work and waits for running enrichments. When ctx
// ends first the remaining ones are canceled; they still record a failed
// status before Shutdown returns.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		<-done
		return ctx.Err()
	}
}

// ManualUpdate applies a human correction. It never changes status, so it is
// safe while enrichment is running.
func (p *Processor) ManualUpdate(ctx context.Context, id string, update *types.DocumentUpdate, actor types.AuditContext) (*types.Document, error) {
	if update == nil || update.Empty() {
		return nil, types.NewValidationError("body", "no updatable fields supplied")
	}

	clean := &types.DocumentUpdate{LetterFields: p.sanitizeFields(update.LetterFields, false)}
	if update.OCRText != nil {
		text := p.sanitize(*update.OCRText)
		clean.OCRText = &text
	}

	return p.store.UpdateDocument(ctx, id, clean, actor)
}

func (p *Processor) Delete(ctx context.Context, id string, actor types.AuditContext) error {
	if err := p.store.DeleteDocument(ctx, id, actor); err != nil {
		return err
	}

	p.Cancel(id)
	return nil
}

const maxSanitizePasses = 8

// sanitize decodes entities and strips markup until the text stops changing,
// so entity-encoded tags cannot survive as live markup. Input that never
// settles is returned in its escaped form.
func (p *Processor) sanitize(s string) string {
	clean := p.sanitizer.Sanitize(s)
	for range maxSanitizePasses {
		next := p.sanitizer.Sanitize(html.UnescapeString(clean))
		if next == clean {
			return strings.TrimSpace(html.UnescapeString(clean))
		}
		clean = next
	}
	return strings.TrimSpace(clean)
}

// sanitizeFields strips markup from every set field. With dropBlank, fields
// that end up empty are left unset instead of stored as "".
func (p *Processor) sanitizeFields(fields types.LetterFields, dropBlank bool) types.LetterFields {
	var out types.LetterFields
	for key, value := range fields.Map() {
		if value == nil {
			continue
		}
		clean := p.sanitize(*value)
		if dropBlank {
			out.Set(key, utils.NonEmptyPtr(clean))
		} else {
			out.Set(key, &clean)
		}
	}
	return out
}
