package workflow

import (
	"context"
	"errors"
	"time"

	"epatra/internal/enrich"
	"epatra/internal/storage"
	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

func (p *Processor) run(ctx context.Context, documentID string) {
	logger := p.logger.WithField("document_id", documentID)

	doc, err := p.store.TransitionDocument(ctx, &types.DocumentTransition{
		DocumentID: documentID,
		From:       types.DocumentStatusPending,
		To:         types.DocumentStatusProcessing,
	})
	switch {
	case errors.Is(err, types.ErrNotFound):
		logger.Info("document deleted before enrichment started")
		return
	case errors.Is(err, types.ErrInvalidTransition):
		logger.WithError(err).Warn("document is no longer pending, skipping enrichment")
		return
	case err != nil:
		logger.WithError(err).Error("failed to start enrichment, document left pending")
		return
	}

	result, failure := p.enrich(ctx, logger, doc)
	p.finish(context.WithoutCancel(ctx), logger, doc, result, failure)
}

// enrich runs OCR then analysis. Whatever succeeded is returned even when a
// later step fails.
func (p *Processor) enrich(ctx context.Context, logger *logrus.Entry, doc *types.Document) (*types.Enrichment, *enrich.Error) {
	result := new(types.Enrichment)

	data, err := p.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return result, &enrich.Error{Op: enrich.OpOCR, Kind: enrich.KindInput, Err: err}
		}
		return result, enrich.AsError(enrich.OpOCR, err)
	}

	var ocr *enrich.OCRResult
	err = p.call(ctx, p.ocrSem, p.opts.OCR, enrich.OpOCR, func(ctx context.Context) error {
		var err error
		ocr, err = p.extractor.ExtractText(ctx, data, doc.MimeType)
		return err
	})
	if err != nil {
		return result, enrich.AsError(enrich.OpOCR, err)
	}

	confidence := utils.RoundFloat64(clampUnit(ocr.Confidence)*100, 2)
	result.OCRText = utils.StringPtr(ocr.Text)
	result.OCRConfidence = &confidence
	logger.WithField("confidence", confidence).Debug("ocr complete")

	var analysis *enrich.Analysis
	err = p.call(ctx, p.analysisSem, p.opts.Analysis, enrich.OpAnalysis, func(ctx context.Context) error {
		var err error
		analysis, err = p.analyzer.AnalyzeText(ctx, ocr.Text)
		return err
	})
	if err != nil {
		return result, enrich.AsError(enrich.OpAnalysis, err)
	}

	fields := analysis.Fields
	result.ExtractedData = &fields
	result.AIAnalysis = &types.AIAnalysis{
		Summary:      analysis.Summary,
		DocumentType: analysis.DocumentType,
		Model:        analysis.Model,
	}

	return result, nil
}

// call holds one slot of sem for the whole retry loop of a provider call.
func (p *Processor) call(ctx context.Context, sem *semaphore.Weighted, policy enrich.Policy, op enrich.Op, fn func(ctx context.Context) error) error {
	if err := sem.Acquire(ctx, 1); err != nil {
		return enrich.AsError(op, err)
	}
	defer sem.Release(1)

	return policy.Do(ctx, op, func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		p.metrics.ProviderCall(string(op), err, time.Since(start))
		return err
	})
}

// finish records the terminal status. ctx must not be canceled by shutdown or
// deletion so the result is always written when the document still exists.
func (p *Processor) finish(ctx context.Context, logger *logrus.Entry, doc *types.Document, result *types.Enrichment, failure *enrich.Error) {
	transition := &types.DocumentTransition{
		DocumentID: doc.ID,
		From:       types.DocumentStatusProcessing,
		Enrichment: result,
	}

	system := types.AuditContext{}
	snapshot := map[string]any{
		"ocrConfidence": result.OCRConfidence,
		"processedBy":   p.opts.SystemUserID,
	}

	if failure == nil {
		transition.To = types.DocumentStatusProcessed
		transition.ProcessedBy = utils.StringPtr(p.opts.SystemUserID)
		transition.FillMetadata = true
		snapshot["status"] = types.DocumentStatusProcessed
		transition.Audit = system.Entry(types.AuditActionEnrichmentComplete, types.EntityDocument, doc.ID,
			map[string]any{"status": types.DocumentStatusProcessing}, snapshot)
	} else {
		logger = logger.WithFields(logrus.Fields{"op": failure.Op, "kind": failure.Kind})
		logger.WithError(failure).Warn("enrichment failed")

		transition.To = types.DocumentStatusFailed
		snapshot["status"] = types.DocumentStatusFailed
		delete(snapshot, "processedBy")
		transition.Audit = system.Entry(types.AuditActionEnrichmentFailed, types.EntityDocument, doc.ID,
			map[string]any{"status": types.DocumentStatusProcessing}, snapshot)
		transition.Audit.Details = utils.StringPtr(failure.Detail())
	}

	updated, err := p.store.TransitionDocument(ctx, transition)
	switch {
	case errors.Is(err, types.ErrNotFound):
		logger.Info("document deleted during enrichment, result discarded")
		return
	case err != nil:
		logger.WithError(err).Error("failed to record enrichment result, document left processing")
		return
	}

	kind := ""
	if failure != nil {
		kind = string(failure.Kind)
	}
	p.metrics.EnrichmentFinished(string(updated.Status), kind)
	logger.WithField("status", updated.Status).Info("enrichment finished")

	p.notify(ctx, logger, updated)
}

func (p *Processor) notify(ctx context.Context, logger *logrus.Entry, doc *types.Document) {
	n := &types.Notification{
		UserID:     doc.UploadedBy,
		DocumentID: utils.StringPtr(doc.ID),
	}

	if doc.Status == types.DocumentStatusProcessed {
		n.Title = "दस्तऐवज प्रक्रिया पूर्ण / Document processed"
		n.Body = "तुमच्या " + doc.OriginalName + " या दस्तऐवजाची माहिती काढली आहे. / Details were extracted from " + doc.OriginalName + "."
	} else {
		n.Title = "दस्तऐवज प्रक्रिया अयशस्वी / Document processing failed"
		n.Body = doc.OriginalName + " मधून माहिती काढता आली नाही. कृपया माहिती स्वतः भरा. / Details could not be extracted from " + doc.OriginalName + ". Please enter them manually."
	}

	if err := p.notifier.CreateNotification(ctx, n); err != nil {
		logger.WithError(err).Warn("failed to notify uploader")
	}
}

func clampUnit(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
