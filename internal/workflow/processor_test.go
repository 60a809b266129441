package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"epatra/internal/enrich"
	"epatra/internal/metrics"
	"epatra/internal/storage"
	"epatra/internal/store/memstore"
	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractFunc func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error)

func (f extractFunc) ExtractText(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
	return f(ctx, data, mimeType)
}

type analyzeFunc func(ctx context.Context, text string) (*enrich.Analysis, error)

func (f analyzeFunc) AnalyzeText(ctx context.Context, text string) (*enrich.Analysis, error) {
	return f(ctx, text)
}

// echoOCR returns the file contents as the recognized text.
var echoOCR = extractFunc(func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
	return &enrich.OCRResult{Text: string(data), Confidence: 0.9234}, nil
})

// subjectAnalysis puts the OCR text into the subject field.
var subjectAnalysis = analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
	return &enrich.Analysis{
		Fields:       enrich.NormalizeFields(map[string]any{"subject": text, "letterType": "तक्रार"}),
		Summary:      "summary of " + text,
		DocumentType: "complaint",
		Model:        "test-model",
	}, nil
})

type harness struct {
	store     *memstore.Store
	blobs     *storage.LocalStorage
	processor *Processor
}

func newHarness(t *testing.T, opts Options, extractor enrich.TextExtractor, analyzer enrich.TextAnalyzer) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if opts.SystemUserID == "" {
		opts.SystemUserID = "system"
	}

	h := &harness{
		store: memstore.New(),
		blobs: storage.NewLocalStorage(t.TempDir()),
	}
	h.processor = New(logger, opts, h.store, h.store, h.blobs, extractor, analyzer, metrics.New())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.processor.Shutdown(ctx)
	})

	return h
}

func jpeg(content string) *Upload {
	return &Upload{
		OriginalName: "letter.jpg",
		MimeType:     "image/jpeg",
		Size:         int64(len(content)),
		Body:         strings.NewReader(content),
	}
}

var uploader = types.AuditContext{UserID: "u1", IPAddress: "10.0.0.1", UserAgent: "test"}

func (h *harness) submit(t *testing.T, u *Upload) *types.Document {
	t.Helper()

	doc, err := h.processor.Submit(context.Background(), u, uploader)
	require.NoError(t, err)
	return doc
}

func (h *harness) document(t *testing.T, id string) *types.Document {
	t.Helper()

	doc, err := h.store.Document(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (h *harness) entries(t *testing.T, id, action string) []*types.AuditLogEntry {
	t.Helper()

	entries, err := h.store.Entries(context.Background(), types.AuditFilter{EntityID: id, Action: action})
	require.NoError(t, err)
	return entries
}

// assertHistory checks that statuses only move forward along
// pending -> processing -> processed|failed and that updatedAt never goes back.
func assertHistory(t *testing.T, s *memstore.Store, id string) {
	t.Helper()

	rank := map[types.DocumentStatus]int{
		types.DocumentStatusPending:    0,
		types.DocumentStatusProcessing: 1,
		types.DocumentStatusProcessed:  2,
		types.DocumentStatusFailed:     2,
	}

	history := s.History(id)
	require.NotEmpty(t, history)
	assert.Equal(t, types.DocumentStatusPending, history[0].Status)

	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]

		if prev.Status != cur.Status {
			assert.True(t, prev.Status.CanTransitionTo(cur.Status), "%s -> %s", prev.Status, cur.Status)
		}
		assert.GreaterOrEqual(t, rank[cur.Status], rank[prev.Status])
		assert.False(t, cur.UpdatedAt.Before(prev.UpdatedAt), "updatedAt moved backwards at version %d", i)
		assert.False(t, cur.UpdatedAt.Before(cur.CreatedAt))
	}
}

func TestSubmitAndProcess(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	doc := h.submit(t, jpeg("मोबाईल चोरी"))

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, types.DocumentStatusPending, doc.Status)
	assert.Nil(t, doc.OCRText)
	assert.Equal(t, "u1", doc.UploadedBy)
	assert.Equal(t, "image/jpeg", doc.MimeType)

	h.processor.Wait()

	got := h.document(t, doc.ID)
	assert.Equal(t, types.DocumentStatusProcessed, got.Status)
	require.NotNil(t, got.OCRConfidence)
	assert.Equal(t, 92.34, *got.OCRConfidence)
	assert.True(t, types.ValidConfidence(*got.OCRConfidence))
	assert.Equal(t, "मोबाईल चोरी", utils.PtrString(got.OCRText))
	assert.Equal(t, "system", utils.PtrString(got.ProcessedBy))
	require.NotNil(t, got.AIAnalysis)
	assert.Equal(t, "complaint", got.AIAnalysis.DocumentType)

	require.NotNil(t, got.ExtractedData)
	data, err := json.Marshal(got.ExtractedData)
	require.NoError(t, err)
	var extracted map[string]any
	require.NoError(t, json.Unmarshal(data, &extracted))
	assert.Len(t, extracted, 11)

	// extracted values fill metadata the uploader left blank
	assert.Equal(t, "मोबाईल चोरी", utils.PtrString(got.Subject))
	assert.Equal(t, "तक्रार", utils.PtrString(got.LetterType))

	assert.Len(t, h.entries(t, doc.ID, types.AuditActionCreateDocument), 1)
	complete := h.entries(t, doc.ID, types.AuditActionEnrichmentComplete)
	require.Len(t, complete, 1)
	assert.Nil(t, complete[0].UserID)
	assert.Empty(t, h.entries(t, doc.ID, types.AuditActionEnrichmentFailed))

	notes, err := h.store.NotificationsForUser(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, doc.ID, utils.PtrString(notes[0].DocumentID))

	assertHistory(t, h.store, doc.ID)
}

func TestUploaderMetadataWinsOverExtraction(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	u := jpeg("scanned text")
	u.Metadata.Subject = utils.StringPtr("<b>Typed</b> subject")
	u.Metadata.Office = utils.StringPtr("   ")
	doc := h.submit(t, u)

	assert.Equal(t, "Typed subject", utils.PtrString(doc.Subject))
	assert.Nil(t, doc.Office)

	h.processor.Wait()

	got := h.document(t, doc.ID)
	assert.Equal(t, "Typed subject", utils.PtrString(got.Subject))
	assert.Equal(t, "scanned text", utils.PtrString(got.ExtractedData.Subject))
}

func TestEncodedMarkupIsStripped(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	u := jpeg("scanned text")
	u.Metadata.Subject = utils.StringPtr("&lt;script&gt;alert(1)&lt;/script&gt;Typed subject")
	u.Metadata.Office = utils.StringPtr("&lt;img src=x onerror=alert(1)&gt;Pune Rural")
	u.Metadata.Topic = utils.StringPtr("&amp;lt;b&amp;gt;Theft")
	u.Metadata.Author = utils.StringPtr("R&amp;D 12 < 13")
	doc := h.submit(t, u)

	assert.Equal(t, "Typed subject", utils.PtrString(doc.Subject))
	assert.Equal(t, "Pune Rural", utils.PtrString(doc.Office))
	assert.Equal(t, "Theft", utils.PtrString(doc.Topic))
	assert.Equal(t, "R&D 12 < 13", utils.PtrString(doc.Author))

	h.processor.Wait()

	text := "&lt;img src=x onerror=alert(1)&gt;corrected"
	updated, err := h.processor.ManualUpdate(context.Background(), doc.ID, &types.DocumentUpdate{
		LetterFields: types.LetterFields{Subject: utils.StringPtr("&#60;script&#62;x&#60;/script&#62;Fixed")},
		OCRText:      &text,
	}, uploader)
	require.NoError(t, err)

	assert.Equal(t, "Fixed", utils.PtrString(updated.Subject))
	assert.Equal(t, "corrected", utils.PtrString(updated.OCRText))
	for _, v := range []*string{updated.Subject, updated.OCRText, updated.Office, updated.Topic} {
		assert.NotContains(t, utils.PtrString(v), "<")
	}
}

func TestAnalysisTimeoutKeepsOCR(t *testing.T) {
	ocr := extractFunc(func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
		return &enrich.OCRResult{Text: "ABC", Confidence: 0.92}, nil
	})
	hang := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h := newHarness(t, Options{Analysis: enrich.Policy{Timeout: 20 * time.Millisecond}}, ocr, hang)

	doc := h.submit(t, jpeg("image"))
	h.processor.Wait()

	got := h.document(t, doc.ID)
	assert.Equal(t, types.DocumentStatusFailed, got.Status)
	assert.Equal(t, "ABC", utils.PtrString(got.OCRText))
	assert.Equal(t, 92.0, utils.PtrFloat64(got.OCRConfidence))
	assert.Nil(t, got.ExtractedData)
	assert.Nil(t, got.AIAnalysis)
	assert.Nil(t, got.ProcessedBy)

	failed := h.entries(t, doc.ID, types.AuditActionEnrichmentFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "analysis:timeout", utils.PtrString(failed[0].Details))
	assert.Equal(t, doc.ID, failed[0].EntityID)
	assert.Empty(t, h.entries(t, doc.ID, types.AuditActionEnrichmentComplete))

	assertHistory(t, h.store, doc.ID)
}

func TestRejectedUploadCreatesNothing(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	_, err := h.processor.Submit(context.Background(), &Upload{
		OriginalName: "payload.exe",
		MimeType:     "application/octet-stream",
		Size:         4,
		Body:         strings.NewReader("MZ.."),
	}, uploader)

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file")

	assert.Zero(t, h.store.DocumentCount())
	entries, err := h.store.Entries(context.Background(), types.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentSubmissionsStayIsolated(t *testing.T) {
	h := newHarness(t, Options{OCRConcurrency: 4, AnalysisConcurrency: 4}, echoOCR, subjectAnalysis)

	var (
		wg   sync.WaitGroup
		docs [2]*types.Document
		errs [2]error
	)
	for i, content := range []string{"first letter", "second letter"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], errs[i] = h.processor.Submit(context.Background(), jpeg(content), uploader)
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, docs[0].ID, docs[1].ID)

	h.processor.Wait()

	first := h.document(t, docs[0].ID)
	second := h.document(t, docs[1].ID)
	assert.Equal(t, types.DocumentStatusProcessed, first.Status)
	assert.Equal(t, types.DocumentStatusProcessed, second.Status)
	assert.Equal(t, "first letter", utils.PtrString(first.ExtractedData.Subject))
	assert.Equal(t, "second letter", utils.PtrString(second.ExtractedData.Subject))

	assertHistory(t, h.store, first.ID)
	assertHistory(t, h.store, second.ID)
}

func TestManualUpdateDuringProcessing(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		close(started)
		<-release
		return subjectAnalysis(ctx, text)
	})

	h := newHarness(t, Options{}, echoOCR, blocking)
	doc := h.submit(t, jpeg("extracted subject"))

	<-started
	assert.Equal(t, types.DocumentStatusProcessing, h.document(t, doc.ID).Status)

	editor := types.AuditContext{UserID: "clerk-7"}
	updated, err := h.processor.ManualUpdate(context.Background(), doc.ID, &types.DocumentUpdate{
		LetterFields: types.LetterFields{Subject: utils.StringPtr("Corrected subject")},
	}, editor)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentStatusProcessing, updated.Status)
	assert.Equal(t, "clerk-7", utils.PtrString(updated.ProcessedBy))

	manual := h.entries(t, doc.ID, types.AuditActionUpdateDocument)
	require.Len(t, manual, 1)
	assert.Contains(t, string(manual[0].OldValue), `"subject":null`)
	assert.Contains(t, string(manual[0].NewValue), `"subject":"Corrected subject"`)
	assert.Equal(t, "clerk-7", utils.PtrString(manual[0].UserID))

	close(release)
	h.processor.Wait()

	got := h.document(t, doc.ID)
	assert.Equal(t, types.DocumentStatusProcessed, got.Status)
	assert.Equal(t, "Corrected subject", utils.PtrString(got.Subject))
	assert.Equal(t, "extracted subject", utils.PtrString(got.ExtractedData.Subject))
	assert.Len(t, h.entries(t, doc.ID, types.AuditActionEnrichmentComplete), 1)

	assertHistory(t, h.store, doc.ID)
}

func TestManualUpdateRequiresFields(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	_, err := h.processor.ManualUpdate(context.Background(), "missing", &types.DocumentUpdate{}, uploader)

	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestManualUpdateUnknownDocument(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)

	_, err := h.processor.ManualUpdate(context.Background(), "missing", &types.DocumentUpdate{OCRText: utils.StringPtr("x")}, uploader)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListFiltersAreStable(t *testing.T) {
	failOCR := extractFunc(func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
		if bytes.Contains(data, []byte("bad")) {
			return nil, &enrich.Error{Op: enrich.OpOCR, Kind: enrich.KindNoText}
		}
		return echoOCR(ctx, data, mimeType)
	})
	h := newHarness(t, Options{}, failOCR, subjectAnalysis)

	for _, content := range []string{"good one", "bad one", "good two"} {
		h.submit(t, jpeg(content))
	}
	h.processor.Wait()

	filter := types.DocumentFilter{Status: types.DocumentStatusProcessed}
	first, err := h.store.Documents(context.Background(), filter)
	require.NoError(t, err)
	second, err := h.store.Documents(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, first, 2)
	for _, doc := range first {
		assert.Equal(t, types.DocumentStatusProcessed, doc.Status)
	}
	assert.Equal(t, first, second)

	failed, err := h.store.Documents(context.Background(), types.DocumentFilter{Status: types.DocumentStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].OCRText)
	assert.Equal(t, "ocr:no_text", utils.PtrString(h.entries(t, failed[0].ID, types.AuditActionEnrichmentFailed)[0].Details))
}

func TestOCRConcurrencyCap(t *testing.T) {
	var active, peak int32
	slow := extractFunc(func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return echoOCR(ctx, data, mimeType)
	})

	h := newHarness(t, Options{OCRConcurrency: 2}, slow, subjectAnalysis)
	for range 6 {
		h.submit(t, jpeg("letter"))
	}
	h.processor.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Positive(t, atomic.LoadInt32(&peak))
}

func TestRetryWithinConfiguredAttempts(t *testing.T) {
	var calls int32
	flaky := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, &enrich.Error{Op: enrich.OpAnalysis, Kind: enrich.KindUnavailable, Err: errors.New("502")}
		}
		return subjectAnalysis(ctx, text)
	})

	h := newHarness(t, Options{Analysis: enrich.Policy{MaxAttempts: 2}}, echoOCR, flaky)
	doc := h.submit(t, jpeg("text"))
	h.processor.Wait()

	assert.Equal(t, types.DocumentStatusProcessed, h.document(t, doc.ID).Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNoRetryByDefault(t *testing.T) {
	var calls int32
	down := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &enrich.Error{Op: enrich.OpAnalysis, Kind: enrich.KindUnavailable, Err: errors.New("503")}
	})

	h := newHarness(t, Options{}, echoOCR, down)
	doc := h.submit(t, jpeg("text"))
	h.processor.Wait()

	assert.Equal(t, types.DocumentStatusFailed, h.document(t, doc.ID).Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnsupportedDocFails(t *testing.T) {
	h := newHarness(t, Options{}, &enrich.Router{Images: echoOCR, Docx: enrich.Docx{}}, subjectAnalysis)

	doc := h.submit(t, &Upload{
		OriginalName: "old.doc",
		MimeType:     "application/msword",
		Size:         3,
		Body:         strings.NewReader("doc"),
	})
	h.processor.Wait()

	assert.Equal(t, types.DocumentStatusFailed, h.document(t, doc.ID).Status)
	failed := h.entries(t, doc.ID, types.AuditActionEnrichmentFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "ocr:unsupported", utils.PtrString(failed[0].Details))
}

func TestDeleteDuringEnrichmentIsNoop(t *testing.T) {
	started := make(chan struct{})
	hang := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h := newHarness(t, Options{}, echoOCR, hang)
	doc := h.submit(t, jpeg("text"))
	<-started

	require.NoError(t, h.processor.Delete(context.Background(), doc.ID, uploader))
	h.processor.Wait()

	_, err := h.store.Document(context.Background(), doc.ID)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
	assert.Empty(t, h.entries(t, doc.ID, types.AuditActionEnrichmentFailed))
	assert.Len(t, h.entries(t, doc.ID, types.AuditActionDeleteDocument), 1)

	notes, err := h.store.NotificationsForUser(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestShutdownCancelsStragglers(t *testing.T) {
	started := make(chan struct{})
	hang := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h := newHarness(t, Options{}, echoOCR, hang)
	doc := h.submit(t, jpeg("text"))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.processor.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := h.document(t, doc.ID)
	assert.Equal(t, types.DocumentStatusFailed, got.Status)
	assert.Equal(t, "text", utils.PtrString(got.OCRText))
	failed := h.entries(t, doc.ID, types.AuditActionEnrichmentFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "analysis:canceled", utils.PtrString(failed[0].Details))

	assert.ErrorIs(t, h.processor.Enqueue(doc.ID), ErrShuttingDown)
}

func TestStoreFailureLeavesProcessing(t *testing.T) {
	h := newHarness(t, Options{}, echoOCR, subjectAnalysis)
	h.store.TransitionErr = func(tr *types.DocumentTransition) error {
		if tr.To == types.DocumentStatusProcessed {
			return errors.New("connection lost")
		}
		return nil
	}

	doc := h.submit(t, jpeg("text"))
	h.processor.Wait()

	got := h.document(t, doc.ID)
	assert.Equal(t, types.DocumentStatusProcessing, got.Status)
	assert.Nil(t, got.OCRText)
	assert.Empty(t, h.entries(t, doc.ID, types.AuditActionEnrichmentComplete))
}

// vanishingBlobs accepts uploads but never finds them again.
type vanishingBlobs struct {
	*storage.LocalStorage
}

func (vanishingBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, storage.ErrObjectNotFound
}

func TestMissingBlobFails(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := memstore.New()
	p := New(logger, Options{}, s, s, vanishingBlobs{storage.NewLocalStorage(t.TempDir())}, echoOCR, subjectAnalysis, metrics.New())

	doc, err := p.Submit(context.Background(), jpeg("text"), uploader)
	require.NoError(t, err)
	p.Wait()

	got, err := s.Document(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentStatusFailed, got.Status)

	failed, err := s.Entries(context.Background(), types.AuditFilter{EntityID: doc.ID, Action: types.AuditActionEnrichmentFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "ocr:input", utils.PtrString(failed[0].Details))
}
