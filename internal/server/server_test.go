package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"epatra/internal/auth"
	"epatra/internal/enrich"
	"epatra/internal/messaging"
	"epatra/internal/metrics"
	"epatra/internal/storage"
	"epatra/internal/store/memstore"
	"epatra/internal/workflow"
	"epatra/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeAuth accepts "<user>-token" bearer tokens for the users it knows.
type fakeAuth map[string]*types.Principal

func (f fakeAuth) TokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrNoToken
	}
	return strings.TrimPrefix(header, "Bearer "), nil
}

func (f fakeAuth) Verify(ctx context.Context, raw string) (*types.Principal, error) {
	p, ok := f[raw]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return p, nil
}

var users = fakeAuth{
	"admin-token":  {UserID: "admin-1", Roles: []string{"admin"}},
	"clerk-token":  {UserID: "clerk-1", Email: "clerk@police.example", Roles: []string{"clerk"}},
	"viewer-token": {UserID: "viewer-1", Roles: []string{"viewer"}},
}

type testServer struct {
	t         *testing.T
	svc       *Service
	store     *memstore.Store
	processor *workflow.Processor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memstore.New()
	ctx := context.Background()
	for _, role := range []*types.Role{
		{ID: "role-admin", Name: "admin", DisplayName: "Administrator", Permissions: []string{types.PermissionAll}, IsActive: true},
		{ID: "role-clerk", Name: "clerk", DisplayName: "Clerk", Permissions: []string{
			types.PermissionDocumentsRead,
			types.PermissionDocumentsWrite,
			types.PermissionCommunicationsSend,
		}, IsActive: true},
		{ID: "role-viewer", Name: "viewer", DisplayName: "Viewer", Permissions: []string{types.PermissionDocumentsRead}, IsActive: true},
	} {
		require.NoError(t, store.UpsertRole(ctx, role))
	}

	config := &types.Config{
		EmailFrom:                   "no-reply@epatra.local",
		EmailFromName:               "e-Patra",
		EmailTestMode:               true,
		CommunicationsCallbackToken: "cb-secret",
	}

	extractor := &enrich.Router{Images: echoOCR, Docx: echoOCR}
	analyzer := analyzeFunc(func(ctx context.Context, text string) (*enrich.Analysis, error) {
		return &enrich.Analysis{
			Fields:       enrich.NormalizeFields(map[string]any{"subject": text}),
			Summary:      "summary",
			DocumentType: "letter",
			Model:        "test-model",
		}, nil
	})

	m := metrics.New()
	processor := workflow.New(logger, workflow.Options{SystemUserID: "system"}, store, store,
		storage.NewLocalStorage(t.TempDir()), extractor, analyzer, m)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = processor.Shutdown(ctx)
	})

	svc := New(config, logger, store, processor, messaging.New(logger, config, store), users, m)

	return &testServer{t: t, svc: svc, store: store, processor: processor}
}

var echoOCR = extractFunc(func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
	return &enrich.OCRResult{Text: string(data), Confidence: 0.9}, nil
})

type extractFunc func(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error)

func (f extractFunc) ExtractText(ctx context.Context, data []byte, mimeType string) (*enrich.OCRResult, error) {
	return f(ctx, data, mimeType)
}

type analyzeFunc func(ctx context.Context, text string) (*enrich.Analysis, error)

func (f analyzeFunc) AnalyzeText(ctx context.Context, text string) (*enrich.Analysis, error) {
	return f(ctx, text)
}

func (ts *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()

	r := httptest.NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	ts.svc.Handler().ServeHTTP(w, r)
	return w
}

func (ts *testServer) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()

	data, err := json.Marshal(body)
	require.NoError(ts.t, err)
	return ts.do(method, path, token, bytes.NewReader(data), "application/json")
}

func (ts *testServer) upload(token, filename, contentType string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(ts.t, mw.WriteField(k, v))
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(ts.t, err)
	_, err = part.Write(content)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	return ts.do(http.MethodPost, "/api/documents", token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/documents", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	w = ts.do(http.MethodGet, "/api/documents", "forged-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	ts.svc.Handler().ServeHTTP(rec, r)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestTrailingSlashRedirects(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/documents/?status=pending", "clerk-token", nil, "")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/api/documents?status=pending", w.Header().Get("Location"))
}

func TestUploadAndProcess(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "letter.pdf", "application/pdf", []byte("Noise complaint"), map[string]string{
		"office":     "शिवाजीनगर",
		"letterType": "तक्रार",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[types.Document](t, w)
	assert.Equal(t, types.DocumentStatusPending, created.Status)
	assert.Equal(t, "clerk-1", created.UploadedBy)
	assert.Equal(t, "शिवाजीनगर", *created.Office)

	ts.processor.Wait()

	w = ts.do(http.MethodGet, "/api/documents/"+created.ID, "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	doc := decode[types.Document](t, w)
	assert.Equal(t, types.DocumentStatusProcessed, doc.Status)
	assert.Equal(t, "Noise complaint", *doc.Subject)
	assert.Equal(t, 90.0, *doc.OCRConfidence)

	w = ts.do(http.MethodGet, "/api/documents?status=processed&letterType=तक्रार", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.Document](t, w), 1)

	w = ts.do(http.MethodGet, "/api/documents/"+created.ID+"/audit", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]types.AuditLogEntry](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, types.AuditActionEnrichmentComplete, entries[0].Action)
	assert.Equal(t, types.AuditActionCreateDocument, entries[1].Action)

	w = ts.do(http.MethodGet, "/api/notifications", "clerk-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	notifications := decode[[]types.Notification](t, w)
	require.Len(t, notifications, 1)

	w = ts.do(http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", "clerk-token", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/api/notifications?unread=true", "clerk-token", nil, "")
	assert.Empty(t, decode[[]types.Notification](t, w))

	w = ts.do(http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", "viewer-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejected(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "payload.exe", "application/octet-stream", []byte("MZ"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[errorResponse](t, w)
	assert.Contains(t, body.Fields, "file")
	assert.Equal(t, 0, ts.store.DocumentCount())

	w = ts.upload("viewer-token", "letter.pdf", "application/pdf", []byte("x"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, ts.store.DocumentCount())

	w = ts.do(http.MethodPost, "/api/documents", "clerk-token", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.config.MaxUploadBytes = 1024

	w := ts.upload("clerk-token", "scan.png", "image/png", bytes.Repeat([]byte("a"), 4<<20), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Fields, "file")
	assert.Equal(t, 0, ts.store.DocumentCount())
}

func TestUpdateDocument(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "letter.pdf", "application/pdf", []byte("text"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[types.Document](t, w).ID
	ts.processor.Wait()

	w = ts.doJSON(http.MethodPut, "/api/documents/"+id, "clerk-token", map[string]any{"status": "pending"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Fields["body"], "status")

	w = ts.doJSON(http.MethodPut, "/api/documents/"+id, "clerk-token", map[string]any{"filePath": "/etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(http.MethodPut, "/api/documents/"+id, "clerk-token", map[string]any{
		"subject": "<b>Corrected</b> subject",
		"mobile":  "9800000000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decode[types.Document](t, w)
	assert.Equal(t, "Corrected subject", *doc.Subject)
	assert.Equal(t, "9800000000", *doc.Mobile)
	assert.Equal(t, "clerk-1", *doc.ProcessedBy)
	assert.Equal(t, types.DocumentStatusProcessed, doc.Status)

	w = ts.doJSON(http.MethodPut, "/api/documents/missing", "clerk-token", map[string]any{"subject": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.doJSON(http.MethodPut, "/api/documents/"+id, "clerk-token", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "letter.pdf", "application/pdf", []byte("text"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[types.Document](t, w).ID
	ts.processor.Wait()

	w = ts.do(http.MethodDelete, "/api/documents/"+id, "clerk-token", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodDelete, "/api/documents/"+id, "admin-token", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/api/documents/"+id, "admin-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodDelete, "/api/documents/"+id, "admin-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportDocuments(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"a.pdf", "b.pdf"} {
		w := ts.upload("clerk-token", name, "application/pdf", []byte(name), nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	ts.processor.Wait()

	w := ts.do(http.MethodGet, "/api/documents/export", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "epatra-documents-")

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Documents")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/documents?status=archived", "viewer-token", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "a.pdf", "application/pdf", []byte("a"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	ts.processor.Wait()

	w = ts.do(http.MethodGet, "/api/analytics/documents", "viewer-token", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/analytics/documents", "admin-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, documentCounts{Total: 1, Processed: 1}, decode[documentCounts](t, w))

	w = ts.do(http.MethodGet, "/api/analytics/processing", "admin-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	avg := decode[map[string]*float64](t, w)["averageConfidence"]
	require.NotNil(t, avg)
	assert.Equal(t, 90.0, *avg)
}

func TestRoles(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/roles", "clerk-token", map[string]any{"name": "auditor"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.doJSON(http.MethodPost, "/api/roles", "admin-token", map[string]any{
		"name":        "auditor",
		"displayName": "लेखापरीक्षक / Auditor",
		"permissions": []string{types.PermissionAuditRead},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	role := decode[types.Role](t, w)
	assert.True(t, role.IsActive)

	w = ts.doJSON(http.MethodPost, "/api/roles", "admin-token", map[string]any{
		"name":        "auditor",
		"displayName": "Duplicate",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(http.MethodPost, "/api/roles", "admin-token", map[string]any{
		"name":        "superuser",
		"displayName": "Superuser",
		"permissions": []string{"everything"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodDelete, "/api/roles/"+role.ID, "admin-token", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/api/roles/"+role.ID, "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[types.Role](t, w).IsActive)

	w = ts.do(http.MethodGet, "/api/roles/missing", "viewer-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeactivatedRoleLosesAccess(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/documents", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodDelete, "/api/roles/role-viewer", "admin-token", nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/api/documents", "viewer-token", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFieldConfigs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/field-configs", "admin-token", map[string]any{
		"name":         "priority",
		"label":        "प्राधान्य / Priority",
		"fieldType":    "select",
		"options":      []map[string]string{{"value": "high", "label": "उच्च / High"}},
		"displayOrder": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	field := decode[types.FieldConfiguration](t, w)

	w = ts.doJSON(http.MethodPost, "/api/field-configs", "admin-token", map[string]any{
		"name":      "empty",
		"label":     "Empty",
		"fieldType": "select",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(http.MethodPost, "/api/field-configs", "admin-token", map[string]any{
		"name":      "priority",
		"label":     "Priority",
		"fieldType": "text",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = ts.doJSON(http.MethodPut, "/api/field-configs/"+field.ID, "admin-token", map[string]any{
		"name":      "priority",
		"label":     "Priority",
		"fieldType": "text",
		"isActive":  false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/field-configs?active=true", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.FieldConfiguration](t, w))

	w = ts.do(http.MethodDelete, "/api/field-configs/"+field.ID, "admin-token", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodDelete, "/api/field-configs/"+field.ID, "admin-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommunications(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/communications", "viewer-token", map[string]any{
		"channel": "sms", "recipient": "+919800000000", "message": "hi",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.doJSON(http.MethodPost, "/api/communications", "clerk-token", map[string]any{
		"channel": "sms", "recipient": "+919800000000", "message": "पत्र प्राप्त झाले",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[types.CommunicationLog](t, w)
	assert.Equal(t, types.DeliveryQueued, msg.Status)
	assert.Equal(t, "clerk-1", msg.SentBy)

	w = ts.doJSON(http.MethodPost, "/api/communications", "clerk-token", map[string]any{
		"channel": "email", "recipient": "someone@example.com", "message": "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, types.DeliverySent, decode[types.CommunicationLog](t, w).Status)

	w = ts.doJSON(http.MethodPost, "/api/communications", "clerk-token", map[string]any{
		"channel": "email", "recipient": "someone@example.com", "message": "hello", "documentId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/communications?channel=sms", "viewer-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.CommunicationLog](t, w), 1)

	report := strings.NewReader(`{"status":"delivered","providerMessageId":"sms-9"}`)
	w = ts.do(http.MethodPost, "/api/communications/"+msg.ID+"/status", "", report, "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/communications/"+msg.ID+"/status",
		strings.NewReader(`{"status":"delivered","providerMessageId":"sms-9"}`))
	r.Header.Set(headerCallbackToken, "cb-secret")
	rec := httptest.NewRecorder()
	ts.svc.Handler().ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.DeliveryDelivered, decode[types.CommunicationLog](t, rec).Status)

	// a late "sent" report arriving after delivery is refused
	r = httptest.NewRequest(http.MethodPost, "/api/communications/"+msg.ID+"/status",
		strings.NewReader(`{"status":"sent"}`))
	r.Header.Set(headerCallbackToken, "cb-secret")
	rec = httptest.NewRecorder()
	ts.svc.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuditLogs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload("clerk-token", "a.pdf", "application/pdf", []byte("a"), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	ts.processor.Wait()

	w = ts.do(http.MethodGet, "/api/audit-logs", "clerk-token", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/audit-logs?userId=clerk-1", "admin-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]types.AuditLogEntry](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, types.AuditActionCreateDocument, entries[0].Action)
	assert.Equal(t, "192.0.2.1", entries[0].IPAddress)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/me", "clerk-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		UserID      string   `json:"userId"`
		Email       string   `json:"email"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "clerk-1", me.UserID)
	assert.Equal(t, "clerk@police.example", me.Email)
	assert.ElementsMatch(t, []string{
		types.PermissionDocumentsRead,
		types.PermissionDocumentsWrite,
		types.PermissionCommunicationsSend,
	}, me.Permissions)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/nothing", "admin-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decode[errorResponse](t, w).Error)
}

func TestWriteErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		err  error
		code int
	}{
		{types.NewValidationError("name", "required"), http.StatusBadRequest},
		{types.ErrDocumentNotFound, http.StatusNotFound},
		{types.ErrInvalidTransition, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		ts.svc.writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}
}
