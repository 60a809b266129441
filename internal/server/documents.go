package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"epatra/internal/export"
	"epatra/internal/workflow"
	"epatra/pkg/types"

	"github.com/alexedwards/flow"
)

const (
	// multipartSlack leaves room for the metadata fields and part headers
	// on top of the file itself.
	multipartSlack  = 1 << 20
	multipartMemory = 32 << 20
)

func (s *Service) maxUploadBytes() int64 {
	if s.config.MaxUploadBytes > 0 {
		return s.config.MaxUploadBytes
	}
	return workflow.DefaultMaxUploadBytes
}

func (s *Service) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.maxUploadBytes()

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > limit+multipartSlack {
			s.writeError(w, r, types.NewValidationError("file", fmt.Sprintf("file exceeds the %d MB limit", limit>>20)))
			return
		}
		s.writeError(w, r, types.NewValidationError("body", "expected a multipart/form-data body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, types.NewValidationError("file", "a file is required"))
		return
	}
	defer file.Close()

	var metadata types.LetterFields
	if err := decoder.Decode(&metadata, r.MultipartForm.Value); err != nil {
		s.writeError(w, r, types.NewValidationError("body", "invalid metadata fields"))
		return
	}

	doc, err := s.processor.Submit(ctx, &workflow.Upload{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
		Metadata:     metadata,
	}, auditContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Service) documentFilter(r *http.Request) (types.DocumentFilter, error) {
	var filter types.DocumentFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		return filter, types.NewValidationError("query", "invalid filter parameters")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, types.NewValidationError("status", "status must be pending, processing, processed or failed")
	}
	return filter, nil
}

func (s *Service) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := s.documentFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	docs, err := s.store.Documents(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Service) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := s.documentFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	docs, err := s.store.Documents(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := export.Filename(time.Now().Format("20060102-1504"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := export.WriteDocuments(w, docs); err != nil {
		s.logger.WithError(err).WithField("request_id", requestIDFrom(r.Context())).Error("failed to write export")
	}
}

func (s *Service) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Document(r.Context(), flow.Param(r.Context(), "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// handleUpdateDocument accepts only the whitelisted keys; anything else,
// including status and file attributes, is a 400.
func (s *Service) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var update types.DocumentUpdate
	if err := decodeJSON(w, r, &update, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.processor.ManualUpdate(r.Context(), flow.Param(r.Context(), "id"), &update, auditContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.processor.Delete(r.Context(), flow.Param(r.Context(), "id"), auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDocumentAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Entries(r.Context(), types.AuditFilter{EntityID: flow.Param(r.Context(), "id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, entries)
}
