package server

import (
	"net/http"

	"epatra/pkg/types"

	"github.com/alexedwards/flow"
)

type roleRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"isActive"`
}

func (req *roleRequest) role() *types.Role {
	role := &types.Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Permissions: req.Permissions,
		IsActive:    true,
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	return role
}

func (s *Service) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.Roles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, roles)
}

func (s *Service) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.store.Role(r.Context(), flow.Param(r.Context(), "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, role)
}

func (s *Service) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	role := req.role()
	if err := s.store.CreateRole(r.Context(), role, auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, role)
}

func (s *Service) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	role := req.role()
	if err := s.store.UpdateRole(r.Context(), flow.Param(r.Context(), "id"), role, auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, role)
}

// handleDeleteRole deactivates; role rows are never removed.
func (s *Service) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeactivateRole(r.Context(), flow.Param(r.Context(), "id"), auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type fieldConfigRequest struct {
	Name         string                 `json:"name"`
	Label        string                 `json:"label"`
	FieldType    types.FieldType        `json:"fieldType"`
	Required     bool                   `json:"required"`
	Validation   *types.ValidationRules `json:"validation"`
	Options      types.FieldOptions     `json:"options"`
	DefaultValue *string                `json:"defaultValue"`
	IsActive     *bool                  `json:"isActive"`
	DisplayOrder int                    `json:"displayOrder"`
}

func (req *fieldConfigRequest) field() *types.FieldConfiguration {
	field := &types.FieldConfiguration{
		Name:         req.Name,
		Label:        req.Label,
		FieldType:    req.FieldType,
		Required:     req.Required,
		Validation:   req.Validation,
		Options:      req.Options,
		DefaultValue: req.DefaultValue,
		IsActive:     true,
		DisplayOrder: req.DisplayOrder,
	}
	if field.Options == nil {
		field.Options = types.FieldOptions{}
	}
	if req.IsActive != nil {
		field.IsActive = *req.IsActive
	}
	return field
}

func (s *Service) handleListFieldConfigs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	fields, err := s.store.FieldConfigs(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, fields)
}

func (s *Service) handleCreateFieldConfig(w http.ResponseWriter, r *http.Request) {
	var req fieldConfigRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	field := req.field()
	if err := s.store.CreateFieldConfig(r.Context(), field, auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, field)
}

func (s *Service) handleUpdateFieldConfig(w http.ResponseWriter, r *http.Request) {
	var req fieldConfigRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	field := req.field()
	if err := s.store.UpdateFieldConfig(r.Context(), flow.Param(r.Context(), "id"), field, auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, field)
}

func (s *Service) handleDeleteFieldConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFieldConfig(r.Context(), flow.Param(r.Context(), "id"), auditContext(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	var filter types.AuditFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.writeError(w, r, types.NewValidationError("query", "invalid filter parameters"))
		return
	}

	entries, err := s.store.Entries(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, entries)
}

type documentCounts struct {
	Total      int64 `json:"total"`
	Processed  int64 `json:"processed"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
}

func (s *Service) handleDocumentAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DocumentStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, documentCounts{
		Total:      stats.Total,
		Processed:  stats.Processed,
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Failed:     stats.Failed,
	})
}

func (s *Service) handleProcessingAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DocumentStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]*float64{"averageConfidence": stats.AverageConfidence})
}
