package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"epatra/internal/messaging"
	"epatra/internal/metrics"
	"epatra/internal/workflow"
	"epatra/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// Store is the read side and the administrative writes used by the handlers.
// Document writes go through the workflow processor.
type Store interface {
	Document(ctx context.Context, id string) (*types.Document, error)
	Documents(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error)
	DocumentStats(ctx context.Context) (*types.DocumentStats, error)
	Entries(ctx context.Context, filter types.AuditFilter) ([]*types.AuditLogEntry, error)

	Roles(ctx context.Context) ([]*types.Role, error)
	Role(ctx context.Context, id string) (*types.Role, error)
	ActiveRolesByNames(ctx context.Context, names []string) ([]*types.Role, error)
	CreateRole(ctx context.Context, role *types.Role, actor types.AuditContext) error
	UpdateRole(ctx context.Context, id string, role *types.Role, actor types.AuditContext) error
	DeactivateRole(ctx context.Context, id string, actor types.AuditContext) error

	FieldConfigs(ctx context.Context, activeOnly bool) ([]*types.FieldConfiguration, error)
	CreateFieldConfig(ctx context.Context, field *types.FieldConfiguration, actor types.AuditContext) error
	UpdateFieldConfig(ctx context.Context, id string, field *types.FieldConfiguration, actor types.AuditContext) error
	DeleteFieldConfig(ctx context.Context, id string, actor types.AuditContext) error

	Communications(ctx context.Context, filter types.CommunicationFilter) ([]*types.CommunicationLog, error)

	NotificationsForUser(ctx context.Context, userID string, unreadOnly bool) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// Authenticator turns a request into a verified principal. *auth.Verifier
// satisfies it.
type Authenticator interface {
	TokenFromRequest(r *http.Request) (string, error)
	Verify(ctx context.Context, raw string) (*types.Principal, error)
}

type Service struct {
	logger    *logrus.Logger
	config    *types.Config
	store     Store
	processor *workflow.Processor
	messenger *messaging.Service
	authn     Authenticator
	metrics   *metrics.Metrics

	router *flow.Mux
	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	store Store,
	processor *workflow.Processor,
	messenger *messaging.Service,
	authn Authenticator,
	m *metrics.Metrics,
) *Service {
	mux := flow.New()

	s := &Service{
		logger:    logger,
		config:    config,
		store:     store,
		processor: processor,
		messenger: messenger,
		authn:     authn,
		metrics:   m,
		router:    mux,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s
}

func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.NotFound = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowed = http.HandlerFunc(s.handleMethodNotAllowed)

	r.Use(s.RequestID)
	r.Use(s.StripTrailingSlash)

	s.public(r, "/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler(), http.MethodGet)
	s.public(r, "/api/communications/:id/status", s.handleCommunicationCallback, http.MethodPost)

	s.handle(r, "/api/me", "", s.handleMe, http.MethodGet)

	// export must be registered ahead of :id
	s.handle(r, "/api/documents/export", types.PermissionDocumentsRead, s.handleExportDocuments, http.MethodGet)
	s.handle(r, "/api/documents", types.PermissionDocumentsRead, s.handleListDocuments, http.MethodGet)
	s.handle(r, "/api/documents", types.PermissionDocumentsWrite, s.handleCreateDocument, http.MethodPost)
	s.handle(r, "/api/documents/:id", types.PermissionDocumentsRead, s.handleGetDocument, http.MethodGet)
	s.handle(r, "/api/documents/:id", types.PermissionDocumentsWrite, s.handleUpdateDocument, http.MethodPut)
	s.handle(r, "/api/documents/:id", types.PermissionDocumentsDelete, s.handleDeleteDocument, http.MethodDelete)
	s.handle(r, "/api/documents/:id/audit", types.PermissionDocumentsRead, s.handleDocumentAudit, http.MethodGet)

	s.handle(r, "/api/analytics/documents", types.PermissionAnalyticsRead, s.handleDocumentAnalytics, http.MethodGet)
	s.handle(r, "/api/analytics/processing", types.PermissionAnalyticsRead, s.handleProcessingAnalytics, http.MethodGet)

	s.handle(r, "/api/audit-logs", types.PermissionAuditRead, s.handleAuditLogs, http.MethodGet)

	s.handle(r, "/api/roles", "", s.handleListRoles, http.MethodGet)
	s.handle(r, "/api/roles", types.PermissionRolesManage, s.handleCreateRole, http.MethodPost)
	s.handle(r, "/api/roles/:id", "", s.handleGetRole, http.MethodGet)
	s.handle(r, "/api/roles/:id", types.PermissionRolesManage, s.handleUpdateRole, http.MethodPut)
	s.handle(r, "/api/roles/:id", types.PermissionRolesManage, s.handleDeleteRole, http.MethodDelete)

	s.handle(r, "/api/field-configs", "", s.handleListFieldConfigs, http.MethodGet)
	s.handle(r, "/api/field-configs", types.PermissionFieldsManage, s.handleCreateFieldConfig, http.MethodPost)
	s.handle(r, "/api/field-configs/:id", types.PermissionFieldsManage, s.handleUpdateFieldConfig, http.MethodPut)
	s.handle(r, "/api/field-configs/:id", types.PermissionFieldsManage, s.handleDeleteFieldConfig, http.MethodDelete)

	s.handle(r, "/api/communications", "", s.handleListCommunications, http.MethodGet)
	s.handle(r, "/api/communications", types.PermissionCommunicationsSend, s.handleSendCommunication, http.MethodPost)

	s.handle(r, "/api/notifications", "", s.handleListNotifications, http.MethodGet)
	s.handle(r, "/api/notifications/:id/read", "", s.handleMarkNotificationRead, http.MethodPost)
}

// public registers an unauthenticated route.
func (s *Service) public(r *flow.Mux, pattern string, h http.HandlerFunc, methods ...string) {
	r.Handle(pattern, s.observe(pattern, h), methods...)
}

// handle registers a route behind authentication. A non-empty permission is
// checked against the caller's active roles.
func (s *Service) handle(r *flow.Mux, pattern, permission string, h http.HandlerFunc, methods ...string) {
	var next http.Handler = h
	if permission != "" {
		next = s.RequirePermission(permission, next)
	}
	r.Handle(pattern, s.observe(pattern, s.RequireAuth(next)), methods...)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func (s *Service) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
