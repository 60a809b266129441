package server

import (
	"net/http"

	"epatra/pkg/types"

	"github.com/alexedwards/flow"
)

type meResponse struct {
	*types.Principal
	Permissions []string `json:"permissions"`
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())

	s.writeJSON(w, http.StatusOK, meResponse{
		Principal:   c.principal,
		Permissions: c.permissions(),
	})
}

func (s *Service) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.store.NotificationsForUser(r.Context(), c.principal.UserID, unreadOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, notifications)
}

func (s *Service) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())

	if err := s.store.MarkNotificationRead(r.Context(), c.principal.UserID, flow.Param(r.Context(), "id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
