package server

import (
	"crypto/subtle"
	"net/http"

	"epatra/pkg/types"

	"github.com/alexedwards/flow"
)

const headerCallbackToken = "X-Callback-Token"

type communicationRequest struct {
	Channel    types.Channel `json:"channel"`
	Recipient  string        `json:"recipient"`
	Subject    *string       `json:"subject"`
	Message    string        `json:"message"`
	DocumentID *string       `json:"documentId"`
}

func (s *Service) handleListCommunications(w http.ResponseWriter, r *http.Request) {
	var filter types.CommunicationFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.writeError(w, r, types.NewValidationError("query", "invalid filter parameters"))
		return
	}

	logs, err := s.store.Communications(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Service) handleSendCommunication(w http.ResponseWriter, r *http.Request) {
	var req communicationRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.DocumentID != nil {
		if _, err := s.store.Document(r.Context(), *req.DocumentID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	msg, err := s.messenger.Send(r.Context(), &types.CommunicationLog{
		Channel:    req.Channel,
		Recipient:  req.Recipient,
		Subject:    req.Subject,
		Message:    req.Message,
		DocumentID: req.DocumentID,
	}, auditContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, msg)
}

type deliveryReport struct {
	Status            types.DeliveryStatus `json:"status"`
	ProviderMessageID *string              `json:"providerMessageId"`
	ErrorMessage      *string              `json:"errorMessage"`
}

// handleCommunicationCallback takes delivery reports from messaging
// providers. It is authenticated by a shared token rather than a user token.
// A report that would move a message back from its final outcome gets 409.
func (s *Service) handleCommunicationCallback(w http.ResponseWriter, r *http.Request) {
	expected := s.config.CommunicationsCallbackToken
	given := r.Header.Get(headerCallbackToken)
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid callback token"})
		return
	}

	var report deliveryReport
	if err := decodeJSON(w, r, &report, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.messenger.UpdateStatus(r.Context(), flow.Param(r.Context(), "id"), report.Status, report.ProviderMessageID, report.ErrorMessage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, msg)
}
