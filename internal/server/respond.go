package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"epatra/pkg/types"

	"github.com/sirupsen/logrus"
)

const maxJSONBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a 500 without detail.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, types.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrInvalidTransition):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestIDFrom(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
		s.internalServerError(w)
	}
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

// decodeJSON reads a single JSON object. With strict set, keys that do not
// map onto dst are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(dst); err != nil {
		msg := strings.TrimPrefix(err.Error(), "json: ")
		return types.NewValidationError("body", msg)
	}

	if dec.More() {
		return types.NewValidationError("body", "body must contain a single JSON object")
	}

	return nil
}
