package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sawpanic/tradebot/internal/venueerrors"
)

// errorResponse is the JSON error envelope returned on any non-2xx
// response, ground on teacher's httpContracts.ErrorResponse.
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeAdapterError maps the venueerrors.Kind taxonomy to the status codes
// from spec section 6: missing venue/strategy -> 404, permission denied ->
// 403, adapter failure -> 400, anything else -> 500.
func (s *Server) writeAdapterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case venueerrors.Is(err, venueerrors.KindNotFound):
		s.writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case venueerrors.Is(err, venueerrors.KindPermissionDenied):
		s.writeError(w, r, http.StatusForbidden, "permission_denied", err.Error())
	case venueerrors.Is(err, venueerrors.KindVenueError), venueerrors.Is(err, venueerrors.KindStrategyConstruction):
		s.writeError(w, r, http.StatusBadRequest, "operation_failed", err.Error())
	default:
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", message)
}
