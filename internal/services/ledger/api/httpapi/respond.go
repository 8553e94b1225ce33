package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err as {"error": message}. Unauthenticated requests get
// an empty object. Internal details are logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, reqErr.code.HTTPStatus(), errorResponse{Error: reqErr.message})
		return
	}

	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if code == apperrors.CodeUnauthenticated {
		writeJSON(w, status, struct{}{})
		return
	}

	fields := []zap.Field{zap.String("code", string(code)), zap.Int("status", status)}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug(r.Context(), "request rejected", append(fields, zap.Error(err))...)
	}
	writeJSON(w, status, errorResponse{Error: code.UserMessage()})
}
