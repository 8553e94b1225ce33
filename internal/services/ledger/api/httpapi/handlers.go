package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/platform/requestctx"
	"github.com/paywire/paywire/internal/services/ledger/transfer"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.identity.SignUp(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signUpResponse{Message: "User created successfully", Token: result.Token})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{Token: token})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	found, err := s.accounts.GetAccount(r.Context(), userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			err = apperrors.Wrap(apperrors.CodeUnknownSender, "balance for missing account", err)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: found.Balance})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	senderID := requestctx.UserIDFromContext(r.Context())
	err := s.transfers.Transfer(r.Context(), transfer.Intent{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Amount:     *req.Amount,
	})
	if err != nil {
		s.logger.Info(r.Context(), "transfer rejected",
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.String("sender_id", senderID),
		)
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "transfer applied", zap.String("sender_id", senderID))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Transfer successful"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn(r.Context(), "health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
