package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/model"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// handleChat is the main conversational endpoint. An invalid bearer
// token degrades to anonymous; it is never an error here.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get("X-Session-ID")
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	authCtx := s.authContext(r)
	resp := s.orch.Handle(r.Context(), req.Message, req.SessionID, authCtx)
	JSON(w, http.StatusOK, resp)
}

type otpRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	// Delivery is out of scope; the code is only logged.
	s.auth.GenerateOTP(req.UserID)
	JSON(w, http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

type loginRequest struct {
	UserID string `json:"user_id"`
	OTP    string `json:"otp"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id and otp are required")
		return
	}

	token, _, err := s.auth.Authenticate(req.UserID, req.OTP)
	if err != nil {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"token": token, "user_id": req.UserID})
}

type transactionRequest struct {
	SessionID string `json:"session_id"`
	Choice    string `json:"choice,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	var req transactionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	authCtx := s.authContext(r)
	if authCtx == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	result, err := s.orch.Execute(r.Context(), txID, req.SessionID, authCtx)
	if err != nil {
		s.transactionError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	var req transactionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if s.authContext(r) == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := s.orch.Cancel(txID, req.SessionID); err != nil {
		s.transactionError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Transaction cancelled."})
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Choice == "" {
		Error(w, http.StatusBadRequest, "choice is required")
		return
	}

	authCtx := s.authContext(r)
	if authCtx == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sess := s.orch.Sessions().Get(req.SessionID)
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	result, err := s.orch.Workflow().ResumeWithClarification(r.Context(), txID, req.Choice, authCtx, sess)
	if err != nil {
		s.transactionError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sess := s.orch.Sessions().Get(chi.URLParam(r, "id"))
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"session_id":    sess.ID(),
		"message_count": sess.MessageCount(),
		"created_at":    sess.CreatedAt(),
		"last_activity": sess.LastActivity(),
		"last_intent":   sess.LastIntent(),
	})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// A pending transaction must not outlive its conversation.
	if sess := s.orch.Sessions().Get(id); sess != nil {
		if txID := sess.ActiveTransaction(); txID != "" {
			_ = s.orch.Cancel(txID, id)
		}
	}

	if !s.orch.Sessions().Delete(id) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "session cleared"})
}

// authContext resolves the Authorization header into an auth context,
// nil for anonymous or invalid tokens.
func (s *Server) authContext(r *http.Request) *model.AuthContext {
	token := r.Header.Get("Authorization")
	if token == "" {
		return nil
	}
	return s.auth.Verify(token)
}

// transactionError maps workflow errors onto HTTP statuses, surfacing
// only the safe user message.
func (s *Server) transactionError(w http.ResponseWriter, err error) {
	msg := common.UserMessage(err, "Unable to process this transaction.")
	switch {
	case errors.Is(err, common.ErrTransactionNotFound):
		Error(w, http.StatusNotFound, msg)
	case errors.Is(err, common.ErrInvalidState):
		Error(w, http.StatusConflict, msg)
	default:
		s.logger.Error("transaction endpoint failure", "error", err)
		Error(w, http.StatusInternalServerError, msg)
	}
}
