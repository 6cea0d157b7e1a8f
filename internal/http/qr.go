package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spedermath/internal/qr"
)

type qrExchangeRequest struct {
	Token string `json:"token"`
}

type qrExchangeResponse struct {
	Credential string `json:"credential"`
	StudentID  int64  `json:"studentId"`
	Username   string `json:"username"`
}

func (s *Server) handleIssueQRToken(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}
	link, err := s.qr.GenerateLoginLink(r.Context(), studentID, s.cfg.PublicAPIBaseURL)
	if err != nil {
		if errors.Is(err, qr.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		s.logger.Error("generate qr link failed", "student_id", studentID, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrUrl": link})
}

// handleQRLogin forwards the scanning device to the frontend. The token is
// not checked here.
func (s *Server) handleQRLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.qr.RedirectURL(r.URL.Query().Get("token")), http.StatusFound)
}

func (s *Server) handleQRExchange(w http.ResponseWriter, r *http.Request) {
	var req qrExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "missing_token")
		return
	}
	s.exchange(w, r, req.Token)
}

func (s *Server) handleQRExchangeLegacy(w http.ResponseWriter, r *http.Request) {
	s.exchange(w, r, r.URL.Query().Get("token"))
}

func (s *Server) exchange(w http.ResponseWriter, r *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing_token")
		return
	}
	result, err := s.qr.Exchange(r.Context(), token)
	if err != nil {
		if errors.Is(err, qr.ErrTokenInvalidOrExpired) {
			writeError(w, http.StatusUnauthorized, "token_invalid_or_expired")
			return
		}
		s.logger.Error("qr exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.logger.Info("qr exchange succeeded", "student_id", result.StudentID)
	writeJSON(w, http.StatusOK, qrExchangeResponse{
		Credential: result.Credential,
		StudentID:  result.StudentID,
		Username:   result.Username,
	})
}
