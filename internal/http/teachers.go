package http

import (
	"errors"
	"net/http"
	"strings"

	"spedermath/internal/auth"
	"spedermath/internal/crypto"
	"spedermath/internal/model"
	"spedermath/internal/repository"
)

type teacherLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type teacherLoginResponse struct {
	Token     string `json:"token"`
	TeacherID int64  `json:"teacherId"`
	Message   string `json:"message"`
}

type teacherRegisterRequest struct {
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
	Username  string `json:"name"`
	Password  string `json:"password"`
}

type teacherResponse struct {
	ID        int64  `json:"teacherId"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
	Username  string `json:"name"`
}

func (s *Server) handleTeacherLogin(w http.ResponseWriter, r *http.Request) {
	var req teacherLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	teacher, err := s.store.GetTeacherByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.logger.Error("load teacher failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(teacher.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := s.codec.IssueTeacher(teacher.ID, teacher.Email)
	if err != nil {
		s.logger.Error("issue teacher credential failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, teacherLoginResponse{
		Token:     token,
		TeacherID: teacher.ID,
		Message:   "Login successful",
	})
}

func (s *Server) handleTeacherRegister(w http.ResponseWriter, r *http.Request) {
	var req teacherRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	teacher := model.Teacher{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
	}
	if err := s.store.CreateTeacher(r.Context(), &teacher); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusBadRequest, "email_taken")
			return
		}
		s.logger.Error("create teacher failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.logger.Info("teacher registered", "teacher_id", teacher.ID)
	writeJSON(w, http.StatusCreated, mapTeacher(teacher))
}

func (s *Server) handleTeacherMe(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	teacher, err := s.store.GetTeacherByID(r.Context(), p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "teacher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapTeacher(teacher))
}

func mapTeacher(teacher model.Teacher) teacherResponse {
	return teacherResponse{
		ID:        teacher.ID,
		FirstName: teacher.FirstName,
		LastName:  teacher.LastName,
		Email:     teacher.Email,
		Username:  teacher.Username,
	}
}
