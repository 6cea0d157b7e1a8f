package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"spedermath/internal/auth"
	"spedermath/internal/crypto"
	"spedermath/internal/model"
	"spedermath/internal/repository"
)

const (
	studentPasswordLength = 8
	birthdateLayout       = "2006-01-02"
)

type studentLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type studentLoginResponse struct {
	Token     string `json:"token"`
	StudentID int64  `json:"studentId"`
	Message   string `json:"message"`
}

type createStudentRequest struct {
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Username  string `json:"username"`
	Birthdate string `json:"birthdate"`
	Level     int    `json:"level"`
}

type studentResponse struct {
	ID        int64  `json:"studentId"`
	TeacherID *int64 `json:"teacherId,omitempty"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Username  string `json:"username"`
	Birthdate string `json:"birthdate"`
	Level     int    `json:"level"`
	Password  string `json:"password,omitempty"`
}

type principalResponse struct {
	Kind    string           `json:"kind"`
	ID      int64            `json:"id"`
	Student *studentResponse `json:"student,omitempty"`
}

func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var req studentLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	student, err := s.store.GetStudentByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.logger.Error("load student failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !s.sealer.Matches(student.SealedPassword, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := s.codec.IssueStudent(student.ID)
	if err != nil {
		s.logger.Error("issue student credential failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, studentLoginResponse{
		Token:     token,
		StudentID: student.ID,
		Message:   "Login successful",
	})
}

func (s *Server) handleStudentMe(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	resp := principalResponse{Kind: p.Kind.String(), ID: p.ID}
	if p.IsStudent() {
		student, err := s.store.GetStudentByID(r.Context(), p.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "student_not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		summary := mapStudent(student, "")
		resp.Student = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStudentProgressMe(w http.ResponseWriter, _ *http.Request, p auth.Principal) {
	writeJSON(w, http.StatusOK, map[string]int64{"studentId": p.ID})
}

func (s *Server) handleAttemptsMe(w http.ResponseWriter, _ *http.Request, p auth.Principal) {
	writeJSON(w, http.StatusOK, principalResponse{Kind: p.Kind.String(), ID: p.ID})
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	students, err := s.store.ListStudentsByTeacher(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("list students failed", "teacher_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]studentResponse, 0, len(students))
	for _, student := range students {
		password, err := s.sealer.Open(student.SealedPassword)
		if err != nil {
			s.logger.Warn("student password unreadable", "student_id", student.ID, "error", err)
			password = ""
		}
		resp = append(resp, mapStudent(student, password))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Username = strings.TrimSpace(req.Username)
	if req.FirstName == "" || req.LastName == "" || req.Username == "" || req.Birthdate == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	birthdate, err := time.Parse(birthdateLayout, req.Birthdate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_birthdate")
		return
	}
	if req.Level <= 0 {
		req.Level = 1
	}

	password, sealed, err := s.newStudentPassword()
	if err != nil {
		s.logger.Error("generate student password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "password_seal_failed")
		return
	}
	teacherID := p.ID
	student := model.Student{
		TeacherID:      &teacherID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Username:       req.Username,
		SealedPassword: sealed,
		Birthdate:      birthdate,
		Level:          req.Level,
	}
	if err := s.store.CreateStudent(r.Context(), &student); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusBadRequest, "username_taken")
			return
		}
		s.logger.Error("create student failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.logger.Info("student created", "student_id", student.ID, "teacher_id", teacherID)
	writeJSON(w, http.StatusCreated, mapStudent(student, password))
}

func (s *Server) handleResetStudentPassword(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}
	student, err := s.store.GetStudentByID(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if student.TeacherID == nil || *student.TeacherID != p.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	password, sealed, err := s.newStudentPassword()
	if err != nil {
		s.logger.Error("generate student password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "password_seal_failed")
		return
	}
	if err := s.store.UpdateStudentPassword(r.Context(), studentID, sealed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.logger.Info("student password reset", "student_id", studentID, "teacher_id", p.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"studentId": studentID,
		"password":  password,
	})
}

func (s *Server) newStudentPassword() (string, string, error) {
	password, err := crypto.RandomPassword(studentPasswordLength)
	if err != nil {
		return "", "", err
	}
	sealed, err := s.sealer.Seal(password)
	if err != nil {
		return "", "", err
	}
	return password, sealed, nil
}

func mapStudent(student model.Student, password string) studentResponse {
	resp := studentResponse{
		ID:        student.ID,
		TeacherID: student.TeacherID,
		FirstName: student.FirstName,
		LastName:  student.LastName,
		Username:  student.Username,
		Level:     student.Level,
		Password:  password,
	}
	if !student.Birthdate.IsZero() {
		resp.Birthdate = student.Birthdate.Format(birthdateLayout)
	}
	return resp
}
