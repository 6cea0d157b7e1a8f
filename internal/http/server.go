package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spedermath/internal/auth"
	"spedermath/internal/config"
	"spedermath/internal/crypto"
	"spedermath/internal/metrics"
	"spedermath/internal/policy"
	"spedermath/internal/qr"
	"spedermath/internal/repository"
)

// Store is the persistence the handlers need.
type Store interface {
	repository.TeacherRepository
	repository.StudentRepository
	repository.LessonRepository
}

type Server struct {
	cfg     config.Config
	store   Store
	codec   *auth.Codec
	sealer  *crypto.Sealer
	qr      *qr.Service
	policy  *policy.Table
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Server)

func WithPolicy(table *policy.Table) Option {
	return func(s *Server) { s.policy = table }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func NewServer(cfg config.Config, store Store, codec *auth.Codec, sealer *crypto.Sealer, qrService *qr.Service, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		codec:  codec,
		sealer: sealer,
		qr:     qrService,
		policy: policy.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.cors)
	r.Use(s.authenticate)
	r.Use(s.enforce)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/public", func(r chi.Router) {
		r.Get("/qr-login", s.handleQRLogin)
		r.Post("/qr-exchange", s.handleQRExchange)
		r.Get("/qr-exchange", s.handleQRExchangeLegacy)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/lessons", s.handleListLessons)
		r.Get("/debug/echo-auth", s.handleEchoAuth)

		r.Route("/teachers", func(r chi.Router) {
			r.Post("/login", s.handleTeacherLogin)
			r.Post("/register", s.handleTeacherRegister)
			r.Get("/me", withPrincipal(s.handleTeacherMe))
		})

		r.Route("/students", func(r chi.Router) {
			r.Post("/student-login", s.handleStudentLogin)
			r.Get("/me", withPrincipal(s.handleStudentMe))
			r.Get("/", withPrincipal(requireTeacher(s.handleListStudents)))
			r.Post("/", withPrincipal(requireTeacher(s.handleCreateStudent)))
			r.Post("/{studentId}/reset-password", withPrincipal(requireTeacher(s.handleResetStudentPassword)))
			r.Post("/{studentId}/qr-token", s.handleIssueQRToken)
		})

		r.Get("/student-progress/me", withPrincipal(s.handleStudentProgressMe))
		r.Get("/attempts/me", withPrincipal(s.handleAttemptsMe))
	})

	return r
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.store.ListLessons(r.Context())
	if err != nil {
		s.logger.Error("list lessons failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]lessonResponse, 0, len(lessons))
	for _, lesson := range lessons {
		resp = append(resp, lessonResponse{
			ID:          lesson.ID,
			Title:       lesson.Title,
			Description: lesson.Description,
			Position:    lesson.Position,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEchoAuth reports whether the client sent an Authorization header.
// The header value itself is never echoed.
func (s *Server) handleEchoAuth(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	writeJSON(w, http.StatusOK, map[string]bool{
		"authorizationPresent": header != "",
		"bearer":               bearerToken(header) != "",
	})
}

type lessonResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
