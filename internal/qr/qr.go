// Package qr implements the student QR login exchange: a teacher mints a
// single-use login link, the student's device follows it to the frontend,
// and the frontend trades the token for a student credential.
package qr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spedermath/internal/auth"
	"spedermath/internal/metrics"
	"spedermath/internal/repository"
)

var (
	ErrStudentNotFound       = errors.New("student not found")
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
)

const tracerName = "spedermath/internal/qr"

type ExchangeResult struct {
	Credential string
	StudentID  int64
	Username   string
}

type Service struct {
	students        repository.StudentRepository
	tokens          repository.LoginTokenStore
	codec           *auth.Codec
	tokenTTL        time.Duration
	frontendBaseURL string
	metrics         *metrics.Metrics
	tracer          trace.Tracer
}

func NewService(students repository.StudentRepository, tokens repository.LoginTokenStore, codec *auth.Codec, tokenTTL time.Duration, frontendBaseURL string, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Service{
		students:        students,
		tokens:          tokens,
		codec:           codec,
		tokenTTL:        tokenTTL,
		frontendBaseURL: frontendBaseURL,
		metrics:         m,
		tracer:          otel.Tracer(tracerName),
	}
}

// GenerateLoginLink stores a fresh login token for the student and returns
// the URL that redeems it against this API.
func (s *Service) GenerateLoginLink(ctx context.Context, studentID int64, baseURL string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "qr.GenerateLoginLink", trace.WithAttributes(attribute.Int64("spedermath.student_id", studentID)))
	defer span.End()

	if _, err := s.students.GetStudentByID(ctx, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			span.SetStatus(codes.Error, "student not found")
			return "", ErrStudentNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("load student: %w", err)
	}
	token, err := s.tokens.Create(ctx, studentID, s.tokenTTL)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("create login token: %w", err)
	}
	s.metrics.QRLinksIssued.Inc()
	return baseURL + "/public/qr-login?token=" + url.QueryEscape(token), nil
}

// RedirectURL points the scanning device at the frontend login page. The
// token is passed through untouched; it is checked on exchange.
func (s *Service) RedirectURL(token string) string {
	return s.frontendBaseURL + "/student-login?token=" + url.QueryEscape(token)
}

// Exchange redeems a login token for a student credential. Every kind of
// invalid token yields ErrTokenInvalidOrExpired.
func (s *Service) Exchange(ctx context.Context, token string) (ExchangeResult, error) {
	ctx, span := s.tracer.Start(ctx, "qr.Exchange")
	defer span.End()

	studentID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalidOrExpired) {
			s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeRejected).Inc()
			span.SetStatus(codes.Error, "token rejected")
			return ExchangeResult{}, ErrTokenInvalidOrExpired
		}
		s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		return ExchangeResult{}, fmt.Errorf("consume login token: %w", err)
	}
	span.SetAttributes(attribute.Int64("spedermath.student_id", studentID))

	student, err := s.students.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeUnknownUser).Inc()
			return ExchangeResult{}, ErrTokenInvalidOrExpired
		}
		s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		return ExchangeResult{}, fmt.Errorf("load student: %w", err)
	}
	credential, err := s.codec.IssueStudent(student.ID)
	if err != nil {
		s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		return ExchangeResult{}, fmt.Errorf("issue credential: %w", err)
	}
	s.metrics.QRExchanges.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return ExchangeResult{Credential: credential, StudentID: student.ID, Username: student.Username}, nil
}
