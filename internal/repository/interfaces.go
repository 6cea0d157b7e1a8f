package repository

import (
	"context"
	"errors"
	"time"

	"spedermath/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	// ErrTokenInvalidOrExpired covers unknown, used and expired login
	// tokens alike.
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
)

type TeacherRepository interface {
	GetTeacherByID(ctx context.Context, id int64) (model.Teacher, error)
	GetTeacherByEmail(ctx context.Context, email string) (model.Teacher, error)
	CreateTeacher(ctx context.Context, teacher *model.Teacher) error
}

type StudentRepository interface {
	GetStudentByID(ctx context.Context, id int64) (model.Student, error)
	GetStudentByUsername(ctx context.Context, username string) (model.Student, error)
	ListStudentsByTeacher(ctx context.Context, teacherID int64) ([]model.Student, error)
	CreateStudent(ctx context.Context, student *model.Student) error
	UpdateStudentPassword(ctx context.Context, studentID int64, sealedPassword string) error
}

type LessonRepository interface {
	ListLessons(ctx context.Context) ([]model.Lesson, error)
}

// LoginTokenStore keeps outstanding QR login tokens. Consume must be atomic:
// of any number of concurrent calls for one token at most one succeeds.
type LoginTokenStore interface {
	Create(ctx context.Context, studentID int64, ttl time.Duration) (string, error)
	FindByToken(ctx context.Context, token string) (model.LoginToken, error)
	Consume(ctx context.Context, token string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
