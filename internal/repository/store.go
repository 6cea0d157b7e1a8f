package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"spedermath/internal/crypto"
	"spedermath/internal/model"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	now  Clock
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: systemClock}
}

func (s *Store) GetTeacherByID(ctx context.Context, id int64) (model.Teacher, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, username, password_hash, created_at
		FROM teachers
		WHERE id = $1
	`, id)
	return scanTeacher(row)
}

func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (model.Teacher, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, username, password_hash, created_at
		FROM teachers
		WHERE lower(email) = lower($1)
	`, email)
	return scanTeacher(row)
}

func (s *Store) CreateTeacher(ctx context.Context, teacher *model.Teacher) error {
	teacher.CreatedAt = s.now()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO teachers (first_name, last_name, email, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, teacher.FirstName, teacher.LastName, teacher.Email, teacher.Username, teacher.PasswordHash, teacher.CreatedAt).Scan(&teacher.ID)
	return mapError(err)
}

func (s *Store) GetStudentByID(ctx context.Context, id int64) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, teacher_id, first_name, last_name, username, password_sealed, birthdate, level, created_at
		FROM students
		WHERE id = $1
	`, id)
	return scanStudent(row)
}

func (s *Store) GetStudentByUsername(ctx context.Context, username string) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, teacher_id, first_name, last_name, username, password_sealed, birthdate, level, created_at
		FROM students
		WHERE username = $1
	`, username)
	return scanStudent(row)
}

func (s *Store) ListStudentsByTeacher(ctx context.Context, teacherID int64) ([]model.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, teacher_id, first_name, last_name, username, password_sealed, birthdate, level, created_at
		FROM students
		WHERE teacher_id = $1
		ORDER BY id
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) CreateStudent(ctx context.Context, student *model.Student) error {
	student.CreatedAt = s.now()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO students (teacher_id, first_name, last_name, username, password_sealed, birthdate, level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, student.TeacherID, student.FirstName, student.LastName, student.Username, student.SealedPassword, student.Birthdate, student.Level, student.CreatedAt).Scan(&student.ID)
	return mapError(err)
}

func (s *Store) UpdateStudentPassword(ctx context.Context, studentID int64, sealedPassword string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE students SET password_sealed = $1 WHERE id = $2`, sealedPassword, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListLessons(ctx context.Context) ([]model.Lesson, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, description, position FROM lessons ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		var lesson model.Lesson
		if err := rows.Scan(&lesson.ID, &lesson.Title, &lesson.Description, &lesson.Position); err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

func (s *Store) Create(ctx context.Context, studentID int64, ttl time.Duration) (string, error) {
	if ttl < 0 {
		ttl = 0
	}
	token := crypto.NewLoginToken()
	now := s.now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO student_login_tokens (token_hash, student_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, false, $4)
	`, crypto.HashToken(token), studentID, now.Add(ttl), now)
	if err != nil {
		return "", mapError(err)
	}
	return token, nil
}

func (s *Store) FindByToken(ctx context.Context, token string) (model.LoginToken, error) {
	var record model.LoginToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, token_hash, student_id, expires_at, used, used_at, created_at
		FROM student_login_tokens
		WHERE token_hash = $1
	`, crypto.HashToken(token)).Scan(&record.ID, &record.TokenHash, &record.StudentID, &record.ExpiresAt, &record.Used, &record.UsedAt, &record.CreatedAt)
	if err != nil {
		return model.LoginToken{}, mapError(err)
	}
	return record, nil
}

// Consume flips used in a single conditional UPDATE, so concurrent
// redemptions of one token race on the row lock and only one sees a row.
func (s *Store) Consume(ctx context.Context, token string) (int64, error) {
	var studentID int64
	err := s.pool.QueryRow(ctx, `
		UPDATE student_login_tokens
		SET used = true, used_at = $2
		WHERE token_hash = $1 AND used = false AND expires_at > $2
		RETURNING student_id
	`, crypto.HashToken(token), s.now()).Scan(&studentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrTokenInvalidOrExpired
	}
	if err != nil {
		return 0, err
	}
	return studentID, nil
}

func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM student_login_tokens
		WHERE expires_at < $1 OR (used AND used_at < $1)
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanTeacher(row pgx.Row) (model.Teacher, error) {
	var teacher model.Teacher
	err := row.Scan(&teacher.ID, &teacher.FirstName, &teacher.LastName, &teacher.Email, &teacher.Username, &teacher.PasswordHash, &teacher.CreatedAt)
	if err != nil {
		return model.Teacher{}, mapError(err)
	}
	return teacher, nil
}

func scanStudent(row pgx.Row) (model.Student, error) {
	var student model.Student
	err := row.Scan(&student.ID, &student.TeacherID, &student.FirstName, &student.LastName, &student.Username, &student.SealedPassword, &student.Birthdate, &student.Level, &student.CreatedAt)
	if err != nil {
		return model.Student{}, mapError(err)
	}
	return student, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
