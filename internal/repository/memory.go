package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"spedermath/internal/crypto"
	"spedermath/internal/model"
)

// Memory keeps every record in process. It backs tests and single-node
// development setups (LOGIN_TOKEN_STORE=memory).
type Memory struct {
	mu       sync.RWMutex
	now      Clock
	teachers map[int64]model.Teacher
	students map[int64]model.Student
	lessons  []model.Lesson
	tokens   map[string]*model.LoginToken
	nextID   int64
}

func NewMemory(now Clock) *Memory {
	if now == nil {
		now = systemClock
	}
	return &Memory{
		now:      now,
		teachers: make(map[int64]model.Teacher),
		students: make(map[int64]model.Student),
		tokens:   make(map[string]*model.LoginToken),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) GetTeacherByID(_ context.Context, id int64) (model.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teacher, ok := m.teachers[id]
	if !ok {
		return model.Teacher{}, ErrNotFound
	}
	return teacher, nil
}

func (m *Memory) GetTeacherByEmail(_ context.Context, email string) (model.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, teacher := range m.teachers {
		if strings.EqualFold(teacher.Email, email) {
			return teacher, nil
		}
	}
	return model.Teacher{}, ErrNotFound
}

func (m *Memory) CreateTeacher(_ context.Context, teacher *model.Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teachers {
		if strings.EqualFold(existing.Email, teacher.Email) {
			return ErrConflict
		}
	}
	teacher.ID = m.id()
	teacher.CreatedAt = m.now()
	m.teachers[teacher.ID] = *teacher
	return nil
}

func (m *Memory) GetStudentByID(_ context.Context, id int64) (model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	student, ok := m.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return student, nil
}

func (m *Memory) GetStudentByUsername(_ context.Context, username string) (model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, student := range m.students {
		if student.Username == username {
			return student, nil
		}
	}
	return model.Student{}, ErrNotFound
}

func (m *Memory) ListStudentsByTeacher(_ context.Context, teacherID int64) ([]model.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Student
	for _, student := range m.students {
		if student.TeacherID != nil && *student.TeacherID == teacherID {
			out = append(out, student)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateStudent(_ context.Context, student *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.Username == student.Username {
			return ErrConflict
		}
	}
	student.ID = m.id()
	student.CreatedAt = m.now()
	m.students[student.ID] = *student
	return nil
}

func (m *Memory) UpdateStudentPassword(_ context.Context, studentID int64, sealedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	student, ok := m.students[studentID]
	if !ok {
		return ErrNotFound
	}
	student.SealedPassword = sealedPassword
	m.students[studentID] = student
	return nil
}

func (m *Memory) AddLesson(lesson model.Lesson) model.Lesson {
	m.mu.Lock()
	defer m.mu.Unlock()
	lesson.ID = m.id()
	m.lessons = append(m.lessons, lesson)
	return lesson
}

func (m *Memory) ListLessons(_ context.Context) ([]model.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.Lesson(nil), m.lessons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) Create(_ context.Context, studentID int64, ttl time.Duration) (string, error) {
	if ttl < 0 {
		ttl = 0
	}
	token := crypto.NewLoginToken()
	hash := crypto.HashToken(token)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hash] = &model.LoginToken{
		ID:        m.id(),
		TokenHash: hash,
		StudentID: studentID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return token, nil
}

func (m *Memory) FindByToken(_ context.Context, token string) (model.LoginToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.tokens[crypto.HashToken(token)]
	if !ok {
		return model.LoginToken{}, ErrNotFound
	}
	return *record, nil
}

func (m *Memory) Consume(_ context.Context, token string) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[crypto.HashToken(token)]
	if !ok || !record.Redeemable(now) {
		return 0, ErrTokenInvalidOrExpired
	}
	record.Used = true
	record.UsedAt = &now
	return record.StudentID, nil
}

func (m *Memory) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for hash, record := range m.tokens {
		if sweepable(*record, before) {
			delete(m.tokens, hash)
			removed++
		}
	}
	return removed, nil
}

func sweepable(record model.LoginToken, before time.Time) bool {
	if record.ExpiresAt.Before(before) {
		return true
	}
	return record.Used && record.UsedAt != nil && record.UsedAt.Before(before)
}
