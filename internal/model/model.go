package model

import "time"

type Teacher struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Student.SealedPassword holds the password encrypted with the server key so
// the owning teacher can reveal it.
type Student struct {
	ID             int64
	TeacherID      *int64
	FirstName      string
	LastName       string
	Username       string
	SealedPassword string
	Birthdate      time.Time
	Level          int
	CreatedAt      time.Time
}

type Lesson struct {
	ID          int64
	Title       string
	Description string
	Position    int
}

// LoginToken is a one-time QR login hand-off. Only the hash of the raw token
// is stored.
type LoginToken struct {
	ID        int64
	TokenHash string
	StudentID int64
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Redeemable reports whether the token may still be exchanged at now.
func (t LoginToken) Redeemable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
