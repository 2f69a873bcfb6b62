package model

import (
	"time"
)

// Session is one refresh-token session. Only the SHA-256 hash of the
// refresh token is stored; a presented token whose hash is missing from
// the table is treated as replay of an already-rotated token.
type Session struct {
	ID        string    `db:"id" json:"-"`
	UserID    string    `db:"user_id" json:"-"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
