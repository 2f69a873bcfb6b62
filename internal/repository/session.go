package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/greencore/api/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository persists refresh-token sessions, one row per live
// token, keyed by the SHA-256 hash of the raw token.
type SessionRepository interface {
	Create(session *model.Session) error
	ByTokenHash(hash string) (*model.Session, error)
	DeleteByTokenHash(hash string) error
	DeleteByUser(userID string) error
	// PruneOldest removes the user's oldest sessions until at most keep
	// remain, so a new session can be appended without exceeding the cap.
	PruneOldest(userID string, keep int) error
}

type sessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func (r *sessionRepository) ByTokenHash(hash string) (*model.Session, error) {
	session := &model.Session{}
	query := `SELECT * FROM sessions WHERE token_hash = $1`

	err := r.db.Get(session, query, hash)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}

	return session, err
}

func (r *sessionRepository) DeleteByTokenHash(hash string) error {
	query := `DELETE FROM sessions WHERE token_hash = $1`

	result, err := r.db.Exec(query, hash)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (r *sessionRepository) DeleteByUser(userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.Exec(query, userID)
	return err
}

func (r *sessionRepository) PruneOldest(userID string, keep int) error {
	// Oldest rows are evicted first, allowing limited multi-device use
	// without unbounded growth.
	query := `DELETE FROM sessions
	          WHERE user_id = $1 AND id NOT IN (
	              SELECT id FROM sessions WHERE user_id = $2 ORDER BY created_at DESC LIMIT $3
	          )`

	_, err := r.db.Exec(query, userID, userID, keep)
	return err
}
