package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/greencore/api/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   string
	Active *bool
	Search string
	Page   int
	Limit  int
}

type UserRepository interface {
	Create(user *model.User) error
	ByID(id string) (*model.User, error)
	ByEmail(email string) (*model.User, error)
	ByUsername(username string) (*model.User, error)
	ByProvider(provider, providerID string) (*model.User, error)
	ByResetTokenHash(hash string, now time.Time) (*model.User, error)
	UsernameTaken(username string) (bool, error)
	Update(user *model.User) error
	Delete(id string) error
	List(filter UserFilter) ([]*model.User, int, error)
	Count() (int, error)
	CountActive() (int, error)
	CountByRole() (map[string]int, error)
	Recent(limit int) ([]*model.User, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	query := `INSERT INTO users (id, name, username, email, password_hash, role, avatar_url, provider, provider_id,
	              is_active, last_login_at, login_attempts, locked_until, reset_token_hash, reset_token_expires,
	              created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(query,
		user.ID, user.Name, user.Username, user.Email, user.PasswordHash, user.Role, user.AvatarURL,
		user.Provider, user.ProviderID, user.IsActive, user.LastLoginAt, user.LoginAttempts,
		user.LockedUntil, user.ResetTokenHash, user.ResetTokenExpires, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return nil
}

// mapUniqueViolation translates constraint errors (works for both SQLite and
// PostgreSQL) into the duplicate sentinels.
func mapUniqueViolation(err error) error {
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
		if strings.Contains(errStr, "username") {
			return ErrDuplicateUsername
		}
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) ByID(id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.Get(user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByEmail(email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.Get(user, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByUsername(username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE username = $1`

	err := r.db.Get(user, query, username)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByProvider(provider, providerID string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE provider = $1 AND provider_id = $2`

	err := r.db.Get(user, query, provider, providerID)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByResetTokenHash(hash string, now time.Time) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE reset_token_hash = $1 AND reset_token_expires > $2`

	err := r.db.Get(user, query, hash, now)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) UsernameTaken(username string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE username = $1`

	err := r.db.QueryRow(query, username).Scan(&count)
	return count > 0, err
}

func (r *userRepository) Update(user *model.User) error {
	user.UpdatedAt = time.Now()

	query := `UPDATE users
	          SET name = $1, username = $2, email = $3, password_hash = $4, role = $5, avatar_url = $6,
	              provider = $7, provider_id = $8, is_active = $9, last_login_at = $10, login_attempts = $11,
	              locked_until = $12, reset_token_hash = $13, reset_token_expires = $14, updated_at = $15
	          WHERE id = $16`

	_, err := r.db.Exec(query,
		user.Name, user.Username, user.Email, user.PasswordHash, user.Role, user.AvatarURL,
		user.Provider, user.ProviderID, user.IsActive, user.LastLoginAt, user.LoginAttempts,
		user.LockedUntil, user.ResetTokenHash, user.ResetTokenExpires, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *userRepository) Delete(id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) List(filter UserFilter) ([]*model.User, int, error) {
	where := []string{"1=1"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Role != "" {
		where = append(where, "role = "+arg(filter.Role))
	}
	if filter.Active != nil {
		where = append(where, "is_active = "+arg(*filter.Active))
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		p1, p2, p3 := arg(like), arg(like), arg(like)
		where = append(where, "(name LIKE "+p1+" OR email LIKE "+p2+" OR username LIKE "+p3+")")
	}

	clause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE `+clause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var users []*model.User
	query := `SELECT * FROM users WHERE ` + clause +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	err = r.db.Select(&users, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *userRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE is_active = TRUE`).Scan(&count)
	return count, err
}

func (r *userRepository) CountByRole() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := map[string]int{}
	for rows.Next() {
		var role string
		var count int
		err = rows.Scan(&role, &count)
		if err != nil {
			return nil, err
		}
		breakdown[role] = count
	}

	return breakdown, rows.Err()
}

func (r *userRepository) Recent(limit int) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT * FROM users ORDER BY created_at DESC LIMIT $1`

	err := r.db.Select(&users, query, limit)
	if err != nil {
		return nil, err
	}

	return users, nil
}
