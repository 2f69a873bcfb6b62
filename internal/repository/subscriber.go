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
	ErrSubscriberNotFound  = errors.New("subscriber not found")
	ErrDuplicateSubscriber = errors.New("subscriber already exists")
)

// SubscriberFilter narrows the admin subscriber listing.
type SubscriberFilter struct {
	Active *bool
	Page   int
	Limit  int
}

type SubscriberRepository interface {
	Create(subscriber *model.Subscriber) error
	ByEmail(email string) (*model.Subscriber, error)
	ByUnsubscribeToken(token string) (*model.Subscriber, error)
	Update(subscriber *model.Subscriber) error
	Delete(id string) error
	List(filter SubscriberFilter) ([]*model.Subscriber, int, error)
	ActiveAll() ([]*model.Subscriber, error)
	Count() (int, error)
	CountActive() (int, error)
}

type subscriberRepository struct {
	db *sqlx.DB
}

func NewSubscriberRepository(db *sqlx.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) Create(subscriber *model.Subscriber) error {
	query := `INSERT INTO subscribers (id, email, name, is_active, unsubscribe_token, subscribed_at,
	              unsubscribed_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		subscriber.ID, subscriber.Email, subscriber.Name, subscriber.IsActive,
		subscriber.UnsubscribeToken, subscriber.SubscribedAt, subscriber.UnsubscribedAt,
		subscriber.CreatedAt, subscriber.UpdatedAt,
	)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateSubscriber
		}
		return err
	}

	return nil
}

func (r *subscriberRepository) ByEmail(email string) (*model.Subscriber, error) {
	subscriber := &model.Subscriber{}
	query := `SELECT * FROM subscribers WHERE email = $1`

	err := r.db.Get(subscriber, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}

	return subscriber, err
}

func (r *subscriberRepository) ByUnsubscribeToken(token string) (*model.Subscriber, error) {
	subscriber := &model.Subscriber{}
	query := `SELECT * FROM subscribers WHERE unsubscribe_token = $1`

	err := r.db.Get(subscriber, query, token)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}

	return subscriber, err
}

func (r *subscriberRepository) Update(subscriber *model.Subscriber) error {
	subscriber.UpdatedAt = time.Now()

	query := `UPDATE subscribers
	          SET name = $1, is_active = $2, subscribed_at = $3, unsubscribed_at = $4, updated_at = $5
	          WHERE id = $6`

	_, err := r.db.Exec(query,
		subscriber.Name, subscriber.IsActive, subscriber.SubscribedAt,
		subscriber.UnsubscribedAt, subscriber.UpdatedAt, subscriber.ID,
	)
	return err
}

func (r *subscriberRepository) Delete(id string) error {
	query := `DELETE FROM subscribers WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSubscriberNotFound
	}

	return nil
}

func (r *subscriberRepository) List(filter SubscriberFilter) ([]*model.Subscriber, int, error) {
	where := []string{"1=1"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Active != nil {
		where = append(where, "is_active = "+arg(*filter.Active))
	}

	clause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM subscribers WHERE `+clause, args...).Scan(&total)
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

	var subscribers []*model.Subscriber
	query := `SELECT * FROM subscribers WHERE ` + clause +
		` ORDER BY subscribed_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	err = r.db.Select(&subscribers, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return subscribers, total, nil
}

func (r *subscriberRepository) ActiveAll() ([]*model.Subscriber, error) {
	var subscribers []*model.Subscriber
	query := `SELECT * FROM subscribers WHERE is_active = TRUE ORDER BY subscribed_at ASC`

	err := r.db.Select(&subscribers, query)
	if err != nil {
		return nil, err
	}

	return subscribers, nil
}

func (r *subscriberRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM subscribers`).Scan(&count)
	return count, err
}

func (r *subscriberRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM subscribers WHERE is_active = TRUE`).Scan(&count)
	return count, err
}
