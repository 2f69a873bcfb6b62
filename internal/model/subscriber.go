package model

import (
	"time"
)

// Subscriber is a newsletter opt-in record. Unsubscribing deactivates the
// record instead of deleting it, so resubscribing reactivates in place.
type Subscriber struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	Name             string     `db:"name" json:"name"`
	IsActive         bool       `db:"is_active" json:"isActive"`
	UnsubscribeToken string     `db:"unsubscribe_token" json:"-"`
	SubscribedAt     time.Time  `db:"subscribed_at" json:"subscribedAt"`
	UnsubscribedAt   *time.Time `db:"unsubscribed_at" json:"unsubscribedAt"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}
