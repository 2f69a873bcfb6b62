package service

import (
	"strings"
	"testing"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/mailer"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
)

// fakeSubscriberRepo is an in-memory repository.SubscriberRepository.
type fakeSubscriberRepo struct {
	subscribers map[string]*model.Subscriber // keyed by id
}

func newFakeSubscriberRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{subscribers: map[string]*model.Subscriber{}}
}

func (r *fakeSubscriberRepo) Create(subscriber *model.Subscriber) error {
	for _, s := range r.subscribers {
		if strings.EqualFold(s.Email, subscriber.Email) {
			return repository.ErrDuplicateSubscriber
		}
	}
	clone := *subscriber
	r.subscribers[subscriber.ID] = &clone
	return nil
}

func (r *fakeSubscriberRepo) ByEmail(email string) (*model.Subscriber, error) {
	for _, s := range r.subscribers {
		if strings.EqualFold(s.Email, email) {
			clone := *s
			return &clone, nil
		}
	}
	return nil, repository.ErrSubscriberNotFound
}

func (r *fakeSubscriberRepo) ByUnsubscribeToken(token string) (*model.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.UnsubscribeToken == token {
			clone := *s
			return &clone, nil
		}
	}
	return nil, repository.ErrSubscriberNotFound
}

func (r *fakeSubscriberRepo) Update(subscriber *model.Subscriber) error {
	if _, ok := r.subscribers[subscriber.ID]; !ok {
		return repository.ErrSubscriberNotFound
	}
	clone := *subscriber
	r.subscribers[subscriber.ID] = &clone
	return nil
}

func (r *fakeSubscriberRepo) Delete(id string) error {
	if _, ok := r.subscribers[id]; !ok {
		return repository.ErrSubscriberNotFound
	}
	delete(r.subscribers, id)
	return nil
}

func (r *fakeSubscriberRepo) List(filter repository.SubscriberFilter) ([]*model.Subscriber, int, error) {
	var out []*model.Subscriber
	for _, s := range r.subscribers {
		if filter.Active != nil && s.IsActive != *filter.Active {
			continue
		}
		clone := *s
		out = append(out, &clone)
	}
	return out, len(out), nil
}

func (r *fakeSubscriberRepo) ActiveAll() ([]*model.Subscriber, error) {
	active := true
	out, _, err := r.List(repository.SubscriberFilter{Active: &active})
	return out, err
}

func (r *fakeSubscriberRepo) Count() (int, error) { return len(r.subscribers), nil }

func (r *fakeSubscriberRepo) CountActive() (int, error) {
	subs, err := r.ActiveAll()
	return len(subs), err
}

func newTestNewsletterService(t *testing.T) (*NewsletterService, *fakeSubscriberRepo) {
	t.Helper()
	repo := newFakeSubscriberRepo()
	mail := mailer.New("", "noreply@test.local", "GreenCore", "http://localhost:3000", true)
	t.Cleanup(mail.Close)
	return NewNewsletterService(repo, mail), repo
}

func TestSubscribe(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	subscriber, err := svc.Subscribe("Reader@Example.com", "Reader")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if subscriber.Email != "reader@example.com" {
		t.Errorf("email not normalized: %q", subscriber.Email)
	}
	if !subscriber.IsActive {
		t.Error("new subscriber should be active")
	}
	if subscriber.UnsubscribeToken == "" {
		t.Error("expected an unsubscribe token")
	}
}

func TestSubscribeActiveDuplicateConflicts(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	_, err := svc.Subscribe("reader@example.com", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_, err = svc.Subscribe("reader@example.com", "")
	appErr := apperr.From(err)
	if appErr == nil || appErr.Code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %v", err)
	}
}

func TestSubscribeReactivates(t *testing.T) {
	svc, repo := newTestNewsletterService(t)

	first, err := svc.Subscribe("reader@example.com", "Reader")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.Unsubscribe(first.UnsubscribeToken); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if repo.subscribers[first.ID].IsActive {
		t.Fatal("expected inactive after unsubscribe")
	}
	if repo.subscribers[first.ID].UnsubscribedAt == nil {
		t.Error("expected UnsubscribedAt to be set")
	}

	again, err := svc.Subscribe("reader@example.com", "")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected reactivation in place, got new record %s", again.ID)
	}
	if !again.IsActive || again.UnsubscribedAt != nil {
		t.Errorf("reactivation state wrong: active=%v unsubscribedAt=%v", again.IsActive, again.UnsubscribedAt)
	}
	if again.Name != "Reader" {
		t.Errorf("blank name should keep the old one, got %q", again.Name)
	}
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	err := svc.Unsubscribe("no-such-token")
	appErr := apperr.From(err)
	if appErr == nil || appErr.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSubscribeInvalidEmail(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	_, err := svc.Subscribe("not-an-email", "")
	appErr := apperr.From(err)
	if appErr == nil || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestBroadcast(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := svc.Subscribe(email, ""); err != nil {
			t.Fatalf("subscribe %s: %v", email, err)
		}
	}
	// One unsubscribed reader must not receive the issue.
	s, err := svc.Subscribe("d@example.com", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.Unsubscribe(s.UnsubscribeToken); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	result, err := svc.Broadcast("March issue", "# Hello\n\nSome *markdown* news.")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.Sent != 3 || result.Failed != 0 {
		t.Errorf("expected 3 sent / 0 failed, got %d/%d", result.Sent, result.Failed)
	}
}

func TestBroadcastValidation(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	_, err := svc.Broadcast("", "body")
	if appErr := apperr.From(err); appErr == nil || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR for empty subject, got %v", err)
	}
	_, err = svc.Broadcast("subject", "  ")
	if appErr := apperr.From(err); appErr == nil || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR for empty body, got %v", err)
	}
}

func TestUnsubscribeTwiceIsIdempotent(t *testing.T) {
	svc, _ := newTestNewsletterService(t)

	s, err := svc.Subscribe("reader@example.com", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.Unsubscribe(s.UnsubscribeToken); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := svc.Unsubscribe(s.UnsubscribeToken); err != nil {
		t.Errorf("second unsubscribe should be a no-op, got %v", err)
	}
}
