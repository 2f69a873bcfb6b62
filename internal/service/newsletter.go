package service

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/mailer"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/validation"
)

// broadcastBatchSize keeps outbound bursts to the email provider small.
const broadcastBatchSize = 10

// BroadcastResult reports per-recipient delivery outcomes of one issue.
type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type NewsletterService struct {
	subscriberRepository repository.SubscriberRepository
	mailer               *mailer.Mailer
}

func NewNewsletterService(subscriberRepository repository.SubscriberRepository, mailer *mailer.Mailer) *NewsletterService {
	return &NewsletterService{
		subscriberRepository: subscriberRepository,
		mailer:               mailer,
	}
}

// Subscribe opts an address in. A previously unsubscribed record is
// reactivated in place; an already active one is a conflict.
func (s *NewsletterService) Subscribe(email, name string) (*model.Subscriber, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	existing, err := s.subscriberRepository.ByEmail(email)
	if err != nil && !errors.Is(err, repository.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("failed to look up subscriber: %w", err)
	}

	now := time.Now()

	if existing != nil {
		if existing.IsActive {
			return nil, apperr.Conflict("email is already subscribed")
		}

		existing.IsActive = true
		existing.SubscribedAt = now
		existing.UnsubscribedAt = nil
		if name != "" {
			existing.Name = name
		}
		err = s.subscriberRepository.Update(existing)
		if err != nil {
			return nil, fmt.Errorf("failed to reactivate subscriber: %w", err)
		}

		s.mailer.Enqueue(s.mailer.NewsletterWelcomeMessage(existing.Email, existing.Name, existing.UnsubscribeToken))
		slog.Info("newsletter subscription reactivated", "subscriber_id", existing.ID)
		return existing, nil
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate unsubscribe token: %w", err)
	}

	subscriber := &model.Subscriber{
		ID:               uuid.New().String(),
		Email:            email,
		Name:             name,
		IsActive:         true,
		UnsubscribeToken: token,
		SubscribedAt:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.subscriberRepository.Create(subscriber)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSubscriber) {
			return nil, apperr.Conflict("email is already subscribed")
		}
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	s.mailer.Enqueue(s.mailer.NewsletterWelcomeMessage(subscriber.Email, subscriber.Name, subscriber.UnsubscribeToken))
	slog.Info("newsletter subscription created", "subscriber_id", subscriber.ID)
	return subscriber, nil
}

// Unsubscribe deactivates the record behind an unsubscribe token.
func (s *NewsletterService) Unsubscribe(token string) error {
	subscriber, err := s.subscriberRepository.ByUnsubscribeToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			return apperr.NotFound("subscription")
		}
		return fmt.Errorf("failed to look up subscriber: %w", err)
	}

	if !subscriber.IsActive {
		return nil
	}

	now := time.Now()
	subscriber.IsActive = false
	subscriber.UnsubscribedAt = &now

	err = s.subscriberRepository.Update(subscriber)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	slog.Info("newsletter unsubscribed", "subscriber_id", subscriber.ID)
	return nil
}

func (s *NewsletterService) List(filter repository.SubscriberFilter) ([]*model.Subscriber, int, error) {
	subscribers, total, err := s.subscriberRepository.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subscribers, total, nil
}

func (s *NewsletterService) Delete(id string) error {
	err := s.subscriberRepository.Delete(id)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			return apperr.NotFound("subscriber")
		}
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return nil
}

// Broadcast renders a Markdown issue to HTML and delivers it to every
// active subscriber in small batches. Individual delivery failures are
// counted, not fatal.
func (s *NewsletterService) Broadcast(subject, markdown string) (*BroadcastResult, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperr.Validation("subject is required")
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, apperr.Validation("body is required")
	}

	var buf bytes.Buffer
	err := goldmark.Convert([]byte(markdown), &buf)
	if err != nil {
		return nil, apperr.Validation("body is not valid markdown")
	}
	html := buf.String()

	subscribers, err := s.subscriberRepository.ActiveAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}

	result := &BroadcastResult{}
	for start := 0; start < len(subscribers); start += broadcastBatchSize {
		end := start + broadcastBatchSize
		if end > len(subscribers) {
			end = len(subscribers)
		}

		for _, subscriber := range subscribers[start:end] {
			msg := s.mailer.NewsletterMessage(subscriber.Email, subject, markdown, html, subscriber.UnsubscribeToken)
			if err := s.mailer.Send(msg); err != nil {
				result.Failed++
				continue
			}
			result.Sent++
		}
	}

	slog.Info("newsletter broadcast complete", "subject", subject, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}
