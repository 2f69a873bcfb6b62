package mailer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/resend/resend-go/v2"
)

// Message is one outbound email. HTML is optional; when set it is sent
// alongside the plain-text body.
type Message struct {
	Kind    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email through Resend from a background worker, so
// request handlers never block on the email provider. In dev mode (or
// when no API key is configured) messages are logged instead of sent.
type Mailer struct {
	client  *resend.Client
	from    string
	appName string
	appURL  string
	isDev   bool

	queue chan Message
	wg    sync.WaitGroup
}

func New(apiKey, from, appName, appURL string, isDev bool) *Mailer {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	m := &Mailer{
		client:  client,
		from:    from,
		appName: appName,
		appURL:  appURL,
		isDev:   isDev,
		queue:   make(chan Message, 64),
	}

	m.wg.Add(1)
	go m.worker()

	return m
}

func (m *Mailer) worker() {
	defer m.wg.Done()
	for msg := range m.queue {
		if err := m.send(msg); err != nil {
			slog.Error("email delivery failed", "type", msg.Kind, "to", msg.To, "error", err)
		}
	}
}

// Enqueue queues a message for delivery. When the queue is full the
// message is dropped with a log line rather than blocking the caller.
func (m *Mailer) Enqueue(msg Message) {
	select {
	case m.queue <- msg:
	default:
		slog.Warn("email queue full, dropping message", "type", msg.Kind, "to", msg.To)
	}
}

// Send delivers a message synchronously. Used by the newsletter
// broadcast, which needs per-recipient delivery results.
func (m *Mailer) Send(msg Message) error {
	return m.send(msg)
}

// Close drains the queue and stops the worker.
func (m *Mailer) Close() {
	close(m.queue)
	m.wg.Wait()
}

func (m *Mailer) send(msg Message) error {
	if m.client == nil {
		slog.Info("email sent (dev mode)", "type", msg.Kind, "to", msg.To, "subject", msg.Subject)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	if msg.HTML != "" {
		params.Html = msg.HTML
	}

	_, err := m.client.Emails.SendWithContext(context.Background(), params)
	if err == nil {
		slog.Info("email sent", "type", msg.Kind, "to", msg.To)
	}
	return err
}
