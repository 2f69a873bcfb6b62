package mailer

import (
	"fmt"
	"time"
)

// WelcomeMessage greets a freshly registered user.
func (m *Mailer) WelcomeMessage(email, name string) Message {
	subject := fmt.Sprintf("Welcome to %s!", m.appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Start tracking your energy consumption and see
how much CO2 you emit and avoid:
%s

If you have questions, reach out to our support team.

Best,
The %s Team`, name, m.appURL, m.appName)

	return Message{Kind: "welcome", To: email, Subject: subject, Text: body}
}

// PasswordResetMessage carries the plaintext reset token link.
func (m *Mailer) PasswordResetMessage(email, name, token string) Message {
	resetURL := fmt.Sprintf("%s/reset-password/%s", m.appURL, token)
	subject := fmt.Sprintf("Reset your password for %s", m.appName)
	body := fmt.Sprintf(`Hi %s,

You requested to reset your password. Use this link to choose a new one:
%s

This link expires in 1 hour and can only be used once.

If you didn't request this, you can safely ignore this email. Your
password won't be changed.

Best,
The %s Team`, name, resetURL, m.appName)

	return Message{Kind: "password_reset", To: email, Subject: subject, Text: body}
}

// UsernameRecoveryMessage reminds a user of their username.
func (m *Mailer) UsernameRecoveryMessage(email, name, username string) Message {
	subject := fmt.Sprintf("Your %s username", m.appName)
	body := fmt.Sprintf(`Hi %s,

You asked us to remind you of your username. It is:

    %s

You can sign in with it (or with your email address) here:
%s

Best,
The %s Team`, name, username, m.appURL, m.appName)

	return Message{Kind: "username_recovery", To: email, Subject: subject, Text: body}
}

// AccountLockedMessage notifies the owner that repeated failed logins
// locked the account.
func (m *Mailer) AccountLockedMessage(email, name string, until time.Time) Message {
	subject := fmt.Sprintf("Your %s account is temporarily locked", m.appName)
	body := fmt.Sprintf(`Hi %s,

We detected several failed sign-in attempts on your account, so we
locked it until %s as a precaution.

If this was you, just wait and try again later, or reset your password:
%s/forgot-password

If this wasn't you, we recommend resetting your password once the lock
expires.

Best,
The %s Team`, name, until.Format("15:04 MST, Jan 2 2006"), m.appURL, m.appName)

	return Message{Kind: "account_locked", To: email, Subject: subject, Text: body}
}

// NewsletterWelcomeMessage confirms a newsletter subscription and
// carries the unsubscribe link.
func (m *Mailer) NewsletterWelcomeMessage(email, name, unsubscribeToken string) Message {
	unsubscribeURL := fmt.Sprintf("%s/newsletter/unsubscribe/%s", m.appURL, unsubscribeToken)
	greeting := "Hi"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s", name)
	}
	subject := fmt.Sprintf("Welcome to the %s newsletter", m.appName)
	body := fmt.Sprintf(`%s,

Thanks for subscribing! We'll keep you posted on new features and tips
for cutting your energy footprint.

You can unsubscribe at any time:
%s

Best,
The %s Team`, greeting, unsubscribeURL, m.appName)

	return Message{Kind: "newsletter_welcome", To: email, Subject: subject, Text: body}
}

// NewsletterMessage is one broadcast issue rendered to HTML.
func (m *Mailer) NewsletterMessage(email, subject, text, html, unsubscribeToken string) Message {
	unsubscribeURL := fmt.Sprintf("%s/newsletter/unsubscribe/%s", m.appURL, unsubscribeToken)
	footer := fmt.Sprintf("\n\n--\nUnsubscribe: %s", unsubscribeURL)
	htmlFooter := fmt.Sprintf(`<p style="color:#888;font-size:12px">--<br><a href="%s">Unsubscribe</a></p>`, unsubscribeURL)

	return Message{
		Kind:    "newsletter",
		To:      email,
		Subject: subject,
		Text:    text + footer,
		HTML:    html + htmlFooter,
	}
}
