package testhelpers

import (
	"context"
	"sync"
)

type SentMail struct {
	Kind         string
	Email        string
	Organization string
	Link         string
}

// Mailer records every message it is asked to send.
type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
}

func (m *Mailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Kind: "reset", Email: email, Link: link})
	return nil
}

func (m *Mailer) SendInvitation(_ context.Context, email, organization, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Kind: "invitation", Email: email, Organization: organization, Link: link})
	return nil
}

func (m *Mailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
