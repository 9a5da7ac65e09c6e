// Package queue defines message payloads exchanged over the message broker
// and the worker that consumes them.
package queue

import (
	"time"

	"github.com/iliyamo/flasky/internal/mail"
)

// MailQueueName is the durable queue carrying outbound email.
const MailQueueName = "mail.outbound"

// MailRequestedEvent is published when the web process wants an email sent.
// It carries the fully rendered message so the worker needs no database
// access.
type MailRequestedEvent struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Text        string    `json:"text"`
	HTML        string    `json:"html"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewMailRequestedEvent(m mail.Message, now time.Time) MailRequestedEvent {
	return MailRequestedEvent{
		From:        m.From,
		To:          m.To,
		Subject:     m.Subject,
		Text:        m.Text,
		HTML:        m.HTML,
		RequestedAt: now.UTC(),
	}
}

func (e MailRequestedEvent) Message() mail.Message {
	return mail.Message{From: e.From, To: e.To, Subject: e.Subject, Text: e.Text, HTML: e.HTML}
}
