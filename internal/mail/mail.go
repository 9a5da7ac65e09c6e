// Package mail composes and delivers outbound email. Delivery is handed to
// a background goroutine so requests never wait on the mail server.
package mail

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/flasky/internal/logger"
)

// Message is a fully rendered email with plain-text and HTML bodies.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Sender delivers one message synchronously.
type Sender interface {
	Deliver(ctx context.Context, m Message) error
}

// Dispatcher accepts a message for delivery without reporting the outcome.
type Dispatcher interface {
	Send(ctx context.Context, m Message)
}

// AsyncDispatcher delivers each message on its own goroutine. Failures are
// logged and dropped; there is no retry.
type AsyncDispatcher struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(s Sender, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncDispatcher{sender: s, timeout: timeout}
}

// Send returns immediately. The delivery outlives ctx's cancellation.
func (d *AsyncDispatcher) Send(ctx context.Context, m Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.sender.Deliver(ctx, m); err != nil {
			logger.Errorf("mail: delivery to %s failed: %v", m.To, err)
		}
	}()
}

// Wait blocks until every in-flight delivery finished.
func (d *AsyncDispatcher) Wait() { d.wg.Wait() }

// LogSender writes messages to the log instead of sending them. It is used
// when no mail server is configured.
type LogSender struct{}

func (LogSender) Deliver(_ context.Context, m Message) error {
	logger.Infof("mail to=%s subject=%q\n%s", m.To, m.Subject, m.Text)
	return nil
}
