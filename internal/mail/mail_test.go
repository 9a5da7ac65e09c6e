package mail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Deliver(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.sent = append(r.sent, m)
	return r.err
}

type user struct{ Username string }

func TestComposeConfirm(t *testing.T) {
	c, err := NewComposer("[Flasky]", "Flasky Admin <flasky@example.com>")
	require.NoError(t, err)

	m, err := c.Compose("john@example.com", "Confirm Your Account", TemplateConfirm,
		map[string]any{"User": user{"john"}, "URL": "http://localhost/auth/confirm/abc"})
	require.NoError(t, err)

	assert.Equal(t, "[Flasky] Confirm Your Account", m.Subject)
	assert.Equal(t, "john@example.com", m.To)
	assert.Equal(t, "Flasky Admin <flasky@example.com>", m.From)
	assert.Contains(t, m.Text, "Dear john,")
	assert.Contains(t, m.Text, "http://localhost/auth/confirm/abc")
	assert.Contains(t, m.HTML, `<a href="http://localhost/auth/confirm/abc">click here</a>`)
}

func TestComposeEscapesHTML(t *testing.T) {
	c, err := NewComposer("", "a@example.com")
	require.NoError(t, err)

	m, err := c.Compose("x@example.com", "New User", TemplateNewUser,
		map[string]any{"User": user{"<b>bob</b>"}})
	require.NoError(t, err)

	assert.Equal(t, "New User", m.Subject)
	assert.Contains(t, m.HTML, "&lt;b&gt;bob&lt;/b&gt;")
	assert.Contains(t, m.Text, "User <b>bob</b> has joined.")
}

func TestComposeUnknownTemplate(t *testing.T) {
	c, err := NewComposer("", "a@example.com")
	require.NoError(t, err)
	_, err = c.Compose("x@example.com", "s", "nope", nil)
	assert.Error(t, err)
}

func TestAsyncDispatcherDetachesFromCaller(t *testing.T) {
	rec := &recordingSender{}
	d := NewAsyncDispatcher(rec, 0)

	ctx, cancel := context.WithCancel(context.Background())
	d.Send(ctx, Message{To: "a@example.com"})
	cancel()
	d.Send(ctx, Message{To: "b@example.com"})
	d.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.sent, 2)
}

func TestAsyncDispatcherSwallowsErrors(t *testing.T) {
	rec := &recordingSender{err: errors.New("boom")}
	d := NewAsyncDispatcher(rec, 0)
	d.Send(context.Background(), Message{To: "a@example.com"})
	d.Wait()
	assert.Len(t, rec.sent, 1)
}

func TestMessageBytes(t *testing.T) {
	m := Message{From: "f@example.com", To: "t@example.com", Subject: "Hi", Text: "plain", HTML: "<p>html</p>"}
	b, err := m.Bytes()
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.HasPrefix(s, "From: f@example.com\r\n"))
	assert.Contains(t, s, "MIME-Version: 1.0")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/plain; charset=utf-8")
	assert.Contains(t, s, "<p>html</p>")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Deliver(context.Background(), Message{To: "a@example.com"}))
}
