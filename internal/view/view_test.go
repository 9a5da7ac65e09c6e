package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flasky/internal/model"
)

type pageStub struct{}

func (pageStub) HasPrev() bool    { return false }
func (pageStub) HasNext() bool    { return true }
func (pageStub) PrevNum() int     { return 0 }
func (pageStub) NextNum() int     { return 2 }
func (pageStub) IterPages() []int { return []int{1, 2, 0, 9} }

type emptyForm struct{}

func (emptyForm) Get(string) string   { return "" }
func (emptyForm) Error(string) string { return "" }

func TestRenderIndex(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.True(t, r.Has("index"))
	assert.True(t, r.Has("auth/login"))
	assert.True(t, r.Has("errors/404"))

	var buf bytes.Buffer
	err = r.Render(&buf, "index", echo.Map{
		"identity": model.Anonymous(),
		"flashes":  []string{"You have been logged out."},
		"form":     emptyForm{},
		"posts":    []*model.Post{},
		"pager":    NewPager(pageStub{}, 1, "/", ""),
	}, nil)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Stranger")
	assert.Contains(t, out, "You have been logged out.")
	assert.Contains(t, out, `href="/?page=2"`)
	assert.NotContains(t, out, "What's on your mind?")
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "nope", nil, nil))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/?page=3", PageURL("/", 3))
	assert.Equal(t, "/post/1?page=2", PageURL("/post/1", 2))
	assert.Equal(t, "/moderate?page=1", PageURL("/moderate?page=4", 1))
}

func TestAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "a few seconds ago", Ago(now))
	assert.Equal(t, "5 minutes ago", Ago(now.Add(-5*time.Minute)))
	assert.Equal(t, "an hour ago", Ago(now.Add(-time.Hour)))
	assert.Equal(t, "3 days ago", Ago(now.Add(-72*time.Hour)))
}
