package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentLinkGetsNofollow(t *testing.T) {
	out := Comment("Good [post](http://example.com)!")
	assert.Equal(t, `Good <a href="http://example.com" rel="nofollow">post</a>!`, out)
	assert.Equal(t, "Good post!", StripTags(out))
}

func TestCommentDropsBlockTags(t *testing.T) {
	out := Comment("# Title\n\n* one\n* two")
	assert.NotContains(t, out, "<h1>")
	assert.NotContains(t, out, "<li>")
	assert.NotContains(t, out, "<p>")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "one")
}

func TestPostKeepsBlockTags(t *testing.T) {
	out := Post("# Title\n\nsome *text*")
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<p>some <em>text</em></p>")
}

func TestScriptRemoved(t *testing.T) {
	for _, render := range []func(string) string{Post, Comment} {
		out := render("<script>alert(1)</script>hello")
		assert.NotContains(t, out, "script")
		assert.NotContains(t, out, "alert")
		assert.Contains(t, out, "hello")
	}
}

func TestDisallowedAttributesRemoved(t *testing.T) {
	out := Comment(`<b onclick="x()">bold</b> <img src="x" onerror="alert(1)">`)
	assert.Contains(t, out, "<b>bold</b>")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "<img")
}

func TestUnsafeHrefDropped(t *testing.T) {
	out := Sanitize(`<a href="javascript:alert(1)" title="t">x</a>`, CommentPolicy)
	assert.Equal(t, `<a title="t" rel="nofollow">x</a>`, out)
}

func TestBareURLsLinked(t *testing.T) {
	out := Post("visit http://example.com now")
	assert.Contains(t, out, `href="http://example.com"`)
	assert.Contains(t, out, `rel="nofollow"`)
}

func TestRenderIsDeterministic(t *testing.T) {
	src := "Some **bold** text with a [link](https://example.com \"title\") and <em>raw</em> html"
	first := Post(src)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Post(src))
	}
}

func TestUnclosedAnchorIsClosed(t *testing.T) {
	out := Comment(`<a href="http://evil.example">click`)
	assert.Equal(t, `<a href="http://evil.example" rel="nofollow">click</a>`, out)
}

func TestUnclosedInlineTagIsClosed(t *testing.T) {
	assert.Equal(t, "<p><b>bold forever</b></p>", Post("<b>bold forever"))
	assert.Equal(t, "<b>bold forever</b>", Comment("<b>bold forever"))
}

func TestStrayEndTagDropped(t *testing.T) {
	out := Comment("hello</strong> world")
	assert.Equal(t, "hello world", out)
	assert.NotContains(t, out, "</strong>")
}

func TestMisnestedTagsBalanced(t *testing.T) {
	out := Sanitize("<b><i>x</b>y</i>", CommentPolicy)
	assert.Equal(t, "<b><i>x</i></b>y", out)
}

func TestNestedAnchorClosesOuter(t *testing.T) {
	out := Sanitize(`<a href="/a">one<a href="/b">two</a>`, CommentPolicy)
	assert.Equal(t, `<a href="/a" rel="nofollow">one</a><a href="/b" rel="nofollow">two</a>`, out)
}

func TestBareURLsInRawHTMLLinked(t *testing.T) {
	want := `visit <a href="http://example.com" rel="nofollow">http://example.com</a> now`
	assert.Equal(t, want, Post("<div>visit http://example.com now</div>"))
	assert.Equal(t, want, Comment("<div>visit http://example.com now</div>"))
}

func TestLinkifySkipsAnchorsAndTrailingPunctuation(t *testing.T) {
	out := Sanitize(`<a href="http://a.example">http://a.example</a> see www.b.example.`, CommentPolicy)
	assert.Equal(t, `<a href="http://a.example" rel="nofollow">http://a.example</a> see `+
		`<a href="http://www.b.example" rel="nofollow">www.b.example</a>.`, out)
}

func TestLinkifyNeedsAnchorPolicy(t *testing.T) {
	policy := newPolicy("b")
	assert.Equal(t, "go to http://example.com", Sanitize("go to http://example.com", policy))
}

func TestEndTagClosesInnermostMatch(t *testing.T) {
	out := Sanitize("<b>a<i><b>b</b>c</i></b>", CommentPolicy)
	assert.Equal(t, "<b>a<i><b>b</b>c</i></b>", out)
}
