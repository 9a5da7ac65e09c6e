// Package markup turns user-supplied Markdown into HTML that is safe to
// embed in pages and API responses.
package markup

import (
	"bytes"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"gitlab.com/golang-commonmark/markdown"
	"golang.org/x/net/html"
)

var parser = markdown.New(markdown.HTML(true), markdown.Linkify(true), markdown.MaxNesting(10))

// Policy is an allow-list of tags and, per tag, attributes.
type Policy struct {
	Tags  map[string]bool
	Attrs map[string][]string
}

// PostPolicy allows block markup suitable for post bodies.
var PostPolicy = newPolicy(
	"a", "abbr", "acronym", "b", "blockquote", "code", "em", "i", "li", "ol",
	"pre", "strong", "ul", "h1", "h2", "h3", "p",
)

// CommentPolicy allows inline markup only.
var CommentPolicy = newPolicy("a", "abbr", "acronym", "b", "code", "em", "i", "strong")

func newPolicy(tags ...string) Policy {
	p := Policy{Tags: map[string]bool{}, Attrs: map[string][]string{
		"a":       {"href", "title"},
		"abbr":    {"title"},
		"acronym": {"title"},
	}}
	for _, t := range tags {
		p.Tags[t] = true
	}
	return p
}

// Render converts Markdown to HTML and sanitizes it against policy.
func Render(src string, policy Policy) string {
	rendered := parser.RenderToString([]byte(src))
	return strings.TrimSpace(Sanitize(rendered, policy))
}

func Post(src string) string    { return Render(src, PostPolicy) }
func Comment(src string) string { return Render(src, CommentPolicy) }

// Sanitize strips every tag and attribute the policy does not allow while
// keeping the enclosed text. Script and style bodies are dropped entirely.
// The output is balanced: end tags without an open element are dropped and
// elements still open at the end are closed. Bare URLs in text outside an
// anchor become links when the policy allows anchors. Every emitted anchor
// carries rel="nofollow".
func Sanitize(in string, policy Policy) string {
	z := html.NewTokenizer(strings.NewReader(in))
	var out bytes.Buffer
	var open []string
	skip := ""
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break // io.EOF
		}
		switch tt {
		case html.TextToken:
			if skip != "" {
				continue
			}
			text := string(z.Text())
			if policy.Tags["a"] && !slices.Contains(open, "a") {
				writeLinkified(&out, text, policy.Attrs["a"])
			} else {
				out.WriteString(html.EscapeString(text))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if skip != "" {
				continue
			}
			if tok.Data == "script" || tok.Data == "style" {
				if tt == html.StartTagToken {
					skip = tok.Data
				}
				continue
			}
			if !policy.Tags[tok.Data] {
				continue
			}
			if tok.Data == "a" {
				// anchors do not nest
				open = closeTo(&out, open, "a")
			}
			writeStartTag(&out, tok, policy.Attrs[tok.Data])
			if tt == html.SelfClosingTagToken {
				out.WriteString("</" + tok.Data + ">")
				continue
			}
			open = append(open, tok.Data)
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skip != "" {
				if tag == skip {
					skip = ""
				}
				continue
			}
			open = closeTo(&out, open, tag)
		}
		// comments and doctypes are dropped
	}
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return out.String()
}

// closeTo closes the innermost open element named tag and everything nested
// in it. It writes nothing when tag is not open.
func closeTo(out *bytes.Buffer, open []string, tag string) []string {
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] != tag {
			continue
		}
		for j := len(open) - 1; j >= i; j-- {
			out.WriteString("</" + open[j] + ">")
		}
		return open[:i]
	}
	return open
}

var bareURL = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)

// writeLinkified escapes text and wraps the bare URLs in it in anchors.
func writeLinkified(out *bytes.Buffer, text string, allowed []string) {
	last := 0
	for _, m := range bareURL.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		end = start + len(strings.TrimRight(text[start:end], ".,;:!?)"))
		if end <= start || end <= last {
			continue
		}
		raw := text[start:end]
		href := raw
		if strings.HasPrefix(strings.ToLower(href), "www.") {
			href = "http://" + href
		}
		if !safeHref(href) {
			continue
		}
		out.WriteString(html.EscapeString(text[last:start]))
		writeStartTag(out, html.Token{Data: "a", Attr: []html.Attribute{{Key: "href", Val: href}}}, allowed)
		out.WriteString(html.EscapeString(raw) + "</a>")
		last = end
	}
	out.WriteString(html.EscapeString(text[last:]))
}

func writeStartTag(out *bytes.Buffer, tok html.Token, allowed []string) {
	out.WriteString("<" + tok.Data)
	for _, name := range allowed {
		for _, a := range tok.Attr {
			if a.Namespace != "" || a.Key != name {
				continue
			}
			if name == "href" && !safeHref(a.Val) {
				break
			}
			out.WriteString(" " + name + `="` + html.EscapeString(a.Val) + `"`)
			break
		}
	}
	if tok.Data == "a" {
		out.WriteString(` rel="nofollow"`)
	}
	out.WriteString(">")
}

func safeHref(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}

// StripTags returns the text content of an HTML fragment.
func StripTags(in string) string {
	z := html.NewTokenizer(strings.NewReader(in))
	var out strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out.String()
		}
		if tt == html.TextToken {
			out.Write(z.Text())
		}
	}
}
