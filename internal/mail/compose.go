package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates
var templateFS embed.FS

// Template names.
const (
	TemplateConfirm       = "auth/confirm"
	TemplateResetPassword = "auth/reset_password"
	TemplateChangeEmail   = "auth/change_email"
	TemplateNewUser       = "new_user"
)

// Composer renders <name>.txt and <name>.html templates into messages with
// a fixed sender and subject prefix.
type Composer struct {
	prefix string
	from   string
	text   *texttemplate.Template
	html   *htmltemplate.Template
}

func NewComposer(subjectPrefix, from string) (*Composer, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt", "templates/auth/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text mail templates: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html", "templates/auth/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html mail templates: %w", err)
	}
	return &Composer{prefix: subjectPrefix, from: from, text: text, html: html}, nil
}

// Compose renders the named template pair with data.
func (c *Composer) Compose(to, subject, name string, data any) (Message, error) {
	base := name[strings.LastIndex(name, "/")+1:]
	var text, html bytes.Buffer
	if err := c.text.ExecuteTemplate(&text, base+".txt", data); err != nil {
		return Message{}, fmt.Errorf("render %s.txt: %w", name, err)
	}
	if err := c.html.ExecuteTemplate(&html, base+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s.html: %w", name, err)
	}
	return Message{
		From:    c.from,
		To:      to,
		Subject: strings.TrimSpace(c.prefix + " " + subject),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
