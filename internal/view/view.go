// Package view renders the HTML pages of the web surface from embedded
// html/template files.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/model"
)

//go:embed templates
var files embed.FS

const layoutFile = "templates/layout.html"

// Renderer implements echo.Renderer. Every page is parsed together with
// the shared layout into its own template set.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	err := fs.WalkDir(files, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == layoutFile || !strings.HasSuffix(p, ".html") {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
		t, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(files, layoutFile, p)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		r.pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, path.Base(layoutFile), data)
}

// Has reports whether a page exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

var permissionNames = map[string]model.Permission{
	"FOLLOW":   model.PermFollow,
	"COMMENT":  model.PermComment,
	"WRITE":    model.PermWrite,
	"MODERATE": model.PermModerate,
	"ADMIN":    model.PermAdmin,
}

var funcs = template.FuncMap{
	"can": func(id model.Identity, perm string) bool {
		return id.Can(permissionNames[perm])
	},
	"user": func(id model.Identity) *model.User {
		u, _ := id.User()
		return u
	},
	// bodies are sanitized when they are stored
	"safe": func(s string) template.HTML { return template.HTML(s) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("January 2, 2006 15:04")
	},
	"ago":     Ago,
	"pageURL": PageURL,
}

// Ago renders a coarse relative time such as "3 days ago".
func Ago(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = 0
	}
	unit := func(n int, name string) string {
		if n == 1 {
			if name == "hour" {
				return "an hour ago"
			}
			return "a " + name + " ago"
		}
		return strconv.Itoa(n) + " " + name + "s ago"
	}
	switch {
	case d < 45*time.Second:
		return "a few seconds ago"
	case d < 45*time.Minute:
		return unit(max(int(d.Round(time.Minute)/time.Minute), 1), "minute")
	case d < 22*time.Hour:
		return unit(max(int(d.Round(time.Hour)/time.Hour), 1), "hour")
	case d < 26*24*time.Hour:
		return unit(max(int(d.Round(24*time.Hour)/(24*time.Hour)), 1), "day")
	case d < 320*24*time.Hour:
		return unit(max(int(d/(30*24*time.Hour)), 1), "month")
	default:
		return unit(max(int(d/(365*24*time.Hour)), 1), "year")
	}
}

// PageURL sets the page query parameter on a path that may already carry
// a query string.
func PageURL(base string, page int) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Pageable is the navigation part of a repository page.
type Pageable interface {
	HasPrev() bool
	HasNext() bool
	PrevNum() int
	NextNum() int
	IterPages() []int
}

// Pager carries what the pagination widget needs.
type Pager struct {
	Current  int
	Pages    []int
	HasPrev  bool
	HasNext  bool
	Prev     int
	Next     int
	Base     string
	Fragment string
}

func NewPager(p Pageable, current int, base, fragment string) Pager {
	return Pager{
		Current:  current,
		Pages:    p.IterPages(),
		HasPrev:  p.HasPrev(),
		HasNext:  p.HasNext(),
		Prev:     p.PrevNum(),
		Next:     p.NextNum(),
		Base:     base,
		Fragment: fragment,
	}
}
