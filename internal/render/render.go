// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render executes the site's html/template pages.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
	"github.com/composerunion/composerunion/internal/ui"
)

// Renderer handles template rendering with caching.
type Renderer struct {
	templates map[string]*template.Template
	policy    *bluemonday.Policy
	ads       Ads
	siteName  string
}

// Ads are the attributes of the advertisement placeholder slots.
type Ads struct {
	Client string
	Slot   string
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	SiteName    string
	Ads         Ads
}

// layoutGroups maps a template directory to the layout its pages extend.
var layoutGroups = []struct {
	dir    string
	layout string
	prefix string
}{
	{dir: "pages", layout: "layouts/base.html"},
	{dir: "admin", layout: "layouts/base.html", prefix: "admin/"},
	{dir: "widget", layout: "layouts/widget.html", prefix: "widget/"},
}

// New creates a new Renderer with parsed templates.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		policy:    postPolicy(),
		ads:       cfg.Ads,
		siteName:  cfg.SiteName,
	}
	if r.siteName == "" {
		r.siteName = "ComposerUnion"
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

// postPolicy allows the markup the post editor produces, including its
// alignment and indent classes.
func postPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^(ql-[a-z0-9-]+\s*)+$`)).Globally()
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	return p
}

func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	for _, g := range layoutGroups {
		pages, err := templateFiles(templatesFS, g.dir)
		if err != nil {
			return fmt.Errorf("getting %s templates: %w", g.dir, err)
		}

		for _, page := range pages {
			name := g.prefix + strings.TrimSuffix(path.Base(page), ".html")

			files := []string{g.layout}
			files = append(files, partials...)
			files = append(files, page)

			tmpl, err := template.New("").Funcs(r.templateFuncs()).ParseFS(templatesFS, files...)
			if err != nil {
				return fmt.Errorf("parsing template %s: %w", name, err)
			}
			r.templates[name] = tmpl
		}
	}
	return nil
}

// templateFiles returns all .html files in a directory. A missing directory
// has no templates.
func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func (r *Renderer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		// sanitize renders stored post HTML with everything outside the
		// editor's vocabulary removed.
		"sanitize": func(s string) template.HTML {
			return template.HTML(r.policy.Sanitize(s))
		},
		"shortDate": func(t time.Time) string {
			return t.Format(service.ListDateLayout)
		},
		"longDate": func(t time.Time) string {
			return t.Format(service.DetailDateLayout)
		},
		"yesNo": func(b bool) string {
			if b {
				return "Yes"
			}
			return "No"
		},
		"add": func(a, b int) int {
			return a + b
		},
	}
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	Description string
	Data        any

	// Filled by Render.
	SiteName    string
	Toast       *ui.Toast
	Modal       *ui.Modal
	Identity    session.Identity
	Ads         Ads
	CurrentPath string
	CurrentYear int
}

// Render renders a template with the given data. The pending toast is
// consumed only when the page renders successfully.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data TemplateData) error {
	return r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit response status.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	uc := ui.From(req)
	data.SiteName = r.siteName
	data.Modal = uc.Modal()
	data.Identity = middleware.GetIdentity(req)
	data.Ads = r.ads
	data.CurrentPath = req.URL.Path
	data.CurrentYear = time.Now().Year()
	data.Toast = uc.PopToast()

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		if data.Toast != nil {
			uc.Notify(data.Toast.Message, data.Toast.Kind)
		}
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Has reports whether a template with the given name was parsed.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}
