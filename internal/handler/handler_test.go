// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/objstore"
	"github.com/composerunion/composerunion/internal/render"
	"github.com/composerunion/composerunion/internal/service"
	"github.com/composerunion/composerunion/internal/session"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/testutil"
	"github.com/composerunion/composerunion/internal/version"
	"github.com/composerunion/composerunion/web"
)

var testCategories = []string{"news", "composition"}

// site is the whole application served over httptest against a fake backend.
type site struct {
	t       *testing.T
	backend *testutil.Backend
	server  *httptest.Server
	client  *http.Client
}

func newSite(t *testing.T) *site {
	t.Helper()

	b := testutil.NewBackend(t)
	gw := b.Client()
	q := store.New(gw)
	logger := testutil.TestLoggerSilent()

	templates, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{
		TemplatesFS: templates,
		Ads:         render.Ads{Client: "ca-pub-test", Slot: "42"},
	})
	require.NoError(t, err)

	images := service.NewImageService(objstore.NewGateway(gw, "blog-images"))
	auth := service.NewAuthService(gw, q, logger, "http://site.test/auth/callback", "http://site.test/reset-password")
	sm := session.New(nil, true)
	lp := middleware.NewLoginProtection(context.Background(), middleware.DefaultLoginProtectionConfig())

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Use(middleware.UIContext(sm))
	r.Use(middleware.LoadIdentity(sm, auth))
	blog := service.NewBlogService(q, logger)
	RegisterRoutes(r, Handlers{
		Blog:    NewBlogHandler(renderer, blog, testCategories, logger),
		Auth:    NewAuthHandler(renderer, sm, auth, lp, logger),
		Account: NewAccountHandler(renderer, service.NewAccountService(q, logger), logger),
		Admin:   NewAdminHandler(renderer, service.NewEditorService(q, images), service.NewModerationService(q, logger), testCategories, logger),
		Health:  NewHealthHandler(gw, &version.Info{Version: "test"}),
		SEO:     NewSEOHandler(blog, "http://site.test", testCategories, false, logger),
		Admins:  auth,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &site{t: t, backend: b, server: srv, client: client}
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   string
}

func (s *site) do(req *http.Request) response {
	s.t.Helper()
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func (s *site) get(path string) response {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	require.NoError(s.t, err)
	return s.do(req)
}

func (s *site) postForm(path string, values url.Values) response {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(s.t, err)
	req.Header.Set(HeaderContentType, "application/x-www-form-urlencoded")
	return s.do(req)
}

// postMultipart posts fields plus an optional file under fileField.
func (s *site) postMultipart(path string, fields map[string]string, fileField, filename string, file []byte) response {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(s.t, err)
		_, err = fw.Write(file)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set(HeaderContentType, mw.FormDataContentType())
	return s.do(req)
}

// follow reads the page a redirect points to, which shows any pending toast.
func (s *site) follow(resp response) response {
	s.t.Helper()
	require.Equal(s.t, http.StatusSeeOther, resp.status, "expected a redirect, got body %q", resp.body)
	return s.get(resp.header.Get("Location"))
}

// login creates an account with the given role and signs it in.
func (s *site) login(email, role string) string {
	s.t.Helper()
	id := s.backend.AddAccount(email, "secret1", "Test "+role, role)
	resp := s.postForm(RouteLogin, url.Values{"email": {email}, "password": {"secret1"}})
	require.Equal(s.t, http.StatusSeeOther, resp.status)
	require.Equal(s.t, RouteRoot, resp.header.Get("Location"))
	return id
}

func (s *site) seedPost(title, slug, category string, published bool) string {
	return s.backend.Seed(store.TablePosts, testutil.Row{
		"title":        title,
		"slug":         slug,
		"category":     category,
		"content_html": "<p>Body of " + title + "</p>",
		"published":    published,
	})
}

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
