// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composerunion/composerunion/internal/middleware"
	"github.com/composerunion/composerunion/internal/store"
	"github.com/composerunion/composerunion/internal/testutil"
)

func newAdminSite(t *testing.T) (*site, string) {
	t.Helper()
	s := newSite(t)
	id := s.login("root@example.com", "admin")
	return s, id
}

func TestAdmin_AnonymousGoesToSignup(t *testing.T) {
	s := newSite(t)

	resp := s.get(RouteAdmin)
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteSignup, resp.header.Get("Location"))
}

func TestAdmin_NonAdminRejected(t *testing.T) {
	s := newSite(t)
	s.login("writer@example.com", "writer")

	for _, resp := range []response{
		s.get(RouteAdmin),
		s.get(RouteAdmin + RouteUsersExport),
		s.postForm(RouteAdmin+"/posts/1"+RouteSuffixDelete, nil),
	} {
		assert.Equal(t, http.StatusSeeOther, resp.status)
		assert.Equal(t, RouteRoot, resp.header.Get("Location"))
	}
	assert.Empty(t, s.backend.Calls(http.MethodDelete, ""))

	page := s.get(RouteRoot)
	assert.Contains(t, page.body, middleware.MsgAdminRequired)
}

func TestAdmin_RevokedTokenGoesToSignup(t *testing.T) {
	s := newSite(t)
	s.login("root@example.com", "admin")
	s.backend.Fail(http.MethodGet, "/auth/v1/user", http.StatusUnauthorized, "invalid JWT: token is expired")

	for _, resp := range []response{
		s.get(RouteAdmin),
		s.postForm(RouteAdmin+"/posts/1"+RouteSuffixDelete, nil),
	} {
		assert.Equal(t, http.StatusSeeOther, resp.status)
		assert.Equal(t, RouteSignup, resp.header.Get("Location"))
	}
	assert.Empty(t, s.backend.Calls(http.MethodDelete, ""))
}

func TestDashboard_PostsTabByDefault(t *testing.T) {
	s, adminID := newAdminSite(t)
	s.backend.Seed(store.TablePosts, testutil.Row{
		"title": "Spring recital", "slug": "spring-recital", "category": "news",
		"published": true, "author_id": adminID,
	})

	for _, path := range []string{RouteAdmin, RouteAdmin + "?tab=bogus"} {
		resp := s.get(path)
		require.Equal(t, http.StatusOK, resp.status, path)
		assert.Contains(t, resp.body, `id="posts-section"`, path)
		assert.Contains(t, resp.body, `data-editor-state="empty"`, path)
		assert.Contains(t, resp.body, "Spring recital", path)
		assert.Contains(t, resp.body, `<option value="`+adminID+`"`, path)
	}
	assert.Empty(t, s.backend.Calls(http.MethodGet, "/rest/v1/"+store.TableSubscribers))
}

func TestDashboard_Tabs(t *testing.T) {
	s, _ := newAdminSite(t)
	s.backend.Seed(store.TableSubscribers, testutil.Row{"email": "fan@example.com"})

	resp := s.get(RouteAdmin + "?tab=" + TabSubscribers)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `id="subscribers-section"`)
	assert.Contains(t, resp.body, "fan@example.com")
	assert.NotContains(t, resp.body, `id="posts-section"`)

	resp = s.get(RouteAdmin + "?tab=" + TabUsers)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `id="users-section"`)
}

func TestDashboard_LoadFailureShowsToast(t *testing.T) {
	s, _ := newAdminSite(t)
	s.get(RouteRoot)
	s.backend.Fail(http.MethodGet, "/rest/v1/"+store.TableApplications, http.StatusInternalServerError, "relation does not exist")

	resp := s.get(RouteAdmin + "?tab=" + TabApplications)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, MsgDashboardLoadFailed+"relation does not exist")
}

func TestPostSlug(t *testing.T) {
	s, _ := newAdminSite(t)

	resp := s.get(RouteAdmin + RoutePostSlug + "?title=" + url.QueryEscape("Hello, World!"))
	require.Equal(t, http.StatusOK, resp.status)
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.body), &out))
	assert.Equal(t, "hello-world", out["slug"])
}

func TestSubmitPost_Create(t *testing.T) {
	s, adminID := newAdminSite(t)

	resp := s.postMultipart(RouteAdmin+RoutePosts, map[string]string{
		"title":        "Spring recital",
		"slug":         "spring-recital",
		"category":     "news",
		"content_html": "<p>Programme</p>",
		"author_id":    adminID,
		"published":    "on",
	}, "image", "poster.png", pngBytes)
	assert.Equal(t, redirectAdminPosts, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgPostSaved)

	rows := s.backend.Rows(store.TablePosts)
	require.Len(t, rows, 1)
	assert.Equal(t, "spring-recital", rows[0]["slug"])
	assert.Equal(t, true, rows[0]["published"])
	assert.Contains(t, rows[0]["image_url"], "blog-images")
	assert.Equal(t, 1, s.backend.Objects())
}

func TestSubmitPost_SlugNotURLFriendly(t *testing.T) {
	for _, slug := range []string{"", "Spring Recital", "spring--recital", "-spring"} {
		t.Run(slug, func(t *testing.T) {
			s, _ := newAdminSite(t)

			resp := s.postMultipart(RouteAdmin+RoutePosts, map[string]string{
				"title": "Spring recital", "slug": slug, "category": "news",
			}, "", "", nil)
			page := s.follow(resp)
			assert.Contains(t, page.body, MsgPostSavedBadSlug)
			assert.NotContains(t, page.body, MsgPostSaved)

			rows := s.backend.Rows(store.TablePosts)
			require.Len(t, rows, 1, "the post is saved as submitted")
			assert.Equal(t, slug, rows[0]["slug"])
		})
	}
}

func TestSubmitPost_DuplicateSlug(t *testing.T) {
	s, _ := newAdminSite(t)
	s.seedPost("Original", "spring-recital", "news", false)

	resp := s.postMultipart(RouteAdmin+RoutePosts, map[string]string{
		"title": "Copy", "slug": "spring-recital", "category": "news",
	}, "", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, MsgDuplicateSlug)
	assert.Contains(t, resp.body, `value="Copy"`)
	assert.Contains(t, resp.body, `data-editor-state="editing-new"`)

	assert.Len(t, s.backend.Rows(store.TablePosts), 1)
	assert.Empty(t, s.backend.Calls(http.MethodPost, "/rest/v1/"+store.TablePosts))
}

func TestSubmitPost_UpdateExisting(t *testing.T) {
	s, _ := newAdminSite(t)
	id := s.seedPost("Draft title", "draft-title", "news", false)

	edit := s.get(RouteAdmin + "/posts/" + id + RouteSuffixEdit)
	require.Equal(t, http.StatusOK, edit.status)
	assert.Contains(t, edit.body, `value="Draft title"`)
	assert.Contains(t, edit.body, `data-editor-state="editing-existing"`)

	resp := s.postMultipart(RouteAdmin+RoutePosts, map[string]string{
		"id": id, "title": "Final title", "slug": "draft-title", "category": "news", "published": "on",
	}, "", "", nil)
	assert.Equal(t, redirectAdminPosts, resp.header.Get("Location"))

	row := s.backend.Row(store.TablePosts, id)
	assert.Equal(t, "Final title", row["title"])
	assert.Equal(t, true, row["published"])
	assert.NotNil(t, row["updated_at"])
	assert.Len(t, s.backend.Rows(store.TablePosts), 1)
}

func TestEditPost_Unknown(t *testing.T) {
	s, _ := newAdminSite(t)

	resp := s.get(RouteAdmin + "/posts/404" + RouteSuffixEdit)
	assert.Equal(t, redirectAdminPosts, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgPostLoadFailed)
}

func TestDeletePost_ConfirmThenDelete(t *testing.T) {
	s, _ := newAdminSite(t)
	id := s.seedPost("Doomed", "doomed", "news", true)

	confirm := s.get(RouteAdmin + "/posts/" + id + RouteSuffixDelete)
	require.Equal(t, http.StatusOK, confirm.status)
	assert.Contains(t, confirm.body, `id="custom-modal"`)
	assert.Contains(t, confirm.body, MsgConfirmDeletePost)
	assert.Contains(t, confirm.body, `action="/admin/posts/`+id+`/delete"`)
	assert.Len(t, s.backend.Rows(store.TablePosts), 1)
	assert.Empty(t, s.backend.Calls(http.MethodDelete, ""))

	// Cancelling is a plain link back to the posts tab.
	cancel := s.get(redirectAdminPosts)
	assert.NotContains(t, cancel.body, `id="custom-modal"`)

	resp := s.postForm(RouteAdmin+"/posts/"+id+RouteSuffixDelete, nil)
	assert.Equal(t, redirectAdminPosts, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgPostDeleted)
	assert.Empty(t, s.backend.Rows(store.TablePosts))
}

func TestUploadImage(t *testing.T) {
	s, _ := newAdminSite(t)

	resp := s.postMultipart(RouteAdmin+RouteImages, nil, "image", "inline.png", pngBytes)
	require.Equal(t, http.StatusOK, resp.status)
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.body), &out))
	assert.Contains(t, out["url"], "blog-images")
	assert.True(t, strings.HasSuffix(out["url"], ".png"))
}

func TestUploadImage_Rejected(t *testing.T) {
	s, _ := newAdminSite(t)

	resp := s.postMultipart(RouteAdmin+RouteImages, nil, "image", "notes.txt", []byte("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.status)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.body), &out))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], MsgImageUploadFailed)
	assert.Zero(t, s.backend.Objects())
}

func seedApplication(s *site) (appID, userID string) {
	userID = s.backend.AddAccount("hopeful@example.com", "secret1", "Hopeful", "user")
	appID = s.backend.Seed(store.TableApplications, testutil.Row{"user_id": userID, "bio_text": strings.Repeat("b", 60)})
	return appID, userID
}

func TestApproveApplication(t *testing.T) {
	s, _ := newAdminSite(t)
	appID, userID := seedApplication(s)

	resp := s.postForm(RouteAdmin+"/applications/"+appID+RouteSuffixApprove, nil)
	assert.Equal(t, redirectAdminApplications, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgApproved)

	patches := s.backend.Calls(http.MethodPatch, "")
	require.Len(t, patches, 2)
	assert.True(t, strings.HasSuffix(patches[0].Path, "/"+store.TableApplications))
	assert.True(t, strings.HasSuffix(patches[1].Path, "/"+store.TableProfiles))
	assert.Equal(t, "approved", s.backend.Row(store.TableApplications, appID)["status"])
	assert.Equal(t, "writer", s.backend.Row(store.TableProfiles, userID)["role"])
}

func TestApproveApplication_RoleUpdateFails(t *testing.T) {
	s, _ := newAdminSite(t)
	appID, userID := seedApplication(s)
	s.backend.Fail(http.MethodPatch, "/rest/v1/"+store.TableProfiles, http.StatusForbidden, "permission denied for table profiles")

	page := s.follow(s.postForm(RouteAdmin+"/applications/"+appID+RouteSuffixApprove, nil))
	assert.Contains(t, page.body, MsgApproveFailed)
	assert.Contains(t, page.body, "permission denied for table profiles")
	assert.Equal(t, "pending", s.backend.Row(store.TableApplications, appID)["status"])
	assert.Equal(t, "user", s.backend.Row(store.TableProfiles, userID)["role"])
}

func TestRejectApplication(t *testing.T) {
	s, _ := newAdminSite(t)
	appID, userID := seedApplication(s)

	page := s.follow(s.postForm(RouteAdmin+"/applications/"+appID+RouteSuffixReject, nil))
	assert.Contains(t, page.body, MsgRejected)
	assert.Equal(t, "rejected", s.backend.Row(store.TableApplications, appID)["status"])
	profile := s.backend.Row(store.TableProfiles, userID)
	assert.Equal(t, "user", profile["role"])
	assert.Equal(t, "rejected", profile["writer_application_status"])
}

func TestApproveApplication_IgnoresFormUserID(t *testing.T) {
	s, _ := newAdminSite(t)
	appID, userID := seedApplication(s)
	other := s.backend.AddAccount("bystander@example.com", "secret1", "Bystander", "user")

	page := s.follow(s.postForm(RouteAdmin+"/applications/"+appID+RouteSuffixApprove, url.Values{"user_id": {other}}))
	assert.Contains(t, page.body, MsgApproved)
	assert.Equal(t, "writer", s.backend.Row(store.TableProfiles, userID)["role"])
	assert.Equal(t, "user", s.backend.Row(store.TableProfiles, other)["role"])
}

func TestApproveApplication_Unknown(t *testing.T) {
	s, _ := newAdminSite(t)

	page := s.follow(s.postForm(RouteAdmin+"/applications/404"+RouteSuffixApprove, nil))
	assert.Contains(t, page.body, MsgApproveFailed)
	assert.Empty(t, s.backend.Calls(http.MethodPatch, ""))
}

func TestExportSubscribers(t *testing.T) {
	s, _ := newAdminSite(t)
	s.backend.Seed(store.TableSubscribers, testutil.Row{"email": "fan@example.com"})

	resp := s.get(RouteAdmin + RouteSubscribersExport)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "text/csv; charset=utf-8", resp.header.Get(HeaderContentType))
	assert.Equal(t, `attachment; filename="newsletter_subscribers.csv"`, resp.header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(resp.body, "Email,"), resp.body)
	assert.Contains(t, resp.body, "fan@example.com")
}

func TestExportUsers(t *testing.T) {
	s, _ := newAdminSite(t)

	resp := s.get(RouteAdmin + RouteUsersExport)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, `attachment; filename="users.csv"`, resp.header.Get("Content-Disposition"))
	assert.Contains(t, resp.body, "Test admin")
}

func TestExport_Failure(t *testing.T) {
	s, _ := newAdminSite(t)
	s.get(RouteRoot)
	s.backend.Fail(http.MethodGet, "/rest/v1/"+store.TableSubscribers, http.StatusInternalServerError, "timeout")

	resp := s.get(RouteAdmin + RouteSubscribersExport)
	assert.Equal(t, redirectAdminSubscribers, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgExportFailed+"timeout")
}
