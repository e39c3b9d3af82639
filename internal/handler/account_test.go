// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composerunion/composerunion/internal/store"
)

func TestAccount_RequiresSession(t *testing.T) {
	s := newSite(t)

	for _, resp := range []response{
		s.get(RouteAccount),
		s.postForm(RouteWriterApplication, url.Values{"bio": {strings.Repeat("x", 80)}}),
	} {
		assert.Equal(t, http.StatusSeeOther, resp.status)
		assert.Equal(t, RouteSignup, resp.header.Get("Location"))
	}
	assert.Empty(t, s.backend.Rows(store.TableApplications))
}

func TestAccount_RevokedTokenGoesToSignup(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")
	s.backend.Fail(http.MethodGet, "/auth/v1/user", http.StatusUnauthorized, "invalid JWT: unable to parse or verify signature")

	for _, resp := range []response{
		s.get(RouteAccount),
		s.postForm(RouteWriterApplication, url.Values{"bio": {strings.Repeat("x", 80)}}),
	} {
		assert.Equal(t, http.StatusSeeOther, resp.status)
		assert.Equal(t, RouteSignup, resp.header.Get("Location"))
	}
	assert.Empty(t, s.backend.Rows(store.TableApplications))
	assert.NotEmpty(t, s.backend.Calls(http.MethodGet, "/auth/v1/user"))
}

func TestAccount_Show(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")

	resp := s.get(RouteAccount)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Welcome, Test user!")
	assert.Contains(t, resp.body, `id="become-writer-button"`)
	assert.NotContains(t, resp.body, `id="admin-panel-button"`)
}

func TestAccount_AdminSeesPanelButton(t *testing.T) {
	s := newSite(t)
	s.login("root@example.com", "admin")

	resp := s.get(RouteAccount)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `id="admin-panel-button"`)
	assert.NotContains(t, resp.body, `id="become-writer-button"`)
}

func TestApply_ShortBioRejectedLocally(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")

	resp := s.postForm(RouteWriterApplication, url.Values{"bio": {"I like music."}})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, MsgBioTooShort)
	assert.Contains(t, resp.body, "I like music.</textarea>")

	assert.Empty(t, s.backend.Calls(http.MethodPost, "/rest/v1/"+store.TableApplications))
	assert.Empty(t, s.backend.Calls(http.MethodPatch, "/rest/v1/"+store.TableProfiles))
}

func TestApply(t *testing.T) {
	s := newSite(t)
	userID := s.login("reader@example.com", "user")
	bio := strings.Repeat("I compose chamber music for strings. ", 3)

	resp := s.postForm(RouteWriterApplication, url.Values{"bio": {bio}})
	assert.Equal(t, RouteAccount, resp.header.Get("Location"))
	page := s.follow(resp)
	assert.Contains(t, page.body, MsgApplicationSent)

	rows := s.backend.Rows(store.TableApplications)
	require.Len(t, rows, 1)
	assert.Equal(t, userID, rows[0]["user_id"])
	assert.Equal(t, "pending", rows[0]["status"])
}

func TestApply_RemoteFailure(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")
	s.backend.Fail(http.MethodPost, "/rest/v1/"+store.TableApplications, http.StatusForbidden, "new row violates row-level security policy")

	page := s.follow(s.postForm(RouteWriterApplication, url.Values{"bio": {strings.Repeat("b", 60)}}))
	assert.Contains(t, page.body, MsgApplicationFailed+"new row violates row-level security policy")
}

func TestApply_AdminIsNotEligible(t *testing.T) {
	s := newSite(t)
	adminID := s.login("root@example.com", "admin")

	page := s.follow(s.postForm(RouteWriterApplication, url.Values{"bio": {strings.Repeat("b", 60)}}))
	assert.Contains(t, page.body, MsgNotEligible)
	assert.Empty(t, s.backend.Rows(store.TableApplications))
	assert.Equal(t, "admin", s.backend.Row(store.TableProfiles, adminID)["role"])
}

func TestApply_SecondApplicationWhilePending(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")
	bio := url.Values{"bio": {strings.Repeat("b", 60)}}

	s.follow(s.postForm(RouteWriterApplication, bio))
	page := s.follow(s.postForm(RouteWriterApplication, bio))
	assert.Contains(t, page.body, MsgAlreadyApplied)
	assert.Len(t, s.backend.Rows(store.TableApplications), 1)
}

func TestApply_InsertFailureCanRetry(t *testing.T) {
	s := newSite(t)
	s.login("reader@example.com", "user")
	s.backend.Fail(http.MethodPost, "/rest/v1/"+store.TableApplications, http.StatusInternalServerError, "internal error")

	page := s.follow(s.postForm(RouteWriterApplication, url.Values{"bio": {strings.Repeat("b", 60)}}))
	assert.Contains(t, page.body, MsgApplicationFailed+"internal error")
	assert.Contains(t, page.body, `id="become-writer-button"`)
	assert.NotContains(t, page.body, "Application Pending")
}
