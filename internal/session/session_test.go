// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/composerunion/composerunion/internal/config"
	"github.com/composerunion/composerunion/internal/gateway"
)

func TestNew_DevMode(t *testing.T) {
	sm := New(nil, true)

	if sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = false in dev mode")
	}
	if !sm.Cookie.HttpOnly {
		t.Error("expected Cookie.HttpOnly = true")
	}
	if sm.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", sm.Cookie.SameSite)
	}
	if sm.Lifetime != Lifetime {
		t.Errorf("Lifetime = %v, want %v", sm.Lifetime, Lifetime)
	}
}

func TestNew_ProdMode(t *testing.T) {
	sm := New(nil, false)
	if !sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = true in production")
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := &config.Config{
		SessionStore:  config.SessionStoreSQLite,
		SessionDBPath: filepath.Join(t.TempDir(), "sessions.db"),
	}
	st, closeFn, err := OpenStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer func() { _ = closeFn() }()

	exp := "token-1"
	if err := st.Commit(exp, []byte("data"), farFuture()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b, found, err := st.Find(exp)
	if err != nil || !found || string(b) != "data" {
		t.Fatalf("Find = %q, %v, %v", b, found, err)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	st, closeFn, err := OpenStore(context.Background(), &config.Config{SessionStore: config.SessionStoreMemory})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if st != nil {
		t.Error("memory store should leave the scs default in place")
	}
	if err := closeFn(); err != nil {
		t.Error(err)
	}
}

func TestOpenStore_BadRedisURL(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{
		SessionStore: config.SessionStoreRedis,
		RedisURL:     "not-a-redis-url",
	})
	if err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestOpenStore_MySQLUnreachable(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{
		SessionStore:    config.SessionStoreMySQL,
		SessionMySQLDSN: "cu:secret@tcp(127.0.0.1:1)/composerunion?timeout=500ms",
	})
	if err == nil {
		t.Fatal("expected error when the session database is unreachable")
	}
}

func TestSaveLoadClear(t *testing.T) {
	sm := New(nil, true)

	run := func(fn func(ctx context.Context)) {
		sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(r.Context())
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	run(func(ctx context.Context) {
		if Load(ctx, sm).SignedIn() {
			t.Fatal("new session should be signed out")
		}

		err := Save(ctx, sm, &gateway.Session{
			AccessToken:  "at",
			RefreshToken: "rt",
			User:         gateway.User{ID: "u-1", Email: "me@example.com"},
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}

		id := Load(ctx, sm)
		if !id.SignedIn() || id.UserID != "u-1" || id.Email != "me@example.com" || id.RefreshToken != "rt" {
			t.Fatalf("Load = %+v", id)
		}

		UpdateTokens(ctx, sm, &gateway.Session{AccessToken: "at2", RefreshToken: "rt2"})
		if got := Load(ctx, sm).AccessToken; got != "at2" {
			t.Errorf("AccessToken = %q, want at2", got)
		}

		if err := Clear(ctx, sm); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if Load(ctx, sm).SignedIn() {
			t.Error("identity should be cleared")
		}
	})

	if err := Save(context.Background(), scs.New(), nil); err == nil {
		t.Error("Save(nil) should fail")
	}
}

func farFuture() time.Time {
	return time.Now().Add(time.Hour)
}
