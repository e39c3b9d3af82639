// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the cookie session manager and keeps the signed-in
// identity in it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"

	"github.com/composerunion/composerunion/internal/config"
	"github.com/composerunion/composerunion/internal/gateway"
	"github.com/composerunion/composerunion/internal/model"
	"github.com/composerunion/composerunion/internal/store"
)

// Session keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserID       = "user_id"
	KeyUserEmail    = "user_email"
	KeyPKCEVerifier = "pkce_verifier"
)

// Lifetime is how long a session lasts without activity limits.
const Lifetime = 24 * time.Hour

// New creates a session manager with the given store. A nil store keeps sessions
// in memory.
func New(st scs.Store, isDev bool) *scs.SessionManager {
	sm := scs.New()
	if st != nil {
		sm.Store = st
	}

	sm.Lifetime = Lifetime
	sm.Cookie.Name = "cu_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm
}

// OpenStore opens the session store selected by configuration. The returned
// close function releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config) (scs.Store, func() error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreSQLite:
		db, err := store.NewDB(cfg.SessionDBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(db, store.DialectSQLite); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return NewSQLiteStore(db), db.Close, nil

	case config.SessionStoreMySQL:
		db, err := store.NewMySQLDB(cfg.SessionMySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(db, store.DialectMySQL); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		ms := mysqlstore.New(db)
		return ms, func() error {
			ms.StopCleanup()
			return db.Close()
		}, nil

	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return goredisstore.New(client), client.Close, nil

	default:
		return nil, func() error { return nil }, nil
	}
}

// NewSQLiteStore wraps a migrated session database.
func NewSQLiteStore(db *sql.DB) scs.Store {
	return sqlite3store.New(db)
}

// Identity is the signed-in user as remembered by the session.
type Identity struct {
	UserID       model.ID
	Email        string
	AccessToken  string
	RefreshToken string
}

// SignedIn reports whether the identity holds a session.
func (i Identity) SignedIn() bool {
	return i.AccessToken != "" && i.UserID != ""
}

// Save stores a gateway session. The session token is renewed first so a
// sign-in never reuses a pre-login session id.
func Save(ctx context.Context, sm *scs.SessionManager, s *gateway.Session) error {
	if s == nil {
		return errors.New("no session to save")
	}
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, KeyAccessToken, s.AccessToken)
	sm.Put(ctx, KeyRefreshToken, s.RefreshToken)
	sm.Put(ctx, KeyUserID, s.User.ID)
	sm.Put(ctx, KeyUserEmail, s.User.Email)
	return nil
}

// UpdateTokens replaces the token pair after a refresh.
func UpdateTokens(ctx context.Context, sm *scs.SessionManager, s *gateway.Session) {
	sm.Put(ctx, KeyAccessToken, s.AccessToken)
	sm.Put(ctx, KeyRefreshToken, s.RefreshToken)
}

// Load returns the identity stored in the session.
func Load(ctx context.Context, sm *scs.SessionManager) Identity {
	return Identity{
		UserID:       model.ID(sm.GetString(ctx, KeyUserID)),
		Email:        sm.GetString(ctx, KeyUserEmail),
		AccessToken:  sm.GetString(ctx, KeyAccessToken),
		RefreshToken: sm.GetString(ctx, KeyRefreshToken),
	}
}

// Clear forgets the signed-in identity but keeps the session, so a toast set
// afterwards still reaches the next page.
func Clear(ctx context.Context, sm *scs.SessionManager) error {
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUserID, KeyUserEmail, KeyPKCEVerifier} {
		sm.Remove(ctx, k)
	}
	return sm.RenewToken(ctx)
}
