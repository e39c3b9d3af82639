// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for database/sql
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// Session database dialects. Each has its own directory under migrations/.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// gooseDialects maps a session database dialect to its goose dialect.
var gooseDialects = map[string]goose.Dialect{
	DialectSQLite: goose.DialectSQLite3,
	DialectMySQL:  goose.DialectMySQL,
}

// DBConfig holds connection pool options for the local session database.
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultDBConfig returns defaults suited to a small session table.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// NewDB opens the SQLite database that backs server-side sessions on a single instance.
func NewDB(path string) (*sql.DB, error) {
	return NewDBWithConfig(path, DefaultDBConfig())
}

// NewDBWithConfig opens the session database with a custom pool configuration.
func NewDBWithConfig(path string, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging session database: %w", err)
	}

	return db, nil
}

// NewMySQLDB opens a shared MySQL database for server-side sessions, used when
// several instances of the site must see the same sessions.
func NewMySQLDB(dsn string) (*sql.DB, error) {
	return NewMySQLDBWithConfig(dsn, DefaultDBConfig())
}

// NewMySQLDBWithConfig opens the MySQL session database with a custom pool configuration.
func NewMySQLDBWithConfig(dsn string, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to session database: %w", err)
	}

	return db, nil
}

// Migrate creates or upgrades the session schema for the given dialect.
func Migrate(db *sql.DB, dialect string) error {
	gd, ok := gooseDialects[dialect]
	if !ok {
		return fmt.Errorf("unknown session database dialect %q", dialect)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(string(gd)); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+dialect); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
