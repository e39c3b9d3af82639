// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/composerunion/composerunion/internal/gateway"
)

// Row is a table row as the backend stores it.
type Row map[string]any

// Call is one request seen by the Backend.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type account struct {
	id       string
	email    string
	password string
	metadata map[string]any
}

type failure struct {
	method  string
	path    string
	status  int
	message string
}

// Backend is an in-memory imitation of the hosted backend's table, auth and
// storage APIs, served over httptest. It understands the subset of the table
// API the site uses: eq, neq and in filters, order, limit, single-object reads,
// exact counts, one-level profile joins and a unique slug on blog_posts.
type Backend struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	tables   map[string][]Row
	objects  map[string][]byte
	accounts map[string]*account
	codes    map[string]string
	failures []failure
	calls    []Call
	seq      int
	clock    time.Time
}

// AnonKey is the anonymous key the fake accepts.
const AnonKey = "test-anon-key"

// NewBackend starts a fake backend that is shut down when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		t:        t,
		tables:   make(map[string][]Row),
		objects:  make(map[string][]byte),
		accounts: make(map[string]*account),
		codes:    make(map[string]string),
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of the fake.
func (b *Backend) URL() string {
	return b.server.URL
}

// Client returns a gateway client pointed at the fake.
func (b *Backend) Client() *gateway.Client {
	b.t.Helper()
	c, err := gateway.New(gateway.Config{URL: b.server.URL, AnonKey: AnonKey})
	if err != nil {
		b.t.Fatalf("gateway.New: %v", err)
	}
	return c
}

// Seed inserts a row, filling id and timestamps the way the backend defaults them,
// and returns the stored id.
func (b *Backend) Seed(table string, row Row) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertLocked(table, row)
}

// Rows returns a copy of a table.
func (b *Backend) Rows(table string) []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.tables[table]))
	for i, r := range b.tables[table] {
		out[i] = cloneRow(r)
	}
	return out
}

// Row returns the row with the given id, or nil.
func (b *Backend) Row(table, id string) Row {
	for _, r := range b.Rows(table) {
		if fmt.Sprint(r["id"]) == id {
			return r
		}
	}
	return nil
}

// Object returns a stored object by bucket-relative key.
func (b *Backend) Object(bucket, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[bucket+"/"+key]
	return data, ok
}

// Objects returns the number of stored objects.
func (b *Backend) Objects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// Calls returns the requests received for a method and path suffix, such as
// ("PATCH", "/rest/v1/profiles"). An empty method matches any method.
func (b *Backend) Calls(method, path string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if (method == "" || c.Method == method) && strings.HasSuffix(c.Path, path) {
			out = append(out, c)
		}
	}
	return out
}

// Fail makes every request matching method and path suffix fail with status and
// message until ClearFailures is called.
func (b *Backend) Fail(method, path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, path: path, status: status, message: message})
}

// ClearFailures removes all injected failures.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
}

// AddAccount registers a confirmed account and its profile, returning the user id.
func (b *Backend) AddAccount(email, password, fullName, role string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addAccountLocked(email, password, map[string]any{"full_name": fullName}, role)
}

// AddOAuthCode makes an authorization code exchangeable for a session of email.
func (b *Backend) AddOAuthCode(code, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[code] = email
}

// AccessToken issues a token for a registered account, as a password sign-in would.
func (b *Backend) AccessToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accounts[strings.ToLower(email)]
	if a == nil {
		b.t.Fatalf("no account for %s", email)
	}
	return issueToken(a, time.Hour)
}

func (b *Backend) addAccountLocked(email, password string, metadata map[string]any, role string) string {
	b.seq++
	id := fmt.Sprintf("00000000-0000-4000-8000-%012d", b.seq)
	b.accounts[strings.ToLower(email)] = &account{id: id, email: email, password: password, metadata: metadata}
	profile := Row{"id": id, "role": role, "full_name": metadata["full_name"]}
	b.insertLocked("profiles", profile)
	return id
}

func (b *Backend) insertLocked(table string, row Row) string {
	row = cloneRow(row)
	if _, ok := row["id"]; !ok {
		b.seq++
		row["id"] = strconv.Itoa(b.seq)
	}
	b.clock = b.clock.Add(time.Minute)
	now := b.clock.Format(time.RFC3339)
	switch table {
	case "writer_applications":
		setDefault(row, "status", "pending")
		setDefault(row, "submitted_at", now)
	case "profiles":
		setDefault(row, "role", "user")
		setDefault(row, "created_at", now)
	default:
		setDefault(row, "created_at", now)
	}
	b.tables[table] = append(b.tables[table], row)
	return fmt.Sprint(row["id"])
}

func setDefault(r Row, key string, v any) {
	if cur, ok := r[key]; !ok || cur == nil {
		r[key] = v
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})

	if r.Header.Get("apikey") != AnonKey {
		writeError(w, http.StatusUnauthorized, "", "Invalid API key")
		return
	}
	for _, f := range b.failures {
		if (f.method == "" || f.method == r.Method) && strings.HasSuffix(r.URL.Path, f.path) {
			writeError(w, f.status, "", f.message)
			return
		}
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		b.serveTable(w, r, strings.TrimPrefix(r.URL.Path, "/rest/v1/"), body)
	case strings.HasPrefix(r.URL.Path, "/auth/v1/"):
		b.serveAuth(w, r, strings.TrimPrefix(r.URL.Path, "/auth/v1/"), body)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		b.serveStorage(w, r, strings.TrimPrefix(r.URL.Path, "/storage/v1/object/"), body)
	default:
		writeError(w, http.StatusNotFound, "", "not found")
	}
}

func (b *Backend) serveTable(w http.ResponseWriter, r *http.Request, table string, body []byte) {
	q := r.URL.Query()
	matched := b.filter(table, q)

	switch r.Method {
	case http.MethodGet:
		rows := b.order(matched, q.Get("order"))
		total := len(rows)
		if n, err := strconv.Atoi(q.Get("limit")); err == nil && n < len(rows) {
			rows = rows[:n]
		}
		out := make([]Row, len(rows))
		for i, row := range rows {
			out[i] = b.project(row, q.Get("select"))
		}
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			if total == 0 {
				w.Header().Set("Content-Range", "*/0")
			} else {
				w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", len(out)-1, total))
			}
		}
		if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
			if len(out) != 1 {
				writeError(w, http.StatusNotAcceptable, "PGRST116",
					"JSON object requested, multiple (or no) rows returned")
				return
			}
			writeJSON(w, http.StatusOK, out[0])
			return
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var row Row
		if err := json.Unmarshal(body, &row); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
			return
		}
		if table == "blog_posts" {
			for _, existing := range b.tables[table] {
				if existing["slug"] == row["slug"] {
					writeError(w, http.StatusConflict, "23505",
						`duplicate key value violates unique constraint "blog_posts_slug_key"`)
					return
				}
			}
		}
		b.insertLocked(table, row)
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch Row
		if err := json.Unmarshal(body, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
			return
		}
		for _, row := range matched {
			for k, v := range patch {
				row[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := b.tables[table][:0]
		for _, row := range b.tables[table] {
			if !containsRow(matched, row) {
				kept = append(kept, row)
			}
		}
		b.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

// filter returns the live rows matching every eq/neq/in filter in q.
func (b *Backend) filter(table string, q map[string][]string) []Row {
	var out []Row
	for _, row := range b.tables[table] {
		if matches(row, q) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row Row, q map[string][]string) bool {
	for col, exprs := range q {
		switch col {
		case "select", "order", "limit", "grant_type", "redirect_to":
			continue
		}
		val := fmt.Sprint(row[col])
		if row[col] == nil {
			val = "null"
		}
		for _, expr := range exprs {
			op, arg, _ := strings.Cut(expr, ".")
			switch op {
			case "eq":
				if val != arg {
					return false
				}
			case "neq":
				if val == arg {
					return false
				}
			case "in":
				found := false
				for _, item := range splitList(arg) {
					if item == val {
						found = true
					}
				}
				if !found {
					return false
				}
			}
		}
	}
	return true
}

func splitList(arg string) []string {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "("), ")")
	parts := strings.Split(arg, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"`)
	}
	return parts
}

func containsRow(rows []Row, target Row) bool {
	for _, r := range rows {
		if fmt.Sprint(r["id"]) == fmt.Sprint(target["id"]) {
			return true
		}
	}
	return false
}

func (b *Backend) order(rows []Row, orderBy string) []Row {
	out := append([]Row(nil), rows...)
	if orderBy == "" {
		return out
	}
	keys := strings.Split(orderBy, ",")
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			// col.dir, optionally followed by a nulls modifier.
			col, mods, _ := strings.Cut(k, ".")
			a, c := fmt.Sprint(out[i][col]), fmt.Sprint(out[j][col])
			if a == c {
				continue
			}
			if strings.HasPrefix(mods, "desc") {
				return a > c
			}
			return a < c
		}
		return false
	})
	return out
}

// project applies a select list. Only "profiles(full_name)" joins are resolved,
// through author_id or user_id.
func (b *Backend) project(row Row, sel string) Row {
	if sel == "" {
		sel = "*"
	}
	out := Row{}
	for _, col := range strings.Split(sel, ",") {
		col = strings.TrimSpace(col)
		switch {
		case col == "*":
			for k, v := range row {
				out[k] = v
			}
		case strings.HasPrefix(col, "profiles("):
			out["profiles"] = b.joinProfile(row)
		default:
			out[col] = row[col]
		}
	}
	return out
}

func (b *Backend) joinProfile(row Row) any {
	key := row["author_id"]
	if key == nil {
		key = row["user_id"]
	}
	for _, p := range b.tables["profiles"] {
		if fmt.Sprint(p["id"]) == fmt.Sprint(key) {
			return Row{"full_name": p["full_name"]}
		}
	}
	return nil
}

func (b *Backend) serveAuth(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	var in map[string]any
	_ = json.Unmarshal(body, &in)
	str := func(k string) string { s, _ := in[k].(string); return s }

	switch path {
	case "health":
		writeJSON(w, http.StatusOK, map[string]string{"name": "fake"})

	case "signup":
		email := str("email")
		if _, ok := b.accounts[strings.ToLower(email)]; ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
			})
			return
		}
		if len(str("password")) < 6 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters.",
			})
			return
		}
		meta, _ := in["data"].(map[string]any)
		b.addAccountLocked(email, str("password"), meta, "user")
		writeJSON(w, http.StatusOK, b.sessionFor(b.accounts[strings.ToLower(email)]))

	case "token":
		var a *account
		switch r.URL.Query().Get("grant_type") {
		case "password":
			a = b.accounts[strings.ToLower(str("email"))]
			if a == nil || a.password != str("password") {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": "invalid_grant", "error_description": "Invalid login credentials",
				})
				return
			}
		case "refresh_token":
			email, _, ok := strings.Cut(str("refresh_token"), "|refresh")
			if ok {
				a = b.accounts[email]
			}
		case "pkce":
			if email, ok := b.codes[str("code")]; ok {
				a = b.accounts[strings.ToLower(email)]
			}
		}
		if a == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "invalid_grant", "error_description": "Invalid grant",
			})
			return
		}
		writeJSON(w, http.StatusOK, b.sessionFor(a))

	case "user":
		a := b.accountFromBearer(r)
		if a == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": a.id, "email": a.email, "user_metadata": a.metadata})

	case "logout":
		w.WriteHeader(http.StatusNoContent)

	case "recover":
		writeJSON(w, http.StatusOK, map[string]any{})

	default:
		writeError(w, http.StatusNotFound, "", "not found")
	}
}

func (b *Backend) accountFromBearer(r *http.Request) *account {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := gateway.ParseClaims(tok)
	if err != nil || claims.Expired(0) {
		return nil
	}
	for _, a := range b.accounts {
		if a.id == claims.Subject {
			return a
		}
	}
	return nil
}

func (b *Backend) sessionFor(a *account) map[string]any {
	return map[string]any{
		"access_token":  issueToken(a, time.Hour),
		"refresh_token": strings.ToLower(a.email) + "|refresh",
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"user":          map[string]any{"id": a.id, "email": a.email, "user_metadata": a.metadata},
	}
}

func issueToken(a *account, ttl time.Duration) string {
	claims := gateway.Claims{
		Email: a.email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-backend-secret"))
	return tok
}

func (b *Backend) serveStorage(w http.ResponseWriter, r *http.Request, key string, body []byte) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if _, exists := b.objects[key]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{
			"statusCode": "409", "error": "Duplicate", "message": "The resource already exists",
		})
		return
	}
	b.objects[key] = body
	writeJSON(w, http.StatusOK, map[string]string{"Key": key})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message})
}
