// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/supabase-community/postgrest-go"
)

// filter is a deferred filter call, applied once the request kind is known.
type filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder

// Query is a table request under construction. Filters apply to selects, updates
// and deletes alike. A Query is not safe for reuse across goroutines.
type Query struct {
	c       *Client
	table   string
	columns string
	filters []filter
	single  bool
	count   bool
}

// From starts a query against a table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table}
}

// Select sets the column list, including embedded joins such as "*, profiles(full_name)".
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column string, value any) *Query {
	v := formatValue(value)
	q.filters = append(q.filters, func(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return f.Eq(column, v)
	})
	return q
}

// Neq filters rows where column differs from value.
func (q *Query) Neq(column string, value any) *Query {
	v := formatValue(value)
	q.filters = append(q.filters, func(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return f.Neq(column, v)
	})
	return q
}

// In filters rows where column is one of values.
func (q *Query) In(column string, values ...string) *Query {
	q.filters = append(q.filters, func(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return f.In(column, values)
	})
	return q
}

// Order sorts by column. Later calls add secondary sort keys.
func (q *Query) Order(column string, ascending bool) *Query {
	q.filters = append(q.filters, func(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return f.Order(column, &postgrest.OrderOpts{Ascending: ascending})
	})
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.filters = append(q.filters, func(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
		return f.Limit(n, "")
	})
	return q
}

// Single expects exactly one row. Zero rows yield an error matching ErrNotFound.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Count asks the backend for the exact number of matching rows.
func (q *Query) Count() *Query {
	q.count = true
	return q
}

// rest returns a table client that authorizes as the context's user.
func (q *Query) rest(ctx context.Context, op string) (*postgrest.Client, *observedTransport, context.CancelFunc) {
	tr, cancel := q.c.call(ctx, op+":"+q.table)
	pc := postgrest.NewClient(q.c.baseURL+"/rest/v1", "public", map[string]string{
		"apikey":        q.c.anonKey,
		"Authorization": "Bearer " + q.c.bearer(ctx),
	})
	pc.Transport.Parent = tr
	return pc, tr, cancel
}

func (q *Query) apply(f *postgrest.FilterBuilder) *postgrest.FilterBuilder {
	for _, fn := range q.filters {
		f = fn(f)
	}
	if q.single {
		f = f.Single()
	}
	return f
}

// Execute runs a select and decodes the rows into dst, which must be a pointer to
// a slice, or to a struct when Single was requested. dst may be nil for count-only
// queries. The returned count is -1 unless Count was requested.
func (q *Query) Execute(ctx context.Context, dst any) (int, error) {
	pc, tr, cancel := q.rest(ctx, "select")
	defer cancel()

	countMode := ""
	if q.count {
		countMode = "exact"
	}
	body, total, err := q.apply(pc.From(q.table).Select(q.columns, countMode, false)).Execute()
	if err != nil {
		return -1, tr.fail(err)
	}

	count := -1
	if q.count {
		count = int(total)
	}
	if dst != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return count, fmt.Errorf("decoding %s rows: %w", q.table, err)
		}
	}
	return count, nil
}

// Insert adds one row.
func (q *Query) Insert(ctx context.Context, row any) error {
	pc, tr, cancel := q.rest(ctx, "insert")
	defer cancel()
	if _, _, err := pc.From(q.table).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return tr.fail(err)
	}
	return nil
}

// Update patches every row matched by the filters.
func (q *Query) Update(ctx context.Context, patch any) error {
	pc, tr, cancel := q.rest(ctx, "update")
	defer cancel()
	if _, _, err := q.apply(pc.From(q.table).Update(patch, "minimal", "")).Execute(); err != nil {
		return tr.fail(err)
	}
	return nil
}

// Delete removes every row matched by the filters.
func (q *Query) Delete(ctx context.Context) error {
	pc, tr, cancel := q.rest(ctx, "delete")
	defer cancel()
	if _, _, err := q.apply(pc.From(q.table).Delete("minimal", "")).Execute(); err != nil {
		return tr.fail(err)
	}
	return nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
