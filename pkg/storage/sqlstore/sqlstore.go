// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlstore implements the storage backend on a relational database
// through database/sql. One code path serves sqlite, postgres and mysql; a
// small dialect table supplies the engine-specific DDL and conflict
// clauses. Import side effects register the drivers:
//
//	_ "github.com/lib/pq"                                 // postgres
//	_ "github.com/go-sql-driver/mysql"                    // mysql
//	_ "github.com/teradata-labs/masc/internal/sqlitedriver" // sqlite3
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/masc/pkg/masc"
)

// Store is a Backend over one *sql.DB pool.
type Store struct {
	db      *sql.DB
	dialect dialect

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// lockRowExpiry bounds how long a crashed process holds a scope row.
const lockRowExpiry = 30 * time.Second

// Open connects to the named dialect (sqlite, postgres, mysql) with its
// driver-specific DSN, applies pragmas, and creates the schema.
func Open(ctx context.Context, dialectName, dsn string) (*Store, error) {
	d, err := dialectFor(dialectName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, masc.BackendFatal("open %s: %v", d.name, err)
	}
	if d.name == "sqlite" {
		// A single writer avoids SQLITE_BUSY storms under WAL.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, locks: make(map[string]chan struct{})}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, pragma := range s.dialect.pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return masc.BackendFatal("pragma %q: %v", pragma, err)
		}
	}
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return masc.BackendFatal("create schema: %v", err)
		}
	}
	return nil
}

func (s *Store) q(query string) string { return s.dialect.rebind(query) }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT v FROM masc_kv WHERE k = ?`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, masc.NotFound("key %q not found", key)
	}
	if err != nil {
		return nil, wrapSQL("sql get", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q(s.dialect.upsert), key, value); err != nil {
		return wrapSQL("sql set", err)
	}
	return nil
}

// CAS relies on single-statement atomicity: create-if-absent is an
// insert-ignore whose affected-row count reveals the winner, and
// compare-and-swap is an UPDATE guarded by the expected value.
func (s *Store) CAS(ctx context.Context, key string, expected, next []byte) (bool, error) {
	var res sql.Result
	var err error
	if expected == nil {
		res, err = s.db.ExecContext(ctx, s.q(s.dialect.ignore), key, next)
	} else {
		res, err = s.db.ExecContext(ctx,
			s.q(`UPDATE masc_kv SET v = ? WHERE k = ? AND v = ?`), next, key, expected)
	}
	if err != nil {
		return false, wrapSQL("sql cas", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapSQL("sql cas rows", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM masc_kv WHERE k = ?`), key); err != nil {
		return wrapSQL("sql delete", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT k FROM masc_kv WHERE k LIKE ? ESCAPE '\' ORDER BY k`),
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, wrapSQL("sql list", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, wrapSQL("sql list scan", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQL("sql list rows", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Append(ctx context.Context, logKey string, line string) error {
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO masc_logs (log_key, line) VALUES (?, ?)`), logKey, line); err != nil {
		return wrapSQL("sql append", err)
	}
	return nil
}

func (s *Store) ReadLog(ctx context.Context, logKey string, fromLine, limit int) ([]string, error) {
	if fromLine < 0 {
		fromLine = 0
	}
	if limit <= 0 {
		// LIMIT is required before OFFSET on sqlite/mysql; use a bound far
		// beyond any real log.
		limit = 1 << 30
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT line FROM masc_logs WHERE log_key = ? ORDER BY id LIMIT ? OFFSET ?`),
		logKey, limit, fromLine)
	if err != nil {
		return nil, wrapSQL("sql readlog", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, wrapSQL("sql readlog scan", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQL("sql readlog rows", err)
	}
	return lines, nil
}

// TruncateLog deletes the first n lines of a log. The nested derived table
// keeps mysql happy about deleting from a table referenced in a subquery.
func (s *Store) TruncateLog(ctx context.Context, logKey string, n int) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM masc_logs WHERE id IN (
			SELECT id FROM (
				SELECT id FROM masc_logs WHERE log_key = ? ORDER BY id LIMIT ?
			) AS doomed
		)`), logKey, n)
	if err != nil {
		return wrapSQL("sql truncate", err)
	}
	return nil
}

// Lock takes the in-process semaphore for the scope, then claims a row in
// masc_locks with a unique token and expiry so other processes queue behind
// it. A dead holder's row expires and is swept by the next acquirer.
func (s *Store) Lock(ctx context.Context, scope string) (func(), error) {
	s.lockMu.Lock()
	sem, ok := s.locks[scope]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[scope] = sem
	}
	s.lockMu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, masc.Cancelled("lock %q: %v", scope, ctx.Err())
	}

	token := uuid.NewString()
	for {
		now := float64(time.Now().UnixNano()) / float64(time.Second)
		s.db.ExecContext(ctx,
			s.q(`DELETE FROM masc_locks WHERE scope = ? AND expires_at < ?`), scope, now)

		res, err := s.db.ExecContext(ctx,
			s.q(`INSERT INTO masc_locks (scope, token, expires_at)
				SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM masc_locks WHERE scope = ?)`),
			scope, token, now+lockRowExpiry.Seconds(), scope)
		if err == nil {
			if n, raErr := res.RowsAffected(); raErr == nil && n > 0 {
				break
			}
		} else if !transientSQL(err) {
			// Unique-key races surface as constraint errors; poll again.
			msg := err.Error()
			if !isConstraintViolation(msg) {
				<-sem
				return nil, wrapSQL("sql lock", err)
			}
		}

		select {
		case <-ctx.Done():
			<-sem
			return nil, masc.Cancelled("lock %q: %v", scope, ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.db.ExecContext(rctx,
				s.q(`DELETE FROM masc_locks WHERE scope = ? AND token = ?`), scope, token)
			<-sem
		})
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return masc.BackendTransient("sql ping: %v", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Type identifies this backend in health output.
func (s *Store) Type() string { return s.dialect.name }
