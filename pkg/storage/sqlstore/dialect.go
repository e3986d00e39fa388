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
package sqlstore

import (
	"fmt"
	"strings"

	"github.com/teradata-labs/masc/pkg/masc"
)

// dialect carries the per-engine SQL the generic store cannot express
// portably: DDL, upsert, insert-ignore, and placeholder style.
type dialect struct {
	name   string
	driver string

	schema []string
	upsert string // INSERT with conflict-update on masc_kv
	ignore string // INSERT with conflict-ignore on masc_kv

	// rebind converts ?-style placeholders when the engine needs $N.
	rebind func(string) string

	// pragmas run once per connection pool at open.
	pragmas []string
}

func identity(q string) string { return q }

// rebindDollar rewrites ? placeholders to $1..$N for postgres.
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS masc_kv (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS masc_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log_key TEXT NOT NULL,
			line TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_masc_logs_key ON masc_logs(log_key, id)`,
		`CREATE TABLE IF NOT EXISTS masc_locks (
			scope TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			expires_at REAL NOT NULL
		)`,
	},
	upsert: `INSERT INTO masc_kv (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
	ignore: `INSERT OR IGNORE INTO masc_kv (k, v) VALUES (?, ?)`,
	rebind: identity,
	pragmas: []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA foreign_keys=ON`,
	},
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS masc_kv (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS masc_logs (
			id BIGSERIAL PRIMARY KEY,
			log_key TEXT NOT NULL,
			line TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_masc_logs_key ON masc_logs(log_key, id)`,
		`CREATE TABLE IF NOT EXISTS masc_locks (
			scope TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			expires_at DOUBLE PRECISION NOT NULL
		)`,
	},
	upsert: `INSERT INTO masc_kv (k, v) VALUES (?, ?)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`,
	ignore: `INSERT INTO masc_kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO NOTHING`,
	rebind: rebindDollar,
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS masc_kv (
			k VARCHAR(512) PRIMARY KEY,
			v LONGBLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS masc_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			log_key VARCHAR(512) NOT NULL,
			line TEXT NOT NULL,
			INDEX idx_masc_logs_key (log_key, id)
		)`,
		`CREATE TABLE IF NOT EXISTS masc_locks (
			scope VARCHAR(512) PRIMARY KEY,
			token VARCHAR(64) NOT NULL,
			expires_at DOUBLE NOT NULL
		)`,
	},
	upsert: `INSERT INTO masc_kv (k, v) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE v = VALUES(v)`,
	ignore: `INSERT IGNORE INTO masc_kv (k, v) VALUES (?, ?)`,
	rebind: identity,
}

// dialectFor resolves a dialect by factory name.
func dialectFor(name string) (dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	}
	return dialect{}, masc.InvalidArgument("unknown sql dialect %q", name)
}

// escapeLike escapes %, _ and \ so a key prefix can be used in LIKE.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// transientSQL reports whether a driver error is worth retrying: lock
// contention, deadlocks, and connection drops.
func transientSQL(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{"busy", "locked", "deadlock", "timeout", "connection re", "broken pipe", "serialization"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// wrapSQL classifies a driver error into the backend taxonomy.
func wrapSQL(op string, err error) error {
	if transientSQL(err) {
		return masc.BackendTransient("%s: %v", op, err)
	}
	return masc.BackendFatal("%s: %v", op, err)
}

// isConstraintViolation matches the duplicate-key message shapes of all
// three engines; lock acquisition treats these as "someone else won".
func isConstraintViolation(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range []string{"unique", "duplicate", "constraint"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
