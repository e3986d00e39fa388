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
package backend

import (
	"context"
	"os"
	"path/filepath"

	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/storage/boltstore"
	"github.com/teradata-labs/masc/pkg/storage/fsbackend"
	"github.com/teradata-labs/masc/pkg/storage/memory"
	"github.com/teradata-labs/masc/pkg/storage/redisbackend"
	"github.com/teradata-labs/masc/pkg/storage/sqlstore"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"                       // mysql
	_ "github.com/lib/pq"                                    // postgres
	_ "github.com/teradata-labs/masc/internal/sqlitedriver"  // sqlite3
)

// Options selects and parameterises a backend implementation.
type Options struct {
	// Type is one of memory, fs, redis, postgres, mysql, sqlite, bolt.
	Type string

	// Root is the .masc directory; used by fs and as the default location
	// of the sqlite and bolt files.
	Root string

	RedisURL    string
	PostgresURL string
	MySQLDSN    string
	SQLitePath  string
	BoltPath    string
}

// New builds the Backend named by opts.Type. An empty type defaults to
// memory.
func New(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Type {
	case "", "memory":
		return memory.New(), nil

	case "fs":
		root := opts.Root
		if root == "" {
			root = ".masc"
		}
		return fsbackend.New(root)

	case "redis":
		if opts.RedisURL == "" {
			return nil, masc.InvalidArgument("redis backend requires MASC_REDIS_URL")
		}
		return redisbackend.New(opts.RedisURL)

	case "postgres":
		if opts.PostgresURL == "" {
			return nil, masc.InvalidArgument("postgres backend requires MASC_POSTGRES_URL")
		}
		return sqlstore.Open(ctx, "postgres", opts.PostgresURL)

	case "mysql":
		if opts.MySQLDSN == "" {
			return nil, masc.InvalidArgument("mysql backend requires MASC_MYSQL_DSN")
		}
		return sqlstore.Open(ctx, "mysql", opts.MySQLDSN)

	case "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(defaultRoot(opts.Root), "masc.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, masc.BackendFatal("create dir for %s: %v", path, err)
		}
		return sqlstore.Open(ctx, "sqlite", path)

	case "bolt":
		path := opts.BoltPath
		if path == "" {
			path = filepath.Join(defaultRoot(opts.Root), "masc.bolt")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, masc.BackendFatal("create dir for %s: %v", path, err)
		}
		return boltstore.Open(path)
	}
	return nil, masc.InvalidArgument("unsupported storage type %q (supported: memory, fs, redis, postgres, mysql, sqlite, bolt)", opts.Type)
}

func defaultRoot(root string) string {
	if root == "" {
		return ".masc"
	}
	return root
}
