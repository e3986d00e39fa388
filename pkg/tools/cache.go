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
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teradata-labs/masc/pkg/masc"
)

func (r *Registry) registerCache() {
	s := r.deps.Store

	r.register(Tool{
		Name:        "masc_cache_set",
		Description: "Store a shared value. Keys are sanitised; TTL 0 means forever.",
		Category:    "cache",
		InputSchema: objectSchema(
			reqProp("key", "string", "Cache key"),
			reqProp("value", "string", "Value to store"),
			prop("ttl", "number", "Seconds until expiry; 0 keeps it forever"),
			arrayProp("tags", "string", "Labels for filtered listing"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Key   string   `json:"key"`
				Value string   `json:"value"`
				TTL   float64  `json:"ttl"`
				Tags  []string `json:"tags"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			ttl := time.Duration(p.TTL * float64(time.Second))
			return s.CacheSet(ctx, p.Key, p.Value, ttl, p.Tags)
		},
	})

	r.register(Tool{
		Name:        "masc_cache_get",
		Description: "Read a cached value. Expired entries read as not_found.",
		Category:    "cache",
		InputSchema: objectSchema(
			reqProp("key", "string", "Cache key"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Key string `json:"key"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			return s.CacheGet(ctx, p.Key)
		},
	})

	r.register(Tool{
		Name:        "masc_cache_delete",
		Description: "Delete a cached value.",
		Category:    "cache",
		InputSchema: objectSchema(
			reqProp("key", "string", "Cache key"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Key string `json:"key"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			if err := s.CacheDelete(ctx, p.Key); err != nil {
				return nil, err
			}
			return map[string]interface{}{"deleted": true, "key": p.Key}, nil
		},
	})

	r.register(Tool{
		Name:        "masc_cache_list",
		Description: "List live cache entries, optionally filtered by tag. Values are omitted.",
		Category:    "cache",
		InputSchema: objectSchema(
			prop("tag", "string", "Only entries carrying this tag"),
		),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var p struct {
				Tag string `json:"tag"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, masc.InvalidArgument("decode arguments: %v", err)
			}
			entries, err := s.CacheList(ctx, p.Tag)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"entries": entries}, nil
		},
	})
}
