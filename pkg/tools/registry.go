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

// Package tools defines the masc_* tool surface: every tool carries a
// JSON schema, a category for mode filtering, and a handler that calls
// into the Room Store. The registry validates arguments before dispatch
// and suggests near-miss names for typos.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/xeipuuv/gojsonschema"

	"github.com/teradata-labs/masc/pkg/drift"
	"github.com/teradata-labs/masc/pkg/masc"
	"github.com/teradata-labs/masc/pkg/protocol"
	"github.com/teradata-labs/masc/pkg/room"
)

// HandlerFunc executes one tool call. args is the raw arguments object;
// the registry has already validated it against the tool's schema.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Tool is one registered masc_* tool.
type Tool struct {
	Name        string
	Description string
	Category    string
	InputSchema map[string]interface{}
	Handler     HandlerFunc
}

// Deps are the collaborators tool handlers close over.
type Deps struct {
	Store *room.Store
	Drift drift.Config
	// Rng drives stochastic agent selection; tests seed it.
	Rng *rand.Rand
}

// Registry holds the full tool surface in registration order.
type Registry struct {
	deps  Deps
	tools map[string]*Tool
	names []string
}

// NewRegistry builds the registry with every category registered.
func NewRegistry(deps Deps) *Registry {
	if deps.Rng == nil {
		deps.Rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // selection, not crypto
	}
	r := &Registry{
		deps:  deps,
		tools: make(map[string]*Tool),
	}
	r.registerCore()
	r.registerComm()
	r.registerVoting()
	r.registerPortal()
	r.registerCellular()
	r.registerInterrupt()
	r.registerCache()
	r.registerTempo()
	r.registerHealth()
	r.registerDiscovery()
	r.registerCost()
	r.registerDashboard()
	return r
}

func (r *Registry) register(t Tool) {
	if _, dup := r.tools[t.Name]; dup {
		panic(fmt.Sprintf("duplicate tool %q", t.Name))
	}
	r.tools[t.Name] = &t
	r.names = append(r.names, t.Name)
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools whose category is enabled, in registration
// order. A nil enabled set lists everything.
func (r *Registry) List(enabled map[string]bool) []protocol.Tool {
	out := make([]protocol.Tool, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		if enabled != nil && !enabled[t.Category] {
			continue
		}
		out = append(out, protocol.Tool{
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// Suggest returns up to three tool names close to the given one.
func (r *Registry) Suggest(name string) []string {
	matches := fuzzy.Find(name, r.names)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// Call validates and executes one tool invocation. enabled is the active
// mode's category set; a tool outside it fails with tool_disabled.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}, enabled map[string]bool) (*protocol.CallToolResult, error) {
	t, ok := r.tools[name]
	if !ok {
		err := masc.NotFound("unknown tool %q", name)
		if s := r.Suggest(name); len(s) > 0 {
			err = err.WithDetail("did_you_mean", s)
		}
		return nil, err
	}
	if enabled != nil && !enabled[t.Category] {
		return nil, masc.ToolDisabled("tool %q (category %s) is not in the active mode", name, t.Category)
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validate(t.InputSchema, args); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, masc.InvalidArgument("encode arguments: %v", err)
	}

	result, err := t.Handler(ctx, raw)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return protocol.TextResult(string(body)), nil
}

func validate(schema, args map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return masc.InvalidArgument("schema validation: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return masc.InvalidArgument("invalid arguments: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// schemaProperty is one field of an object schema.
type schemaProperty struct {
	name     string
	typ      string
	desc     string
	required bool
	enum     []string
	items    string
}

func prop(name, typ, desc string) schemaProperty {
	return schemaProperty{name: name, typ: typ, desc: desc}
}

func reqProp(name, typ, desc string) schemaProperty {
	return schemaProperty{name: name, typ: typ, desc: desc, required: true}
}

func enumProp(name, desc string, required bool, values ...string) schemaProperty {
	return schemaProperty{name: name, typ: "string", desc: desc, required: required, enum: values}
}

// arrayProp declares an array field with homogeneous item type.
func arrayProp(name, items, desc string) schemaProperty {
	return schemaProperty{name: name, typ: "array", desc: desc, items: items}
}

func reqArrayProp(name, items, desc string) schemaProperty {
	p := arrayProp(name, items, desc)
	p.required = true
	return p
}

func objectSchema(props ...schemaProperty) map[string]interface{} {
	schema := map[string]interface{}{"type": "object"}
	if len(props) == 0 {
		return schema
	}
	properties := make(map[string]interface{}, len(props))
	var required []string
	for _, p := range props {
		field := map[string]interface{}{
			"type":        p.typ,
			"description": p.desc,
		}
		if len(p.enum) > 0 {
			field["enum"] = p.enum
		}
		if p.typ == "array" {
			field["items"] = map[string]interface{}{"type": p.items}
		}
		properties[p.name] = field
		if p.required {
			required = append(required, p.name)
		}
	}
	schema["properties"] = properties
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
