// Package toolregistry is the Tool Registry (§4.4): registers built-in
// tools and dynamically discovered MCP tools under one contract — name,
// JSON schema, invoke(args)->result — and validates call arguments against
// each tool's schema before dispatch.
package toolregistry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/metrics"
	"github.com/google/jsonschema-go/jsonschema"
)

// Invoker executes a tool call. ctx carries cancellation for the
// cooperative cancellation tree (§5).
type Invoker func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

type entry struct {
	spec    domain.ToolSpec
	invoke  Invoker
	schema  *jsonschema.Schema
}

// Registry holds the current set of registered tools.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	metrics *metrics.Registry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// SetMetrics attaches a metrics registry; instrumentation is a no-op until
// this is called.
func (r *Registry) SetMetrics(m *metrics.Registry) { r.metrics = m }

// Register adds spec under spec.Name. Re-registering the same name
// succeeds only if the origin matches (e.g. an MCP server's tool list
// refreshing after a reconnect); otherwise it fails with a NameConflict
// (herr.Tool) error.
func (r *Registry) Register(spec domain.ToolSpec, invoke Invoker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[spec.Name]; ok {
		if existing.spec.Origin != spec.Origin {
			return herr.New(herr.Tool, "toolregistry.Register")
		}
	}

	var compiled *jsonschema.Schema
	if spec.JSONSchema != nil {
		raw, err := json.Marshal(spec.JSONSchema)
		if err == nil {
			var s jsonschema.Schema
			if json.Unmarshal(raw, &s) == nil {
				compiled = &s
			}
		}
	}

	r.entries[spec.Name] = entry{spec: spec, invoke: invoke, schema: compiled}
	return nil
}

// Unregister removes name, typically called when an MCP server goes away.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// ListFilter bounds List's output to the tools a given turn may use.
type ListFilter struct {
	AllowedToolNames  []string // empty slice means "all builtin tools allowed"
	AllowedMCPServers []string // servers whose tools may be included
}

// List returns the tool manifest visible under filter, sorted by name.
func (r *Registry) List(filter ListFilter) []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowedTools := toSet(filter.AllowedToolNames)
	allowedServers := toSet(filter.AllowedMCPServers)

	var out []domain.ToolSpec
	for _, e := range r.entries {
		if e.spec.Origin.Builtin {
			if len(allowedTools) > 0 && !allowedTools[e.spec.Name] {
				continue
			}
		} else {
			if !allowedServers[e.spec.Origin.MCPServer] {
				continue
			}
		}
		out = append(out, e.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// Result is what Invoke returns on success or a structured tool-level
// failure — never a turn-level error (§4.7: tool errors are not fatal).
type Result struct {
	Value json.RawMessage
	OK    bool
	Kind  string // set when !OK: "invalid_args", "not_found", "internal"
	Msg   string
}

// Invoke validates args against the tool's schema, then dispatches. A
// schema-validation failure, an unknown tool, or the invoker returning an
// error all come back as a !OK Result rather than a Go error — only a
// cancelled context propagates as an error, since cancellation is not a
// tool-level outcome.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	start := time.Now()
	res, err := r.invoke(ctx, name, args)
	if r.metrics != nil {
		outcome := "ok"
		if !res.OK {
			outcome = res.Kind
		}
		if err != nil {
			outcome = "cancelled"
		}
		r.metrics.ToolInvocations.WithLabelValues(name, outcome).Inc()
		r.metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (r *Registry) invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Result{OK: false, Kind: "not_found", Msg: "unknown tool: " + name}, nil
	}

	if e.schema != nil {
		if err := validateAgainstSchema(e.schema, args); err != nil {
			return Result{OK: false, Kind: "invalid_args", Msg: err.Error()}, nil
		}
	}

	value, err := e.invoke(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{OK: false, Kind: "internal", Msg: err.Error()}, nil
	}
	return Result{Value: value, OK: true}, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return err
	}
	return resolved.Validate(v)
}
