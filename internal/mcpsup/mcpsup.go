// Package mcpsup is the MCP Supervisor (§4.5): spawns stdio subprocess MCP
// servers, runs the initialize handshake, lists and dispatches tools, and
// tears everything down on shutdown. Grounded on the teacher's
// internal/mcp.Manager, with two deliberate departures mandated by the
// spec: list_tools uses a fixed 5-second timeout that never fails start()
// (the teacher uses one 30s timeout for connect+list and aborts the
// connection on a list-tools failure), and server config is loaded the
// way §6 requires — both "mcpServers" and "servers" accepted, entries
// without "command" skipped rather than rejected.
package mcpsup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/hostlog"
	"github.com/corehost/agentcore/internal/metrics"
)

// callRateLimit bounds how often a single server may be called per second.
// A server under load (or an agent stuck in a call-loop) degrades that one
// server's throughput instead of the caller hammering the subprocess.
const callRateLimit = 10

// callRateBurst allows a short burst above the steady-state rate before
// limiting kicks in, so a turn that fires several tool calls in parallel
// doesn't immediately stall against a cold server.
const callRateBurst = 20

// State is a server handle's position in the §4.5 state machine.
type State int

const (
	Absent State = iota
	Spawning
	Initializing
	Ready
	Calling
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Spawning:
		return "spawning"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Calling:
		return "calling"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ListToolsTimeout is the fixed timeout §4.5 mandates for list_tools.
const ListToolsTimeout = 5 * time.Second

// handle is the runtime object for one server.
type handle struct {
	entry     domain.McpServerEntry
	state     State
	session   *mcpsdk.ClientSession
	tools     []*mcpsdk.Tool
	kill      context.CancelFunc
	lastErr   error
	callLimit *rate.Limiter
}

// Supervisor owns the handle map; callers from any goroutine may invoke its
// operations, per §5's "component owns its state" pattern.
type Supervisor struct {
	mu          sync.RWMutex
	handles     map[string]*handle
	initTimeout time.Duration
	log         *hostlog.Logger
	metrics     *metrics.Registry
}

// SetMetrics attaches a metrics registry; instrumentation is a no-op until
// this is called.
func (s *Supervisor) SetMetrics(m *metrics.Registry) { s.metrics = m }

// New creates a Supervisor. initTimeout governs the initialize handshake
// only; list_tools always uses the fixed ListToolsTimeout regardless of
// this value (§9 Open Questions: init timeout is a configuration
// parameter, defaulted here to 30s the way the teacher's single timeout
// was historically set).
func New(initTimeout time.Duration, log *hostlog.Logger) *Supervisor {
	if initTimeout <= 0 {
		initTimeout = 30 * time.Second
	}
	return &Supervisor{handles: map[string]*handle{}, initTimeout: initTimeout, log: log}
}

// newTransport is overridable in tests.
var newTransport = func(e domain.McpServerEntry) (mcpsdk.Transport, context.CancelFunc) {
	cmd := exec.Command(e.Command, e.Args...)
	if len(e.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range e.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return &mcpsdk.CommandTransport{Command: cmd}, func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}

// Start spawns and initializes the named server. Requires Absent; fails
// AlreadyRunning if a handle already exists for name.
func (s *Supervisor) Start(ctx context.Context, entry domain.McpServerEntry) error {
	s.mu.Lock()
	if _, exists := s.handles[entry.Name]; exists {
		s.mu.Unlock()
		return herr.New(herr.Protocol, "mcpsup.Start.AlreadyRunning")
	}
	h := &handle{entry: entry, state: Spawning, callLimit: rate.NewLimiter(callRateLimit, callRateBurst)}
	s.handles[entry.Name] = h
	s.mu.Unlock()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "agentcore", Version: "1.0"}, nil)
	transport, kill := newTransport(entry)

	initCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	s.setState(entry.Name, Initializing)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		kill()
		s.destroy(entry.Name, err)
		return herr.Wrap(herr.Protocol, "mcpsup.Start", err)
	}

	s.mu.Lock()
	h.session = session
	h.kill = kill
	s.mu.Unlock()

	// list_tools gets its own fixed 5s timeout; a timeout here does not
	// fail start — the handle still enters Ready, with an empty tool
	// cache, and ListTools logs the warning.
	s.setState(entry.Name, Ready)
	if _, err := s.ListTools(ctx, entry.Name); err != nil {
		s.log.Printf("mcpsup: list_tools failed for %q: %v", entry.Name, err)
	}
	return nil
}

// Stop closes the transport and releases the handle. Fails NotRunning if
// no live handle exists.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	h, ok := s.handles[name]
	if !ok {
		s.mu.Unlock()
		return herr.New(herr.Protocol, "mcpsup.Stop.NotRunning")
	}
	delete(s.handles, name)
	s.mu.Unlock()

	if h.session != nil {
		_ = h.session.Close()
	}
	if h.kill != nil {
		h.kill()
	}
	return nil
}

// StartAll starts every enabled server in entries. Per-server errors are
// logged but never abort the loop.
func (s *Supervisor) StartAll(ctx context.Context, entries []domain.McpServerEntry) {
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		if err := s.Start(ctx, e); err != nil {
			s.log.Printf("mcpsup: server %q failed to start: %v", e.Name, err)
		}
	}
}

// StopAll stops every live handle. Per-server errors are logged, not
// returned, matching start_all's continue-on-error contract.
func (s *Supervisor) StopAll() {
	for _, name := range s.RunningServers() {
		if err := s.Stop(name); err != nil {
			s.log.Printf("mcpsup: server %q failed to stop: %v", name, err)
		}
	}
}

// RunningServers returns exactly the names with a live handle.
func (s *Supervisor) RunningServers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.handles))
	for n := range s.handles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsRunning reports whether name has a live handle. Exactly one of
// IsRunning(name) or Stop(name)->NotRunning holds at any time.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handles[name]
	return ok
}

// ListAllTools returns every Ready server's namespaced tool specs.
func (s *Supervisor) ListAllTools() []domain.ToolSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ToolSpec
	for name, h := range s.handles {
		if h.state != Ready {
			continue
		}
		for _, t := range h.tools {
			out = append(out, toToolSpec(name, t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListTools re-queries one server's tools independently of Start's initial
// population, using its own ListToolsTimeout, and refreshes the cache
// ListAllTools replays. Per §4.5/§8: a timeout produces an empty list for
// that server, not an error, and leaves any previously cached tools in
// place rather than clearing them.
func (s *Supervisor) ListTools(ctx context.Context, server string) ([]domain.ToolSpec, error) {
	s.mu.RLock()
	h, ok := s.handles[server]
	s.mu.RUnlock()
	if !ok || h.session == nil {
		return nil, herr.New(herr.Protocol, "mcpsup.ListTools.ServerNotFound")
	}

	listCtx, cancel := context.WithTimeout(ctx, ListToolsTimeout)
	defer cancel()
	result, err := h.session.ListTools(listCtx, nil)
	if err != nil {
		s.log.Printf("mcpsup: list_tools failed for %q: %v", server, err)
		return nil, nil
	}

	s.mu.Lock()
	h.tools = result.Tools
	s.mu.Unlock()

	out := make([]domain.ToolSpec, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, toToolSpec(server, t))
	}
	return out, nil
}

// CallTool dispatches a call to server/tool. Absent, Stopped, or Failed
// handles fail fast; concurrent calls to a Ready server are allowed to
// overlap (§5: no lock around call_tool) and rely on the stdio transport
// to serialize them.
func (s *Supervisor) CallTool(ctx context.Context, server, tool string, args map[string]any) (string, bool, error) {
	s.mu.RLock()
	h, ok := s.handles[server]
	s.mu.RUnlock()
	if !ok {
		return "", false, herr.New(herr.Protocol, "mcpsup.CallTool.ServerNotFound")
	}
	if h.session == nil || h.state == Stopped || h.state == Failed || h.state == Absent {
		return "", false, herr.New(herr.Protocol, "mcpsup.CallTool.NotRunning")
	}

	if err := h.callLimit.Wait(ctx); err != nil {
		return "", false, err
	}

	// No lock and no Calling-state gate here: the stdio transport already
	// serializes requests on the wire, so two concurrent calls to the same
	// server queue naturally instead of one failing fast as NotRunning.
	result, err := h.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return fmt.Sprintf("mcp tool call failed: %v", err), true, nil
	}
	if result == nil {
		return "mcp server returned empty response", true, nil
	}
	return extractText(result.Content), result.IsError, nil
}

func (s *Supervisor) setState(name string, st State) {
	s.mu.Lock()
	if h, ok := s.handles[name]; ok {
		h.state = st
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.MCPServerState.WithLabelValues(name).Set(float64(st))
	}
}

func (s *Supervisor) destroy(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[name]; ok {
		h.lastErr = err
	}
	delete(s.handles, name)
}

func extractText(content []mcpsdk.Content) string {
	var out string
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += tc.Text
		}
	}
	return out
}

func toToolSpec(server string, t *mcpsdk.Tool) domain.ToolSpec {
	schema, _ := t.InputSchema.(map[string]any)
	return domain.ToolSpec{
		Name:        NamespacedName(server, t.Name),
		Description: t.Description,
		JSONSchema:  schema,
		Origin:      domain.MCPOrigin(server),
	}
}
