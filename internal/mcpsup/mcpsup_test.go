package mcpsup

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/corehost/agentcore/internal/domain"
)

// setupTestServer starts an in-memory MCP server exposing tools and wires
// the Supervisor's newTransport seam to connect to it in-process, mirroring
// the teacher's internal/mcp manager_test.go setup.
func setupTestServer(t *testing.T, name string, tools []*mcpsdk.Tool, handlers map[string]mcpsdk.ToolHandler) (*Supervisor, func()) {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-server", Version: "1.0"}, nil)
	for _, tool := range tools {
		handler := handlers[tool.Name]
		if handler == nil {
			handler = func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "ok"}}}, nil
			}
		}
		server.AddTool(tool, handler)
	}

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx := context.Background()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}

	orig := newTransport
	newTransport = func(domain.McpServerEntry) (mcpsdk.Transport, context.CancelFunc) {
		return clientTransport, func() {}
	}

	sup := New(0, nil)
	if err := sup.Start(ctx, domain.McpServerEntry{Name: name, Command: "unused", Enabled: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	return sup, func() {
		sup.StopAll()
		serverSession.Close()
		newTransport = orig
	}
}

func TestSupervisor_StartPopulatesToolCache(t *testing.T) {
	tools := []*mcpsdk.Tool{
		{Name: "read_file", Description: "read a file", InputSchema: map[string]any{"type": "object"}},
	}
	sup, cleanup := setupTestServer(t, "fs", tools, nil)
	defer cleanup()

	specs := sup.ListAllTools()
	if len(specs) != 1 {
		t.Fatalf("want 1 tool spec, got %d: %+v", len(specs), specs)
	}
}

func TestSupervisor_ListTools_reQueriesAndUpdatesCache(t *testing.T) {
	tools := []*mcpsdk.Tool{
		{Name: "echo", Description: "echo", InputSchema: map[string]any{"type": "object"}},
	}
	sup, cleanup := setupTestServer(t, "svc", tools, nil)
	defer cleanup()

	specs, err := sup.ListTools(context.Background(), "svc")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("want 1 tool spec, got %d", len(specs))
	}

	all := sup.ListAllTools()
	if len(all) != 1 {
		t.Fatalf("want ListAllTools to reflect the refreshed cache, got %d", len(all))
	}
}

func TestSupervisor_ListTools_timeoutYieldsEmptyListNotError(t *testing.T) {
	tools := []*mcpsdk.Tool{
		{Name: "slow", Description: "slow", InputSchema: map[string]any{"type": "object"}},
	}
	sup, cleanup := setupTestServer(t, "svc", tools, nil)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	specs, err := sup.ListTools(ctx, "svc")
	if err != nil {
		t.Fatalf("a timed-out list_tools must not surface as an error, got %v", err)
	}
	if len(specs) != 0 {
		t.Fatalf("want an empty list on timeout, got %d", len(specs))
	}
}

func TestSupervisor_ListTools_unknownServer(t *testing.T) {
	sup := New(0, nil)
	if _, err := sup.ListTools(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for an unknown server")
	}
}

func TestSupervisor_CallTool_roundTrip(t *testing.T) {
	tools := []*mcpsdk.Tool{
		{Name: "echo", Description: "echo", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
		}},
	}
	handlers := map[string]mcpsdk.ToolHandler{
		"echo": func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(req.Params.Arguments, &args)
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "echo: " + args.Message}}}, nil
		},
	}
	sup, cleanup := setupTestServer(t, "svc", tools, handlers)
	defer cleanup()

	out, isErr, err := sup.CallTool(context.Background(), "svc", "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if isErr {
		t.Fatalf("unexpected tool error: %s", out)
	}
}

func TestSupervisor_CallTool_unknownServerFailsFast(t *testing.T) {
	sup := New(0, nil)
	if _, _, err := sup.CallTool(context.Background(), "nope", "tool", nil); err == nil {
		t.Fatal("expected ServerNotFound for an unknown server")
	}
}
