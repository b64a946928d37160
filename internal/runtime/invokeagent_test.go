package runtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/modelclient"
	"github.com/corehost/agentcore/internal/toolregistry"
)

// fakeResolver is a minimal AgentResolver backed by a fixed map, for tests
// that don't need agentmgr's settings-driven model pinning.
type fakeResolver map[string]domain.AgentDefinition

func (f fakeResolver) Resolve(name string) (domain.AgentDefinition, string, bool) {
	a, ok := f[name]
	if !ok {
		return domain.AgentDefinition{}, "", false
	}
	return a, "model-x", true
}

func systemForTest(a domain.AgentDefinition) string { return a.SystemPrompt }

func TestInvokeAgent_permissionAppliesToActualCaller(t *testing.T) {
	resolver := fakeResolver{
		"parent-allowed": {Name: "parent-allowed", AllowedAgents: []string{"child"}},
		"parent-denied":  {Name: "parent-denied", AllowedAgents: []string{}},
		"child":          {Name: "child", SystemPrompt: "you are the child"},
	}

	reg := toolregistry.New()
	client := &scriptedClient{responses: []scriptedResponse{
		{parts: []domain.Part{domain.Text("child says hi")}, stop: modelclient.StopEndTurn},
	}}
	b := bus.New(16)
	rt := New(reg, client, b, nil, Config{})
	if err := rt.RegisterInvokeAgent(reg, resolver, systemForTest); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(InvokeAgentArgs{Agent: "child", Prompt: "hello"})

	// A turn run as parent-allowed may reach the child.
	ctx := withCallerAgent(context.Background(), "parent-allowed")
	res, err := reg.Invoke(ctx, "invoke_agent", args)
	if err != nil {
		t.Fatalf("unexpected error invoking as parent-allowed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success for parent-allowed, got %+v", res)
	}

	// The exact same registration, called as a turn for parent-denied
	// (no closure re-registration happened in between), must be denied.
	// This is the behavior the single shared registration depends on:
	// permission is resolved from the live caller, not a baked-in one.
	ctx2 := withCallerAgent(context.Background(), "parent-denied")
	res2, err := reg.Invoke(ctx2, "invoke_agent", args)
	if err != nil {
		t.Fatalf("unexpected error invoking as parent-denied: %v", err)
	}
	if res2.OK {
		t.Fatal("expected parent-denied to be refused, since it has no allowed_agents")
	}
}

func TestInvokeAgent_unknownAgentRejected(t *testing.T) {
	resolver := fakeResolver{
		"parent": {Name: "parent", AllowedAgents: []string{"ghost"}},
	}
	reg := toolregistry.New()
	client := &scriptedClient{}
	b := bus.New(16)
	rt := New(reg, client, b, nil, Config{})
	if err := rt.RegisterInvokeAgent(reg, resolver, systemForTest); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(InvokeAgentArgs{Agent: "ghost", Prompt: "hello"})
	ctx := withCallerAgent(context.Background(), "parent")
	res, err := reg.Invoke(ctx, "invoke_agent", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure: ghost is not a real agent")
	}
}
