// Package controller is the Controller (§4.9): the per-turn orchestrator
// that resolves which agent and model a turn runs under, assembles the
// tool manifest that turn may use, compacts history when it runs long,
// drives the Agent Runtime, and persists the result. Grounded on the
// teacher's internal/agent.Service.Submit, which performs the same
// sequence (compact check, submit to model, stream to UI, autosave) but
// against a single hard-coded persona; generalized here to route through
// the Agent Manager's resolved agent+model per turn.
package controller

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/corehost/agentcore/internal/agentmgr"
	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/mcpsup"
	"github.com/corehost/agentcore/internal/modelclient"
	"github.com/corehost/agentcore/internal/runtime"
	"github.com/corehost/agentcore/internal/sessionstore"
	"github.com/corehost/agentcore/internal/settings"
	"github.com/corehost/agentcore/internal/tokens"
	"github.com/corehost/agentcore/internal/toolregistry"
)

// CompactThreshold is the fraction of a model's context window that
// triggers a compaction pass before the next model call (§4.3, §4.9).
const CompactThreshold = 0.8

// Controller wires the host's components together for one running session.
type Controller struct {
	Agents    *agentmgr.Manager
	Settings  *settings.Store
	Sessions  *sessionstore.Store
	Tools     *toolregistry.Registry
	MCP       *mcpsup.Supervisor
	Runtime   *runtime.Runtime
	Bus       *bus.Bus
	Summarize tokens.Summarize // optional; nil disables summary notices

	// TitleClient/TitleModel are the "cheap model" side channel for
	// auto-titling a brand-new session after its first turn (optional; nil
	// TitleClient disables it). Kept separate from Runtime's main model so
	// a small/cheap model can be used regardless of the agent's model.
	TitleClient modelclient.Client
	TitleModel  string
}

// SyncMCPTools registers every Ready MCP server's current tools into the
// registry, replacing same-named entries. It does not unregister tools a
// server no longer reports; those stay registered (§4.5/§4.4 integration point the teacher
// handles implicitly by calling the manager directly; split out here so a
// Controller can be re-synced after a reconnect without restarting).
func (c *Controller) SyncMCPTools() error {
	for _, spec := range c.MCP.ListAllTools() {
		if err := c.Tools.Register(spec, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			server, tool, ok := mcpsup.ParseNamespacedName(spec.Name)
			if !ok {
				return nil, herr.New(herr.Protocol, "controller.SyncMCPTools: bad namespaced tool "+spec.Name)
			}
			var argMap map[string]any
			if len(args) > 0 {
				if err := json.Unmarshal(args, &argMap); err != nil {
					return nil, err
				}
			}
			text, isErr, err := c.MCP.CallTool(ctx, server, tool, argMap)
			if err != nil {
				return nil, err
			}
			if isErr {
				return nil, herr.New(herr.Tool, "controller.SyncMCPTools: "+text)
			}
			payload, err := json.Marshal(text)
			if err != nil {
				return nil, err
			}
			return payload, nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterInvokeAgent installs the invoke_agent built-in once for the whole
// host: every agent shares the one registration, and the Agent Runtime reads
// the actual caller back out of its turn context (see runtime.Turn) to
// apply that caller's allowed_agents rather than baking one caller in.
func (c *Controller) RegisterInvokeAgent() error {
	return c.Runtime.RegisterInvokeAgent(c.Tools, c.Agents, func(a domain.AgentDefinition) string {
		return a.SystemPrompt
	})
}

// toolManifest builds the per-turn tool list: the agent's allowed built-ins
// intersected with the registry, plus tools from MCP servers the agent has
// attached (settings, per-agent) that are currently Ready (§4.9 step 2).
func (c *Controller) toolManifest(agent domain.AgentDefinition) ([]domain.ToolSpec, error) {
	attached, err := c.Settings.GetAgentMCPs(agent.Name)
	if err != nil {
		return nil, herr.Wrap(herr.Storage, "controller.toolManifest", err)
	}

	running := map[string]bool{}
	for _, name := range c.MCP.RunningServers() {
		running[name] = true
	}
	var readyAttached []string
	for _, name := range attached {
		if running[name] {
			readyAttached = append(readyAttached, name)
		}
	}
	sort.Strings(readyAttached)

	return c.Tools.List(toolregistry.ListFilter{
		AllowedToolNames:  agent.AllowedTools,
		AllowedMCPServers: readyAttached,
	}), nil
}

// Turn runs one user message through to completion for sessionName,
// implementing the §4.9 algorithm: resolve agent+model, build the tool
// manifest, compact if the history has grown past threshold, drive the
// runtime, then autosave iff the turn completed (not on Error or
// Cancelled — a partial turn shouldn't silently overwrite a good session).
func (c *Controller) Turn(ctx context.Context, sessionName, agentName, userText string, history []domain.Message, contextWindow int) ([]domain.Message, error) {
	agent, ok := c.Agents.Get(agentName)
	if !ok {
		return history, herr.New(herr.UserInput, "controller.Turn: unknown agent "+agentName)
	}
	model, err := c.Agents.EffectiveModel(agentName)
	if err != nil {
		return history, err
	}

	toolSpecs, err := c.toolManifest(agent)
	if err != nil {
		return history, err
	}

	working := append([]domain.Message(nil), history...)
	working = append(working, domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.Text(userText)}})

	if tokens.ShouldCompact(tokens.EstimateTokens(working), contextWindow, CompactThreshold) {
		result := tokens.Compact(working, defaultKeepRecent)
		if c.Summarize != nil && result.DidCompact {
			result = tokens.CompactWithSummary(working, defaultKeepRecent, c.Summarize)
		}
		if result.DidCompact {
			c.Bus.Publish(domain.StreamEvent{Kind: domain.EventCompacted, DroppedCount: result.Dropped, Summary: result.Summary})
			working = result.Messages
		}
	}

	isFirstTurn := len(history) == 0
	out, err := c.Runtime.Turn(ctx, agentName, model, working, agent.SystemPrompt, toolSpecs)

	if err == nil && ctx.Err() == nil && len(out) > 0 {
		savedName, saveErr := c.Sessions.Autosave(sessionName, out, agentName, model, time.Now())
		if saveErr != nil {
			return out, herr.Wrap(herr.Storage, "controller.Turn.autosave", saveErr)
		}
		if isFirstTurn && savedName != "" {
			c.autoTitle(ctx, savedName, userText, out)
		}
	}
	return out, err
}

// autoTitle asks the cheap model for a short session title after the first
// turn completes. Best-effort: failures are swallowed, never surfaced as a
// turn error, and a session the user already renamed is never touched
// again since this only runs on isFirstTurn.
func (c *Controller) autoTitle(ctx context.Context, sessionName, userText string, out []domain.Message) {
	if c.TitleClient == nil {
		return
	}
	reply := ""
	for _, m := range out {
		if m.Role == domain.RoleAssistant {
			reply = m.TextContent()
		}
	}
	prompt := domain.Message{Role: domain.RoleUser, Parts: []domain.Part{domain.Text(
		"Summarize the following exchange as a plain title of five words or fewer, no punctuation, no quotes:\n\nUser: " + userText + "\nAssistant: " + reply,
	)}}
	parts, _, _, err := c.TitleClient.Stream(ctx, c.TitleModel, []domain.Message{prompt}, nil, "", nil)
	if err != nil {
		return
	}
	title := (domain.Message{Parts: parts}).TextContent()
	title = strings.TrimSpace(strings.Trim(title, "\"'"))
	if title == "" {
		return
	}
	_ = c.Sessions.SetTitle(sessionName, title)
}

const defaultKeepRecent = 20
