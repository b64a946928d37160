// Package runtime is the Agent Runtime (§4.7): given an agent definition
// and a message history, drives the model through repeated rounds of
// stream -> detect tool calls -> execute -> append results, until the
// model signals it's done, the turn is cancelled, or a fatal error occurs.
// Grounded on the teacher's internal/agent.Service.Submit loop, generalized
// from a single hard-coded Anthropic client to the modelclient.Client
// contract and from ad hoc event structs to the §3 StreamEvent union.
package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/corehost/agentcore/internal/bus"
	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/hostlog"
	"github.com/corehost/agentcore/internal/metrics"
	"github.com/corehost/agentcore/internal/modelclient"
	"github.com/corehost/agentcore/internal/toolregistry"
)

// LoopLimit bounds the number of CallModel rounds a single turn may take,
// guarding against a model that never stops requesting tools.
const LoopLimit = 60

// DefaultMaxNestingDepth is the default bound on InvokeAgent recursion.
const DefaultMaxNestingDepth = 4

// Config tunes one Runtime instance.
type Config struct {
	MaxParallelTools int // 1 = sequential, per §9's default-to-sequential open question
	MaxNestingDepth  int
	WorkDir          string // cwd for tool execution; also the git checkpoint repo root
}

// Runtime drives turns for a single agent host process. It is safe for
// concurrent use by multiple turns (e.g. a parent turn and its nested
// InvokeAgent children) because all shared state (the registry, the bus)
// is itself concurrency-safe; the Runtime struct holds no per-turn state.
type Runtime struct {
	registry *toolregistry.Registry
	client   modelclient.Client
	bus      *bus.Bus
	log      *hostlog.Logger
	cfg      Config
	metrics  *metrics.Registry
	checkpoints *checkpointLedger
}

// SetMetrics attaches a metrics registry; instrumentation is a no-op until
// this is called, so tests and simple embeddings needn't construct one.
func (r *Runtime) SetMetrics(m *metrics.Registry) { r.metrics = m }

// New creates a Runtime.
func New(registry *toolregistry.Registry, client modelclient.Client, b *bus.Bus, log *hostlog.Logger, cfg Config) *Runtime {
	if cfg.MaxParallelTools < 1 {
		cfg.MaxParallelTools = 1
	}
	if cfg.MaxNestingDepth < 1 {
		cfg.MaxNestingDepth = DefaultMaxNestingDepth
	}
	return &Runtime{registry: registry, client: client, bus: b, log: log, cfg: cfg, checkpoints: newCheckpointLedger()}
}

// Checkpoints returns agentName's recorded git checkpoints, oldest first.
func (r *Runtime) Checkpoints(agentName string) []domain.Checkpoint {
	return r.checkpoints.List(agentName)
}

type nestDepthKey struct{}

// WithNestingDepth stores the current InvokeAgent recursion depth in ctx.
func WithNestingDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, nestDepthKey{}, depth)
}

func nestingDepth(ctx context.Context) int {
	d, _ := ctx.Value(nestDepthKey{}).(int)
	return d
}

// Turn drives agent through one turn starting from history, returning the
// updated history (with the model's response and any tool round-trips
// appended) once the turn reaches Final, Cancelled, or Error. model and
// toolSpecs are resolved by the Controller before calling in.
func (r *Runtime) Turn(ctx context.Context, agentName string, model string, history []domain.Message, system string, toolSpecs []domain.ToolSpec) ([]domain.Message, error) {
	start := time.Now()
	ctx = withCallerAgent(ctx, agentName)
	working := repairDanglingToolCalls(history)
	throughput := newThroughputTracker(r.bus)

	for round := 0; round < LoopLimit; round++ {
		if err := ctx.Err(); err != nil {
			r.finishTurn(agentName, start, domain.FinishCancelled, "", "")
			return working, nil
		}

		var thinkingOpen bool
		onDelta := func(kind modelclient.DeltaKind, text string) {
			switch kind {
			case modelclient.DeltaThinking:
				thinkingOpen = true
				r.bus.Publish(domain.ThinkingDelta(agentName, text))
			case modelclient.DeltaText:
				thinkingOpen = false
				throughput.observe(len(text))
				r.bus.Publish(domain.TextDelta(agentName, text))
			}
		}

		parts, stop, _, err := streamWithRetry(ctx, r.client, r.bus, model, working, toolSpecs, system, onDelta)
		_ = thinkingOpen
		if err != nil {
			if ctx.Err() != nil {
				r.finishTurn(agentName, start, domain.FinishCancelled, "", "")
				return working, nil
			}
			r.finishTurn(agentName, start, domain.FinishError, "model", err.Error())
			return working, err
		}

		working = append(working, domain.Message{Role: domain.RoleAssistant, Parts: parts})

		calls := toolCalls(parts)
		if stop != modelclient.StopToolUse || len(calls) == 0 {
			r.finishTurn(agentName, start, domain.FinishComplete, "", "")
			return working, nil
		}

		r.snapshotCheckpoint(ctx, agentName, round)
		results := r.executeTools(ctx, agentName, calls)
		if ctx.Err() != nil {
			r.finishTurn(agentName, start, domain.FinishCancelled, "", "")
			return working, nil
		}
		working = append(working, domain.Message{Role: domain.RoleUser, Parts: results})
	}

	err := fmt.Errorf("turn exceeded %d model rounds", LoopLimit)
	r.finishTurn(agentName, start, domain.FinishError, "model", err.Error())
	return working, err
}

// finishTurn publishes the TurnFinished event and records the runtime
// metrics for one concluded turn, if a metrics registry is attached.
func (r *Runtime) finishTurn(agentName string, start time.Time, reason domain.FinishReason, errKind, errMsg string) {
	r.bus.Publish(domain.TurnFinished(reason, errKind, errMsg))
	if r.metrics != nil {
		r.metrics.TurnsTotal.WithLabelValues(agentName, string(reason)).Inc()
		r.metrics.TurnDuration.WithLabelValues(agentName).Observe(time.Since(start).Seconds())
	}
}

func toolCalls(parts []domain.Part) []domain.Part {
	var out []domain.Part
	for _, p := range parts {
		if p.Kind == domain.PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// executeTools runs calls per the MaxParallelTools bound, preserving the
// original emission order in the returned results regardless of
// completion order (§4.7 Parallel tools).
func (r *Runtime) executeTools(ctx context.Context, agentName string, calls []domain.Part) []domain.Part {
	perCall := make([][]domain.Part, len(calls))

	sem := make(chan struct{}, r.cfg.MaxParallelTools)
	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		r.bus.Publish(domain.ToolStarted(agentName, call.ToolCallID, call.ToolName, call.ToolArgsJSON))

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			perCall[i] = r.runOneTool(ctx, agentName, call)
		}()
	}
	wg.Wait()

	var results []domain.Part
	for _, parts := range perCall {
		results = append(results, parts...)
	}
	return results
}

// runOneTool returns one or more Parts for call: ordinarily a single
// ToolResult, but a tool whose result decodes as a domain.ToolImageResult
// (e.g. generate_qrcode) also yields a sibling Image Part carrying the
// decoded bytes, so a vision-capable model sees the image directly rather
// than only its textual confirmation.
func (r *Runtime) runOneTool(ctx context.Context, agentName string, call domain.Part) []domain.Part {
	res, err := r.registry.Invoke(ctx, call.ToolName, call.ToolArgsJSON)
	if err != nil {
		// Cancellation: no further events, no result synthesized beyond
		// what the caller already has — Turn will observe ctx.Err() and
		// stop. We still return a result shape so the slice stays well
		// formed if cancellation lands after some tools already finished.
		r.bus.Publish(domain.ToolFinished(agentName, call.ToolCallID, false, "cancelled"))
		return []domain.Part{domain.ToolResult(call.ToolCallID, json.RawMessage(`{"cancelled":true}`), false)}
	}

	preview := preview(res)
	r.bus.Publish(domain.ToolFinished(agentName, call.ToolCallID, res.OK, preview))

	if !res.OK {
		payload, _ := json.Marshal(map[string]string{"kind": res.Kind, "message": res.Msg})
		return []domain.Part{domain.ToolResult(call.ToolCallID, payload, false)}
	}

	result := domain.ToolResult(call.ToolCallID, res.Value, true)
	if img, ok := decodeToolImage(res.Value); ok {
		return []domain.Part{result, img}
	}
	return []domain.Part{result}
}

func decodeToolImage(value json.RawMessage) (domain.Part, bool) {
	var envelope domain.ToolImageResult
	if err := json.Unmarshal(value, &envelope); err != nil {
		return domain.Part{}, false
	}
	if envelope.MimeType == "" || envelope.ImageBase64 == "" {
		return domain.Part{}, false
	}
	data, err := base64.StdEncoding.DecodeString(envelope.ImageBase64)
	if err != nil {
		return domain.Part{}, false
	}
	return domain.Image(data, envelope.MimeType), true
}

func preview(res toolregistry.Result) string {
	const maxLen = 200
	var s string
	if res.OK {
		s = string(res.Value)
	} else {
		s = res.Msg
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
