// Package anthropic is a reference modelclient.Client backed by the real
// Anthropic SDK, proving the ModelClient contract (internal/modelclient) is
// drivable end to end. Grounded on the teacher's internal/provider
// streaming architecture (shared long-lived HTTP transport, delta
// callback, block accumulation into ContentBlocks) but built on the
// official github.com/anthropics/anthropic-sdk-go client instead of a
// hand-rolled SSE reader.
package anthropic

import (
	"context"
	"encoding/json"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/modelclient"
)

// Client streams Anthropic Messages API responses into the ModelClient
// contract.
type Client struct {
	sdk anthropicsdk.Client
}

// New builds a Client authorized with apiKey.
func New(apiKey string) *Client {
	return &Client{sdk: anthropicsdk.NewClient(option.WithAPIKey(apiKey))}
}

func (c *Client) Name() string { return "anthropic" }

// Stream implements modelclient.Client.
func (c *Client) Stream(
	ctx context.Context,
	model string,
	messages []domain.Message,
	tools []domain.ToolSpec,
	system string,
	onDelta modelclient.OnDelta,
) ([]domain.Part, modelclient.StopReason, modelclient.Usage, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: 8192,
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var message anthropicsdk.Message
	var thinkingOpen bool
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, "", modelclient.Usage{}, err
		}

		switch ev := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				onDelta(modelclient.DeltaText, d.Text)
			case anthropicsdk.ThinkingDelta:
				thinkingOpen = true
				onDelta(modelclient.DeltaThinking, d.Thinking)
			}
		case anthropicsdk.ContentBlockStopEvent:
			thinkingOpen = false
		}
	}
	_ = thinkingOpen
	if err := stream.Err(); err != nil {
		return nil, "", modelclient.Usage{}, classifyError(err)
	}

	parts := toParts(message.Content)
	usage := modelclient.Usage{
		InputTokens:              int(message.Usage.InputTokens),
		OutputTokens:             int(message.Usage.OutputTokens),
		CacheCreationInputTokens: int(message.Usage.CacheCreationInputTokens),
		CacheReadInputTokens:     int(message.Usage.CacheReadInputTokens),
	}
	stop := modelclient.StopEndTurn
	if message.StopReason == anthropicsdk.StopReasonToolUse {
		stop = modelclient.StopToolUse
	} else if message.StopReason == anthropicsdk.StopReasonMaxTokens {
		stop = modelclient.StopMaxTokens
	}
	return parts, stop, usage, nil
}

// toAnthropicMessages converts Text, ToolCall and ToolResult parts. Image
// and FileRef parts are not converted and are left out of the request.
func toAnthropicMessages(messages []domain.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropicsdk.ContentBlockParamUnion
		for _, p := range m.Parts {
			switch p.Kind {
			case domain.PartText:
				blocks = append(blocks, anthropicsdk.NewTextBlock(p.Text))
			case domain.PartToolCall:
				var args map[string]any
				_ = json.Unmarshal(p.ToolArgsJSON, &args)
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(p.ToolCallID, args, p.ToolName))
			case domain.PartToolResult:
				blocks = append(blocks, anthropicsdk.NewToolResultBlock(p.ToolCallID, string(p.ToolResultJSON), !p.ToolOK))
			}
		}
		role := anthropicsdk.MessageParamRoleUser
		if m.Role == domain.RoleAssistant {
			role = anthropicsdk.MessageParamRoleAssistant
		}
		out = append(out, anthropicsdk.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func toAnthropicTools(tools []domain.ToolSpec) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: toInputSchema(t.JSONSchema),
			},
		})
	}
	return out
}

func toInputSchema(schema map[string]any) anthropicsdk.ToolInputSchemaParam {
	if schema == nil {
		return anthropicsdk.ToolInputSchemaParam{}
	}
	props, _ := schema["properties"].(map[string]any)
	required, _ := schema["required"].([]any)
	var req []string
	for _, r := range required {
		if s, ok := r.(string); ok {
			req = append(req, s)
		}
	}
	return anthropicsdk.ToolInputSchemaParam{Properties: props, Required: req}
}

func toParts(blocks []anthropicsdk.ContentBlockUnion) []domain.Part {
	var out []domain.Part
	for _, b := range blocks {
		switch v := b.AsAny().(type) {
		case anthropicsdk.TextBlock:
			out = append(out, domain.Text(v.Text))
		case anthropicsdk.ToolUseBlock:
			args, _ := json.Marshal(v.Input)
			out = append(out, domain.ToolCall(v.ID, v.Name, args))
		}
	}
	return out
}

func classifyError(err error) error {
	var apiErr *anthropicsdk.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return &modelclient.APIError{
			StatusCode: apiErr.StatusCode,
			ErrorType:  string(apiErr.Type),
			Message:    apiErr.Message,
		}
	}
	return err
}

func asAnthropicError(err error, target **anthropicsdk.Error) bool {
	e, ok := err.(*anthropicsdk.Error)
	if ok {
		*target = e
	}
	return ok
}
