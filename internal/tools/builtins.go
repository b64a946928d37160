// Package tools holds the host's built-in tool implementations: the ones
// every agent can reach without an MCP server. Grounded on the teacher's
// internal/tools ToolDef convention (exec.Command for shell-outs, plain
// stdlib path handling, truncation on oversized output) but reworked onto
// the registry's Invoker signature and widened with the document/encoding
// libraries the wider pack pulls in for this kind of host.
package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/toolregistry"
)

const maxOutputBytes = 50 * 1024

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "\n... (truncated)"
	}
	return s
}

// JobScheduler is the persistence surface schedule_tool writes to —
// satisfied by *sessionstore.Store. Declared locally to keep this package
// from depending on sessionstore for anything but this one verb.
type JobScheduler interface {
	ScheduleJob(tool string, args json.RawMessage, scheduledFor time.Time, recurrence string) (string, error)
}

// RegisterBuiltins wires every host-implemented tool into reg. cwd is the
// working directory read_file/write_file/run_shell resolve relative paths
// against. jobs is optional; a nil jobs disables the schedule_tool built-in
// (useful for tests that don't need scheduling).
func RegisterBuiltins(reg *toolregistry.Registry, cwd string, jobs JobScheduler) error {
	builtins := []struct {
		spec   domain.ToolSpec
		invoke toolregistry.Invoker
	}{
		{readFileSpec(), readFileInvoker(cwd)},
		{writeFileSpec(), writeFileInvoker(cwd)},
		{runShellSpec(), runShellInvoker(cwd)},
		{extractPDFSpec(), extractPDFInvoker(cwd)},
		{extractDocxSpec(), extractDocxInvoker(cwd)},
		{readXLSXSpec(), readXLSXInvoker(cwd)},
		{generateQRCodeSpec(), generateQRCodeInvoker(cwd)},
		{diffTextSpec(), diffTextInvoker()},
	}
	if jobs != nil {
		builtins = append(builtins, struct {
			spec   domain.ToolSpec
			invoke toolregistry.Invoker
		}{scheduleToolSpec(), scheduleToolInvoker(jobs)})
	}
	for _, b := range builtins {
		if err := reg.Register(b.spec, b.invoke); err != nil {
			return err
		}
	}
	return nil
}

func resolvePath(cwd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cwd, p)
}

// ---------------------------------------------------------------------------
// read_file / write_file
// ---------------------------------------------------------------------------

func readFileSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "read_file",
		Description: "Read a UTF-8 text file and return its contents, truncated at 50KB.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"path"},
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "file path, absolute or relative to the working directory"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func readFileInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct{ Path string `json:"path"` }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolvePath(cwd, a.Path))
		if err != nil {
			return nil, err
		}
		return json.Marshal(truncate(string(data)))
	}
}

func writeFileSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed. Overwrites any existing file.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"path", "content"},
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func writeFileInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		full := resolvePath(cwd, a.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(full, []byte(a.Content), 0o644); err != nil {
			return nil, err
		}
		return json.Marshal(fmt.Sprintf("wrote %d bytes to %s", len(a.Content), a.Path))
	}
}

// ---------------------------------------------------------------------------
// run_shell
// ---------------------------------------------------------------------------

func runShellSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "run_shell",
		Description: "Run a shell command in the working directory and return combined stdout/stderr, truncated at 50KB.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"command"},
			"properties": map[string]any{
				"command": map[string]any{"type": "string"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func runShellInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct{ Command string `json:"command"` }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		cmd := exec.CommandContext(ctx, "sh", "-c", a.Command)
		cmd.Dir = cwd
		out, err := cmd.CombinedOutput()
		s := truncate(string(out))
		if err != nil {
			return json.Marshal(fmt.Sprintf("exit error: %v\n%s", err, s))
		}
		return json.Marshal(s)
	}
}

// ---------------------------------------------------------------------------
// extract_pdf
// ---------------------------------------------------------------------------

func extractPDFSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "extract_pdf",
		Description: "Extract plain text from a PDF file, truncated at 50KB.",
		JSONSchema: map[string]any{
			"type":       "object",
			"required":   []string{"path"},
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func extractPDFInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct{ Path string `json:"path"` }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		f, r, err := pdf.Open(resolvePath(cwd, a.Path))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var buf bytes.Buffer
		b, err := r.GetPlainText()
		if err != nil {
			return nil, err
		}
		if _, err := buf.ReadFrom(b); err != nil {
			return nil, err
		}
		return json.Marshal(truncate(buf.String()))
	}
}

// ---------------------------------------------------------------------------
// extract_docx
// ---------------------------------------------------------------------------

func extractDocxSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "extract_docx",
		Description: "Extract plain text from a .docx file, truncated at 50KB.",
		JSONSchema: map[string]any{
			"type":       "object",
			"required":   []string{"path"},
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func extractDocxInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct{ Path string `json:"path"` }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		r, err := docx.ReadDocxFile(resolvePath(cwd, a.Path))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return json.Marshal(truncate(r.Editable().GetContent()))
	}
}

// ---------------------------------------------------------------------------
// read_xlsx
// ---------------------------------------------------------------------------

func readXLSXSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "read_xlsx",
		Description: "Read every row of the first sheet (or a named sheet) from a .xlsx file as tab-separated text, truncated at 50KB.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"path"},
			"properties": map[string]any{
				"path":  map[string]any{"type": "string"},
				"sheet": map[string]any{"type": "string", "description": "sheet name, defaults to the first sheet"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func readXLSXInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Path  string `json:"path"`
			Sheet string `json:"sheet"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		f, err := excelize.OpenFile(resolvePath(cwd, a.Path))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := a.Sheet
		if sheet == "" {
			sheet = f.GetSheetName(0)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteString("\n")
		}
		return json.Marshal(truncate(buf.String()))
	}
}

// ---------------------------------------------------------------------------
// generate_qrcode
// ---------------------------------------------------------------------------

func generateQRCodeSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "generate_qrcode",
		Description: "Generate a PNG QR code for text content and write it to a file path.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"content", "path"},
			"properties": map[string]any{
				"content": map[string]any{"type": "string"},
				"path":    map[string]any{"type": "string"},
				"size":    map[string]any{"type": "integer", "description": "pixel width/height, default 256"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func generateQRCodeInvoker(cwd string) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Content string `json:"content"`
			Path    string `json:"path"`
			Size    int    `json:"size"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		if a.Size == 0 {
			a.Size = 256
		}
		png, err := qrcode.Encode(a.Content, qrcode.Medium, a.Size)
		if err != nil {
			return nil, err
		}
		full := resolvePath(cwd, a.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(full, png, 0o644); err != nil {
			return nil, err
		}
		return json.Marshal(domain.ToolImageResult{
			Note:        fmt.Sprintf("wrote QR code to %s", a.Path),
			MimeType:    "image/png",
			ImageBase64: base64.StdEncoding.EncodeToString(png),
		})
	}
}

// ---------------------------------------------------------------------------
// diff_text
// ---------------------------------------------------------------------------

func diffTextSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "diff_text",
		Description: "Compute a character-level diff between two text blobs, returned as inline text with ANSI colour codes marking insertions and deletions.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"before", "after"},
			"properties": map[string]any{
				"before": map[string]any{"type": "string"},
				"after":  map[string]any{"type": "string"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func diffTextInvoker() toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct{ Before, After string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(a.Before, a.After, false)
		return json.Marshal(truncate(dmp.DiffPrettyText(diffs)))
	}
}

// ---------------------------------------------------------------------------
// schedule_tool
// ---------------------------------------------------------------------------

// parseScheduleTime accepts RFC3339 or HH:MM (resolved to the next
// occurrence relative to now).
func parseScheduleTime(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("15:04", raw); err == nil {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.Add(24 * time.Hour)
		}
		return candidate.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339 or HH:MM)", raw)
}

func scheduleToolSpec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        "schedule_tool",
		Description: "Queue a tool call for future execution. At the scheduled time the host runs it directly through the tool registry, with no model involved and no conversation turn produced.",
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []string{"tool", "time"},
			"properties": map[string]any{
				"tool":       map[string]any{"type": "string", "description": "the registered tool name to invoke"},
				"args":       map[string]any{"type": "object", "description": "arguments to pass to the tool, defaults to {}"},
				"time":       map[string]any{"type": "string", "description": "when to run it: RFC3339 (e.g. 2026-02-24T16:00:00Z) or HH:MM for the next occurrence"},
				"recurrence": map[string]any{"type": "string", "description": "once (default), daily, or hourly"},
			},
		},
		Origin: domain.BuiltinOrigin(),
	}
}

func scheduleToolInvoker(jobs JobScheduler) toolregistry.Invoker {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Tool       string          `json:"tool"`
			Args       json.RawMessage `json:"args"`
			Time       string          `json:"time"`
			Recurrence string          `json:"recurrence"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		if strings.TrimSpace(a.Tool) == "" {
			return nil, fmt.Errorf("tool is required")
		}
		scheduledFor, err := parseScheduleTime(a.Time, time.Now())
		if err != nil {
			return nil, err
		}
		recurrence := strings.ToLower(strings.TrimSpace(a.Recurrence))
		switch recurrence {
		case "":
			recurrence = "once"
		case "once", "daily", "hourly":
		default:
			return nil, fmt.Errorf("invalid recurrence %q: must be once, daily, or hourly", a.Recurrence)
		}
		id, err := jobs.ScheduleJob(a.Tool, a.Args, scheduledFor, recurrence)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fmt.Sprintf("scheduled job %s: %s at %s (%s)", id, a.Tool, scheduledFor.Format(time.RFC3339), recurrence))
	}
}
