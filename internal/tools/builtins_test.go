package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/toolregistry"
)

func TestReadWriteFile_roundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := toolregistry.New()
	if err := RegisterBuiltins(reg, dir, nil); err != nil {
		t.Fatal(err)
	}

	writeArgs, _ := json.Marshal(map[string]string{"path": "note.txt", "content": "hello world"})
	res, err := reg.Invoke(context.Background(), "write_file", writeArgs)
	if err != nil || !res.OK {
		t.Fatalf("write_file failed: err=%v res=%+v", err, res)
	}

	if _, err := os.Stat(filepath.Join(dir, "note.txt")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	readArgs, _ := json.Marshal(map[string]string{"path": "note.txt"})
	res, err = reg.Invoke(context.Background(), "read_file", readArgs)
	if err != nil || !res.OK {
		t.Fatalf("read_file failed: err=%v res=%+v", err, res)
	}
	var content string
	if err := json.Unmarshal(res.Value, &content); err != nil {
		t.Fatal(err)
	}
	if content != "hello world" {
		t.Fatalf("want %q, got %q", "hello world", content)
	}
}

func TestDiffText_reportsChange(t *testing.T) {
	reg := toolregistry.New()
	if err := RegisterBuiltins(reg, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}
	args, _ := json.Marshal(map[string]string{"before": "foo", "after": "foobar"})
	res, err := reg.Invoke(context.Background(), "diff_text", args)
	if err != nil || !res.OK {
		t.Fatalf("diff_text failed: err=%v res=%+v", err, res)
	}
	var out string
	if err := json.Unmarshal(res.Value, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bar") {
		t.Fatalf("expected the diff to report the inserted text, got %q", out)
	}
}

func TestRegisterBuiltins_withoutJobScheduler_omitsScheduleTool(t *testing.T) {
	reg := toolregistry.New()
	if err := RegisterBuiltins(reg, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}
	for _, spec := range reg.List(toolregistry.ListFilter{}) {
		if spec.Name == "schedule_tool" {
			t.Fatal("schedule_tool must not be registered when no JobScheduler is given")
		}
	}
}

type fakeJobs struct {
	lastTool string
	lastArgs json.RawMessage
	lastTime time.Time
	lastRec  string
}

func (f *fakeJobs) ScheduleJob(tool string, args json.RawMessage, scheduledFor time.Time, recurrence string) (string, error) {
	f.lastTool, f.lastArgs, f.lastTime, f.lastRec = tool, args, scheduledFor, recurrence
	return "job-1", nil
}

func TestScheduleTool_queuesJob(t *testing.T) {
	reg := toolregistry.New()
	jobs := &fakeJobs{}
	if err := RegisterBuiltins(reg, t.TempDir(), jobs); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	args, _ := json.Marshal(map[string]any{
		"tool": "diff_text",
		"args": map[string]string{"before": "a", "after": "b"},
		"time": future,
	})
	res, err := reg.Invoke(context.Background(), "schedule_tool", args)
	if err != nil || !res.OK {
		t.Fatalf("schedule_tool failed: err=%v res=%+v", err, res)
	}
	if jobs.lastTool != "diff_text" {
		t.Fatalf("want tool diff_text, got %q", jobs.lastTool)
	}
	if jobs.lastRec != "once" {
		t.Fatalf("want default recurrence once, got %q", jobs.lastRec)
	}
}

func TestScheduleTool_rejectsBadRecurrence(t *testing.T) {
	reg := toolregistry.New()
	jobs := &fakeJobs{}
	if err := RegisterBuiltins(reg, t.TempDir(), jobs); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	args, _ := json.Marshal(map[string]any{"tool": "diff_text", "time": future, "recurrence": "weekly"})
	res, err := reg.Invoke(context.Background(), "schedule_tool", args)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if res.OK {
		t.Fatal("expected weekly recurrence to be rejected")
	}
}

func TestGenerateQRCode_writesFileAndReturnsImageEnvelope(t *testing.T) {
	dir := t.TempDir()
	reg := toolregistry.New()
	if err := RegisterBuiltins(reg, dir, nil); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]string{"content": "hello", "path": "code.png"})
	res, err := reg.Invoke(context.Background(), "generate_qrcode", args)
	if err != nil || !res.OK {
		t.Fatalf("generate_qrcode failed: err=%v res=%+v", err, res)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "code.png"))
	if err != nil {
		t.Fatalf("expected a PNG file on disk: %v", err)
	}
	if len(onDisk) == 0 {
		t.Fatal("expected non-empty PNG bytes")
	}

	var envelope domain.ToolImageResult
	if err := json.Unmarshal(res.Value, &envelope); err != nil {
		t.Fatalf("expected a ToolImageResult envelope: %v", err)
	}
	if envelope.MimeType != "image/png" {
		t.Fatalf("want image/png, got %q", envelope.MimeType)
	}
	decoded, err := base64.StdEncoding.DecodeString(envelope.ImageBase64)
	if err != nil {
		t.Fatalf("expected valid base64: %v", err)
	}
	if string(decoded) != string(onDisk) {
		t.Fatal("expected the envelope's base64 bytes to match the file written to disk")
	}
}
