package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew_registersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ToolInvocations.WithLabelValues("echo", "ok").Inc()
	m.MCPServerState.WithLabelValues("fs").Set(3)

	var metric dto.Metric
	if err := m.ToolInvocations.WithLabelValues("echo", "ok").Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Fatalf("want counter 1, got %v", metric.Counter.GetValue())
	}
}
