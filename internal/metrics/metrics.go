// Package metrics exposes the host's Prometheus instrumentation. No teacher
// file wires Prometheus (internal/config/logger.go is the teacher's only
// observability surface, plain file logging); this package is grounded on
// the wider pack's convention of a single registry-backed metrics struct
// passed into each component that needs it, rather than package-level
// globals, so tests can construct an isolated registry per case.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric a host process exports.
type Registry struct {
	MCPServerState     *prometheus.GaugeVec
	ToolInvocations    *prometheus.CounterVec
	ToolDuration       *prometheus.HistogramVec
	BusQueueDepth      prometheus.Gauge
	TurnsTotal         *prometheus.CounterVec
	TurnDuration       *prometheus.HistogramVec
}

// New registers every metric against reg and returns the bundle. Pass
// prometheus.NewRegistry() in tests, or prometheus.DefaultRegisterer in a
// running process.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		MCPServerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "mcp",
			Name:      "server_state",
			Help:      "Current state (as an enum ordinal) of each configured MCP server.",
		}, []string{"server"}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Tool invocations by name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Subsystem: "tools",
			Name:      "invocation_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		BusQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Number of buffered, unconsumed events on the message bus.",
		}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "runtime",
			Name:      "turns_total",
			Help:      "Agent turns by agent and finish reason.",
		}, []string{"agent", "reason"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Subsystem: "runtime",
			Name:      "turn_seconds",
			Help:      "Wall-clock duration of a full agent turn, including tool round-trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
	}

	reg.MustRegister(
		m.MCPServerState,
		m.ToolInvocations,
		m.ToolDuration,
		m.BusQueueDepth,
		m.TurnsTotal,
		m.TurnDuration,
	)
	return m
}
