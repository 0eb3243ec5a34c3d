// Package metrics exposes Prometheus collectors for turns, handler runs, and
// completion calls. Collectors live on a private registry so several
// orchestrators (and tests) never collide on the default one.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanmello/lilli/internal/llm"
)

// Turn statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Metrics groups the collectors.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	handlerRuns    *prometheus.CounterVec
	completions    *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	confidence     prometheus.Histogram
	turnDuration   prometheus.Histogram
	activeSessions prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lilli_turns_total",
				Help: "Total number of turns handled, by outcome",
			},
			[]string{"status"},
		),
		handlerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lilli_handler_runs_total",
				Help: "Total number of handler invocations, by handler and outcome",
			},
			[]string{"handler", "status"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lilli_completions_total",
				Help: "Total number of text-completion calls, by request name and outcome",
			},
			[]string{"name", "status"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lilli_tool_calls_total",
				Help: "Total number of handler tool calls, by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lilli_classification_confidence",
				Help:    "Confidence reported by the classifier",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lilli_turn_duration_seconds",
				Help:    "Turn duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lilli_active_sessions",
				Help: "Number of sessions held in memory",
			},
		),
	}

	m.registry.MustRegister(m.turns, m.handlerRuns, m.completions, m.toolCalls, m.confidence, m.turnDuration, m.activeSessions)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(status).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// ObserveClassification records the classifier's confidence.
func (m *Metrics) ObserveClassification(confidence float64) {
	if m == nil {
		return
	}
	m.confidence.Observe(confidence)
}

// ObserveHandler records one handler run.
func (m *Metrics) ObserveHandler(handler string, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.handlerRuns.WithLabelValues(handler, status).Inc()
}

// ObserveToolCall records one tool call made by a handler.
func (m *Metrics) ObserveToolCall(tool string, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// SetActiveSessions records the number of in-memory sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Instrument wraps a completer so every call is counted.
func (m *Metrics) Instrument(c llm.Completer) llm.Completer {
	if m == nil {
		return c
	}
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (json.RawMessage, error) {
		raw, err := c.Complete(ctx, req)
		status := StatusOK
		switch {
		case llm.IsTimeout(err):
			status = "timeout"
		case err != nil:
			status = StatusFailed
		}
		m.completions.WithLabelValues(req.Name, status).Inc()
		return raw, err
	})
}

// WriteTextfile writes all collectors in the text exposition format, for
// the node-exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if !strings.HasSuffix(path, ".prom") {
		return fmt.Errorf("metrics textfile %q must end in .prom", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
