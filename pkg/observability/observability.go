// Package observability records runtime metrics (agent turns, tool calls,
// LLM generations) through OpenTelemetry's metric API, exported via the
// OTel Prometheus bridge so a standard /metrics scrape works once the
// caller mounts promhttp.Handler().
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records runtime metrics for the agent loop. Implementations
// must tolerate a nil receiver so a component can hold an unconditional
// Recorder field and skip the "is it configured" check at every call site.
type Recorder interface {
	RecordAgentTurn(ctx context.Context, agentName string, duration time.Duration, err error)
	RecordToolCall(toolName string, duration time.Duration)
	RecordToolError(toolName string, reason string)
	RecordLLMCall(ctx context.Context, modelName string, duration time.Duration, inputTokens, outputTokens int, err error)
}

// Noop discards every metric. The zero value is ready to use.
type Noop struct{}

func (Noop) RecordAgentTurn(context.Context, string, time.Duration, error)             {}
func (Noop) RecordToolCall(string, time.Duration)                                      {}
func (Noop) RecordToolError(string, string)                                            {}
func (Noop) RecordLLMCall(context.Context, string, time.Duration, int, int, error)     {}

var _ Recorder = Noop{}

// OTelRecorder is the default Recorder, backed by an OTel MeterProvider.
type OTelRecorder struct {
	agentDuration metric.Float64Histogram
	agentCalls    metric.Int64Counter
	agentErrors   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter
}

// NewPrometheusRecorder builds an OTelRecorder wired to a fresh Prometheus
// exporter and registers its instruments against meter name "adk-go". The
// exporter registers itself against the default Prometheus registry, so a
// caller only needs to mount promhttp.Handler(); this package does not own
// an HTTP server.
func NewPrometheusRecorder() (*OTelRecorder, *sdkmetric.MeterProvider, error) {
	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := mp.Meter("adk-go")

	r := &OTelRecorder{}
	var errs [11]error
	r.agentDuration, errs[0] = meter.Float64Histogram("agent_call_duration_seconds")
	r.agentCalls, errs[1] = meter.Int64Counter("agent_calls_total")
	r.agentErrors, errs[2] = meter.Int64Counter("agent_errors_total")
	r.toolDuration, errs[3] = meter.Float64Histogram("tool_call_duration_seconds")
	r.toolCalls, errs[4] = meter.Int64Counter("tool_calls_total")
	r.toolErrors, errs[5] = meter.Int64Counter("tool_errors_total")
	r.llmDuration, errs[6] = meter.Float64Histogram("llm_call_duration_seconds")
	r.llmInputTokens, errs[7] = meter.Int64Counter("llm_input_tokens_total")
	r.llmOutputTokens, errs[8] = meter.Int64Counter("llm_output_tokens_total")
	r.llmErrors, errs[9] = meter.Int64Counter("llm_errors_total")
	for _, e := range errs {
		if e != nil {
			return nil, nil, fmt.Errorf("observability: register instrument: %w", e)
		}
	}
	return r, mp, nil
}

func (r *OTelRecorder) RecordAgentTurn(ctx context.Context, agentName string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agentName))
	r.agentDuration.Record(ctx, duration.Seconds(), attrs)
	r.agentCalls.Add(ctx, 1, attrs)
	if err != nil {
		r.agentErrors.Add(ctx, 1, attrs)
	}
}

func (r *OTelRecorder) RecordToolCall(toolName string, duration time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", toolName))
	r.toolDuration.Record(context.Background(), duration.Seconds(), attrs)
	r.toolCalls.Add(context.Background(), 1, attrs)
}

func (r *OTelRecorder) RecordToolError(toolName string, reason string) {
	if r == nil {
		return
	}
	r.toolErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("reason", reason),
	))
}

func (r *OTelRecorder) RecordLLMCall(ctx context.Context, modelName string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", modelName))
	r.llmDuration.Record(ctx, duration.Seconds(), attrs)
	r.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	r.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		r.llmErrors.Add(ctx, 1, attrs)
	}
}

var _ Recorder = (*OTelRecorder)(nil)
