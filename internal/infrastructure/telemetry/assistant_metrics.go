package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// AssistantMetrics holds the instruments of the ask pipeline.
// A nil *AssistantMetrics records nothing.
type AssistantMetrics struct {
	requests    metric.Int64Counter
	intents     metric.Int64Counter
	guard       metric.Int64Counter
	moderation  metric.Int64Counter
	retrieval   metric.Float64Histogram
	generation  metric.Float64Histogram
	httpLatency metric.Float64Histogram
}

// NewAssistantMetrics creates the assistant instruments on meter.
func NewAssistantMetrics(meter metric.Meter) (*AssistantMetrics, error) {
	in := &instruments{meter: meter}
	m := &AssistantMetrics{
		requests:    in.counter("assistant.requests", "Ask requests by outcome", "{request}"),
		intents:     in.counter("assistant.intents", "Classified intents", "{message}"),
		guard:       in.counter("assistant.guard.decisions", "Abuse guard decisions", "{decision}"),
		moderation:  in.counter("assistant.moderation.blocked", "Messages refused by moderation", "{message}"),
		retrieval:   in.seconds("assistant.retrieval.duration", "Evidence retrieval duration", queryBuckets),
		generation:  in.seconds("assistant.generator.duration", "Generator call duration", generatorBuckets),
		httpLatency: in.seconds("http.server.request.duration", "HTTP request duration", httpBuckets),
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordRequest counts one finished ask by outcome (answered, ack, refused, limited, error).
func (m *AssistantMetrics) RecordRequest(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	inc(ctx, m.requests, AttrOutcome.String(outcome))
}

func (m *AssistantMetrics) RecordIntent(ctx context.Context, intent string) {
	if m == nil {
		return
	}
	inc(ctx, m.intents, AttrIntent.String(intent))
}

func (m *AssistantMetrics) RecordGuard(ctx context.Context, decision string) {
	if m == nil {
		return
	}
	inc(ctx, m.guard, AttrGuardResult.String(decision))
}

func (m *AssistantMetrics) RecordModeration(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	inc(ctx, m.moderation, AttrModeration.String(reason))
}

// RecordRetrieval records one retrieval run.
func (m *AssistantMetrics) RecordRetrieval(ctx context.Context, resolution string, degraded bool, d time.Duration) {
	if m == nil {
		return
	}
	observe(ctx, m.retrieval, d, AttrResolution.String(resolution), AttrDegraded.Bool(degraded))
}

// RecordGeneration records one generator call; outcome is ok, timeout or error.
func (m *AssistantMetrics) RecordGeneration(ctx context.Context, provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	observe(ctx, m.generation, d, AttrProvider.String(provider), AttrOutcome.String(outcome))
}

func (m *AssistantMetrics) RecordHTTP(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	observe(ctx, m.httpLatency, d,
		AttrHTTPMethod.String(method),
		AttrHTTPRoute.String(route),
		AttrHTTPStatusCode.Int(status),
	)
}
