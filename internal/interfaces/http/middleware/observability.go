package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rowens2025/powervisualize/internal/infrastructure/telemetry"
)

// Pyroscope label keys set on profiled requests.
const (
	ProfileLabelMethod   = "method"
	ProfileLabelRoute    = "route"
	ProfileLabelEndpoint = "endpoint"
)

// ObservabilityConfig selects the per-request instrumentation.
type ObservabilityConfig struct {
	ServiceName string
	Tracing     bool
	Profiling   bool
	// Metrics records request latency when non-nil.
	Metrics *telemetry.AssistantMetrics
	// SkipPaths are neither traced nor profiled.
	SkipPaths []string
}

// DefaultObservabilityConfig skips the probes and enables nothing.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName: "powervisualize-assistant",
		SkipPaths:   []string{"/health", "/ready"},
	}
}

// Observability returns the instrumentation handlers in run order: the
// server span, span tagging, the latency histogram, then profiler labels.
// Parts that are switched off are left out, so the result may be empty.
func Observability(cfg ObservabilityConfig) []gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	var chain []gin.HandlerFunc
	if cfg.Tracing {
		chain = append(chain,
			otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
				return !skip[r.URL.Path]
			})),
			tagSpan,
		)
	}
	if cfg.Metrics != nil {
		chain = append(chain, recordLatency(cfg.Metrics))
	}
	if cfg.Profiling {
		chain = append(chain, profileLabels(skip))
	}
	return chain
}

// tagSpan adds the request ID to the server span and marks 4xx and 5xx
// responses as errors.
func tagSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String(RequestIDKey, id))
	}

	c.Next()

	if status := c.Writer.Status(); status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(telemetry.AttrHTTPStatusCode.Int(status))
	}
}

func recordLatency(m *telemetry.AssistantMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		m.RecordHTTP(c.Request.Context(), c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(began))
	}
}

func profileLabels(skip map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		labels := map[string]string{ProfileLabelMethod: c.Request.Method}
		if route := c.FullPath(); route != "" {
			labels[ProfileLabelRoute] = route
			if ep := endpointOf(route); ep != "" {
				labels[ProfileLabelEndpoint] = ep
			}
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// routeOf returns the matched route pattern, never the raw path, so
// unmatched requests share one "unknown" series.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

// endpointOf names a route by its last literal segment:
// "/api/v1/ask" is "ask".
func endpointOf(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := parts[i]; p != "" && p[0] != ':' && p[0] != '*' {
			return p
		}
	}
	return ""
}
