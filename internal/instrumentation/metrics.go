package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys, shared across instruments.
const (
	attrDomain    = "domain"
	attrOperation = "operation"
	attrStatus    = "status"
	attrResult    = "result"
	attrReason    = "reason"
	attrTool      = "tool"
	attrUser      = "user"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder.
type Metrics struct {
	// Microsoft Graph API metrics
	graphOperationsTotal   metric.Int64Counter
	graphOperationDuration metric.Float64Histogram

	// Token lifecycle metrics
	tokenRefreshTotal       metric.Int64Counter
	authFlowsTotal          metric.Int64Counter
	credentialMissesTotal   metric.Int64Counter
	credentialResolvedTotal metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
	activeSessions       metric.Int64UpDownCounter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments registered on meter.
// The detailedLabels parameter controls whether high-cardinality labels (the
// anonymized user id) are included on tool metrics.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.graphOperationsTotal, err = meter.Int64Counter(
		"graph_api_operations_total",
		metric.WithDescription("Total number of Microsoft Graph API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph_api_operations_total counter: %w", err)
	}

	m.graphOperationDuration, err = meter.Float64Histogram(
		"graph_api_operation_duration_seconds",
		metric.WithDescription("Microsoft Graph API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph_api_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.authFlowsTotal, err = meter.Int64Counter(
		"oauth_auth_flows_total",
		metric.WithDescription("Total number of browser authentication flows started"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_flows_total counter: %w", err)
	}

	m.credentialMissesTotal, err = meter.Int64Counter(
		"credential_resolution_misses_total",
		metric.WithDescription("Total number of credential resolutions that yielded no usable token"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_resolution_misses_total counter: %w", err)
	}

	m.credentialResolvedTotal, err = meter.Int64Counter(
		"credential_resolutions_total",
		metric.WithDescription("Total number of successful credential resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_resolutions_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of active MCP sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	return m, nil
}

// RecordGraphOperation records a Microsoft Graph API operation.
//
// Parameters:
//   - domain: Graph domain (mail, calendar, folder, rule)
//   - operation: Operation type (list, get, create, update, delete, send, move)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGraphOperation(ctx context.Context, domain, operation, status string, duration time.Duration) {
	if m.graphOperationsTotal == nil || m.graphOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrDomain, domain),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.graphOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.graphOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records a token refresh attempt.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordAuthFlowStarted records a browser authentication flow start attempt.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordAuthFlowStarted(ctx context.Context, result string) {
	if m.authFlowsTotal == nil {
		return
	}

	m.authFlowsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordCredentialResolved records a credential resolution that produced a
// usable token.
func (m *Metrics) RecordCredentialResolved(ctx context.Context) {
	if m.credentialResolvedTotal == nil {
		return
	}

	m.credentialResolvedTotal.Add(ctx, 1)
}

// RecordCredentialMiss records a credential resolution that yielded no usable
// token. Reason is one of the Miss* constants.
func (m *Metrics) RecordCredentialMiss(ctx context.Context, reason string) {
	if m.credentialMissesTotal == nil {
		return
	}

	m.credentialMissesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrReason, reason),
	))
}

// RecordToolInvocation records an MCP tool invocation.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "list_messages", "create_event")
//   - status: Result status ("success" or "error")
//   - userHash: Anonymized user id (only included if detailedLabels is on)
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, userHash string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && userHash != "" {
		attrs = append(attrs, attribute.String(attrUser, userHash))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, -1)
}
