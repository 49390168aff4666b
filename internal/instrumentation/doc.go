// Package instrumentation provides OpenTelemetry-based metrics and tracing
// for the MCP server.
//
// The Provider wires metric and trace exporters (Prometheus by default, OTLP
// or stdout for development) and exposes a Metrics recorder with instruments
// for Graph API calls, token lifecycle events, and MCP tool invocations. An
// AuditLogger produces the structured audit trail for authentication and
// tool activity.
//
// Instrumentation is optional: a disabled Provider hands out no-op recorders
// so callers never need nil checks.
package instrumentation
