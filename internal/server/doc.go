// Package server provides the MCP server context and its operational HTTP
// surface.
//
// ServerContext owns the authentication subsystem (token store, refresher,
// credential resolver, auth flow initiator), the session registry, and a
// lazily created Graph client per user. Tool handlers receive a ServerContext
// and reach all shared state through it.
//
// MetricsServer exposes Prometheus metrics on a dedicated port, and
// HealthChecker serves liveness and readiness probes; readiness includes a
// token store reachability check since every tool call depends on it.
package server
