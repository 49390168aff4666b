package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/graph"
	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/session"
)

// Config carries the settings the server context needs to assemble the
// authentication subsystem.
type Config struct {
	// TokenPath is the token store file. Empty uses the auth package default.
	TokenPath string

	// ClientID is the Azure application (client) id used for token refresh.
	ClientID string

	// Tenant is the Azure tenant, defaulting to "common".
	Tenant string

	// AuthServerURL is the companion authorization server base URL.
	AuthServerURL string

	// GraphBaseURL overrides the Microsoft Graph endpoint, for
	// national-cloud deployments. Empty uses the public cloud.
	GraphBaseURL string

	// ReadOnly disables mutating tools when true.
	ReadOnly bool

	// Logger is the base logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// ServerContext owns the long-lived components of the MCP server: the token
// store and its resolver, the auth flow initiator, the session registry, and
// one Graph client per user. Tool handlers receive a ServerContext and reach
// everything through it.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	store     *auth.Store
	refresher *auth.Refresher
	resolver  *auth.Resolver
	flow      *auth.FlowInitiator
	sessions  *session.Registry

	logger       *slog.Logger
	readOnly     bool
	graphBaseURL string

	mu           sync.RWMutex
	graphClients map[string]*graph.Client
	metrics      *instrumentation.Metrics
	audit        *instrumentation.AuditLogger
	shutdown     bool
}

// NewServerContext assembles a server context from the given configuration.
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	store := auth.NewStore(config.TokenPath, logger)
	refresher := auth.NewRefresher(store, config.ClientID, config.Tenant, logger)
	resolver := auth.NewResolver(store, refresher, logger)

	flowConfig := auth.FlowConfig{
		AuthServerURL: config.AuthServerURL,
		ClientID:      config.ClientID,
	}
	flow := auth.NewFlowInitiator(flowConfig, resolver, logger)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		store:        store,
		refresher:    refresher,
		resolver:     resolver,
		flow:         flow,
		sessions:     session.NewRegistryWithOptions(session.DefaultTimeout, logger, nil, nil),
		logger:       logger,
		readOnly:     config.ReadOnly,
		graphBaseURL: config.GraphBaseURL,
		graphClients: make(map[string]*graph.Client),
	}, nil
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the token store.
func (sc *ServerContext) Store() *auth.Store {
	return sc.store
}

// Refresher returns the token refresher.
func (sc *ServerContext) Refresher() *auth.Refresher {
	return sc.refresher
}

// Resolver returns the credential resolver.
func (sc *ServerContext) Resolver() *auth.Resolver {
	return sc.resolver
}

// Flow returns the authentication flow initiator.
func (sc *ServerContext) Flow() *auth.FlowInitiator {
	return sc.flow
}

// Sessions returns the session registry.
func (sc *ServerContext) Sessions() *session.Registry {
	return sc.sessions
}

// Logger returns the base logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether mutating tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// GraphClientForUser returns the Graph client for a user, creating and
// caching it on first use. The client resolves credentials per request, so
// caching it never pins a token.
func (sc *ServerContext) GraphClientForUser(userID string) *graph.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.graphClients[userID]; ok {
		return client
	}

	client := graph.NewClient(userID, sc.resolver, sc.logger)
	client.SetBaseURL(sc.graphBaseURL)
	client.SetMetrics(sc.metrics)
	sc.graphClients[userID] = client
	return client
}

// DropGraphClient removes a cached Graph client, used after revocation.
func (sc *ServerContext) DropGraphClient(userID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.graphClients, userID)
}

// SetMetrics attaches a metrics recorder and propagates it to the refresher,
// the resolver, the session registry, and existing Graph clients. Call before
// serving traffic.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
	sc.refresher.SetMetrics(m)
	sc.resolver.SetMetrics(m)
	sc.sessions.SetMetrics(m)
	for _, client := range sc.graphClients {
		client.SetMetrics(m)
	}
}

// Metrics returns the attached metrics recorder, possibly nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAudit attaches an audit logger.
func (sc *ServerContext) SetAudit(a *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.audit = a
}

// Audit returns the attached audit logger, possibly nil.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the session registry and cancels the server context.
// It is idempotent.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.sessions.Stop()
	sc.cancel()
	return nil
}
