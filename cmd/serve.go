package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/server"
	"outlookmcp/internal/tools/auth_tools"
	"outlookmcp/internal/tools/calendar_tools"
	"outlookmcp/internal/tools/folder_tools"
	"outlookmcp/internal/tools/mail_tools"
	"outlookmcp/internal/tools/rule_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// ServeConfig holds the settings for the serve command after flags and
// environment variables are merged.
type ServeConfig struct {
	Transport     string
	HTTPAddr      string
	Debug         bool
	Yolo          bool
	TokenPath     string
	ClientID      string
	Tenant        string
	AuthServerURL string
	GraphBaseURL  string
	Metrics       MetricsConfig
}

func newServeCmd() *cobra.Command {
	var config ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide Outlook mail,
calendar, folder and inbox rule tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (sending mail, moving messages, etc.)

Authentication:
  Tokens are kept in a file shared with the companion authorization server
  (default: ~/.outlook-mcp-tokens.json, override with --token-path or
  OUTLOOK_MCP_TOKEN_PATH). Token refresh needs the Azure application id
  (--client-id or MS_CLIENT_ID). The authenticate tool hands the sign-in off
  to the authorization server (--auth-server-url or AUTH_SERVER_URL).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &config)
			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&config.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.Transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&config.Yolo, "yolo", false, "Enable write operations (sending mail, moving messages, creating rules). Default is read-only mode.")
	cmd.Flags().StringVar(&config.TokenPath, "token-path", "", "Token store file. Can also use OUTLOOK_MCP_TOKEN_PATH env var. Default: ~/.outlook-mcp-tokens.json")
	cmd.Flags().StringVar(&config.ClientID, "client-id", "", "Azure application (client) id for token refresh. Can also use MS_CLIENT_ID env var.")
	cmd.Flags().StringVar(&config.Tenant, "tenant", "", "Azure tenant (default: common). Can also use MS_TENANT_ID env var.")
	cmd.Flags().StringVar(&config.AuthServerURL, "auth-server-url", "", "Companion authorization server base URL. Can also use AUTH_SERVER_URL env var. Default: http://localhost:3333")
	cmd.Flags().StringVar(&config.GraphBaseURL, "graph-base-url", "", "Microsoft Graph endpoint override for national clouds. Can also use GRAPH_BASE_URL env var.")
	cmd.Flags().BoolVar(&config.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&config.Metrics.Addr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills in settings from the environment. Environment
// variables only apply when the corresponding flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) {
	if !cmd.Flags().Changed("token-path") && config.TokenPath == "" {
		config.TokenPath = os.Getenv("OUTLOOK_MCP_TOKEN_PATH")
	}
	if !cmd.Flags().Changed("client-id") && config.ClientID == "" {
		config.ClientID = os.Getenv("MS_CLIENT_ID")
	}
	if !cmd.Flags().Changed("tenant") && config.Tenant == "" {
		config.Tenant = os.Getenv("MS_TENANT_ID")
	}
	if !cmd.Flags().Changed("auth-server-url") && config.AuthServerURL == "" {
		config.AuthServerURL = os.Getenv("AUTH_SERVER_URL")
	}
	if !cmd.Flags().Changed("graph-base-url") && config.GraphBaseURL == "" {
		config.GraphBaseURL = os.Getenv("GRAPH_BASE_URL")
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			config.Metrics.Enabled = v == "true"
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Metrics.Addr = addr
		}
	}
}

func runServe(config ServeConfig) error {
	if config.ClientID == "" {
		return fmt.Errorf("client id is required (--client-id flag or MS_CLIENT_ID env var)")
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// On stdio, stdout carries the protocol; all logging goes to stderr.
	logLevel := slog.LevelInfo
	if config.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		TokenPath:     config.TokenPath,
		ClientID:      config.ClientID,
		Tenant:        config.Tenant,
		AuthServerURL: config.AuthServerURL,
		GraphBaseURL:  config.GraphBaseURL,
		ReadOnly:      !config.Yolo,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAudit(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	healthChecker := server.NewHealthChecker(serverContext)

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if config.Transport != "stdio" && config.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    config.Metrics.Addr,
			InstrumentationProvider: provider,
			HealthChecker:           healthChecker,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("outlookmcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !config.Yolo

	// Log the mode for visibility (only for non-stdio transports)
	if config.Transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch config.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, healthChecker, config, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", config.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools.
// Extracted so serve and generate-docs share one registration path.
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Authentication",
			register: func() error {
				return auth_tools.RegisterAuthTools(mcpSrv, ctx)
			},
		},
		{
			name: "Mail",
			register: func() error {
				return mail_tools.RegisterMailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Folders",
			register: func() error {
				return folder_tools.RegisterFolderTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Rules",
			register: func() error {
				return rule_tools.RegisterRuleTools(mcpSrv, ctx, readOnly)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, healthChecker *server.HealthChecker, config ServeConfig, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	healthChecker.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := config.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	log.Printf("Streamable HTTP server starting on %s", config.HTTPAddr)
	log.Printf("  HTTP endpoint: http://%s/mcp", addr)
	log.Printf("  Health endpoints: /healthz, /readyz")
	if config.Metrics.Enabled {
		log.Printf("  Metrics endpoint: %s/metrics", config.Metrics.Addr)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
