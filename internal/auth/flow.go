package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// flowStarted is the companion server's status for a successfully
	// started authorization flow.
	flowStarted = "authentication_started"

	defaultFlowTimeout = 15 * time.Second

	// DefaultAuthServerURL is where the companion authorization server
	// listens by default.
	DefaultAuthServerURL = "http://localhost:3333"

	// DefaultRedirectURI is the companion server's callback endpoint.
	DefaultRedirectURI = "http://localhost:3333/auth/callback"

	// flowState is the fixed state token sent with every start request. CSRF
	// protection for the browser-facing leg is the companion server's
	// responsibility; this value only correlates the start request.
	flowState = "outlookmcp-auth"
)

// FlowConfig configures authentication flow initiation.
type FlowConfig struct {
	// AuthServerURL is the base URL of the companion authorization server.
	AuthServerURL string

	// ClientID is the app registration used for the authorization request.
	ClientID string

	// RedirectURI is where the identity provider redirects after consent.
	RedirectURI string

	// Scopes requested when a start request does not override them.
	// Defaults to the full configured scope set.
	Scopes []string

	// Timeout bounds each HTTP round-trip to the companion server.
	Timeout time.Duration
}

// FlowInitiator starts authorization flows against the companion
// authorization server and polls their status. It holds no flow state of its
// own: the companion server performs the redirect and code exchange and makes
// the resulting token observable through the shared token store.
type FlowInitiator struct {
	config     FlowConfig
	resolver   *Resolver
	httpClient *http.Client
	logger     *slog.Logger
}

// FlowStart is the companion server's response to a start request.
type FlowStart struct {
	Status  string `json:"status"`
	AuthURL string `json:"authUrl"`
}

// FlowStatus is the companion server's view of the current authentication
// attempt, with the "default" user substitution already applied.
type FlowStatus struct {
	Authenticated    bool   `json:"authenticated"`
	UserID           string `json:"userId"`
	IsAuthenticating bool   `json:"isAuthenticating"`
}

// NewFlowInitiator creates a FlowInitiator. The resolver is used to overlay
// the default-user substitution on status responses.
func NewFlowInitiator(config FlowConfig, resolver *Resolver, logger *slog.Logger) *FlowInitiator {
	if config.AuthServerURL == "" {
		config.AuthServerURL = DefaultAuthServerURL
	}
	if config.RedirectURI == "" {
		config.RedirectURI = DefaultRedirectURI
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.Timeout == 0 {
		config.Timeout = defaultFlowTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowInitiator{
		config:     config,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// StartFlow asks the companion server to begin an authorization flow and
// returns the URL the user must visit. Passing no scopes requests the full
// configured set.
func (f *FlowInitiator) StartFlow(ctx context.Context, scopes []string) (*FlowStart, error) {
	if len(scopes) == 0 {
		scopes = f.config.Scopes
	}

	payload, err := json.Marshal(map[string]any{
		"clientId":    f.config.ClientID,
		"scopes":      strings.Join(scopes, " "),
		"redirectUri": f.config.RedirectURI,
		"state":       flowState,
	})
	if err != nil {
		return nil, &AuthFlowError{Op: "start", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.config.AuthServerURL+"/auth/start", bytes.NewReader(payload))
	if err != nil {
		return nil, &AuthFlowError{Op: "start", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &AuthFlowError{Op: "start", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthFlowError{Op: "start", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthFlowError{
			Op:  "start",
			Err: fmt.Errorf("auth server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var start FlowStart
	if err := json.Unmarshal(body, &start); err != nil {
		return nil, &AuthFlowError{Op: "start", Err: fmt.Errorf("malformed auth server response: %w", err)}
	}
	if start.Status != flowStarted || start.AuthURL == "" {
		return nil, &AuthFlowError{
			Op:  "start",
			Err: fmt.Errorf("unexpected auth server response: status %q", start.Status),
		}
	}

	f.logger.Info("authentication flow started", slog.String("auth_server", f.config.AuthServerURL))
	return &start, nil
}

// CheckStatus queries the companion server for the current authentication
// state. When the server reports no concrete user and exactly one user is
// stored, that user's id is substituted.
func (f *FlowInitiator) CheckStatus(ctx context.Context) (*FlowStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.config.AuthServerURL+"/auth/status", nil)
	if err != nil {
		return nil, &AuthFlowError{Op: "status", Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &AuthFlowError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthFlowError{
			Op:  "status",
			Err: fmt.Errorf("auth server returned %d", resp.StatusCode),
		}
	}

	var status FlowStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&status); err != nil {
		return nil, &AuthFlowError{Op: "status", Err: fmt.Errorf("malformed auth server response: %w", err)}
	}

	if f.resolver != nil && (status.UserID == "" || status.UserID == DefaultUserID) {
		if userID, err := f.resolver.ResolveDefaultUser(); err == nil && userID != "" {
			status.UserID = userID
		}
	}
	return &status, nil
}
