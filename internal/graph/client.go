package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/logging"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const requestTimeout = 30 * time.Second

// CredentialSource supplies a usable token record for a user, or nil when the
// user must authenticate first. auth.Resolver satisfies this interface.
type CredentialSource interface {
	Resolve(ctx context.Context, userID string, requiredScopes []string) (*auth.TokenRecord, error)
}

// NotAuthenticatedError indicates that no usable credential exists for the
// user. The caller should direct the user through the authentication flow.
type NotAuthenticatedError struct {
	UserID string
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("user %q is not authenticated", e.UserID)
}

// APIError is a decoded Microsoft Graph error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error %d: %s", e.StatusCode, e.Message)
}

// errorEnvelope is the wire shape of Graph error responses.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// listEnvelope is the wire shape of Graph collection responses.
type listEnvelope[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// Client is a Microsoft Graph REST client bound to one user. Every request
// resolves the user's credential anew, so the client never holds a token
// across calls and always sends a fresh one after a background refresh.
type Client struct {
	baseURL     string
	userID      string
	credentials CredentialSource
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
}

// NewClient creates a Graph client for the given user backed by the
// credential source.
func NewClient(userID string, credentials CredentialSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     DefaultBaseURL,
		userID:      userID,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
	}
}

// SetBaseURL overrides the Graph endpoint, for national-cloud deployments
// (e.g. graph.microsoft.us) and tests.
func (c *Client) SetBaseURL(baseURL string) {
	if baseURL != "" {
		c.baseURL = baseURL
	}
}

// SetMetrics attaches a metrics recorder. A nil recorder disables recording.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	c.metrics = m
}

// UserID returns the user this client acts for.
func (c *Client) UserID() string {
	return c.userID
}

// do executes one Graph request. requiredScopes feed credential resolution;
// out may be nil for endpoints that return no body (202/204).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, requiredScopes []string) error {
	record, err := c.credentials.Resolve(ctx, c.userID, requiredScopes)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials: %w", err)
	}
	if record == nil {
		return &NotAuthenticatedError{UserID: c.userID}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+record.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}

// decodeError turns a non-2xx response into an APIError. A body that is not
// the Graph error envelope still yields an APIError with the raw status.
func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(data) > 0 {
		var envelope errorEnvelope
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	c.logger.Warn("graph API call failed",
		logging.UserHash(c.userID),
		slog.Int("status", resp.StatusCode),
		slog.String("code", apiErr.Code),
	)
	return apiErr
}

// observe records one Graph operation on the attached metrics recorder.
func (c *Client) observe(ctx context.Context, domain, operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGraphOperation(ctx, domain, operation, status, time.Since(start))
}
