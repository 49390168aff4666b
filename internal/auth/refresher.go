package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/endpoints"
	"golang.org/x/sync/singleflight"

	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/logging"
)

const (
	// defaultRefreshTimeout bounds the outbound token-endpoint call. There is
	// no retry at this layer; the calling tool handler decides whether to
	// prompt for re-authentication.
	defaultRefreshTimeout = 30 * time.Second

	// defaultExpiresIn is assumed when the provider response omits expires_in.
	defaultExpiresIn = 3600
)

// Refresher exchanges refresh tokens with the Microsoft identity platform
// token endpoint and persists the resulting records through the Store.
//
// Every refresh requests the full configured scope set, never a narrowed
// subset, so a token refreshed for one domain stays usable by the others.
type Refresher struct {
	store      *Store
	clientID   string
	tokenURL   string
	scopes     []string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time

	// group collapses concurrent refreshes for the same user into one
	// token-endpoint exchange. The provider rotates refresh tokens, so a
	// second in-flight exchange with the same token would be rejected as
	// already redeemed.
	group singleflight.Group
}

// NewRefresher creates a Refresher for the given app registration. An empty
// tenant defaults to the "common" multi-tenant endpoint.
func NewRefresher(store *Store, clientID, tenant string, logger *slog.Logger) *Refresher {
	if tenant == "" {
		tenant = "common"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		store:      store,
		clientID:   clientID,
		tokenURL:   endpoints.AzureAD(tenant).TokenURL,
		scopes:     DefaultScopes,
		httpClient: &http.Client{Timeout: defaultRefreshTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// tokenResponse is the identity provider's JSON token-grant response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// SetMetrics attaches a metrics recorder. A nil recorder disables recording.
func (r *Refresher) SetMetrics(m *instrumentation.Metrics) {
	r.metrics = m
}

// Refresh exchanges a refresh token for a new access token, persists the new
// record, and returns it. Stored state is left untouched when the exchange
// fails. Callers that race on the same user share a single exchange and
// receive the same record.
func (r *Refresher) Refresh(ctx context.Context, userID, refreshToken string) (*TokenRecord, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if refreshToken == "" {
		return nil, &ValidationError{Field: "refreshToken", Reason: "must not be empty"}
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		record, err := r.exchange(ctx, userID, refreshToken)
		r.observe(ctx, err)
		if err != nil {
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenRecord), nil
}

// exchange performs the actual token-endpoint call and persists the result.
func (r *Refresher) exchange(ctx context.Context, userID, refreshToken string) (*TokenRecord, error) {
	form := url.Values{
		"client_id":     {r.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(r.scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenRefreshError{UserID: userID, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("token endpoint unreachable", logging.UserHash(userID), logging.Err(err))
		return nil, &TokenRefreshError{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TokenRefreshError{UserID: userID, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("token endpoint rejected refresh",
			logging.UserHash(userID),
			slog.Int("status", resp.StatusCode))
		return nil, &TokenRefreshError{
			UserID: userID,
			Err:    fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &TokenRefreshError{UserID: userID, Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &TokenRefreshError{UserID: userID, Err: fmt.Errorf("token response missing access_token")}
	}

	record := r.buildRecord(&tr, refreshToken)
	if err := r.store.Save(userID, record); err != nil {
		return nil, err
	}

	r.logger.Info("token refreshed",
		logging.UserHash(userID),
		slog.Time("expires_at", record.ExpiryTime()))
	return record, nil
}

// observe records one refresh attempt on the attached metrics recorder.
func (r *Refresher) observe(ctx context.Context, err error) {
	if r.metrics == nil {
		return
	}
	result := instrumentation.ResultSuccess
	if err != nil {
		result = instrumentation.ResultFailure
	}
	r.metrics.RecordTokenRefresh(ctx, result)
}

// buildRecord turns a provider response into a TokenRecord, reusing the
// previous refresh token when the provider did not rotate it.
func (r *Refresher) buildRecord(tr *tokenResponse, previousRefreshToken string) *TokenRecord {
	record := &TokenRecord{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		Scope:        tr.Scope,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
	}
	if record.RefreshToken == "" {
		record.RefreshToken = previousRefreshToken
	}
	if record.Scope == "" {
		record.Scope = strings.Join(r.scopes, " ")
	}
	if record.TokenType == "" {
		record.TokenType = "Bearer"
	}
	if record.ExpiresIn == 0 {
		record.ExpiresIn = defaultExpiresIn
	}
	record.ExpiresAt = r.now().Add(time.Duration(record.ExpiresIn) * time.Second).UnixMilli()
	return record
}
