package auth

import (
	"context"
	"log/slog"
	"time"

	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/logging"
)

// DefaultUserID is the sentinel callers may pass instead of a concrete user
// id. It resolves to the sole stored user when exactly one exists and is
// rejected as ambiguous otherwise.
const DefaultUserID = "default"

// ExpiryLookahead is how close to expiry a token may get before resolution
// refreshes it. The window absorbs clock skew and request latency so a token
// handed out is still valid when the Graph call lands.
const ExpiryLookahead = 5 * time.Minute

// Resolver decides, for every inbound tool call, which stored token applies
// and whether it is usable without re-authentication. It never mutates token
// state directly; refreshed records flow through the Refresher and Store.
type Resolver struct {
	store     *Store
	refresher *Refresher
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	now       func() time.Time
}

// NewResolver creates a Resolver over the given store and refresher.
func NewResolver(store *Store, refresher *Refresher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics attaches a metrics recorder. A nil recorder disables recording.
func (r *Resolver) SetMetrics(m *instrumentation.Metrics) {
	r.metrics = m
}

// Resolve returns a usable token record for the user, refreshing it when the
// granted scopes do not cover requiredScopes or when expiry is within the
// look-ahead window. A nil record (with nil error) means no usable credential
// exists and the caller must authenticate; refresh failures are downgraded to
// that same outcome since an unrefreshable token is equivalent to no token.
func (r *Resolver) Resolve(ctx context.Context, userID string, requiredScopes []string) (*TokenRecord, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	record, err := r.store.Get(userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		r.observeMiss(ctx, instrumentation.MissUnknownUser)
		return nil, nil
	}

	if !ScopesCover(record.Scope, requiredScopes) {
		if record.RefreshToken == "" {
			r.logger.Warn("stored token lacks required scopes and has no refresh token; re-authentication required",
				logging.UserHash(userID))
			r.observeMiss(ctx, instrumentation.MissScopeNoRefreshToken)
			return nil, nil
		}
		return r.refresh(ctx, userID, record.RefreshToken), nil
	}

	if record.ExpiresWithin(r.now(), ExpiryLookahead) {
		if record.RefreshToken == "" {
			r.logger.Warn("stored token is expiring and has no refresh token; re-authentication required",
				logging.UserHash(userID))
			r.observeMiss(ctx, instrumentation.MissExpiryNoRefreshToken)
			return nil, nil
		}
		return r.refresh(ctx, userID, record.RefreshToken), nil
	}

	r.observeResolved(ctx)
	return record, nil
}

// refresh attempts a refresh and downgrades failure to "no credential".
func (r *Resolver) refresh(ctx context.Context, userID, refreshToken string) *TokenRecord {
	record, err := r.refresher.Refresh(ctx, userID, refreshToken)
	if err != nil {
		r.logger.Warn("token refresh failed during resolution",
			logging.UserHash(userID), logging.Err(err))
		r.observeMiss(ctx, instrumentation.MissRefreshFailed)
		return nil
	}
	r.observeResolved(ctx)
	return record
}

func (r *Resolver) observeResolved(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.RecordCredentialResolved(ctx)
	}
}

func (r *Resolver) observeMiss(ctx context.Context, reason string) {
	if r.metrics != nil {
		r.metrics.RecordCredentialMiss(ctx, reason)
	}
}

// ResolveDefaultUser returns the sole stored user's id when exactly one user
// exists. With zero or multiple users it returns an empty id: the ambiguity
// must be surfaced to the caller, never silently resolved to one of several.
func (r *Resolver) ResolveDefaultUser() (string, error) {
	users, err := r.store.ListUsers()
	if err != nil {
		return "", err
	}
	if len(users) == 1 {
		return users[0], nil
	}
	return "", nil
}

// ResolveUserID maps the "default" sentinel to a concrete user id. Concrete
// ids pass through unchanged. With several stored users an
// AmbiguousUserError is returned; with none, an empty id (the caller is not
// authenticated yet).
func (r *Resolver) ResolveUserID(userID string) (string, error) {
	if userID == "" {
		return "", &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if userID != DefaultUserID {
		return userID, nil
	}

	users, err := r.store.ListUsers()
	if err != nil {
		return "", err
	}
	switch len(users) {
	case 0:
		return "", nil
	case 1:
		return users[0], nil
	default:
		return "", &AmbiguousUserError{Users: users}
	}
}
