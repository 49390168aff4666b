package common

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/server"
)

func newTestContext(t *testing.T, users ...string) *server.ServerContext {
	t.Helper()

	sc, err := server.NewServerContext(context.Background(), server.Config{
		TokenPath: filepath.Join(t.TempDir(), "tokens.json"),
		ClientID:  "client-1",
		Logger:    slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	for _, u := range users {
		require.NoError(t, sc.Store().Save(u, &auth.TokenRecord{
			AccessToken:  "token-" + u,
			RefreshToken: "refresh-" + u,
			Scope:        "Mail.Read",
			ExpiresIn:    3600,
		}))
	}
	return sc
}

func TestGetUserIDFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing", map[string]interface{}{}, "default"},
		{"empty", map[string]interface{}{"userId": ""}, "default"},
		{"explicit", map[string]interface{}{"userId": "jane@contoso.com"}, "jane@contoso.com"},
		{"wrong type", map[string]interface{}{"userId": 42}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetUserIDFromArgs(tt.args))
		})
	}
}

func TestResolveUserID_SoleUser(t *testing.T) {
	sc := newTestContext(t, "jane@contoso.com")

	resolved, errResult := ResolveUserID(sc, "default")
	require.Nil(t, errResult)
	assert.Equal(t, "jane@contoso.com", resolved)
}

func TestResolveUserID_ExplicitPassthrough(t *testing.T) {
	sc := newTestContext(t, "jane@contoso.com", "bob@contoso.com")

	resolved, errResult := ResolveUserID(sc, "bob@contoso.com")
	require.Nil(t, errResult)
	assert.Equal(t, "bob@contoso.com", resolved)
}

func TestResolveUserID_AmbiguousDefault(t *testing.T) {
	sc := newTestContext(t, "jane@contoso.com", "bob@contoso.com")

	resolved, errResult := ResolveUserID(sc, "default")
	assert.Empty(t, resolved)
	require.NotNil(t, errResult)
	require.True(t, errResult.IsError)
	text := resultText(t, errResult)
	assert.Contains(t, text, "userId")
	assert.Contains(t, text, "jane@contoso.com")
	assert.Contains(t, text, "bob@contoso.com")
}

func TestResolveUserID_NoUsers(t *testing.T) {
	sc := newTestContext(t)

	resolved, errResult := ResolveUserID(sc, "default")
	assert.Empty(t, resolved)
	require.NotNil(t, errResult)
	require.True(t, errResult.IsError)
	assert.Contains(t, resultText(t, errResult), "authenticate")
}
