package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartFlow(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/start", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "authentication_started", "authUrl": "https://login.microsoftonline.com/authorize?x=1"}`))
	}))
	t.Cleanup(srv.Close)

	flow := NewFlowInitiator(FlowConfig{
		AuthServerURL: srv.URL,
		ClientID:      "client-123",
	}, nil, nil)

	start, err := flow.StartFlow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://login.microsoftonline.com/authorize?x=1", start.AuthURL)

	assert.Equal(t, "client-123", received["clientId"])
	assert.Equal(t, DefaultRedirectURI, received["redirectUri"])
	assert.NotEmpty(t, received["state"])
	assert.Contains(t, received["scopes"], "offline_access")
}

func TestStartFlowUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "message": "nope"}`))
	}))
	t.Cleanup(srv.Close)

	flow := NewFlowInitiator(FlowConfig{AuthServerURL: srv.URL}, nil, nil)

	_, err := flow.StartFlow(context.Background(), nil)
	var ferr *AuthFlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "start", ferr.Op)
}

func TestStartFlowServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	flow := NewFlowInitiator(FlowConfig{AuthServerURL: srv.URL}, nil, nil)

	_, err := flow.StartFlow(context.Background(), nil)
	var ferr *AuthFlowError
	require.ErrorAs(t, err, &ferr)
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"authenticated": true, "userId": "alice@example.com", "isAuthenticating": false}`))
	}))
	t.Cleanup(srv.Close)

	flow := NewFlowInitiator(FlowConfig{AuthServerURL: srv.URL}, nil, nil)

	status, err := flow.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "alice@example.com", status.UserID)
	assert.False(t, status.IsAuthenticating)
}

func TestCheckStatusSubstitutesSoleUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"authenticated": true, "userId": "default", "isAuthenticating": false}`))
	}))
	t.Cleanup(srv.Close)

	store := newTestStore(t)
	require.NoError(t, store.Save("alice@example.com", &TokenRecord{AccessToken: "A1"}))
	resolver := NewResolver(store, nil, nil)

	flow := NewFlowInitiator(FlowConfig{AuthServerURL: srv.URL}, resolver, nil)

	status, err := flow.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", status.UserID)
}

func TestCheckStatusLeavesAmbiguousDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"authenticated": false, "userId": "", "isAuthenticating": true}`))
	}))
	t.Cleanup(srv.Close)

	store := newTestStore(t)
	require.NoError(t, store.Save("alice@example.com", &TokenRecord{AccessToken: "A1"}))
	require.NoError(t, store.Save("bob@example.com", &TokenRecord{AccessToken: "A2"}))
	resolver := NewResolver(store, nil, nil)

	flow := NewFlowInitiator(FlowConfig{AuthServerURL: srv.URL}, resolver, nil)

	status, err := flow.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.UserID, "two stored users stay ambiguous")
	assert.True(t, status.IsAuthenticating)
}
