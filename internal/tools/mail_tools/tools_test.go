package mail_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/server"
)

func newTestContext(t *testing.T, graphURL string, users ...string) *server.ServerContext {
	t.Helper()

	sc, err := server.NewServerContext(context.Background(), server.Config{
		TokenPath:    filepath.Join(t.TempDir(), "tokens.json"),
		ClientID:     "client-1",
		GraphBaseURL: graphURL,
		Logger:       slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	for _, u := range users {
		require.NoError(t, sc.Store().Save(u, &auth.TokenRecord{
			AccessToken:  "token-" + u,
			RefreshToken: "refresh-" + u,
			Scope:        "Mail.Read Mail.ReadWrite Mail.Send",
			ExpiresIn:    3600,
		}))
	}
	return sc
}

func newMCPServer(t *testing.T) *mcpserver.MCPServer {
	t.Helper()
	return mcpserver.NewMCPServer("test", "0.0.0")
}

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestHandleListMessages(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		writeJSON(t, w, map[string]any{
			"value": []map[string]any{
				{
					"id":               "msg-1",
					"subject":          "Quarterly report",
					"from":             map[string]any{"emailAddress": map[string]any{"address": "boss@contoso.com"}},
					"receivedDateTime": "2026-08-27T09:00:00Z",
					"isRead":           false,
				},
				{
					"id":               "msg-2",
					"subject":          "Lunch",
					"receivedDateTime": "2026-08-26T12:00:00Z",
					"isRead":           true,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleListMessages(context.Background(), newRequest(map[string]interface{}{
		"maxResults": float64(5),
		"filter":     "isRead eq false",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "/me/mailFolders/inbox/messages", gotPath)
	assert.Contains(t, gotQuery, "%24top=5")
	assert.Contains(t, gotQuery, "isRead+eq+false")

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 message(s)")
	assert.Contains(t, text, "Quarterly report")
	assert.Contains(t, text, "boss@contoso.com")
	assert.Contains(t, text, "msg-1")
}

func TestHandleListMessages_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"value": []any{}})
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleListMessages(context.Background(), newRequest(nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No messages found")
}

func TestHandleListMessages_NotAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("graph should not be called without credentials")
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL)

	result, err := handleListMessages(context.Background(), newRequest(nil), sc)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "authenticate")
}

func TestHandleReadMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/messages/msg-1", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"id":      "msg-1",
			"subject": "Quarterly report",
			"from":    map[string]any{"emailAddress": map[string]any{"address": "boss@contoso.com"}},
			"body":    map[string]any{"contentType": "text", "content": "Numbers attached."},
		})
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleReadMessage(context.Background(), newRequest(map[string]interface{}{
		"messageId": "msg-1",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Subject: Quarterly report")
	assert.Contains(t, text, "From: boss@contoso.com")
	assert.Contains(t, text, "Numbers attached.")
}

func TestHandleReadMessage_MissingID(t *testing.T) {
	sc := newTestContext(t, "http://unused.invalid", "jane@contoso.com")

	result, err := handleReadMessage(context.Background(), newRequest(nil), sc)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "messageId is required")
}

func TestHandleSendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/sendMail", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleSendMessage(context.Background(), newRequest(map[string]interface{}{
		"to":      "bob@contoso.com, carol@contoso.com",
		"cc":      "dave@contoso.com",
		"subject": "Standup notes",
		"body":    "See below.",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"Standup notes" sent`)

	msg := got["message"].(map[string]any)
	assert.Equal(t, "Standup notes", msg["subject"])
	assert.Len(t, msg["toRecipients"], 2)
	assert.Len(t, msg["ccRecipients"], 1)
	assert.Equal(t, true, got["saveToSentItems"])
}

func TestHandleSendMessage_MissingFields(t *testing.T) {
	sc := newTestContext(t, "http://unused.invalid", "jane@contoso.com")

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"no to", map[string]interface{}{"subject": "s", "body": "b"}, "to is required"},
		{"no subject", map[string]interface{}{"to": "a@b.com", "body": "b"}, "subject is required"},
		{"no body", map[string]interface{}{"to": "a@b.com", "subject": "s"}, "body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleSendMessage(context.Background(), newRequest(tt.args), sc)
			require.NoError(t, err)
			require.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleMoveMessages(t *testing.T) {
	var moved []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		parts := strings.Split(r.URL.Path, "/")
		// /me/messages/{id}/move
		moved = append(moved, parts[3])

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "archive", body["destinationId"])

		writeJSON(t, w, map[string]any{"id": "new-" + parts[3]})
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleMoveMessages(context.Background(), newRequest(map[string]interface{}{
		"messageIds":          "msg-1, msg-2",
		"destinationFolderId": "archive",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Moved 2 message(s) to archive")
	assert.Equal(t, []string{"msg-1", "msg-2"}, moved)
}

func TestHandleMoveMessages_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "msg-bad") {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(t, w, map[string]any{
				"error": map[string]any{"code": "ErrorItemNotFound", "message": "not found"},
			})
			return
		}
		writeJSON(t, w, map[string]any{"id": "new-id"})
	}))
	t.Cleanup(srv.Close)

	sc := newTestContext(t, srv.URL, "jane@contoso.com")

	result, err := handleMoveMessages(context.Background(), newRequest(map[string]interface{}{
		"messageIds":          "msg-1,msg-bad",
		"destinationFolderId": "archive",
	}), sc)
	require.NoError(t, err)
	require.True(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Moved 1 of 2")
	assert.Contains(t, text, "ErrorItemNotFound")
}

func TestRegisterMailTools_ReadOnlySkipsMutations(t *testing.T) {
	// Registration in read-only mode must not panic and must succeed; the
	// mutating tools are simply absent. The server does not expose its tool
	// table, so this exercises the registration path only.
	sc := newTestContext(t, "http://unused.invalid", "jane@contoso.com")

	s := newMCPServer(t)
	require.NoError(t, RegisterMailTools(s, sc, true))
	require.NoError(t, RegisterMailTools(newMCPServer(t), sc, false))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
	assert.Nil(t, splitList(" , "))
}
