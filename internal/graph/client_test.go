package graph

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlookmcp/internal/auth"
)

// staticCredentials returns the same record for every resolution, or nil to
// simulate an unauthenticated user.
type staticCredentials struct {
	record *auth.TokenRecord
	err    error

	lastUserID string
	lastScopes []string
}

func (s *staticCredentials) Resolve(_ context.Context, userID string, requiredScopes []string) (*auth.TokenRecord, error) {
	s.lastUserID = userID
	s.lastScopes = requiredScopes
	return s.record, s.err
}

func newTestClient(t *testing.T, handler http.Handler, creds *staticCredentials) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("jane@contoso.com", creds, slog.New(slog.DiscardHandler))
	c.baseURL = srv.URL
	return c
}

func authedCredentials() *staticCredentials {
	return &staticCredentials{
		record: &auth.TokenRecord{
			AccessToken: "access-token-1",
			Scope:       "Mail.Read Mail.ReadWrite Mail.Send Calendars.Read Calendars.ReadWrite MailboxSettings.ReadWrite",
			TokenType:   "Bearer",
		},
	}
}

func TestClient_BearerInjection(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	creds := authedCredentials()
	c := newTestClient(t, handler, creds)

	_, err := c.ListMessages(context.Background(), "", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-token-1", gotAuth)
	assert.Equal(t, "jane@contoso.com", creds.lastUserID)
	assert.Equal(t, auth.MailReadScopes, creds.lastScopes)
}

func TestClient_NotAuthenticated(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the server without credentials")
	})

	c := newTestClient(t, handler, &staticCredentials{record: nil})

	_, err := c.ListMessages(context.Background(), "", ListOptions{})
	var notAuth *NotAuthenticatedError
	require.ErrorAs(t, err, &notAuth)
	assert.Equal(t, "jane@contoso.com", notAuth.UserID)
}

func TestClient_ResolutionErrorPropagates(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), &staticCredentials{err: errors.New("store unreadable")})

	_, err := c.GetMessage(context.Background(), "msg-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unreadable")
}

func TestClient_DecodesErrorEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"ErrorItemNotFound","message":"The specified object was not found."}}`))
	})

	c := newTestClient(t, handler, authedCredentials())

	_, err := c.GetMessage(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "ErrorItemNotFound", apiErr.Code)
	assert.Contains(t, apiErr.Message, "not found")
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broke"))
	})

	c := newTestClient(t, handler, authedCredentials())

	_, err := c.ListRules(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestClient_ListMessages_FolderPathAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"m1","subject":"hello"}]}`))
	})

	c := newTestClient(t, handler, authedCredentials())

	msgs, err := c.ListMessages(context.Background(), "inbox", ListOptions{
		Top:     10,
		OrderBy: "receivedDateTime desc",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "/me/mailFolders/inbox/messages", gotPath)
	assert.Contains(t, gotQuery, "%24top=10")
	assert.Contains(t, gotQuery, "%24orderby=")
}

func TestClient_SendMessage(t *testing.T) {
	var gotMethod, gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	})

	creds := authedCredentials()
	c := newTestClient(t, handler, creds)

	err := c.SendMessage(context.Background(), SendMessageRequest{
		Message: Message{
			Subject:      "status",
			Body:         &ItemBody{ContentType: "text", Content: "all good"},
			ToRecipients: []Recipient{{EmailAddress: EmailAddress{Address: "bob@contoso.com"}}},
		},
		SaveToSentItems: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/me/sendMail", gotPath)
	assert.Equal(t, auth.MailWriteScopes, creds.lastScopes)
}

func TestClient_SendMessage_RequiresRecipient(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), authedCredentials())

	err := c.SendMessage(context.Background(), SendMessageRequest{Message: Message{Subject: "no one"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient")
}

func TestClient_MoveMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/m1/move", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"m1-moved","parentFolderId":"archive"}`))
	})

	c := newTestClient(t, handler, authedCredentials())

	moved, err := c.MoveMessage(context.Background(), "m1", "archive")
	require.NoError(t, err)
	assert.Equal(t, "m1-moved", moved.ID)
	assert.Equal(t, "archive", moved.ParentFolderID)
}

func TestClient_ListEvents_CalendarView(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"e1","subject":"standup"}]}`))
	})

	c := newTestClient(t, handler, authedCredentials())

	timeMin := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.Add(24 * time.Hour)
	events, err := c.ListEvents(context.Background(), timeMin, timeMax, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "/me/calendarView", gotPath)
	assert.Equal(t, "2026-09-01T00:00:00Z", gotQuery["startDateTime"][0])
	assert.Equal(t, "2026-09-02T00:00:00Z", gotQuery["endDateTime"][0])
}

func TestClient_CreateEvent_Validation(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), authedCredentials())

	_, err := c.CreateEvent(context.Background(), Event{Subject: "no times"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start and end")
}

func TestClient_CreateFolder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"f1","displayName":"Receipts"}`))
	})

	c := newTestClient(t, handler, authedCredentials())

	folder, err := c.CreateFolder(context.Background(), "Receipts", "")
	require.NoError(t, err)
	assert.Equal(t, "f1", folder.ID)
}

func TestClient_CreateRule(t *testing.T) {
	creds := authedCredentials()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/inbox/messageRules", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r1","displayName":"newsletters","isEnabled":true}`))
	})

	c := newTestClient(t, handler, creds)

	rule, err := c.CreateRule(context.Background(), MessageRule{
		DisplayName: "newsletters",
		IsEnabled:   true,
		Actions:     &RuleActions{MoveToFolder: "f1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", rule.ID)
	assert.Equal(t, auth.RuleScopes, creds.lastScopes)
}
