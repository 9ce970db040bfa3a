package devserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synquot/synquot-cli/internal"
)

// newLiveBackend starts the server on a real listener and returns a client
// pointed at it.
func newLiveBackend(t *testing.T, opts Options) (*internal.HTTPClient, *Store, string) {
	t.Helper()
	srv, store := newTestServer(t, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := internal.NewHTTPClient(internal.ClientOptions{BaseURL: ts.URL, Token: opts.Token, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client, store, ts.URL
}

func TestHTTPClient_AgainstServer(t *testing.T) {
	client, _, baseURL := newLiveBackend(t, Options{})
	ctx := context.Background()

	q, err := client.GetQuotation(ctx)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Empty(t, q.Services)

	sessionID := client.SessionID()
	require.NotEmpty(t, sessionID, "the server should have issued a session cookie")

	require.NoError(t, client.SyncQuotation(ctx, internal.SampleQuotation()))

	resumed, err := internal.NewHTTPClient(internal.ClientOptions{BaseURL: baseURL, SessionID: sessionID})
	require.NoError(t, err)
	q, err = resumed.GetQuotation(ctx)
	require.NoError(t, err)
	assert.Len(t, q.Services, 2, "a pre-seeded session cookie resumes the same session")

	require.NoError(t, client.ResetQuotation(ctx))
	q, err = resumed.GetQuotation(ctx)
	require.NoError(t, err)
	assert.Empty(t, q.Services)
}

func TestHTTPClient_ServerErrors(t *testing.T) {
	client, _, _ := newLiveBackend(t, Options{})

	_, err := client.SendChatMessage(context.Background(), "   ")
	require.Error(t, err)

	var reqErr *internal.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 400, reqErr.Status)
	assert.Equal(t, "Message is required", reqErr.Message())
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, Options{Token: "s3cret"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := internal.NewHTTPClient(internal.ClientOptions{BaseURL: ts.URL, Token: "wrong"})
	require.NoError(t, err)

	err = client.Ping(context.Background())
	var reqErr *internal.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 401, reqErr.Status)
}

func TestSession_EndToEnd(t *testing.T) {
	client, store, _ := newLiveBackend(t, Options{Token: "s3cret"})
	ctx := context.Background()

	// A long delay keeps debounced syncs from firing until Flush.
	session := internal.NewSession(client, internal.SessionOptions{SyncDelay: time.Hour, SyncTimeout: 5 * time.Second})
	require.NoError(t, session.Load(ctx))
	require.Len(t, session.Messages(), 1)
	assert.Equal(t, internal.WelcomeMessageID, session.Messages()[0].ID)

	result, err := session.SendMessage(ctx, "add Web Development quantity 2 price 5000")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NoError(t, result.Err)
	assert.True(t, result.Optimistic)
	assert.False(t, result.Reverted)

	q := session.Quotation()
	require.NotNil(t, q)
	require.Len(t, q.Services, 1)
	assert.Equal(t, "Web Development", q.Services[0].ServiceName)
	assert.Equal(t, 10000.0, q.GrandTotal)

	require.NoError(t, session.Flush(ctx))
	session.Close()

	rec, err := store.Load(ctx, client.SessionID())
	require.NoError(t, err)
	require.Len(t, rec.Quotation.Services, 1)
	assert.Equal(t, 10000.0, rec.Quotation.GrandTotal)
	require.Len(t, rec.Conversation, 3, "welcome, user and assistant after the flush")
	assert.Equal(t, "add Web Development quantity 2 price 5000", rec.Conversation[1].Content)

	reloaded := internal.NewSession(client, internal.SessionOptions{SyncDelay: time.Hour})
	defer reloaded.Close()
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Messages(), 3)
	require.NotNil(t, reloaded.Quotation())
	assert.Len(t, reloaded.Quotation().Services, 1)
	assert.False(t, reloaded.CanUndo(), "a freshly loaded quotation is the undo baseline")
}

func TestSession_ResetEndToEnd(t *testing.T) {
	client, store, _ := newLiveBackend(t, Options{})
	ctx := context.Background()

	session := internal.NewSession(client, internal.SessionOptions{SyncDelay: time.Hour})
	defer session.Close()
	require.NoError(t, session.Load(ctx))

	_, err := session.SendMessage(ctx, "add Hosting quantity 1 price 300")
	require.NoError(t, err)
	require.NoError(t, session.Flush(ctx))

	require.NoError(t, session.Reset(ctx))
	assert.Len(t, session.Messages(), 1)
	assert.Empty(t, session.Quotation().Services)

	rec, err := store.Load(ctx, client.SessionID())
	require.NoError(t, err)
	assert.Empty(t, rec.Quotation.Services)
	assert.Len(t, rec.Conversation, 1)
}
