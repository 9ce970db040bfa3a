package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synquot/synquot-cli/internal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingAssistant struct{ err error }

func (f failingAssistant) Reply(ctx context.Context, message string, current internal.Quotation, history []internal.ConversationEntry) (string, internal.Quotation, error) {
	return "", current, f.err
}

func newTestServer(t *testing.T, opts Options) (*Server, *Store) {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, opts), store
}

// performRequest sends a JSON request carrying the given session cookie.
func performRequest(srv *Server, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: internal.SessionCookieName, Value: sessionID})
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func errorField(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestServer_IssuesSessionCookie(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	w := performRequest(srv, http.MethodGet, "/api/quotation/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == internal.SessionCookieName {
			found = true
			assert.NotEmpty(t, c.Value)
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "response should set the %s cookie", internal.SessionCookieName)

	w = performRequest(srv, http.MethodGet, "/api/quotation/", "known", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "an existing session must not get a new cookie")
}

func TestServer_GetQuotation_Empty(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	w := performRequest(srv, http.MethodGet, "/api/quotation/", "sess-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Quotation internal.Quotation `json:"quotation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Quotation.Services)
	assert.Contains(t, w.Body.String(), `"services":[]`)
}

func TestServer_Chat(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1",
		map[string]string{"message": "add Web Development quantity 2 price 5000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp internal.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Quotation)
	require.Len(t, resp.Quotation.Services, 1)
	assert.Equal(t, "Web Development", resp.Quotation.Services[0].ServiceName)
	assert.Equal(t, 10000.0, resp.Quotation.GrandTotal)
	assert.Contains(t, resp.Response, "1 service(s)")

	rec, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, rec.Quotation.Services, 1)
	require.Len(t, rec.Conversation, 2)
	assert.Equal(t, "user", rec.Conversation[0].Role)
	assert.Equal(t, "assistant", rec.Conversation[1].Role)
}

func TestServer_Chat_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		wantErr string
	}{
		{"blank message", map[string]string{"message": "   "}, "Message is required"},
		{"missing message", map[string]string{}, "Message is required"},
		{"invalid json", "{not json", "Invalid JSON in request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Options{})
			w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantErr, errorField(t, w))
		})
	}
}

func TestServer_Chat_FreshConversationStartsEmpty(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := store.Update(ctx, "sess-1", func(rec *Record) error {
		rec.Quotation = internal.SampleQuotation()
		return nil
	})
	require.NoError(t, err)

	w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1",
		map[string]string{"message": "add Hosting quantity 1 price 300"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp internal.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Quotation.Services, 1, "stale quotation should be dropped for a fresh conversation")
	assert.Equal(t, "Hosting", resp.Quotation.Services[0].ServiceName)
}

func TestServer_Chat_UsesStoredQuotationMidConversation(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := store.Update(ctx, "sess-1", func(rec *Record) error {
		rec.Quotation = internal.SampleQuotation()
		rec.Conversation = []internal.ConversationEntry{
			{Role: "assistant", Content: "Hello!"},
			{Role: "user", Content: "add stuff"},
		}
		return nil
	})
	require.NoError(t, err)

	w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1",
		map[string]string{"message": "remove SEO Optimization"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp internal.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Quotation.Services, 1)
	assert.Equal(t, "Web Development", resp.Quotation.Services[0].ServiceName)
}

func TestServer_Chat_NoMatchKeepsQuotation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1",
		map[string]string{"message": "what can you do?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp internal.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Quotation)
	assert.Empty(t, resp.Quotation.Services)
	assert.Contains(t, resp.Response, "rephrase")
}

func TestServer_Chat_TrimsConversation(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1",
			map[string]string{"message": fmt.Sprintf("hello %d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	rec, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.Conversation, ChatHistoryLimit)
	assert.Equal(t, "hello 14", rec.Conversation[ChatHistoryLimit-2].Content)
}

func TestServer_Chat_AssistantFailure(t *testing.T) {
	srv, _ := newTestServer(t, Options{Assistant: failingAssistant{err: errors.New("model offline")}})

	w := performRequest(srv, http.MethodPost, "/api/chat/", "sess-1", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error: model offline", errorField(t, w))
}

func TestServer_SyncQuotation(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	w := performRequest(srv, http.MethodPost, "/api/sync-quotation/", "sess-1",
		map[string]interface{}{"quotation": internal.SampleQuotation()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.JSONEq(t, "true", string(body["success"]))

	rec, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, rec.Quotation.Services, 2)
	assert.Equal(t, 82600.0, rec.Quotation.GrandTotal)
}

func TestServer_SyncQuotation_DropsInvalidServices(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	q := internal.Quotation{Services: []internal.Service{
		{ServiceName: "Hosting", Quantity: 1, UnitPrice: 300},
		{ServiceName: "widgets quantity 5", Quantity: 1},
		{ServiceName: "   "},
	}}
	w := performRequest(srv, http.MethodPost, "/api/sync-quotation/", "sess-1", map[string]interface{}{"quotation": q})
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.Quotation.Services, 1)
	assert.Equal(t, "Hosting", rec.Quotation.Services[0].ServiceName)
}

func TestServer_SyncQuotation_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		wantErr string
	}{
		{"missing quotation", map[string]string{}, "Quotation data is required"},
		{"null quotation", `{"quotation": null}`, "Quotation data is required"},
		{"empty object", `{"quotation": {}}`, "Quotation data is required"},
		{"not an object", `{"quotation": "abc"}`, "Invalid quotation structure"},
		{"invalid json", "{", "Invalid JSON in request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Options{})
			w := performRequest(srv, http.MethodPost, "/api/sync-quotation/", "sess-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantErr, errorField(t, w))
		})
	}
}

func TestServer_Reset(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := store.Update(ctx, "sess-1", func(rec *Record) error {
		rec.Quotation = internal.SampleQuotation()
		rec.Conversation = []internal.ConversationEntry{{Role: "user", Content: "hi"}}
		return nil
	})
	require.NoError(t, err)

	w := performRequest(srv, http.MethodPost, "/api/reset/", "sess-1", struct{}{})
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, rec.Quotation.Services)
	assert.Empty(t, rec.Conversation)
}

func TestServer_SyncConversation(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := store.Update(ctx, "sess-1", func(rec *Record) error {
		rec.Quotation = internal.SampleQuotation()
		return nil
	})
	require.NoError(t, err)

	body := `{"messages": [
		{"role": "assistant", "content": "Hello!"},
		{"role": "user", "content": "add seo", "id": "msg-1"},
		{"role": "user"},
		"junk"
	]}`
	w := performRequest(srv, http.MethodPost, "/api/sync-conversation-history/", "sess-1", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.Conversation, 2)
	assert.Equal(t, "add seo", rec.Conversation[1].Content)
	assert.Len(t, rec.Quotation.Services, 2, "a real conversation keeps the quotation")
}

func TestServer_SyncConversation_WelcomeOnlyResetsQuotation(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	_, err := store.Update(ctx, "sess-1", func(rec *Record) error {
		rec.Quotation = internal.SampleQuotation()
		return nil
	})
	require.NoError(t, err)

	w := performRequest(srv, http.MethodPost, "/api/sync-conversation-history/", "sess-1",
		map[string]interface{}{"messages": []internal.ConversationEntry{{Role: "assistant", Content: "Hello!"}}})
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, rec.Quotation.Services)
	assert.Len(t, rec.Conversation, 1)
}

func TestServer_SyncConversation_TrimsAndValidates(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	entries := make([]internal.ConversationEntry, 60)
	for i := range entries {
		entries[i] = internal.ConversationEntry{Role: "user", Content: fmt.Sprintf("m%d", i)}
	}
	w := performRequest(srv, http.MethodPost, "/api/sync-conversation-history/", "sess-1",
		map[string]interface{}{"messages": entries})
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.Conversation, SyncHistoryLimit)
	assert.Equal(t, "m10", rec.Conversation[0].Content)

	w = performRequest(srv, http.MethodPost, "/api/sync-conversation-history/", "sess-1", `{"messages": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Messages must be an array", errorField(t, w))
}

func TestServer_RequireToken(t *testing.T) {
	srv, _ := newTestServer(t, Options{Token: "s3cret"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/quotation/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := performRequest(srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is not guarded")
}

func TestServer_CORS(t *testing.T) {
	srv, _ := newTestServer(t, Options{AllowOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/quotation/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
