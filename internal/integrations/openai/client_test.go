package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// endpointURL helper
// ---------------------------------------------------------------------------

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/threads"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/threads"},
		{"http://localhost:8080", "http://localhost:8080/v1/threads"},
		{"", "https://api.openai.com/v1/threads"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, endpointURL(tc.base, "threads"), "base=%q", tc.base)
	}
}

func TestEndpointURL_EscapesSegments(t *testing.T) {
	got := endpointURL("https://api.openai.com/v1", "threads", "th/../x", "runs")
	require.Equal(t, "https://api.openai.com/v1/threads/th%2F..%2Fx/runs", got)
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(" sk-test ")
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, "sk-test", c.apiKey)
	require.True(t, c.HasAPIKey())
}

func TestNewClient_EmptyKeyFailsWithoutNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	require.False(t, c.HasAPIKey())
	_, err := c.CreateThread(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Zero(t, hits)
}

// ---------------------------------------------------------------------------
// Run / Message helpers
// ---------------------------------------------------------------------------

func TestRun_Pending(t *testing.T) {
	require.True(t, Run{Status: RunStatusQueued}.Pending())
	require.True(t, Run{Status: RunStatusInProgress}.Pending())
	for _, s := range []string{RunStatusCompleted, RunStatusFailed, RunStatusRequiresAction, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete} {
		require.False(t, Run{Status: s}.Pending(), s)
	}
}

func TestMessage_Text(t *testing.T) {
	m := Message{Content: []MessageContent{
		{Type: "image_file"},
		{Type: "text", Text: &MessageText{Value: "hello"}},
	}}
	v, ok := m.Text()
	require.True(t, ok)
	require.Equal(t, "hello", v)

	_, ok = Message{}.Text()
	require.False(t, ok)
}

// ---------------------------------------------------------------------------
// Client calls
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		"sk-test",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
}

func TestClient_CreateThread_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threads", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"thread_abc","object":"thread"}`))
	}))
	defer srv.Close()

	th, err := newTestClient(t, srv).CreateThread(context.Background())
	require.NoError(t, err)
	require.Equal(t, "thread_abc", th.ID)
}

func TestClient_CreateThread_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateThread(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing id")
}

func TestClient_CreateMessage_SendsRoleAndContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threads/thread_abc/messages", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var in createMessageRequest
		require.NoError(t, json.Unmarshal(raw, &in))
		require.Equal(t, "user", in.Role)
		require.Equal(t, "Do you have vegan burgers?", in.Content)
		_, _ = w.Write([]byte(`{"id":"msg_1","thread_id":"thread_abc","role":"user"}`))
	}))
	defer srv.Close()

	msg, err := newTestClient(t, srv).CreateMessage(context.Background(), "thread_abc", "user", "Do you have vegan burgers?")
	require.NoError(t, err)
	require.Equal(t, "msg_1", msg.ID)
}

func TestClient_CreateRun_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threads/thread_abc/runs", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"assistant_id":"asst_1"}`, string(raw))
		_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_abc","status":"queued"}`))
	}))
	defer srv.Close()

	run, err := newTestClient(t, srv).CreateRun(context.Background(), "thread_abc", "asst_1")
	require.NoError(t, err)
	require.Equal(t, "run_1", run.ID)
	require.True(t, run.Pending())
}

func TestClient_CreateRun_Validation(t *testing.T) {
	c := NewClient("sk-test")
	_, err := c.CreateRun(context.Background(), "", "asst_1")
	require.Error(t, err)
	_, err = c.CreateRun(context.Background(), "thread_abc", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "assistant id")
}

func TestClient_RetrieveRun_DecodesLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/threads/thread_abc/runs/run_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"run_1","status":"failed","last_error":{"code":"server_error","message":"boom"}}`))
	}))
	defer srv.Close()

	run, err := newTestClient(t, srv).RetrieveRun(context.Background(), "thread_abc", "run_1")
	require.NoError(t, err)
	require.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.LastError)
	require.Equal(t, "boom", run.LastError.Message)
}

func TestClient_ListMessages_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threads/thread_abc/messages", r.URL.Path)
		require.Equal(t, "desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"id":"msg_2","role":"assistant","content":[{"type":"text","text":{"value":"We do!","annotations":[]}}]},
				{"id":"msg_1","role":"user","content":[{"type":"text","text":{"value":"Vegan?"}}]}
			]
		}`))
	}))
	defer srv.Close()

	msgs, err := newTestClient(t, srv).ListMessages(context.Background(), "thread_abc")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	text, ok := msgs[0].Text()
	require.True(t, ok)
	require.Equal(t, "We do!", text)
}

func TestClient_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"No assistant found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateRun(context.Background(), "thread_abc", "asst_missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
	require.Contains(t, err.Error(), "400")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.HTTPStatusCode())
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).RetrieveRun(context.Background(), "thread_abc", "run_1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"thread_abc"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.CreateThread(context.Background())
	require.Error(t, err)
}

func TestClient_NetworkError(t *testing.T) {
	c := NewClient("sk-test")
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err := c.ListMessages(context.Background(), "thread_abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
