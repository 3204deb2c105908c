package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidgs/performance-management-sub001/pkg/types"
)

type fakeTokens struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (f *fakeTokens) Resolve() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.invalidated++
}

func (f *fakeTokens) invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

func TestRequestsCarryBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(listSessionsResponse{})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	_, err := gw.ListSessions()
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestMissingTokenShortCircuits(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{})
	_, err := gw.ListSessions()
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.False(t, called)
}

func TestAuthRejectionInvalidatesOnce(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		status := status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		tokens := &fakeTokens{token: "tok-1"}
		gw := NewHTTPGateway(srv.URL, tokens)
		_, err := gw.ListSessions()
		require.ErrorIs(t, err, ErrAuthRejected)
		require.Equal(t, 1, tokens.invalidations())
		srv.Close()
	}
}

func TestServerErrorDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok-1"}
	gw := NewHTTPGateway(srv.URL, tokens)
	_, err := gw.ListSessions()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAuthRejected)
	require.Zero(t, tokens.invalidations())
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/pulse-epm-agent/sessions", r.URL.Path)

		var req createSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "u-1", req.UserID)
		require.Equal(t, "one@example.com", req.UserEmail)

		json.NewEncoder(w).Encode(createSessionResponse{SessionID: "sess-9"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	id, err := gw.CreateSession("u-1", "one@example.com", "User One")
	require.NoError(t, err)
	require.Equal(t, "sess-9", id)
}

func TestCreateSessionMissingID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createSessionResponse{})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	_, err := gw.CreateSession("u-1", "", "")
	require.Error(t, err)
}

func TestGetSessionState(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/pulse-epm-agent/sessions/sess-1", r.URL.Path)
		require.Equal(t, "u-1", r.URL.Query().Get("user_id"))

		json.NewEncoder(w).Encode(sessionStateResponse{
			State: sessionState{InteractionHistory: []types.ChatMessage{
				{Role: types.RoleUser, Content: "q"},
				{Role: types.RoleAssistant, Content: "a", AgentName: "pulse"},
			}},
		})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	history, err := gw.GetSessionState("sess-1", "u-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "pulse", history[1].AgentName)
}

func TestSendChatJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/pulse-epm-agent/chat/sess-1", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "hello", req.Message)

		json.NewEncoder(w).Encode(types.ChatReply{Response: "hi", AgentName: "pulse"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	reply, err := gw.SendChat("sess-1", "u-1", "hello", nil)
	require.NoError(t, err)
	require.Equal(t, "hi", reply.Response)
	require.Equal(t, "pulse", reply.AgentName)
}

func TestSendChatMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		require.Equal(t, "see attachment", r.FormValue("message"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "report.pdf", header.Filename)

		json.NewEncoder(w).Encode(types.ChatReply{Response: "received"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	reply, err := gw.SendChat("sess-1", "u-1", "see attachment", &types.Attachment{
		Name: "report.pdf",
		Data: []byte("%PDF-"),
	})
	require.NoError(t, err)
	require.Equal(t, "received", reply.Response)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/pulse-epm-agent/sessions/sess-1", r.URL.Path)
		require.Equal(t, "u-1", r.URL.Query().Get("user_id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, &fakeTokens{token: "tok-1"})
	require.NoError(t, gw.DeleteSession("sess-1", "u-1"))
}
