package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	sent     []map[string]any
	sendErr  error
	handlers []func(origin string, payload any)
}

func (f *fakeChannel) Send(payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeChannel) OnMessage(handler func(origin string, payload any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

func (f *fakeChannel) deliver(origin string, payload any) {
	f.mu.Lock()
	handlers := make([]func(string, any), len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, h := range handlers {
		h(origin, payload)
	}
}

func (f *fakeChannel) sentFrames() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeSink struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeSink) SetExternal(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}

func (f *fakeSink) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return nil
	}
	out := make([]string, len(f.tokens))
	copy(out, f.tokens)
	return out
}

func TestStartRequestsTokenOnlyWhenNested(t *testing.T) {
	t.Parallel()

	t.Run("nested", func(t *testing.T) {
		t.Parallel()
		channel := &fakeChannel{}
		New(channel, &fakeSink{}, true).Start()

		frames := channel.sentFrames()
		require.Len(t, frames, 1)
		require.Equal(t, TypeRequestToken, frames[0]["type"])
	})

	t.Run("top-level", func(t *testing.T) {
		t.Parallel()
		channel := &fakeChannel{}
		New(channel, &fakeSink{}, false).Start()
		require.Empty(t, channel.sentFrames())
	})
}

func TestStartSendFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{sendErr: errors.New("cross-origin blocked")}
	sink := &fakeSink{}
	New(channel, sink, true).Start()

	// The listener is still live: a pushed token arrives regardless of the
	// failed request.
	channel.deliver("portal", map[string]any{"type": TypeAuthToken, "token": "eyJtok"})
	require.Equal(t, []string{"eyJtok"}, sink.received())
}

func TestHandleMessagePayloadShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload any
		want    []string
	}{
		{
			name:    "structured frame",
			payload: map[string]any{"type": TypeAuthToken, "token": "eyJabc"},
			want:    []string{"eyJabc"},
		},
		{
			name:    "bare credential string",
			payload: "eyJhbGciOiJIUzI1NiJ9.payload.sig",
			want:    []string{"eyJhbGciOiJIUzI1NiJ9.payload.sig"},
		},
		{
			name:    "wrong frame type",
			payload: map[string]any{"type": "EPM_PING", "token": "eyJabc"},
			want:    nil,
		},
		{
			name:    "structured frame without token",
			payload: map[string]any{"type": TypeAuthToken},
			want:    nil,
		},
		{
			name:    "bare string without credential prefix",
			payload: "hello there",
			want:    nil,
		},
		{
			name:    "unrelated payload kind",
			payload: 42,
			want:    nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			channel := &fakeChannel{}
			sink := &fakeSink{}
			New(channel, sink, true).Start()

			channel.deliver("portal", tt.payload)
			require.Equal(t, tt.want, sink.received())
		})
	}
}

func TestOriginPolicy(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{}
	sink := &fakeSink{}
	b := New(channel, sink, true, WithOriginPolicy(func(origin string) bool {
		return origin == "https://portal.example.com"
	}))
	b.Start()

	channel.deliver("https://evil.example.com", "eyJtok")
	require.Empty(t, sink.received())

	channel.deliver("https://portal.example.com", "eyJtok")
	require.Equal(t, []string{"eyJtok"}, sink.received())
}

func TestTokensAcceptedAfterStartup(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{}
	sink := &fakeSink{}
	New(channel, sink, true).Start()

	// Pushes keep landing long after the initial request, in any order.
	channel.deliver("portal", map[string]any{"type": TypeAuthToken, "token": "eyJfirst"})
	channel.deliver("portal", "eyJsecond")
	require.Equal(t, []string{"eyJfirst", "eyJsecond"}, sink.received())
}
