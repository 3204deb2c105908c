package bridge

import (
	"strings"

	"github.com/sidgs/performance-management-sub001/pkg/logger"
)

// Cross-frame message types exchanged with the hosting portal.
const (
	TypeRequestToken = "EPM_REQUEST_TOKEN"
	TypeAuthToken    = "EPM_AUTH_TOKEN"
)

// credentialPrefix is the structural marker of a base64url-encoded JSON
// header, which is how bare-string credential pushes are recognized.
const credentialPrefix = "eyJ"

// MessageChannel is the narrow messaging capability the bridge is written
// against: an unordered, at-most-once channel toward and from the hosting
// portal. Hosts supply the real surface; tests supply fakes.
type MessageChannel interface {
	// Send delivers a frame toward the parent context. Failures (for
	// example cross-origin restrictions) are reported but non-fatal.
	Send(payload map[string]any) error
	// OnMessage registers a permanent inbound handler. The origin is the
	// sender's identity as reported by the channel.
	OnMessage(handler func(origin string, payload any))
}

// TokenSink receives credentials accepted from the portal. *auth.Resolver
// satisfies it; redelivery is safe because SetExternal is idempotent for an
// identical token.
type TokenSink interface {
	SetExternal(token string)
}

// Bridge maintains the credential handshake with the hosting portal when the
// widget runs embedded: it requests a token on start and accepts tokens
// pushed asynchronously at any time afterwards.
type Bridge struct {
	channel MessageChannel
	sink    TokenSink
	nested  bool

	// acceptFrom is the caller-supplied origin policy. The default accepts
	// every origin: restricting pushes is an explicit embedding decision,
	// not something this layer imposes on its own.
	acceptFrom func(origin string) bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithOriginPolicy installs an origin allow-list predicate for inbound
// credential pushes.
func WithOriginPolicy(accept func(origin string) bool) Option {
	return func(b *Bridge) {
		b.acceptFrom = accept
	}
}

// New creates a bridge. nested is the frame-nesting fact computed at
// composition time; the token request is only sent when it is true.
func New(channel MessageChannel, sink TokenSink, nested bool, opts ...Option) *Bridge {
	b := &Bridge{channel: channel, sink: sink, nested: nested}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the permanent inbound listener and, when nested,
// best-effort requests a token from the parent context. Send failures are
// swallowed: the parent may equally push a token on its own schedule.
func (b *Bridge) Start() {
	b.channel.OnMessage(b.handleMessage)

	if !b.nested {
		return
	}
	if err := b.channel.Send(map[string]any{"type": TypeRequestToken}); err != nil {
		logger.Debugf("token request to parent failed: %v", err)
	}
}

// handleMessage accepts exactly two payload shapes: a structured
// {type, token} object and a bare string with the credential prefix.
// Everything else is ignored.
func (b *Bridge) handleMessage(origin string, payload any) {
	if b.acceptFrom != nil && !b.acceptFrom(origin) {
		logger.Debugf("dropping credential push from origin %q", origin)
		return
	}

	switch msg := payload.(type) {
	case map[string]any:
		msgType, _ := msg["type"].(string)
		if msgType != TypeAuthToken {
			return
		}
		token, _ := msg["token"].(string)
		if token != "" {
			b.sink.SetExternal(token)
		}
	case string:
		if strings.HasPrefix(msg, credentialPrefix) {
			b.sink.SetExternal(msg)
		}
	}
}
