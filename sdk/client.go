// Package sdk is the embeddable client surface: it composes credential
// resolution, the cross-frame token bridge, and session orchestration behind
// a single facade, with host-specific capabilities injected at construction.
package sdk

import (
	"errors"
	"io"
	"net/url"

	"github.com/sidgs/performance-management-sub001/internal/auth"
	"github.com/sidgs/performance-management-sub001/internal/bridge"
	"github.com/sidgs/performance-management-sub001/internal/gateway"
	"github.com/sidgs/performance-management-sub001/internal/session"
	"github.com/sidgs/performance-management-sub001/internal/storage"
	"github.com/sidgs/performance-management-sub001/pkg/types"
)

// ErrNoCredential is returned by Initialize when no source yields a usable
// credential.
var ErrNoCredential = errors.New("no credential available")

// Options configure a Client. ServerURL and Store are required; everything
// else is an optional host capability.
type Options struct {
	// ServerURL is the agent backend base URL.
	ServerURL string

	// Store persists credential slots and the widget-mode flag.
	Store storage.Store

	// EmbeddedSources are the host-injected token locations scanned during
	// resolution, in priority order.
	EmbeddedSources []auth.EmbeddedSource

	// Channel, when set, enables the cross-frame token handshake with the
	// hosting portal.
	Channel bridge.MessageChannel

	// OriginPolicy restricts which origins may push credentials over the
	// channel. Nil accepts all origins.
	OriginPolicy func(origin string) bool

	// Listener receives client events. Nil installs a no-op listener.
	Listener Listener

	// WidgetExplicit, Query, and FrameNested feed widget-mode detection.
	WidgetExplicit *bool
	Query          url.Values
	FrameNested    func() (bool, error)

	// Gateway overrides the HTTP gateway; used by embedders that tunnel
	// backend traffic through their own transport.
	Gateway gateway.Gateway
}

// Client is the composed embeddable client. Construct with NewClient, then
// call Initialize once a credential is expected to be present.
type Client struct {
	creds      *auth.CredentialStore
	resolver   *auth.Resolver
	gw         gateway.Gateway
	orch       *session.Orchestrator
	bridge     *bridge.Bridge
	channel    bridge.MessageChannel
	dispatch   *dispatcher
	listener   Listener
	widgetMode bool
}

// NewClient wires the client together and starts the bridge handshake when a
// channel is present. No backend traffic happens until Initialize.
func NewClient(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	if opts.Store == nil {
		return nil, errors.New("credential store is required")
	}

	listener := opts.Listener
	if listener == nil {
		listener = NoopListener{}
	}

	creds := auth.NewCredentialStore(opts.Store)
	resolver := auth.NewResolver(creds, opts.EmbeddedSources)

	widgetMode := auth.ResolveWidgetMode(auth.WidgetModeInputs{
		Explicit:    opts.WidgetExplicit,
		Query:       opts.Query,
		StoredFlag:  creds.StoredWidgetFlag,
		FrameNested: opts.FrameNested,
	})

	// The token request is gated on the frame-nesting fact alone, not on
	// widget mode: a forced widget mode at top level has no parent to ask,
	// and an embedded context still needs the handshake even when the host
	// forces widget mode off. A blocked nesting check counts as nested.
	nested := false
	if opts.FrameNested != nil {
		isNested, err := opts.FrameNested()
		nested = isNested || err != nil
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.NewHTTPGateway(opts.ServerURL, resolver)
	}

	c := &Client{
		creds:      creds,
		resolver:   resolver,
		gw:         gw,
		orch:       session.New(gw),
		channel:    opts.Channel,
		dispatch:   newDispatcher(),
		listener:   listener,
		widgetMode: widgetMode,
	}

	resolver.OnChange(func(reason string) {
		c.dispatch.post(func() { c.listener.OnCredentialChanged(reason) })
	})
	c.orch.SetNoticeHandler(func(message string) {
		c.dispatch.post(func() { c.listener.OnNotice(message) })
	})
	c.orch.SetRefreshHandler(func() {
		c.dispatch.post(func() { c.listener.OnSessionsRefreshed() })
	})

	if opts.Channel != nil {
		c.bridge = bridge.New(opts.Channel, resolver, nested,
			bridge.WithOriginPolicy(opts.OriginPolicy))
		c.bridge.Start()
	}

	return c, nil
}

// Initialize resolves the credential, derives the user identity from its
// claims, and brings session state up. Returns ErrNoCredential when nothing
// resolves or the resolved value is not decodable.
func (c *Client) Initialize() error {
	claims := c.resolver.Claims()
	if claims == nil {
		return ErrNoCredential
	}
	return c.orch.Initialize(claims.UserID, claims.Email, claims.DisplayName)
}

// WidgetMode reports the mode computed at construction.
func (c *Client) WidgetMode() bool {
	return c.widgetMode
}

// EnableWidgetMode persists the widget-mode opt-in so future constructions
// detect widget mode without a query parameter or nesting. The mode of this
// client is unchanged; it was computed once at construction.
func (c *Client) EnableWidgetMode() error {
	return c.creds.EnableWidgetFlag()
}

// DisableWidgetMode removes the persisted widget-mode opt-in.
func (c *Client) DisableWidgetMode() error {
	return c.creds.DisableWidgetFlag()
}

// Token returns the currently resolved credential, or "".
func (c *Client) Token() string {
	return c.resolver.Resolve()
}

// Claims returns the decoded identity of the current credential, or nil.
func (c *Client) Claims() *auth.Claims {
	return c.resolver.Claims()
}

// SetExternalToken accepts a credential handed over by the embedding host
// outside the channel path.
func (c *Client) SetExternalToken(token string) {
	c.resolver.SetExternal(token)
}

// Logout drops every stored credential and notifies the listener.
func (c *Client) Logout() {
	c.resolver.Invalidate()
}

// Sessions returns the cached session list.
func (c *Client) Sessions() []types.Session {
	return c.orch.Sessions()
}

// ActiveSessionID returns the active session id.
func (c *Client) ActiveSessionID() string {
	return c.orch.ActiveSessionID()
}

// Messages returns the cached history for a session.
func (c *Client) Messages(sessionID string) []types.ChatMessage {
	return c.orch.Messages(sessionID)
}

// Sending reports whether a send is in flight for a session.
func (c *Client) Sending(sessionID string) bool {
	return c.orch.Sending(sessionID)
}

// SelectSession activates a session and lazily loads its history.
func (c *Client) SelectSession(sessionID string) {
	c.orch.SelectSession(sessionID)
}

// SendMessage sends on the active session. Text, attachment, or both.
func (c *Client) SendMessage(text string, attachment *types.Attachment) error {
	return c.orch.SendMessage(text, attachment)
}

// NewSession creates and activates a fresh session.
func (c *Client) NewSession() error {
	return c.orch.NewSession()
}

// DeleteSession removes a session remotely and locally.
func (c *Client) DeleteSession(sessionID string) error {
	return c.orch.DeleteSession(sessionID)
}

// Close stops event dispatch and tears down the channel if it owns one.
func (c *Client) Close() error {
	c.dispatch.stop()
	if closer, ok := c.channel.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
