// Package portal provides a socket.io implementation of the bridge's message
// channel for hosts where the portal relays widget frames over a shared
// socket server rather than direct frame messaging.
package portal

import (
	"fmt"
	"sync"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/sidgs/performance-management-sub001/pkg/logger"
)

// bridgePath is the socket.io mount point for widget bridge traffic.
const bridgePath = "/v1/bridge"

// eventMessage is the single event name carrying bridge frames both ways.
const eventMessage = "message"

// Channel is a socket.io-backed bridge.MessageChannel. Delivery is unordered
// and at-most-once; the credential layer tolerates both.
type Channel struct {
	serverURL string
	token     string
	debug     bool

	mu        sync.RWMutex
	socket    *socket.Socket
	handlers  []func(origin string, payload any)
	connected bool
	closeOnce sync.Once
}

// NewChannel creates a channel toward the portal relay. token may be empty
// when the widget is still unauthenticated; the relay accepts anonymous
// widget connections for the token handshake.
func NewChannel(serverURL, token string, debug bool) *Channel {
	return &Channel{
		serverURL: serverURL,
		token:     token,
		debug:     debug,
	}
}

// Connect establishes the socket.io connection and wires the inbound event
// dispatch.
func (c *Channel) Connect() error {
	if c.debug {
		logger.Debugf("connecting to portal relay: %s (path: %s)", c.serverURL, bridgePath)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(bridgePath)
	opts.SetTransports(sockettypes.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{
		"token":      c.token,
		"clientType": "widget",
	})

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("connect to portal relay: %w", err)
	}

	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(sockettypes.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		if c.debug {
			logger.Debugf("portal relay connected, id=%s", sock.Id())
		}
	})

	sock.On(sockettypes.EventName("disconnect"), func(args ...any) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		if c.debug {
			logger.Debugf("portal relay disconnected")
		}
	})

	sock.On(sockettypes.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			logger.Warnf("portal relay connection error: %v", args[0])
		}
	})

	sock.On(sockettypes.EventName(eventMessage), func(args ...any) {
		if len(args) == 0 {
			return
		}
		c.mu.RLock()
		handlers := make([]func(string, any), len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.RUnlock()

		for _, handler := range handlers {
			handler(c.serverURL, args[0])
		}
	})

	return nil
}

// WaitForConnect polls until the socket reports connected or the timeout
// elapses.
func (c *Channel) WaitForConnect(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return c.IsConnected()
}

// IsConnected reports whether the relay connection is up.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.connected {
		return true
	}
	return c.socket != nil && c.socket.Connected()
}

// Send emits a bridge frame toward the portal.
func (c *Channel) Send(payload map[string]any) error {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()

	if sock == nil {
		return fmt.Errorf("not connected")
	}
	sock.Emit(eventMessage, payload)
	return nil
}

// OnMessage registers a permanent inbound handler.
func (c *Channel) OnMessage(handler func(origin string, payload any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Close tears the connection down.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		sock := c.socket
		c.socket = nil
		c.connected = false
		c.mu.Unlock()

		if sock != nil {
			sock.Disconnect()
		}
	})
	return nil
}
