package auth

import (
	"strings"
	"sync"

	"github.com/sidgs/performance-management-sub001/pkg/logger"
)

// bearerPrefix is the authorization scheme marker embedded values may carry.
const bearerPrefix = "Bearer "

// Change reasons broadcast to OnChange subscribers.
const (
	ReasonExternalToken = "external-token"
	ReasonInvalidated   = "invalidated"
)

// EmbeddedSource is one externally embedded token location supplied by the
// host: a host-global value, a document-level metadata attribute, a
// script-level data attribute, or a root-element data attribute. The SDK only
// sees the lookup, never the surface behind it.
type EmbeddedSource struct {
	Name   string
	Lookup func() string
}

// Resolver turns the competing credential sources into one current token.
//
// Precedence is primary slot > backup slot > embedded sources in registration
// order. An embedded hit is promoted into the backup slot (never primary, and
// only while backup is empty) so later resolutions are storage reads instead
// of a re-scan of the embedding surface.
type Resolver struct {
	mu       sync.Mutex
	store    *CredentialStore
	sources  []EmbeddedSource
	onChange []func(reason string)
}

func NewResolver(store *CredentialStore, sources []EmbeddedSource) *Resolver {
	return &Resolver{store: store, sources: sources}
}

// OnChange registers a subscriber for CredentialChanged notifications.
// Subscribers are invoked synchronously in registration order.
func (r *Resolver) OnChange(fn func(reason string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// Resolve returns the current credential, or the empty string when none of
// the sources hold one.
func (r *Resolver) Resolve() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token := r.store.Get(SlotPrimary); token != "" {
		return token
	}
	if token := r.store.Get(SlotBackup); token != "" {
		return token
	}

	for _, source := range r.sources {
		if source.Lookup == nil {
			continue
		}
		token := stripBearer(source.Lookup())
		if token == "" {
			continue
		}
		// Promote so future resolutions hit storage. Never touches primary
		// and never clobbers an existing backup value.
		if r.store.Get(SlotBackup) == "" {
			if err := r.store.Set(SlotBackup, token); err != nil {
				logger.Warnf("promote embedded credential (%s): %v", source.Name, err)
			}
		}
		return token
	}
	return ""
}

// Claims decodes the currently resolved credential; nil when unauthenticated
// or malformed.
func (r *Resolver) Claims() *Claims {
	return DecodeClaims(r.Resolve())
}

// SetExternal accepts a credential pushed from outside (cross-frame bridge,
// widget bootstrap props). It writes the backup slot only while primary is
// empty: primary always wins and is never overwritten by this path. A write of
// the token already held is a no-op, which makes redelivery safe.
func (r *Resolver) SetExternal(token string) {
	token = stripBearer(token)
	if token == "" {
		return
	}

	r.mu.Lock()
	if r.store.Get(SlotPrimary) != "" || r.store.Get(SlotBackup) == token {
		r.mu.Unlock()
		return
	}
	if err := r.store.Set(SlotBackup, token); err != nil {
		r.mu.Unlock()
		logger.Errorf("store external credential: %v", err)
		return
	}
	subscribers := r.subscribersLocked()
	r.mu.Unlock()

	notify(subscribers, ReasonExternalToken)
}

// Invalidate clears every slot (primary, backup, legacy) and broadcasts a
// single CredentialChanged notification. This is the single path used when a
// backend call reports an authorization failure.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	if err := r.store.ClearAll(); err != nil {
		logger.Errorf("clear credential slots: %v", err)
	}
	subscribers := r.subscribersLocked()
	r.mu.Unlock()

	notify(subscribers, ReasonInvalidated)
}

func (r *Resolver) subscribersLocked() []func(reason string) {
	subscribers := make([]func(reason string), len(r.onChange))
	copy(subscribers, r.onChange)
	return subscribers
}

func notify(subscribers []func(reason string), reason string) {
	for _, fn := range subscribers {
		fn(reason)
	}
}

func stripBearer(value string) string {
	value = strings.TrimSpace(value)
	return strings.TrimPrefix(value, bearerPrefix)
}
