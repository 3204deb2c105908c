package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidgs/performance-management-sub001/internal/gateway"
	"github.com/sidgs/performance-management-sub001/pkg/logger"
	"github.com/sidgs/performance-management-sub001/pkg/types"
)

// Orchestrator owns the cached session list, the per-session message history,
// and the send lifecycle against the agent backend.
//
// All cache updates build fresh slices from the state observed under the lock
// (copy-on-write), so interleaved asynchronous completions can never produce
// a torn history. Exactly one send may be in flight per session; distinct
// sessions send independently.
type Orchestrator struct {
	gw gateway.Gateway

	mu        sync.Mutex
	userID    string
	userEmail string
	userName  string
	sessions  []types.Session
	activeID  string
	cache     map[string][]types.ChatMessage
	inflight  map[string]struct{}
	creating  bool

	notice    func(message string)
	onRefresh func()
}

func New(gw gateway.Gateway) *Orchestrator {
	return &Orchestrator{
		gw:       gw,
		cache:    make(map[string][]types.ChatMessage),
		inflight: make(map[string]struct{}),
	}
}

// SetNoticeHandler installs the sink for dismissible, non-blocking failure
// notices (list/bootstrap network failures). Send failures never go here;
// they surface inline as conversation content.
func (o *Orchestrator) SetNoticeHandler(fn func(message string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notice = fn
}

// SetRefreshHandler installs a callback invoked after the session list
// changes.
func (o *Orchestrator) SetRefreshHandler(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onRefresh = fn
}

// Initialize fetches the remote session list and guarantees that afterwards
// at least one session exists and is active. A failed list fetch degrades to
// an empty list plus a notice; only a failed session creation aborts.
func (o *Orchestrator) Initialize(userID, userEmail, userName string) error {
	o.mu.Lock()
	o.userID = userID
	o.userEmail = userEmail
	o.userName = userName
	o.mu.Unlock()

	list, err := o.gw.ListSessions()
	if err != nil {
		logger.Warnf("session list fetch failed, continuing with empty list: %v", err)
		o.emitNotice(fmt.Sprintf("Could not load sessions: %v", err))
		list = nil
	}

	if len(list) == 0 {
		return o.bootstrapSession()
	}

	first := list[0].SessionID
	o.mu.Lock()
	o.sessions = list
	o.activeID = first
	o.mu.Unlock()

	o.emitRefresh()
	o.ensureHistory(first)
	return nil
}

// Sessions returns a copy of the cached session list.
func (o *Orchestrator) Sessions() []types.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	sessions := make([]types.Session, len(o.sessions))
	copy(sessions, o.sessions)
	return sessions
}

// ActiveSessionID returns the currently active session id, or "" transiently
// during bootstrap.
func (o *Orchestrator) ActiveSessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Messages returns the cached history for a session. The returned slice is
// never mutated afterwards; appends replace the cache entry wholesale.
func (o *Orchestrator) Messages(sessionID string) []types.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cache[sessionID]
}

// Sending reports whether a send is in flight for the session.
func (o *Orchestrator) Sending(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inflight[sessionID]
	return busy
}

// SelectSession makes the session active and lazily seeds its history on
// first selection. History loading is best-effort and never blocks the
// selection: on fetch failure the cache is seeded empty instead.
func (o *Orchestrator) SelectSession(sessionID string) {
	o.mu.Lock()
	o.activeID = sessionID
	_, cached := o.cache[sessionID]
	o.mu.Unlock()

	if !cached {
		o.seedHistory(sessionID)
	}
}

// SendMessage performs an optimistic send on the active session.
//
// The user's message is appended to the cache before the network call is
// issued and is never rolled back. On success the assistant reply is
// appended; on failure a synthetic assistant message carrying the failure
// text is appended instead, so errors are visible as conversation content.
// Either way the session list is re-fetched fire-and-forget afterwards to
// refresh interaction counters.
func (o *Orchestrator) SendMessage(text string, attachment *types.Attachment) error {
	o.mu.Lock()
	sessionID := o.activeID
	if sessionID == "" {
		o.mu.Unlock()
		return ErrNoActiveSession
	}
	if _, busy := o.inflight[sessionID]; busy {
		o.mu.Unlock()
		return ErrSendInFlight
	}
	if strings.TrimSpace(text) == "" && attachment == nil {
		o.mu.Unlock()
		return nil
	}
	userID := o.userID
	o.inflight[sessionID] = struct{}{}

	content := text
	if content == "" && attachment != nil {
		content = "Uploaded file: " + attachment.Name
	}
	userMsg := types.ChatMessage{
		Role:      types.RoleUser,
		Content:   content,
		Timestamp: timestamp(),
		LocalID:   uuid.NewString(),
	}
	if attachment != nil {
		userMsg.AttachmentName = attachment.Name
	}
	o.appendLocked(sessionID, userMsg)
	o.mu.Unlock()

	reply, err := o.gw.SendChat(sessionID, userID, text, attachment)

	o.mu.Lock()
	delete(o.inflight, sessionID)
	if err != nil {
		logger.Warnf("send on session %s failed: %v", sessionID, err)
		o.appendLocked(sessionID, types.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   fmt.Sprintf("Error: %v", err),
			Timestamp: timestamp(),
		})
	} else {
		o.appendLocked(sessionID, types.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   reply.Response,
			AgentName: reply.AgentName,
			Timestamp: timestamp(),
		})
	}
	o.mu.Unlock()

	// Detached from the send's own completion; failure is swallowed.
	go o.refreshSessions()
	return nil
}

// NewSession creates a fresh session, selects it, and seeds an empty history.
// Single-flight: a second creation while one is pending is rejected.
func (o *Orchestrator) NewSession() error {
	o.mu.Lock()
	if o.creating {
		o.mu.Unlock()
		return ErrCreateInFlight
	}
	o.creating = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.creating = false
		o.mu.Unlock()
	}()

	return o.bootstrapSession()
}

// DeleteSession removes a session server-side first; local state is only
// touched on success, so client and server truth cannot diverge. Deleting the
// active session promotes a sibling, or re-bootstraps when it was the last
// one, preserving the always-one-active invariant.
func (o *Orchestrator) DeleteSession(sessionID string) error {
	o.mu.Lock()
	userID := o.userID
	o.mu.Unlock()

	if err := o.gw.DeleteSession(sessionID, userID); err != nil {
		return err
	}

	o.mu.Lock()
	filtered := make([]types.Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		if s.SessionID != sessionID {
			filtered = append(filtered, s)
		}
	}
	o.sessions = filtered
	delete(o.cache, sessionID)

	wasActive := o.activeID == sessionID
	nextID := ""
	if wasActive {
		o.activeID = ""
		if len(filtered) > 0 {
			nextID = filtered[0].SessionID
			o.activeID = nextID
		}
	}
	o.mu.Unlock()

	o.emitRefresh()

	if !wasActive {
		return nil
	}
	if nextID != "" {
		o.ensureHistory(nextID)
		return nil
	}
	return o.bootstrapSession()
}

// bootstrapSession creates a session, refreshes the list once for canonical
// metadata, and makes the new session active with an empty history. A failed
// refresh degrades to a synthesized list entry; only a failed creation is
// fatal.
func (o *Orchestrator) bootstrapSession() error {
	o.mu.Lock()
	userID, userEmail, userName := o.userID, o.userEmail, o.userName
	o.mu.Unlock()

	sessionID, err := o.gw.CreateSession(userID, userEmail, userName)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	list, err := o.gw.ListSessions()
	if err != nil {
		logger.Warnf("session list refresh after creation failed: %v", err)
		o.emitNotice(fmt.Sprintf("Could not refresh sessions: %v", err))
		list = nil
	}

	o.mu.Lock()
	if len(list) > 0 {
		o.sessions = list
	}
	if !o.hasSessionLocked(sessionID) {
		o.sessions = append(o.sessions, types.Session{
			SessionID: sessionID,
			UserID:    userID,
			UserEmail: userEmail,
			UserName:  userName,
		})
	}
	o.activeID = sessionID
	if _, ok := o.cache[sessionID]; !ok {
		o.cache[sessionID] = []types.ChatMessage{}
	}
	o.mu.Unlock()

	o.emitRefresh()
	return nil
}

// ensureHistory seeds a session's history if it has no cache entry yet.
func (o *Orchestrator) ensureHistory(sessionID string) {
	o.mu.Lock()
	_, cached := o.cache[sessionID]
	o.mu.Unlock()
	if !cached {
		o.seedHistory(sessionID)
	}
}

// seedHistory fetches interaction history and seeds the cache. Failures seed
// an empty sequence instead of propagating: history loading never blocks a
// session. A cache entry created while the fetch was in flight wins; seeding
// only fills a still-missing entry.
func (o *Orchestrator) seedHistory(sessionID string) {
	o.mu.Lock()
	userID := o.userID
	o.mu.Unlock()

	history, err := o.gw.GetSessionState(sessionID, userID)
	if err != nil {
		logger.Warnf("history load for session %s failed: %v", sessionID, err)
		history = nil
	}
	if history == nil {
		history = []types.ChatMessage{}
	}

	o.mu.Lock()
	if _, ok := o.cache[sessionID]; !ok {
		o.cache[sessionID] = history
	}
	o.mu.Unlock()
}

// refreshSessions re-fetches the session list; failures are swallowed.
func (o *Orchestrator) refreshSessions() {
	list, err := o.gw.ListSessions()
	if err != nil {
		logger.Debugf("session list refresh failed: %v", err)
		return
	}

	o.mu.Lock()
	o.sessions = list
	o.mu.Unlock()

	o.emitRefresh()
}

func (o *Orchestrator) hasSessionLocked(sessionID string) bool {
	for _, s := range o.sessions {
		if s.SessionID == sessionID {
			return true
		}
	}
	return false
}

// appendLocked replaces the session's cache entry with a fresh slice holding
// the previous messages plus msg. Callers must hold o.mu.
func (o *Orchestrator) appendLocked(sessionID string, msg types.ChatMessage) {
	existing := o.cache[sessionID]
	next := make([]types.ChatMessage, len(existing), len(existing)+1)
	copy(next, existing)
	o.cache[sessionID] = append(next, msg)
}

func (o *Orchestrator) emitNotice(message string) {
	o.mu.Lock()
	fn := o.notice
	o.mu.Unlock()
	if fn != nil {
		fn(message)
	}
}

func (o *Orchestrator) emitRefresh() {
	o.mu.Lock()
	fn := o.onRefresh
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
