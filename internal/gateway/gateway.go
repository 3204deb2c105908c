package gateway

import "github.com/sidgs/performance-management-sub001/pkg/types"

// Gateway is the agent backend boundary consumed by the session layer.
//
// Every call carries the resolved credential as a bearer authorization
// header. A 401/403 response invalidates the credential slots and surfaces
// ErrAuthRejected. NotFound and Conflict are deliberately not distinguished
// from generic transport failure.
type Gateway interface {
	CreateSession(userID, userEmail, userName string) (sessionID string, err error)
	ListSessions() ([]types.Session, error)
	GetSessionState(sessionID, userID string) ([]types.ChatMessage, error)
	SendChat(sessionID, userID, message string, attachment *types.Attachment) (types.ChatReply, error)
	DeleteSession(sessionID, userID string) error
}

// TokenSource supplies the credential for outbound calls and is told when the
// backend rejects it. *auth.Resolver satisfies it.
type TokenSource interface {
	Resolve() string
	Invalidate()
}
