package types

// Message roles as the agent backend reports them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is the server-tracked conversational context. The authoritative copy
// lives server-side; clients hold a cached list refreshed via ListSessions.
type Session struct {
	// SessionID is the server-assigned session id.
	SessionID string `json:"session_id"`
	// UserID is the owning user's id as extracted from the credential.
	UserID string `json:"user_id"`
	// UserEmail is the owner's email when known.
	UserEmail string `json:"user_email,omitempty"`
	// UserName is the owner's display name when known.
	UserName string `json:"user_name,omitempty"`
	// CreatedAt is the server-side creation timestamp (RFC 3339) when known.
	CreatedAt string `json:"created_at,omitempty"`
	// InteractionCount is the number of persisted exchanges in the session.
	InteractionCount int `json:"interaction_count"`
	// IsExpired reports whether the server considers the session expired.
	IsExpired bool `json:"is_expired"`
}

// ChatMessage is one entry of a session's interaction history. Per-session
// history is append-only insertion order and is never re-sorted.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Timestamp is RFC 3339 when present.
	Timestamp string `json:"timestamp,omitempty"`
	// AgentName identifies which backend agent produced an assistant message.
	AgentName string `json:"agent_name,omitempty"`
	// AttachmentName is the file name for messages sent with an attachment.
	AttachmentName string `json:"attachment_name,omitempty"`
	// LocalID is a client-generated id for optimistic entries so hosts can
	// reconcile them against later server echoes. Never sent to the server.
	LocalID string `json:"-"`
}

// ChatReply is the agent's answer to one chat message.
type ChatReply struct {
	Response  string `json:"response"`
	AgentName string `json:"agent_name,omitempty"`
}

// Attachment is a file sent alongside a chat message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}
