package gateway

import "github.com/sidgs/performance-management-sub001/pkg/types"

// Request/response bodies for the agent API. Field names follow the backend's
// snake_case convention.

// createSessionRequest is the POST /sessions request body.
type createSessionRequest struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// createSessionResponse is the POST /sessions response body.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// listSessionsResponse is the GET /sessions response body.
type listSessionsResponse struct {
	UserID         string          `json:"user_id"`
	TotalSessions  int             `json:"total_sessions"`
	ActiveSessions int             `json:"active_sessions"`
	Sessions       []types.Session `json:"sessions"`
}

// sessionStateResponse is the GET /sessions/{id} response body. Only the
// interaction history is consumed; the rest of the state blob is server
// bookkeeping.
type sessionStateResponse struct {
	SessionID string       `json:"session_id"`
	State     sessionState `json:"state"`
}

type sessionState struct {
	InteractionHistory []types.ChatMessage `json:"interaction_history"`
}

// chatRequest is the POST /chat/{id} request body for plain text sends.
type chatRequest struct {
	Message string `json:"message"`
}
