package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/sidgs/performance-management-sub001/pkg/logger"
	"github.com/sidgs/performance-management-sub001/pkg/types"
)

// defaultAPIPath is the agent API mount point on the backend.
const defaultAPIPath = "/api/v1/pulse-epm-agent"

// HTTPGateway talks to the agent backend over HTTP.
//
// Calls have no cancellation hooks beyond the client-level timeout; a stalled
// request keeps its caller's loading state active until the transport gives
// up (acknowledged gap).
type HTTPGateway struct {
	baseURL    string
	apiPath    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewHTTPGateway creates a gateway against the given base URL. The token
// source authorizes every call.
func NewHTTPGateway(baseURL string, tokens TokenSource) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    baseURL,
		apiPath:    defaultAPIPath,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPGateway) CreateSession(userID, userEmail, userName string) (string, error) {
	body, err := json.Marshal(createSessionRequest{
		UserID:    userID,
		UserEmail: userEmail,
		UserName:  userName,
	})
	if err != nil {
		return "", fmt.Errorf("marshal create session request: %w", err)
	}

	respBody, err := g.doRequest("POST", g.apiPath+"/sessions", body, "application/json")
	if err != nil {
		return "", err
	}

	var resp createSessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse create session response: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("create session: missing session id")
	}
	return resp.SessionID, nil
}

func (g *HTTPGateway) ListSessions() ([]types.Session, error) {
	respBody, err := g.doRequest("GET", g.apiPath+"/sessions", nil, "")
	if err != nil {
		return nil, err
	}

	var resp listSessionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse sessions response: %w", err)
	}
	return resp.Sessions, nil
}

func (g *HTTPGateway) GetSessionState(sessionID, userID string) ([]types.ChatMessage, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s?user_id=%s",
		g.apiPath, url.PathEscape(sessionID), url.QueryEscape(userID))

	respBody, err := g.doRequest("GET", endpoint, nil, "")
	if err != nil {
		return nil, err
	}

	var resp sessionStateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse session state response: %w", err)
	}
	return resp.State.InteractionHistory, nil
}

func (g *HTTPGateway) SendChat(sessionID, userID, message string, attachment *types.Attachment) (types.ChatReply, error) {
	endpoint := fmt.Sprintf("%s/chat/%s?user_id=%s",
		g.apiPath, url.PathEscape(sessionID), url.QueryEscape(userID))

	var respBody []byte
	var err error
	if attachment != nil {
		respBody, err = g.doMultipart(endpoint, message, attachment)
	} else {
		var body []byte
		body, err = json.Marshal(chatRequest{Message: message})
		if err != nil {
			return types.ChatReply{}, fmt.Errorf("marshal chat request: %w", err)
		}
		respBody, err = g.doRequest("POST", endpoint, body, "application/json")
	}
	if err != nil {
		return types.ChatReply{}, err
	}

	var reply types.ChatReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return types.ChatReply{}, fmt.Errorf("parse chat response: %w", err)
	}
	return reply, nil
}

func (g *HTTPGateway) DeleteSession(sessionID, userID string) error {
	endpoint := fmt.Sprintf("%s/sessions/%s?user_id=%s",
		g.apiPath, url.PathEscape(sessionID), url.QueryEscape(userID))
	_, err := g.doRequest("DELETE", endpoint, nil, "")
	return err
}

// doMultipart posts a chat message with a file as multipart/form-data.
func (g *HTTPGateway) doMultipart(endpoint, message string, attachment *types.Attachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("message", message); err != nil {
		return nil, fmt.Errorf("write message field: %w", err)
	}
	part, err := writer.CreateFormFile("file", attachment.Name)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	return g.doRequest("POST", endpoint, buf.Bytes(), writer.FormDataContentType())
}

func (g *HTTPGateway) doRequest(method, path string, body []byte, contentType string) ([]byte, error) {
	token := g.tokens.Resolve()
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, g.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		logger.Warnf("backend rejected credential (%d) on %s %s", resp.StatusCode, method, path)
		g.tokens.Invalidate()
		return nil, ErrAuthRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed: %d %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
