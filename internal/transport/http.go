package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"convosync/internal/apperr"
	"convosync/internal/model"
)

// HTTPClient implements Transport against the dashboard API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a transport client for baseURL. token is sent
// as a bearer token when non-empty.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return apperr.FromHTTPStatus(resp.StatusCode, apiErr.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func filterQuery(f model.ListFilters) string {
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", string(f.Category))
	}
	if f.Channel != "" {
		v.Set("channel", f.Channel)
	}
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *HTTPClient) ListConversations(ctx context.Context, clientID string, f model.ListFilters) ([]model.ConversationGroup, error) {
	var out struct {
		Groups []model.ConversationGroup `json:"groups"`
	}
	path := fmt.Sprintf("/api/clients/%s/conversations%s", url.PathEscape(clientID), filterQuery(f))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

func (c *HTTPClient) PageData(ctx context.Context, clientID string, f model.ListFilters) (*model.PageData, error) {
	var out model.PageData
	path := fmt.Sprintf("/api/clients/%s/conversations/page%s", url.PathEscape(clientID), filterQuery(f))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetConversation(ctx context.Context, clientID, conversationID string) (*model.Conversation, error) {
	var out model.Conversation
	path := fmt.Sprintf("/api/clients/%s/conversations/%s", url.PathEscape(clientID), url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Stats(ctx context.Context, clientID string) (*model.Stats, error) {
	var out model.Stats
	path := fmt.Sprintf("/api/clients/%s/stats", url.PathEscape(clientID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) mutate(ctx context.Context, conversationID, action string, payload any) (*model.Conversation, error) {
	var out model.Conversation
	path := fmt.Sprintf("/api/conversations/%s/%s", url.PathEscape(conversationID), action)
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ToggleArchive(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return c.mutate(ctx, conversationID, "archive-toggle", struct{}{})
}

func (c *HTTPClient) ToggleImportant(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return c.mutate(ctx, conversationID, "important-toggle", struct{}{})
}

func (c *HTTPClient) AssignUser(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	return c.mutate(ctx, conversationID, "assign", map[string]string{"user_id": userID})
}

func (c *HTTPClient) SetStatus(ctx context.Context, conversationID string, status model.ConversationStatus) (*model.Conversation, error) {
	return c.mutate(ctx, conversationID, "status", map[string]string{"status": string(status)})
}

func (c *HTTPClient) SetAIActive(ctx context.Context, conversationID string, active bool) (*model.Conversation, error) {
	return c.mutate(ctx, conversationID, "ai", map[string]bool{"active": active})
}

func (c *HTTPClient) SendMessage(ctx context.Context, req SendRequest) error {
	return c.do(ctx, http.MethodPost, "/api/messages", req, nil)
}

func (c *HTTPClient) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/conversations/%s/read", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodPost, path, struct{}{}, nil)
}

// Upload pushes a file to the storage endpoint and returns its public
// URL. Implements the send pipeline's Uploader.
func (c *HTTPClient) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy file content: %w", err)
	}
	if contentType != "" {
		_ = writer.WriteField("content_type", contentType)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", apperr.FromHTTPStatus(resp.StatusCode, apiErr.Error)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.URL, nil
}
