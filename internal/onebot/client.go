package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls actions on a OneBot v11 HTTP API endpoint
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Record is the data returned by the get_record action. Base64 is only
// populated when the implementation has local-file-to-url conversion enabled.
type Record struct {
	File     string `json:"file"`
	URL      string `json:"url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// Target addresses a private chat or a group for send_msg
type Target struct {
	MessageType string // "private" or "group"
	UserID      int64
	GroupID     int64
}

// apiResponse is the envelope every OneBot action returns
type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Wording string          `json:"wording,omitempty"`
}

// NewClient creates a OneBot HTTP API client
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// GetRecord fetches a voice file converted to outFormat
func (c *Client) GetRecord(ctx context.Context, file, outFormat string) (*Record, error) {
	params := map[string]string{
		"file":       file,
		"out_format": outFormat,
	}

	var rec Record
	if err := c.call(ctx, "get_record", params, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SendMsg sends a plain-text message to a private chat or group
func (c *Client) SendMsg(ctx context.Context, target Target, text string) error {
	params := map[string]any{
		"message_type": target.MessageType,
		"message":      text,
		"auto_escape":  true,
	}
	if target.MessageType == "group" {
		params["group_id"] = target.GroupID
	} else {
		params["user_id"] = target.UserID
	}

	return c.call(ctx, "send_msg", params, nil)
}

// HealthCheck calls get_status and reports whether the bot is online
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var status struct {
		Online bool `json:"online"`
		Good   bool `json:"good"`
	}
	if err := c.call(ctx, "get_status", map[string]any{}, &status); err != nil {
		return false, err
	}
	return status.Online && status.Good, nil
}

// call posts params to /<action> and decodes the data field into out
func (c *Client) call(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("onebot %s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("onebot %s returned status %d: %s", action, resp.StatusCode, string(msg))
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode onebot %s response: %w", action, err)
	}
	if envelope.Status == "failed" || envelope.RetCode != 0 {
		reason := envelope.Wording
		if reason == "" {
			reason = envelope.Message
		}
		return fmt.Errorf("onebot %s failed (retcode %d): %s", action, envelope.RetCode, reason)
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode onebot %s data: %w", action, err)
	}
	return nil
}
