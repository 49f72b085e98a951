// Package whatsapp implements the WhatsApp Cloud API transport: media
// retrieval for inbound attachments and text message delivery.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Client talks to the WhatsApp Cloud API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	phoneID    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a WhatsApp Cloud API client. token is the bearer
// token; phoneID is the business phone number ID messages are sent from.
func NewClient(token, phoneID string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		phoneID:    phoneID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// mediaLookup is the metadata response for a media ID.
type mediaLookup struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// FetchMedia downloads the bytes for a media ID. The Cloud API requires
// two steps: resolve the media ID to a short-lived URL, then download from
// that URL with the same bearer token. The download is spooled through a
// temp file that is removed before returning, on success and failure alike.
func (c *Client) FetchMedia(ctx context.Context, mediaID string) ([]byte, error) {
	lookup, err := c.lookupMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media %s: status %d", mediaID, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "wamedia-*")
	if err != nil {
		return nil, fmt.Errorf("create media temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return nil, fmt.Errorf("spool media %s: %w", mediaID, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind media temp file: %w", err)
	}

	data, err := io.ReadAll(tmp)
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", mediaID, err)
	}
	return data, nil
}

func (c *Client) lookupMedia(ctx context.Context, mediaID string) (*mediaLookup, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup media %s: status %d", mediaID, resp.StatusCode)
	}

	var lookup mediaLookup
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, fmt.Errorf("decode media lookup %s: %w", mediaID, err)
	}
	if lookup.URL == "" {
		return nil, fmt.Errorf("lookup media %s: empty download url", mediaID)
	}
	return &lookup, nil
}

// sendPayload is the /messages request body for a text message.
type sendPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// Send delivers a text message to the recipient's phone number.
func (c *Client) Send(ctx context.Context, to, body string) error {
	payload := sendPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send message to %s: status %d: %s", to, resp.StatusCode, respBody)
	}
	return nil
}
