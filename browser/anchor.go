package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultAnchorBaseURL    = "https://api.anchorbrowser.io"
	DefaultAnchorConnectURL = "wss://connect.anchorbrowser.io"
)

// Session is a remote browser session.
type Session struct {
	ID          string `json:"id"`
	CDPURL      string `json:"cdp_url"`
	LiveViewURL string `json:"live_view_url,omitempty"`
}

// SessionCreator provisions remote browser sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context) (*Session, error)
}

type featureToggle struct {
	Active bool `json:"active"`
}

type sessionConfig struct {
	AdblockConfig featureToggle `json:"adblock_config"`
	CaptchaConfig featureToggle `json:"captcha_config"`
	ProxyConfig   featureToggle `json:"proxy_config"`
}

type sessionPayload struct {
	ID          string `json:"id"`
	LiveViewURL string `json:"live_view_url"`
}

// AnchorClient creates sessions on Anchor Browser.
type AnchorClient struct {
	apiKey     string
	baseURL    string
	connectURL string
	httpClient *http.Client
}

var _ SessionCreator = (*AnchorClient)(nil)

// AnchorOption configures an AnchorClient.
type AnchorOption func(*AnchorClient)

// WithAnchorBaseURL overrides the REST endpoint.
func WithAnchorBaseURL(u string) AnchorOption {
	return func(c *AnchorClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithAnchorConnectURL overrides the CDP websocket endpoint.
func WithAnchorConnectURL(u string) AnchorOption {
	return func(c *AnchorClient) { c.connectURL = u }
}

// WithAnchorHTTPClient sets the HTTP client.
func WithAnchorHTTPClient(hc *http.Client) AnchorOption {
	return func(c *AnchorClient) { c.httpClient = hc }
}

// NewAnchorClient creates a client. An empty key falls back to ANCHOR_API_KEY.
func NewAnchorClient(apiKey string, opts ...AnchorOption) (*AnchorClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANCHOR_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANCHOR_API_KEY not set")
	}
	c := &AnchorClient{
		apiKey:     apiKey,
		baseURL:    DefaultAnchorBaseURL,
		connectURL: DefaultAnchorConnectURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession starts a session with ad blocking, captcha solving and a
// proxy enabled.
func (c *AnchorClient) CreateSession(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(sessionConfig{
		AdblockConfig: featureToggle{Active: true},
		CaptchaConfig: featureToggle{Active: true},
		ProxyConfig:   featureToggle{Active: true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("anchor-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser session: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to create browser session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// Newer API versions wrap the session in a data envelope.
	var out struct {
		sessionPayload
		Data *sessionPayload `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	payload := out.sessionPayload
	if payload.ID == "" && out.Data != nil {
		payload = *out.Data
	}
	if payload.ID == "" {
		return nil, errors.New("browser session response has no id")
	}

	return &Session{
		ID:          payload.ID,
		CDPURL:      c.cdpURL(payload.ID),
		LiveViewURL: payload.LiveViewURL,
	}, nil
}

func (c *AnchorClient) cdpURL(sessionID string) string {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("sessionId", sessionID)
	return c.connectURL + "?" + q.Encode()
}
