package mail

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

const (
	defaultBrevoBaseURL = "https://api.brevo.com/v3"
	brevoSendPath       = "/smtp/email"
	maxErrorBodyBytes   = 2048
)

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
}

// BrevoError is returned when the Brevo API answers with a non-2xx status.
type BrevoError struct {
	StatusCode int
	Body       string
}

func (e *BrevoError) Error() string {
	return fmt.Sprintf("brevo: unexpected status %d: %s", e.StatusCode, e.Body)
}

// BrevoClient sends transactional email through the Brevo v3 REST API.
type BrevoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewBrevoClient builds a client with its own timeout-bound http.Client.
func NewBrevoClient(apiKey, baseURL string, timeout time.Duration) *BrevoClient {
	if baseURL == "" {
		baseURL = defaultBrevoBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrevoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Send posts one message and returns the provider message id.
func (c *BrevoClient) Send(ctx context.Context, msg brevoMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal brevo message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+brevoSendPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &BrevoError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var decoded brevoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return "", fmt.Errorf("decode brevo response: %w", err)
	}
	return decoded.MessageID, nil
}
