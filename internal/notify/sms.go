package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SMSSender sends a single SMS message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// HTTPSMSGateway delivers SMS through an HTTP JSON gateway.
type HTTPSMSGateway struct {
	baseURL    string
	apiKey     string
	sender     string
	httpClient *http.Client
}

// NewHTTPSMSGateway constructs a gateway client. An empty baseURL yields a
// client whose sends fail; callers with no SMS configuration should not
// construct one at all.
func NewHTTPSMSGateway(baseURL, apiKey, sender string, timeout time.Duration) *HTTPSMSGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSMSGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		sender:  sender,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts one message to the gateway.
func (g *HTTPSMSGateway) Send(ctx context.Context, to, body string) error {
	if g.baseURL == "" {
		return fmt.Errorf("sms gateway base URL not configured")
	}

	payload := map[string]string{
		"to":   to,
		"from": g.sender,
		"body": body,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %s", resp.Status)
	}
	return nil
}
