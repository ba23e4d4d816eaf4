package provider

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

// EmailClient dispatches transactional email over the provider HTTP API.
// Email needs no contact resolution; the address is the contact.
type EmailClient struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
	br      *MicroBreaker
}

func NewEmailClient(baseURL, apiKey, from string, timeoutMs, failThreshold, openForMs int) *EmailClient {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	return &EmailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:      NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (c *EmailClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.from != ""
}

type emailSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type emailSendResponse struct {
	ID string `json:"id"`
}

// Dispatch performs exactly one provider call; any non-2xx response surfaces
// as an error string for the caller's backoff decision.
func (c *EmailClient) Dispatch(ctx context.Context, to string, content Content) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if !c.br.TryAcquire() {
		return "", fmt.Errorf("email provider circuit open")
	}

	b, err := json.Marshal(emailSendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: content.Subject,
		HTML:    content.Body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		c.br.OnFailure()
		return "", err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		c.br.OnFailure()
		return "", fmt.Errorf("email provider status=%d body=%q", res.StatusCode, string(raw))
	}
	c.br.OnSuccess()

	var out emailSendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("email: decode response: %w body=%q", err, string(raw))
	}
	if out.ID == "" {
		return "", fmt.Errorf("email: missing id in response body=%q", string(raw))
	}
	return out.ID, nil
}
