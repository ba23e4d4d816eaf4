package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/educreche/notify-gateway/internal/util"
)

// WhatsAppClient talks to the conversations API: contact lookup/creation plus
// message dispatch. It performs exactly one provider call per method and never
// retries; backoff is the caller's decision.
type WhatsAppClient struct {
	baseURL    string
	apiKey     string
	locationID string
	client     *http.Client
	br         *MicroBreaker
}

func NewWhatsAppClient(baseURL, apiKey, locationID string, timeoutMs, failThreshold, openForMs int) *WhatsAppClient {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	return &WhatsAppClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		locationID: locationID,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (c *WhatsAppClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.locationID != ""
}

type waContact struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

type waContactLookup struct {
	Contacts []waContact `json:"contacts"`
}

type waMessageResponse struct {
	MessageID string `json:"messageId"`
}

// ResolveContact normalizes the phone, looks the contact up by exact match and
// creates it when absent. A create rejected by the provider means the number
// itself is bad and maps to ErrContactNotFound.
func (c *WhatsAppClient) ResolveContact(ctx context.Context, phone string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	normalized := util.NormalizePhone(phone)
	if normalized == "" {
		return "", ErrContactNotFound
	}

	if id, err := c.lookupContact(ctx, normalized); err != nil {
		return "", err
	} else if id != "" {
		return id, nil
	}

	id, err := c.createContact(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("%w: create rejected for %s: %v", ErrContactNotFound, normalized, err)
	}
	return id, nil
}

// Dispatch sends one WhatsApp message to an already-resolved contact and
// returns the provider message id.
func (c *WhatsAppClient) Dispatch(ctx context.Context, contactID string, content Content) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if !c.br.TryAcquire() {
		return "", fmt.Errorf("whatsapp provider circuit open")
	}

	payload := map[string]string{
		"type":      "WhatsApp",
		"contactId": contactID,
		"message":   content.Body,
	}

	var out waMessageResponse
	if err := c.do(ctx, http.MethodPost, "/conversations/messages", payload, &out); err != nil {
		c.br.OnFailure()
		return "", err
	}
	c.br.OnSuccess()

	if out.MessageID == "" {
		return "", fmt.Errorf("whatsapp: missing messageId in response")
	}
	return out.MessageID, nil
}

func (c *WhatsAppClient) lookupContact(ctx context.Context, phone string) (string, error) {
	q := url.Values{}
	q.Set("locationId", c.locationID)
	q.Set("phone", phone)

	var out waContactLookup
	if err := c.do(ctx, http.MethodGet, "/contacts/lookup?"+q.Encode(), nil, &out); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", nil
		}
		return "", err
	}

	for _, ct := range out.Contacts {
		if ct.Phone == phone || ct.Phone == "+"+phone {
			return ct.ID, nil
		}
	}
	return "", nil
}

func (c *WhatsAppClient) createContact(ctx context.Context, phone string) (string, error) {
	payload := map[string]string{
		"locationId": c.locationID,
		"phone":      "+" + phone,
	}

	var out waContact
	if err := c.do(ctx, http.MethodPost, "/contacts", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("whatsapp: contact created without id")
	}
	return out.ID, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("whatsapp provider status=%d body=%q", e.code, e.body)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.code == code
}

func (c *WhatsAppClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode/100 != 2 {
		return &statusError{code: res.StatusCode, body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("whatsapp: decode response: %w body=%q", err, string(raw))
		}
	}
	return nil
}
