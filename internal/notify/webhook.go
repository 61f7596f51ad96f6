package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// jsonPoster delivers JSON payloads to a single endpoint. The chat notifiers
// and the generic webhook embed it.
type jsonPoster struct {
	service string
	url     string
	headers map[string]string
	client  *http.Client
}

func newJSONPoster(service, url string, headers map[string]string) jsonPoster {
	return jsonPoster{
		service: service,
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// post sends payload, retrying server errors. Any non-2xx reply is an error.
func (p jsonPoster) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", p.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := retryableSend(ctx, p.client, req, 2)
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", p.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", p.service, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (p jsonPoster) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// WebhookNotifier posts every event as a flat JSON document.
type WebhookNotifier struct {
	jsonPoster
}

// WebhookPayload is the JSON payload sent to webhooks.
type WebhookPayload struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Branch    string            `json:"branch,omitempty"`
	Commit    string            `json:"commit,omitempty"`
	Status    string            `json:"status,omitempty"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewWebhookNotifier creates a webhook notifier. headers are set on every request.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{newJSONPoster("webhook", url, headers)}
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

func (w *WebhookNotifier) Send(ctx context.Context, event Event) error {
	return w.post(ctx, WebhookPayload{
		Type:      string(event.Type),
		SessionID: event.SessionID,
		Branch:    event.Branch,
		Commit:    event.Commit,
		Status:    event.Status,
		Message:   FormatMessage(event),
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Details:   event.Details,
	})
}
