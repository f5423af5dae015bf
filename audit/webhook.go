package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultUrl is the webhook notified when none is configured
	DefaultUrl = "https://your-n8n-instance.com/webhook/dynamic-integration"

	// EventDecision is sent after the decision service has picked an org
	EventDecision = "AI_Agent_Decision"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Envelope is the body posted to the webhook
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Notifier forwards events to a webhook. The response body is ignored.
type Notifier struct {
	client HttpClient
	url    string
}

func NewNotifier(client HttpClient, url string) (*Notifier, error) {
	if len(url) == 0 {
		return nil, fmt.Errorf("webhook url needs to be provided")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{client: client, url: url}, nil
}

type StatusError struct {
	event      string
	statusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("error notifying webhook - status code: %v, event: %v", e.statusCode, e.event)
}

func (e StatusError) StatusCode() int {
	return e.statusCode
}

// Notify posts {event, data} to the webhook; headers are added to the request as given
func (n *Notifier) Notify(ctx context.Context, event string, data json.RawMessage, headers map[string]string) error {
	if data == nil {
		data = json.RawMessage("null")
	}
	reqBody, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("unable to create webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("unable to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to send request to webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusError{event: event, statusCode: resp.StatusCode}
	}
	return nil
}
