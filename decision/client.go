package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultUrl is the decision endpoint used when none is configured
const DefaultUrl = "https://your-agent-ai-api-url/decide-org"

// ExecutionIdHeader carries the execution id on outgoing requests
const ExecutionIdHeader = "X-Execution-Id"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Params struct {
	HttpClient HttpClient `validate:"required"`
	Url        string     `validate:"required,url"`
	// Signer adds a bearer token to each request when set
	Signer *Signer
	// NewBackOff returns the retry policy for one call, nil means a single attempt
	NewBackOff func() backoff.BackOff
	Log        *zap.Logger
}

// Client asks the decision service which salesforce org and drive account to use
type Client struct {
	httpClient HttpClient
	url        string
	signer     *Signer
	newBackOff func() backoff.BackOff
	log        *zap.Logger
}

func NewClient(p Params) (*Client, error) {
	if err := validator.New().Struct(p); err != nil {
		return nil, err
	}
	nb := p.NewBackOff
	if nb == nil {
		nb = func() backoff.BackOff { return &backoff.StopBackOff{} }
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient: p.HttpClient,
		url:        p.Url,
		signer:     p.Signer,
		newBackOff: nb,
		log:        log.Named("DecisionClient"),
	}, nil
}

// ExponentialBackOff retries up to maxRetries times with the library's default exponential policy
func ExponentialBackOff(maxRetries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
	}
}

type StatusError struct {
	statusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("error calling decision service - status code: %v", e.statusCode)
}

func (e StatusError) StatusCode() int {
	return e.statusCode
}

// Decide posts the action and workflow context and returns the selection.
// Network failures and 5xx responses are retried per the configured backoff,
// 4xx responses and unparsable bodies are not.
func (c *Client) Decide(ctx context.Context, executionId, action string, workflowCtx map[string]any) (*Decision, error) {
	if workflowCtx == nil {
		workflowCtx = map[string]any{}
	}
	reqBody, err := json.Marshal(Request{Action: action, Context: workflowCtx})
	if err != nil {
		return nil, fmt.Errorf("unable to create decision payload: %w", err)
	}

	b := backoff.WithContext(c.newBackOff(), ctx)
	return backoff.RetryNotifyWithData[*Decision](func() (*Decision, error) {
		return c.decide(ctx, executionId, reqBody)
	}, b, func(err error, wait time.Duration) {
		c.log.Warn("decision call failed, retrying",
			zap.String("execution_id", executionId),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

func (c *Client) decide(ctx context.Context, executionId string, reqBody []byte) (*Decision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to create decision request: %w", err))
	}
	req.Header = http.Header{
		"Content-Type":    {"application/json"},
		ExecutionIdHeader: {executionId},
	}
	if c.signer != nil {
		tok, err := c.signer.Sign(executionId, c.url)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to send request to decision service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := StatusError{statusCode: resp.StatusCode}
		if resp.StatusCode < 500 {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}
	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read decision response: %w", err)
	}

	var raw json.RawMessage
	if err = json.Unmarshal(resBody, &raw); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to parse decision response: %w", err))
	}
	d := &Decision{Raw: raw}
	if err = json.Unmarshal(raw, &d.Selection); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to parse decision response: %w", err))
	}
	return d, nil
}
