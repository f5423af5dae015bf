package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultApiVersion is the REST API version queried when none is configured
const DefaultApiVersion = 53

type TokenGetter interface {
	Get(ctx context.Context) (string, error)
}

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StaticToken is a TokenGetter for an access token handed over by another service,
// e.g. the org selected by the decision service for a single execution
type StaticToken string

func (t StaticToken) Get(_ context.Context) (string, error) {
	if len(t) == 0 {
		return "", fmt.Errorf("salesforce access token is empty")
	}
	return string(t), nil
}

// RequestHelper a helper struct for sending requests to a salesforce org
type RequestHelper struct {
	tokenGetter TokenGetter
	client      HttpClient
	baseUrl     string
	apiVersion  int
}

func NewRequestHelper(client HttpClient, tg TokenGetter, baseUrl string, apiVersion int) (*RequestHelper, error) {
	if len(baseUrl) == 0 {
		return nil, fmt.Errorf("baseUrl needs to be provided")
	}
	if apiVersion <= 0 {
		return nil, fmt.Errorf("salesforce apiVersion needs to be provided")
	}
	if tg == nil {
		return nil, fmt.Errorf("tokenGetter needs to be provided")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RequestHelper{
		tokenGetter: tg,
		client:      client,
		baseUrl:     strings.TrimRight(baseUrl, "/"),
		apiVersion:  apiVersion,
	}, nil
}

type QueryError struct {
	queryUsed  string
	statusCode int
}

func (q QueryError) Error() string {
	return fmt.Sprintf("error querying salesforce - status code: %v, query: %v", q.statusCode, q.queryUsed)
}

func (q QueryError) StatusCode() int {
	return q.statusCode
}

// componentUnescaper undoes the escapes url.QueryEscape adds beyond encodeURIComponent
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%21", "!",
)

// QueryUrl builds the query endpoint for q, escaping the query the way
// javascript's encodeURIComponent does (spaces as %20, ' ( ) * ! left as is)
func QueryUrl(baseUrl string, apiVersion int, q string) string {
	escaped := componentUnescaper.Replace(url.QueryEscape(q))
	return fmt.Sprintf("%s/services/data/v%d.0/query?q=%s", baseUrl, apiVersion, escaped)
}

// QueryRaw queries salesforce and returns the response body untouched
// - uses the baseUrl, tokenGetter and http client on RequestHelper to query salesforce
// - QueryError returned if status code is not 2xx
// - json errors are wrapped, so callers can tell a malformed body apart with errors.As
func QueryRaw(ctx context.Context, h *RequestHelper, q string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, QueryUrl(h.baseUrl, h.apiVersion, q), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create salesforce request: %w", err)
	}

	token, err := h.tokenGetter.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get salesforce auth token: %w", err)
	}
	req.Header = http.Header{
		"Content-Type":  {"application/json"},
		"Authorization": {"Bearer " + token},
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to send request to salesforce: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, QueryError{statusCode: resp.StatusCode, queryUsed: q}
	}
	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read salesforce response: %w", err)
	}

	var raw json.RawMessage
	if err = json.Unmarshal(resBody, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse salesforce response: %w", err)
	}
	return raw, nil
}

// ParseQueryResponse decodes a query body in a generic way
// - E is the record type, json.RawMessage leaves records untouched
func ParseQueryResponse[E any](raw json.RawMessage) (*QueryResponse[E], error) {
	var parsedResp *QueryResponse[E]
	if err := json.Unmarshal(raw, &parsedResp); err != nil {
		return nil, fmt.Errorf("unable to parse salesforce response: %w", err)
	}
	return parsedResp, nil
}

// Truncated reports whether more records exist than were returned
func (r QueryResponse[E]) Truncated() bool {
	return !r.Done || r.NextRecordsUrl != ""
}
