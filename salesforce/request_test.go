package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type attributesStub struct {
	Type string `json:"type"`
	Url  string `json:"url"`
}

type recordStub struct {
	Attributes attributesStub `json:"attributes"`
	Foo        string         `json:"foo"`
}

type HttpClientMock struct {
	mock.Mock
}

func (m *HttpClientMock) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	r := args.Get(0).(*http.Response)
	return r, args.Error(1)
}

func newHttpClientMock(resp *http.Response, err error) *HttpClientMock {
	m := new(HttpClientMock)
	m.On("Do", mock.Anything).Return(resp, err)
	return m
}

type TokenGetterMock struct {
	mock.Mock
}

func (m *TokenGetterMock) Get(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func newTokenGetterMock(tok string, err error) *TokenGetterMock {
	m := new(TokenGetterMock)
	m.On("Get", mock.Anything).Return(tok, err)
	return m
}

func okResponse(body string) *http.Response {
	return &http.Response{
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		StatusCode: 200,
	}
}

func TestNewRequestHelper(t *testing.T) {
	httpClientMock := new(HttpClientMock)
	type args struct {
		tg         TokenGetter
		baseUrl    string
		apiVersion int
	}
	tests := []struct {
		name    string
		args    args
		want    *RequestHelper
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "successfully create RequestHelper",
			args: args{
				tg:         StaticToken("tok"),
				baseUrl:    "https://org.my.salesforce.com",
				apiVersion: 53,
			},
			want: &RequestHelper{
				tokenGetter: StaticToken("tok"),
				client:      httpClientMock,
				baseUrl:     "https://org.my.salesforce.com",
				apiVersion:  53,
			},
			wantErr: assert.NoError,
		},
		{
			name: "trailing slash on baseUrl  trimmed",
			args: args{
				tg:         StaticToken("tok"),
				baseUrl:    "https://org.my.salesforce.com/",
				apiVersion: 53,
			},
			want: &RequestHelper{
				tokenGetter: StaticToken("tok"),
				client:      httpClientMock,
				baseUrl:     "https://org.my.salesforce.com",
				apiVersion:  53,
			},
			wantErr: assert.NoError,
		},
		{
			name: "token getter nil  return error",
			args: args{
				baseUrl:    "baseUrl",
				apiVersion: 53,
			},
			wantErr: assert.Error,
		},
		{
			name: "baseUrl not set  return error",
			args: args{
				tg:         StaticToken("tok"),
				apiVersion: 53,
			},
			wantErr: assert.Error,
		},
		{
			name: "version not set return error",
			args: args{
				tg:      StaticToken("tok"),
				baseUrl: "base/url",
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRequestHelper(httpClientMock, tt.args.tg, tt.args.baseUrl, tt.args.apiVersion)

			if !tt.wantErr(t, err, fmt.Sprintf("NewRequestHelper(<HttpClientMock>, %v, %v, %v)", tt.args.tg, tt.args.baseUrl, tt.args.apiVersion)) {
				return
			}
			assert.Equalf(t, tt.want, got, "NewRequestHelper(<HttpClientMock>, %v, %v, %v)", tt.args.tg, tt.args.baseUrl, tt.args.apiVersion)
		})
	}
}

func TestQueryUrl(t *testing.T) {
	tests := []struct {
		name       string
		baseUrl    string
		apiVersion int
		query      string
		want       string
	}{
		{
			name:       "spaces encoded as %20",
			baseUrl:    "https://org.my.salesforce.com",
			apiVersion: 53,
			query:      "SELECT Id FROM Account",
			want:       "https://org.my.salesforce.com/services/data/v53.0/query?q=SELECT%20Id%20FROM%20Account",
		},
		{
			name:       "reserved characters escaped, quotes kept",
			baseUrl:    "https://org.my.salesforce.com",
			apiVersion: 60,
			query:      "SELECT Id FROM Account WHERE Name = 'A&B+C'",
			want:       "https://org.my.salesforce.com/services/data/v60.0/query?q=SELECT%20Id%20FROM%20Account%20WHERE%20Name%20%3D%20'A%26B%2BC'",
		},
		{
			name:       "unreserved marks not escaped",
			baseUrl:    "https://org.my.salesforce.com",
			apiVersion: 53,
			query:      "SELECT COUNT(*) FROM Account WHERE Name = 'Acme!' AND (Type != null)",
			want:       "https://org.my.salesforce.com/services/data/v53.0/query?q=SELECT%20COUNT(*)%20FROM%20Account%20WHERE%20Name%20%3D%20'Acme!'%20AND%20(Type%20!%3D%20null)",
		},
		{
			name:       "non ascii percent encoded as utf-8",
			baseUrl:    "https://org.my.salesforce.com",
			apiVersion: 53,
			query:      "SELECT Id FROM Account WHERE Name = 'Café ~_.-'",
			want:       "https://org.my.salesforce.com/services/data/v53.0/query?q=SELECT%20Id%20FROM%20Account%20WHERE%20Name%20%3D%20'Caf%C3%A9%20~_.-'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryUrl(tt.baseUrl, tt.apiVersion, tt.query))
		})
	}
}

func TestQueryRaw(t *testing.T) {
	t.Run("request carries bearer token and encoded query", func(t *testing.T) {
		client := newHttpClientMock(okResponse(`{"totalSize": 1, "done":true, "records":[{"Id":"001"}]}`), nil)
		h := &RequestHelper{
			client:      client,
			tokenGetter: StaticToken("tok1"),
			baseUrl:     "https://org.my.salesforce.com",
			apiVersion:  53,
		}

		got, err := QueryRaw(context.Background(), h, "SELECT Id FROM Account")

		assert.NoError(t, err)
		assert.JSONEq(t, `{"totalSize": 1, "done":true, "records":[{"Id":"001"}]}`, string(got))
		req := client.Calls[0].Arguments.Get(0).(*http.Request)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "https://org.my.salesforce.com/services/data/v53.0/query?q=SELECT%20Id%20FROM%20Account", req.URL.String())
		assert.Equal(t, "Bearer tok1", req.Header.Get("Authorization"))
	})

	tests := []struct {
		name    string
		h       *RequestHelper
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "404 status code  QueryError returned",
			h: &RequestHelper{
				client:      newHttpClientMock(&http.Response{Body: io.NopCloser(nil), StatusCode: 404}, nil),
				tokenGetter: newTokenGetterMock("token", nil),
				baseUrl:     "baseUrl",
				apiVersion:  53,
			},
			wantErr: func(t assert.TestingT, err error, i ...interface{}) bool {
				errType := &QueryError{}
				return assert.ErrorAs(t, err, errType, i...) && assert.Equal(t, 404, errType.StatusCode(), i...)
			},
		},
		{
			name: "body not json  syntax error wrapped",
			h: &RequestHelper{
				client:      newHttpClientMock(okResponse(`<html>oops</html>`), nil),
				tokenGetter: newTokenGetterMock("token", nil),
				baseUrl:     "baseUrl",
				apiVersion:  53,
			},
			wantErr: func(t assert.TestingT, err error, i ...interface{}) bool {
				var syntaxErr *json.SyntaxError
				return assert.ErrorAs(t, err, &syntaxErr, i...)
			},
		},
		{
			name: "token getter fails  error returned",
			h: &RequestHelper{
				client:      new(HttpClientMock),
				tokenGetter: newTokenGetterMock("", errors.New("no token")),
				baseUrl:     "baseUrl",
				apiVersion:  53,
			},
			wantErr: assert.Error,
		},
		{
			name: "empty static token  error returned",
			h: &RequestHelper{
				client:      new(HttpClientMock),
				tokenGetter: StaticToken(""),
				baseUrl:     "baseUrl",
				apiVersion:  53,
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QueryRaw(context.Background(), tt.h, "query")
			tt.wantErr(t, err, fmt.Sprintf("QueryRaw(<context>, %v, query)", tt.h))
		})
	}
}

func TestParseQueryResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *QueryResponse[recordStub]
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "no records  queryResponse returned",
			raw:  `{"totalSize": 1, "done":true}`,
			want: &QueryResponse[recordStub]{
				TotalSize: 1,
				Done:      true,
			},
			wantErr: assert.NoError,
		},
		{
			name: "records with concrete type  queryResponse returned",
			raw:  `{"totalSize": 1, "done":true, "records":[{"attributes":{"type":"type", "url":"url"}, "foo":"bar"}]}`,
			want: &QueryResponse[recordStub]{
				TotalSize: 1,
				Done:      true,
				Records: []recordStub{{
					Attributes: attributesStub{
						Type: "type",
						Url:  "url",
					},
					Foo: "bar",
				}},
			},
			wantErr: assert.NoError,
		},
		{
			name: "next page  nextRecordsUrl returned",
			raw:  `{"totalSize": 4000, "done":false, "nextRecordsUrl":"/services/data/v53.0/query/01g-2000", "records":[]}`,
			want: &QueryResponse[recordStub]{
				TotalSize:      4000,
				NextRecordsUrl: "/services/data/v53.0/query/01g-2000",
				Records:        []recordStub{},
			},
			wantErr: assert.NoError,
		},
		{
			name: "records of wrong shape  error returned",
			raw:  `{"totalSize": 1, "done":true, "records":"nope"}`,
			wantErr: func(t assert.TestingT, err error, i ...interface{}) bool {
				var typeErr *json.UnmarshalTypeError
				return assert.ErrorAs(t, err, &typeErr, i...)
			},
		},
		{
			name: "array body  error returned",
			raw:  `[{"Id":"001"}]`,
			wantErr: func(t assert.TestingT, err error, i ...interface{}) bool {
				var typeErr *json.UnmarshalTypeError
				return assert.ErrorAs(t, err, &typeErr, i...)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQueryResponse[recordStub](json.RawMessage(tt.raw))

			if !tt.wantErr(t, err, fmt.Sprintf("ParseQueryResponse(%v)", tt.raw)) {
				return
			}
			assert.Equalf(t, tt.want, got, "ParseQueryResponse(%v)", tt.raw)
		})
	}
}

func TestQueryResponse_Truncated(t *testing.T) {
	tests := []struct {
		name string
		resp QueryResponse[json.RawMessage]
		want bool
	}{
		{name: "done  not truncated", resp: QueryResponse[json.RawMessage]{Done: true}, want: false},
		{name: "not done  truncated", resp: QueryResponse[json.RawMessage]{Done: false}, want: true},
		{name: "next page url  truncated", resp: QueryResponse[json.RawMessage]{Done: true, NextRecordsUrl: "/next"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.Truncated())
		})
	}
}
