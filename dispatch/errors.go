package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ellogroup/ello-golang-orgrouter/decision"
)

// Services named in upstream errors
const (
	ServiceDecision    = "decision"
	ServiceWebhook     = "webhook"
	ServiceSalesforce  = "salesforce"
	ServiceGoogleDrive = "googledrive"
)

// AppError is implemented by every error Execute returns
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// ParameterError is a missing or invalid user parameter; no call has been made
type ParameterError struct {
	Name   string
	Reason string
}

func (e ParameterError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid parameters: %s", e.Reason)
	}
	return fmt.Sprintf("parameter %q %s", e.Name, e.Reason)
}

func (e ParameterError) HTTPStatus() int { return http.StatusBadRequest }
func (e ParameterError) Code() string { return "PARAMETER_ERROR" }

// UpstreamError is a failed call or a non 2xx response. StatusCode is 0 when no response was received.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s call failed with status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e UpstreamError) Unwrap() error { return e.Err }
func (e UpstreamError) HTTPStatus() int { return http.StatusBadGateway }
func (e UpstreamError) Code() string { return "UPSTREAM_ERROR" }

// ParseError is a response body that is not valid json (or not the expected json types)
type ParseError struct {
	Service string
	Err     error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s response could not be parsed: %v", e.Service, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }
func (e ParseError) HTTPStatus() int { return http.StatusBadGateway }
func (e ParseError) Code() string { return "PARSE_ERROR" }

// SchemaError is a decision that parsed but lacks what the selected action needs
type SchemaError struct {
	Service string
	Err     error
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%s response is incomplete: %v", e.Service, e.Err)
}

func (e SchemaError) Unwrap() error { return e.Err }
func (e SchemaError) HTTPStatus() int { return http.StatusBadGateway }
func (e SchemaError) Code() string { return "SCHEMA_ERROR" }

type statusCoder interface {
	StatusCode() int
}

// classify maps an error from a collaborator package onto the dispatch taxonomy
func classify(service string, err error) error {
	var schemaErr decision.SchemaError
	if errors.As(err, &schemaErr) {
		return SchemaError{Service: service, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ParseError{Service: service, Err: err}
	}
	upstream := UpstreamError{Service: service, Err: err}
	var sc statusCoder
	if errors.As(err, &sc) {
		upstream.StatusCode = sc.StatusCode()
	}
	return upstream
}
