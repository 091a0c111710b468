package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrInvalidResponse    = errors.New("invalid response")
	ErrMissingMethod      = errors.New("legacy call requires a method parameter")
	ErrFileUploadDisabled = errors.New("file upload support is disabled")
)

// Error types that invalidate the session.
const (
	TypeOAuthException = "OAuthException"
	TypeInvalidToken   = "invalid_token"
)

// APIError is an error object returned by the API.
type APIError struct {
	Type    string
	Message string
	Code    int
	Result  map[string]any
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %d %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// InvalidatesSession reports whether the error means the access token is
// no longer valid.
func (e *APIError) InvalidatesSession() bool {
	return e.Type == TypeOAuthException || e.Type == TypeInvalidToken
}

// newAPIError reads the three error shapes the API produces: Graph error
// objects, OAuth 2.0 draft 10 string errors and legacy error codes.
func newAPIError(result map[string]any) *APIError {
	e := &APIError{Type: "Exception", Result: result}

	if code, ok := intValue(result["error_code"]); ok {
		e.Code = code
	}

	switch errValue := result["error"].(type) {
	case map[string]any:
		if t := stringValue(errValue["type"]); t != "" {
			e.Type = t
		}
		e.Message = stringValue(errValue["message"])
		if code, ok := intValue(errValue["code"]); ok {
			e.Code = code
		}
	case string:
		e.Type = errValue
		e.Message = stringValue(result["error_description"])
	}

	if e.Message == "" {
		e.Message = stringValue(result["error_msg"])
	}
	if e.Message == "" {
		e.Message = "unknown error"
	}
	return e
}

// TransportError means the HTTP request did not complete.
type TransportError struct {
	Code    string
	Message string
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s) calling %s: %s", e.Code, e.URL, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Timeout() bool { return e.Code == "timeout" }

func newTransportError(rawURL string, err error) *TransportError {
	code := "transport"
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		code = "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		code = "timeout"
	}
	return &TransportError{
		Code:    code,
		Message: err.Error(),
		URL:     rawURL,
		Err:     err,
	}
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intValue(v any) (int, bool) {
	switch v := v.(type) {
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
