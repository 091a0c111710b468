// Package signedrequest parses and mints the platform's two-part signed
// token: base64url(HMAC-SHA256 signature) "." base64url(JSON payload).
//
// The signature covers the still-encoded payload segment, keyed by the
// application secret. A token is trusted as a whole or not at all: every
// failure path returns a nil payload.
package signedrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is the only accepted value of the payload's "algorithm" field,
// compared case-insensitively.
const Algorithm = "HMAC-SHA256"

type validateError struct {
	context string
	err     error
}

func (e *validateError) Context() string { return e.context }
func (e *validateError) Error() string   { return fmt.Sprintf("%v: %s", e.err, e.context) }
func (e *validateError) Unwrap() error   { return e.err }

var (
	errMalformed        = errors.New("signed request malformed")
	errUnknownAlgorithm = errors.New("signed request unknown algorithm")
	errBadSignature     = errors.New("signed request bad signature")
)

func ErrMalformed() error        { return errMalformed }
func ErrUnknownAlgorithm() error { return errUnknownAlgorithm }
func ErrBadSignature() error     { return errBadSignature }

// Payload is the decoded JSON body of a signed request. Numbers are kept as
// json.Number so that large ids survive intact.
type Payload map[string]any

// String returns the value under key rendered as a string, or "" when absent.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (p Payload) UserID() string     { return p.String("user_id") }
func (p Payload) OAuthToken() string { return p.String("oauth_token") }

// Parse verifies token against secret and returns its payload.
//
// The returned error wraps ErrMalformed, ErrUnknownAlgorithm or
// ErrBadSignature and exposes a Context() string with the detail.
func Parse(
	token string,
	secret string,
) (
	Payload,
	error,
) {
	encSignature, encPayload, found := strings.Cut(token, ".")
	if !found {
		return nil, &validateError{
			context: "expected two dot-separated parts",
			err:     errMalformed,
		}
	}

	sig, err := signature.Base64URLDecode(encSignature)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("signature segment: %v", err),
			err:     errMalformed,
		}
	}

	payload, err := decodePayload(encPayload)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("payload segment: %v", err),
			err:     errMalformed,
		}
	}

	if !strings.EqualFold(payload.String("algorithm"), Algorithm) {
		return nil, &validateError{
			context: fmt.Sprintf("unknown algorithm %q, expected %s", payload.String("algorithm"), Algorithm),
			err:     errUnknownAlgorithm,
		}
	}

	if err := jwt.SigningMethodHS256.Verify(encPayload, sig, []byte(secret)); err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("signature verification failed: %v", err),
			err:     errBadSignature,
		}
	}

	return payload, nil
}

// Make signs data with secret. The "algorithm" and "issued_at" fields are
// set on the encoded payload; data itself is not modified.
func Make(
	data map[string]any,
	secret string,
	now time.Time,
) (
	string,
	error,
) {
	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["algorithm"] = Algorithm
	payload["issued_at"] = now.Unix()

	return Encode(payload, secret)
}

// Encode signs payload exactly as given, without adding any fields.
func Encode(
	payload map[string]any,
	secret string,
) (
	string,
	error,
) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("json marshal failure: %v", err)
	}
	encPayload := signature.Base64URLEncode(payloadJSON)

	sig, err := jwt.SigningMethodHS256.Sign(encPayload, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %v", err)
	}

	return signature.Base64URLEncode(sig) + "." + encPayload, nil
}

func decodePayload(encPayload string) (Payload, error) {
	raw, err := signature.Base64URLDecode(encPayload)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var payload Payload
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("not valid JSON: %v", err)
	}
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON object at offset %d", decoder.InputOffset())
	}
	if payload == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return payload, nil
}
