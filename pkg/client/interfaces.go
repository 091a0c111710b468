package client

import (
	"context"
)

// Caller issues API calls.
// Consuming projects should depend on this interface rather than *Client
// to enable testing with fake implementations.
type Caller interface {
	CallGraph(ctx context.Context, path string, method string, params map[string]any) (any, error)
	CallLegacy(ctx context.Context, params map[string]any) (any, error)
}

// Authenticator resolves the current user and builds the login and logout
// dialog URLs.
type Authenticator interface {
	User(ctx context.Context) string
	LoginURL(scope []string, redirectURL string) string
	LogoutURL(next string) string
}

// API exposes both calls and authentication.
type API interface {
	Caller
	Authenticator
}

// Compile-time check that *Client implements API.
var _ Caller = (*Client)(nil)
var _ Authenticator = (*Client)(nil)
var _ API = (*Client)(nil)
