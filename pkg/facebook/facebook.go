// Package facebook is a small facade over the client for the common web
// flow: find the current user, send them through the login or logout
// dialog, and read their profile and photo.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"git.sr.ht/~jakintosh/fbclient/pkg/webctx"
)

var (
	ErrNotConnected           = errors.New("no user is connected")
	ErrPhotoLookupUnsupported = errors.New("photo lookup is only supported for the connected user")
)

var photoTypes = []string{"square", "small", "normal", "large"}

type App struct {
	creds         *credentials.Credentials
	client        *client.Client
	requestParams map[string]string
}

type config struct {
	logger         *slog.Logger
	sharedSession  bool
	clientOptions  []client.Option
	sessionOptions []session.Option
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithSharedSession turns on the shared-session cookie for apps sharing a
// cookie domain.
func WithSharedSession(enabled bool) Option {
	return func(c *config) { c.sharedSession = enabled }
}

// WithClientOptions passes options through to the client.
func WithClientOptions(opts ...client.Option) Option {
	return func(c *config) { c.clientOptions = append(c.clientOptions, opts...) }
}

// WithSessionOptions passes options through to the session store.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) { c.sessionOptions = append(c.sessionOptions, opts...) }
}

// New builds an App for one request. Cookie and file upload support are on,
// and cookies are bound to the request host.
func New(
	appID string,
	secret string,
	req *webctx.Context,
	backend session.Backend,
	opts ...Option,
) (
	*App,
	error,
) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	creds, err := credentials.New(credentials.Config{AppID: appID, Secret: secret})
	if err != nil {
		return nil, err
	}
	host := ""
	if req != nil {
		host = req.Host
	}
	creds.SetCookieSupport(true).
		SetBaseDomain(host).
		SetFileUploadSupport(true)

	sessionOpts := append([]session.Option{
		session.WithRequest(req),
		session.WithLogger(cfg.logger),
		session.WithSharedSession(cfg.sharedSession),
	}, cfg.sessionOptions...)
	store := session.NewPersistent(creds, backend, sessionOpts...)

	clientOpts := append([]client.Option{
		client.WithRequest(req),
		client.WithLogger(cfg.logger),
	}, cfg.clientOptions...)

	return &App{
		creds:         creds,
		client:        client.New(creds, store, clientOpts...),
		requestParams: map[string]string{},
	}, nil
}

func (a *App) Credentials() *credentials.Credentials { return a.creds }
func (a *App) Client() *client.Client               { return a.client }

// UserID returns the connected user's id, or "".
func (a *App) UserID(ctx context.Context) string {
	return a.client.User(ctx)
}

// SetRequestParams replaces the parameters used to build dialog URLs:
// "scope" (comma separated), "redirect_uri" and "next".
func (a *App) SetRequestParams(params map[string]string) {
	a.requestParams = make(map[string]string, len(params))
	for k, v := range params {
		a.requestParams[k] = v
	}
}

// Connect returns the login dialog URL when no user is connected or force
// is set. Otherwise it reports the user as connected.
func (a *App) Connect(ctx context.Context, force bool) (loginURL string, connected bool) {
	if a.UserID(ctx) != "" && !force {
		return "", true
	}

	var scope []string
	if raw := a.requestParams["scope"]; raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scope = append(scope, s)
			}
		}
	}
	return a.client.LoginURL(scope, a.requestParams["redirect_uri"]), false
}

// Disconnect returns the logout dialog URL, or "" when no user is
// connected.
func (a *App) Disconnect(ctx context.Context) string {
	if a.UserID(ctx) == "" {
		return ""
	}
	return a.client.LogoutURL(a.requestParams["next"])
}

// UserData returns the connected user's profile. It returns
// ErrNotConnected without calling the API when no user is connected.
func (a *App) UserData(ctx context.Context) (map[string]any, error) {
	if a.UserID(ctx) == "" {
		return nil, ErrNotConnected
	}
	result, err := a.client.CallGraph(ctx, "/me", "GET", nil)
	if err != nil {
		return nil, err
	}
	me, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: /me returned %T", client.ErrInvalidResponse, result)
	}
	return me, nil
}

// UserPhoto returns the connected user's picture URL. photoType is one of
// square, small, normal or large; anything else means square.
func (a *App) UserPhoto(ctx context.Context, photoType string) (string, error) {
	if !slices.Contains(photoTypes, photoType) {
		photoType = "square"
	}
	if a.UserID(ctx) == "" {
		return "", ErrNotConnected
	}

	result, err := a.client.CallGraph(ctx, "/me", "GET", map[string]any{
		"fields": "picture",
		"type":   photoType,
	})
	if err != nil {
		return "", err
	}
	return pictureURL(result), nil
}

// UserPhotoFor is UserPhoto for an explicit user id, which must be the
// connected user.
func (a *App) UserPhotoFor(ctx context.Context, userID string, photoType string) (string, error) {
	if current := a.UserID(ctx); current == "" || userID != current {
		return "", ErrPhotoLookupUnsupported
	}
	return a.UserPhoto(ctx, photoType)
}

// pictureURL reads picture.data.url, or a bare picture string from older
// API versions.
func pictureURL(result any) string {
	me, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	switch picture := me["picture"].(type) {
	case string:
		return picture
	case map[string]any:
		if data, ok := picture["data"].(map[string]any); ok {
			if u, ok := data["url"].(string); ok {
				return u
			}
		}
	}
	return ""
}
