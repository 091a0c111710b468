package client

import (
	"context"
	"crypto/x509"
	"log/slog"
	"net/http"

	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"git.sr.ht/~jakintosh/fbclient/pkg/signedrequest"
	"git.sr.ht/~jakintosh/fbclient/pkg/webctx"
)

const (
	Version = "3.2.2"

	DefaultClientName = "fbclient"
)

type Client struct {
	creds       *credentials.Credentials
	store       session.Store
	request     *webctx.Context
	httpClient  *http.Client
	rootCAs     *x509.CertPool
	domains     map[string]string
	logger      *slog.Logger
	metrics     *Metrics
	clientName  string
	redirectURL string

	accessToken   string
	signedRequest signedrequest.Payload
	srLoaded      bool
	user          string
	userLoaded    bool
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRequest supplies the incoming request the client reads the signed
// request, OAuth code and legacy cookie from.
func WithRequest(request *webctx.Context) Option {
	return func(c *Client) { c.request = request }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithDomains overrides base URLs in the domain alias table. Base URLs must
// end with a slash.
func WithDomains(domains map[string]string) Option {
	return func(c *Client) {
		for alias, base := range domains {
			c.domains[alias] = base
		}
	}
}

// WithRootCAs sets the trust roots used when a call fails because the
// server's certificate authority is unknown. The bundled Mozilla roots are
// used otherwise.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Client) { c.rootCAs = pool }
}

// WithClientName sets the name embedded in the legacy session cookie name.
func WithClientName(name string) Option {
	return func(c *Client) { c.clientName = name }
}

// WithRedirectURL sets the OAuth redirect URL used by LoginURL and
// ExchangeCode.
func WithRedirectURL(redirectURL string) Option {
	return func(c *Client) { c.redirectURL = redirectURL }
}

func New(
	creds *credentials.Credentials,
	store session.Store,
	opts ...Option,
) *Client {
	c := &Client{
		creds:      creds,
		store:      store,
		httpClient: defaultHTTPClient(),
		domains:    defaultDomains(),
		logger:     slog.Default(),
		clientName: DefaultClientName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Credentials() *credentials.Credentials { return c.creds }

// SetAccessToken sets a token used by the next API call only. It is reset
// once that call's transport completes.
func (c *Client) SetAccessToken(token string) *Client {
	c.accessToken = token
	return c
}

// AccessToken returns the transient token, or "" if none is set.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// SignedRequest returns the verified payload of the signed_request request
// parameter, or nil if it is absent or fails verification.
func (c *Client) SignedRequest() signedrequest.Payload {
	if c.srLoaded {
		return c.signedRequest
	}
	c.srLoaded = true

	token, ok := c.request.Param("signed_request")
	if !ok || token == "" {
		return nil
	}
	payload, err := signedrequest.Parse(token, c.creds.APISecret())
	if err != nil {
		c.logger.Warn("ignoring invalid signed request", "error", err)
		return nil
	}
	c.signedRequest = payload
	return payload
}

// User returns the id of the current user, or "" when nobody is
// authenticated. The first call seeds the session store from the
// available request data; later calls return the cached result.
func (c *Client) User(ctx context.Context) string {
	if c.userLoaded {
		return c.user
	}
	c.user = c.userFromAvailableData(ctx)
	c.userLoaded = true
	return c.user
}

func (c *Client) userFromAvailableData(ctx context.Context) string {
	// a signed request is authoritative when present
	if payload := c.SignedRequest(); payload != nil {
		userID := payload.UserID()
		if userID == "" {
			c.store.ClearAllPersistentData()
			return ""
		}
		if userID != c.store.GetPersistentData(session.KeyUserID, "") {
			c.store.ClearAllPersistentData()
		}
		c.store.SetPersistentData(session.KeyUserID, userID)
		if token := payload.OAuthToken(); token != "" {
			c.store.SetPersistentData(session.KeyAccessToken, token)
		}
		return userID
	}

	if sess := c.SessionFromCookie(); sess != nil {
		c.store.SetPersistentData(session.KeyUserID, sess["uid"])
		c.store.SetPersistentData(session.KeyAccessToken, sess["access_token"])
		return sess["uid"]
	}

	if code := c.codeFromRequest(); code != "" {
		return c.userFromCode(ctx, code)
	}

	return c.store.GetPersistentData(session.KeyUserID, "")
}

func (c *Client) userFromCode(ctx context.Context, code string) string {
	token, err := c.ExchangeCode(ctx, code)
	if err != nil {
		c.logger.Warn("authorization code exchange failed", "error", err)
		c.store.ClearAllPersistentData()
		return ""
	}
	c.store.SetPersistentData(session.KeyCode, code)
	c.store.SetPersistentData(session.KeyAccessToken, token)

	userID, err := c.userFromAccessToken(ctx, token)
	if err != nil || userID == "" {
		c.logger.Warn("could not resolve user from access token", "error", err)
		c.store.ClearAllPersistentData()
		return ""
	}
	c.store.SetPersistentData(session.KeyUserID, userID)
	return userID
}

func (c *Client) userFromAccessToken(ctx context.Context, token string) (string, error) {
	result, err := c.CallGraph(ctx, "/me", "GET", map[string]any{
		"access_token": token,
		"fields":       "id",
	})
	if err != nil {
		return "", err
	}
	me, ok := result.(map[string]any)
	if !ok {
		return "", nil
	}
	return stringValue(me["id"]), nil
}

// codeFromRequest returns the OAuth code when the request carries one whose
// state matches the stored CSRF state, and it differs from the code already
// exchanged. The stored state is consumed.
func (c *Client) codeFromRequest() string {
	code, ok := c.request.Param("code")
	if !ok || code == "" {
		return ""
	}
	state, _ := c.request.Param("state")
	stored := c.store.GetPersistentData(session.KeyState, "")
	if stored == "" || state != stored {
		c.logger.Warn("CSRF state token does not match one provided")
		return ""
	}
	c.store.ClearPersistentData(session.KeyState)

	if code == c.store.GetPersistentData(session.KeyCode, "") {
		return ""
	}
	return code
}

// currentAccessToken is the token injected into calls that carry none.
func (c *Client) currentAccessToken() string {
	if c.accessToken != "" {
		return c.accessToken
	}
	return c.store.GetPersistentData(session.KeyAccessToken, "")
}

// DestroySession forgets the current user, clears the persisted session and
// deletes the legacy session cookie.
func (c *Client) DestroySession() {
	c.accessToken = ""
	c.signedRequest = nil
	c.srLoaded = true
	c.user = ""
	c.userLoaded = true
	c.store.ClearAllPersistentData()
	c.SetCookieFromSession(nil)
}

func (c *Client) invalidateSession(reason string) {
	c.logger.Info("invalidating session", "reason", reason)
	c.metrics.sessionInvalidated()
	c.DestroySession()
}
