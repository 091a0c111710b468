package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var ErrNoAccessToken = errors.New("token response carried no access token")

func (c *Client) oauthConfig(redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = c.redirectURL
	}
	return &oauth2.Config{
		ClientID:     c.creds.AppID(),
		ClientSecret: c.creds.APISecret(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.URL("www", "dialog/oauth", nil),
			TokenURL:  c.URL("graph", "oauth/access_token", nil),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
	}
}

// LoginURL returns the OAuth dialog URL. It stores a fresh CSRF state in the
// session, which the redirect back must echo for its code to be accepted.
// An empty redirectURL uses the one configured with WithRedirectURL.
func (c *Client) LoginURL(scope []string, redirectURL string) string {
	state := strings.ReplaceAll(uuid.NewString(), "-", "")
	c.store.SetPersistentData(session.KeyState, state)

	config := c.oauthConfig(redirectURL)
	var opts []oauth2.AuthCodeOption
	if len(scope) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(scope, ",")))
	}
	return config.AuthCodeURL(state, opts...)
}

// LogoutURL returns the URL that logs the user out and then redirects to
// next.
func (c *Client) LogoutURL(next string) string {
	params := url.Values{}
	if next != "" {
		params.Set("next", next)
	}
	if token := c.currentAccessToken(); token != "" {
		params.Set("access_token", token)
	}
	return c.URL("www", "logout.php", params)
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauthConfig("").Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return token.AccessToken, nil
}
