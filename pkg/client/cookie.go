package client

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
)

const deletedCookieValue = "deleted"

// SessionCookieName is fbs_<clientName>_<appId>.
func (c *Client) SessionCookieName() string {
	return "fbs_" + c.clientName + "_" + c.creds.AppID()
}

// ValidateSessionObject returns sess when it carries uid, access_token and a
// sig matching the signature of its other fields, and nil otherwise.
func (c *Client) ValidateSessionObject(sess map[string]string) map[string]string {
	if sess == nil {
		return nil
	}
	for _, field := range []string{"uid", "access_token", "sig"} {
		if _, ok := sess[field]; !ok {
			return nil
		}
	}

	withoutSig := make(map[string]string, len(sess)-1)
	for k, v := range sess {
		if k != "sig" {
			withoutSig[k] = v
		}
	}
	if sess["sig"] != signature.Generate(withoutSig, c.creds.APISecret()) {
		c.logger.Warn("got invalid session signature in cookie", "cookie", c.SessionCookieName())
		return nil
	}
	return sess
}

// SessionFromCookie reads and validates the legacy session cookie. It
// returns nil when cookie support is off or the cookie is absent or
// invalid.
func (c *Client) SessionFromCookie() map[string]string {
	if !c.creds.CookieSupport() {
		return nil
	}
	raw, ok := c.request.Cookie(c.SessionCookieName())
	if !ok || raw == deletedCookieValue {
		return nil
	}

	values, err := url.ParseQuery(strings.Trim(raw, `"`))
	if err != nil {
		c.logger.Warn("ignoring malformed session cookie", "cookie", c.SessionCookieName(), "error", err)
		return nil
	}
	sess := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			sess[k] = v[0]
		}
	}
	return c.ValidateSessionObject(sess)
}

// SetCookieFromSession writes sess to the legacy session cookie, or deletes
// the cookie when sess is nil. Nothing happens when cookie support is off,
// or when deleting a cookie the request does not carry.
func (c *Client) SetCookieFromSession(sess map[string]string) {
	if !c.creds.CookieSupport() {
		return
	}

	name := c.SessionCookieName()
	now := c.request.CurrentTime()
	cookie := &http.Cookie{
		Name:     name,
		Value:    deletedCookieValue,
		Expires:  now.Add(-time.Hour),
		Path:     "/",
		Domain:   c.creds.BaseDomain(),
		HttpOnly: true,
	}

	if sess != nil {
		values := url.Values{}
		for k, v := range sess {
			values.Set(k, v)
		}
		cookie.Value = values.Encode()
		cookie.Quoted = true
		cookie.Expires = time.Time{}
		if expires, err := strconv.ParseInt(sess["expires"], 10, 64); err == nil && expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
		}
	} else if value, ok := c.request.Cookie(name); !ok || value == "" {
		return
	}

	if !c.request.SetCookie(cookie) {
		c.logger.Warn("could not set session cookie; headers already sent", "cookie", name)
	}
}
