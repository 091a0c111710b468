package client

import (
	"fmt"
	"net/url"
	"strings"
)

func defaultDomains() map[string]string {
	return map[string]string{
		"graph":       "https://graph.facebook.com/",
		"graph-video": "https://graph-video.facebook.com/",
		"www":         "https://www.facebook.com/",
		"api":         "https://api.facebook.com/",
		"api-video":   "https://api-video.facebook.com/",
		"api-read":    "https://api-read.facebook.com/",
	}
}

// URL builds the URL for a domain alias, path and query parameters. One
// leading slash is stripped from path. An unknown alias panics.
func (c *Client) URL(
	alias string,
	path string,
	params url.Values,
) string {
	base, ok := c.domains[alias]
	if !ok {
		panic(fmt.Sprintf("client: unknown domain alias %q", alias))
	}

	u := base + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// HasAlias reports whether alias names a configured domain.
func (c *Client) HasAlias(alias string) bool {
	_, ok := c.domains[alias]
	return ok
}
