// Package webctx carries the per-request state the session layer needs from
// the host web server: the request host, incoming cookies and parameters,
// and a sink for response cookies.
package webctx

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// CookieSink accepts response cookies. SetCookie reports false when the
// response headers have already been sent and the cookie was dropped.
type CookieSink interface {
	SetCookie(cookie *http.Cookie) bool
}

// Context is request-scoped and must not be shared between requests.
type Context struct {
	Host    string
	Cookies map[string]string
	Params  map[string]string
	Sink    CookieSink
	Now     func() time.Time

	// FormErr is the error from parsing the request's query and form, if
	// any. Params holds the pairs that parsed before and after it.
	FormErr error
}

// New returns an empty context for host whose cookies go to sink.
func New(host string, sink CookieSink) *Context {
	return &Context{
		Host:    host,
		Cookies: make(map[string]string),
		Params:  make(map[string]string),
		Sink:    sink,
		Now:     time.Now,
	}
}

func (c *Context) Cookie(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, ok := c.Cookies[name]
	return value, ok
}

func (c *Context) Param(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	value, ok := c.Params[name]
	return value, ok
}

// SetCookie forwards cookie to the sink and mirrors the change into the
// incoming cookie map so later reads in the same request observe it. The
// mirror is updated even when the sink refuses the cookie.
func (c *Context) SetCookie(cookie *http.Cookie) bool {
	if c == nil {
		return false
	}
	if c.Cookies == nil {
		c.Cookies = make(map[string]string)
	}
	expired := !cookie.Expires.IsZero() && cookie.Expires.Before(c.CurrentTime())
	if cookie.MaxAge < 0 || cookie.Value == "" || expired {
		delete(c.Cookies, cookie.Name)
	} else {
		c.Cookies[cookie.Name] = cookie.Value
	}

	if c.Sink == nil {
		return false
	}
	return c.Sink.SetCookie(cookie)
}

func (c *Context) CurrentTime() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// FromHTTP builds a Context from an incoming request. Response cookies are
// written through the returned ResponseWriter, which the handler should use
// in place of w.
func FromHTTP(
	w http.ResponseWriter,
	r *http.Request,
) (
	*Context,
	*ResponseWriter,
) {
	rw := &ResponseWriter{ResponseWriter: w}
	ctx := New(hostWithoutPort(r.Host), rw)

	for _, cookie := range r.Cookies() {
		ctx.Cookies[cookie.Name] = cookie.Value
	}

	// query and form values, form taking precedence like r.FormValue
	ctx.FormErr = r.ParseForm()
	for name, values := range r.Form {
		if len(values) > 0 {
			ctx.Params[name] = values[0]
		}
	}
	return ctx, rw
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// ResponseWriter records whether headers have been written so cookie
// writes can be refused afterwards.
type ResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *ResponseWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *ResponseWriter) HeadersSent() bool { return w.wroteHeader }

func (w *ResponseWriter) SetCookie(cookie *http.Cookie) bool {
	if w.wroteHeader {
		return false
	}
	http.SetCookie(w.ResponseWriter, cookie)
	return true
}

func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// RecordingSink keeps every cookie it accepts. Set HeadersSent to make it
// refuse cookies.
type RecordingSink struct {
	Cookies     []*http.Cookie
	HeadersSent bool
}

func (s *RecordingSink) SetCookie(cookie *http.Cookie) bool {
	if s.HeadersSent {
		return false
	}
	s.Cookies = append(s.Cookies, cookie)
	return true
}

// Last returns the most recent cookie named name, or nil.
func (s *RecordingSink) Last(name string) *http.Cookie {
	for i := len(s.Cookies) - 1; i >= 0; i-- {
		if s.Cookies[i].Name == name {
			return s.Cookies[i]
		}
	}
	return nil
}
