package session

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/signedrequest"
	"git.sr.ht/~jakintosh/fbclient/pkg/webctx"
	"github.com/google/uuid"
)

const (
	sharedCookiePrefix = "fbss"

	// the main session expiry bounds this in practice
	sharedCookieLifetime = 31556926 * time.Second
)

// Persistent scopes session keys by application id, and additionally by a
// shared session id when shared-session mode is on, before writing them to a
// Backend.
type Persistent struct {
	creds         *credentials.Credentials
	backend       Backend
	request       *webctx.Context
	logger        *slog.Logger
	newID         func() string
	sharedSession bool
	sharedID      string
	state         State
}

var _ Store = (*Persistent)(nil)

type Option func(*Persistent)

// WithRequest supplies the request whose cookies carry the shared session.
func WithRequest(request *webctx.Context) Option {
	return func(p *Persistent) { p.request = request }
}

// WithSharedSession turns on the secondary cookie used when several
// applications share one cookie domain.
func WithSharedSession(enabled bool) Option {
	return func(p *Persistent) { p.sharedSession = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Persistent) { p.logger = logger }
}

// WithIDGenerator replaces the shared session id source.
func WithIDGenerator(newID func() string) Option {
	return func(p *Persistent) { p.newID = newID }
}

// NewPersistent builds a store over backend. With shared-session mode on, the
// shared session is initialized immediately from the request.
func NewPersistent(
	creds *credentials.Credentials,
	backend Backend,
	opts ...Option,
) *Persistent {
	p := &Persistent{
		creds:   creds,
		backend: backend,
		logger:  slog.Default(),
		newID:   newSharedID,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.sharedSession {
		p.InitSharedSession()
	}
	return p
}

func newSharedID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (p *Persistent) State() State            { return p.state }
func (p *Persistent) SharedSessionID() string { return p.sharedID }

func (p *Persistent) SetPersistentData(key string, value string) {
	if !IsSupportedKey(key) {
		p.logger.Warn("unsupported key passed to SetPersistentData", "key", key)
		return
	}

	name := p.scopedName(key)
	if err := p.backend.Put(name, value); err != nil {
		p.logger.Error("session backend put failed", "name", name, "error", err)
		return
	}
	p.state = StateActive
}

func (p *Persistent) GetPersistentData(key string, def string) string {
	if !IsSupportedKey(key) {
		p.logger.Warn("unsupported key passed to GetPersistentData", "key", key)
		return def
	}

	name := p.scopedName(key)
	value, ok, err := p.backend.Get(name)
	if err != nil {
		p.logger.Warn("session backend get failed", "name", name, "error", err)
		return def
	}
	if !ok {
		return def
	}
	if p.state == StateUninitialized {
		p.state = StateActive
	}
	return value
}

func (p *Persistent) ClearPersistentData(key string) {
	if !IsSupportedKey(key) {
		p.logger.Warn("unsupported key passed to ClearPersistentData", "key", key)
		return
	}

	name := p.scopedName(key)
	if err := p.backend.Delete(name); err != nil {
		p.logger.Error("session backend delete failed", "name", name, "error", err)
	}
}

func (p *Persistent) ClearAllPersistentData() {
	for _, key := range supportedKeys {
		p.ClearPersistentData(key)
	}
	if p.sharedID != "" {
		p.deleteSharedSessionCookie()
	}
	p.state = StateCleared
}

// ScopedName returns the backend name used for key.
func (p *Persistent) ScopedName(key string) string {
	return p.scopedName(key)
}

func (p *Persistent) scopedName(key string) string {
	parts := []string{"fb", p.creds.AppID(), key}
	if p.sharedID != "" {
		parts = append([]string{p.sharedID}, parts...)
	}
	return strings.Join(parts, "_")
}

// SharedSessionCookieName is fbss_<appId>.
func (p *Persistent) SharedSessionCookieName() string {
	return sharedCookiePrefix + "_" + p.creds.AppID()
}

// InitSharedSession adopts the id from a valid shared-session cookie, or
// mints a new id and tries to set the cookie. A cookie is valid when its
// signature verifies against the application secret and its domain covers the
// request host. If the cookie cannot be set because headers were already
// sent, the session continues with the new id for this request only.
func (p *Persistent) InitSharedSession() {
	cookieName := p.SharedSessionCookieName()
	if value, ok := p.request.Cookie(cookieName); ok {
		payload, err := signedrequest.Parse(value, p.creds.APISecret())
		if err != nil {
			p.logger.Warn("ignoring invalid shared session cookie", "cookie", cookieName, "error", err)
		} else if domain := payload.String("domain"); domain != "" && IsAllowedDomain(p.requestHost(), domain) {
			p.sharedID = payload.String("id")
			return
		} else {
			p.logger.Warn("ignoring shared session cookie for foreign domain",
				"cookie", cookieName, "domain", domain, "host", p.requestHost())
		}
	}

	baseDomain := p.creds.BaseDomain()
	p.sharedID = p.newID()
	now := p.request.CurrentTime()
	value, err := signedrequest.Make(map[string]any{
		"domain": baseDomain,
		"id":     p.sharedID,
	}, p.creds.APISecret(), now)
	if err != nil {
		p.logger.Error("failed to sign shared session cookie", "error", err)
		return
	}

	cookie := &http.Cookie{
		Name:    cookieName,
		Value:   value,
		Path:    "/",
		Domain:  sharedCookieDomain(baseDomain),
		Expires: now.Add(sharedCookieLifetime),
	}
	if !p.request.SetCookie(cookie) {
		p.logger.Warn("shared session cookie could not be set; headers already sent. " +
			"Create the client before writing the response or authentication " +
			"will fail after the first request")
	}
}

func (p *Persistent) requestHost() string {
	if p.request == nil {
		return ""
	}
	return p.request.Host
}

func (p *Persistent) deleteSharedSessionCookie() {
	cookie := &http.Cookie{
		Name:    p.SharedSessionCookieName(),
		Value:   "",
		Path:    "/",
		Domain:  sharedCookieDomain(p.creds.BaseDomain()),
		Expires: time.Unix(1, 0),
		MaxAge:  -1,
	}
	if !p.request.SetCookie(cookie) {
		p.logger.Warn("shared session cookie could not be deleted; headers already sent")
	}
}

func sharedCookieDomain(baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	return "." + baseDomain
}

// IsAllowedDomain reports whether host equals domain or is a subdomain of it.
func IsAllowedDomain(host string, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
