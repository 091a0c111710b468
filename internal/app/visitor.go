package app

import (
	"net/http"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"git.sr.ht/~jakintosh/fbclient/pkg/webctx"
	"github.com/google/uuid"
)

const (
	VisitorCookieName = "fbclient_visitor"
	visitorLifetime   = 30 * 24 * time.Hour
)

// prefixedBackend partitions a shared backend by visitor id.
type prefixedBackend struct {
	inner  session.Backend
	prefix string
}

var _ session.Backend = (*prefixedBackend)(nil)

func (b *prefixedBackend) Put(name string, value string) error {
	return b.inner.Put(b.prefix+name, value)
}

func (b *prefixedBackend) Get(name string) (string, bool, error) {
	return b.inner.Get(b.prefix + name)
}

func (b *prefixedBackend) Delete(name string) error {
	return b.inner.Delete(b.prefix + name)
}

// visitorBackend scopes backend to the visitor cookie on req, minting and
// setting a new visitor id when the request carries none.
func visitorBackend(backend session.Backend, req *webctx.Context) session.Backend {
	id, ok := req.Cookie(VisitorCookieName)
	if !ok || !validVisitorID(id) {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
		req.SetCookie(&http.Cookie{
			Name:     VisitorCookieName,
			Value:    id,
			Path:     "/",
			Expires:  req.CurrentTime().Add(visitorLifetime),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return &prefixedBackend{inner: backend, prefix: id + ":"}
}

func validVisitorID(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
