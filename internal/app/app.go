// Package app is the demo web application served by `fbclient serve`. Each
// handler builds a request-scoped facebook.App over a shared session backend
// whose names are partitioned per visitor.
package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/facebook"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"git.sr.ht/~jakintosh/fbclient/pkg/webctx"
)

var ErrNoCredentials = errors.New("no application credentials configured")

type Server struct {
	mu    sync.RWMutex
	creds *credentials.Credentials

	backend       session.Backend
	logger        *slog.Logger
	scope         []string
	sharedSession bool
	clientOptions []client.Option
	templateDir   string
	templates     *templateSet
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithScope sets the permissions requested by /login.
func WithScope(scope ...string) Option {
	return func(s *Server) { s.scope = scope }
}

func WithSharedSession(enabled bool) Option {
	return func(s *Server) { s.sharedSession = enabled }
}

// WithClientOptions passes options through to every per-request client.
func WithClientOptions(opts ...client.Option) Option {
	return func(s *Server) { s.clientOptions = append(s.clientOptions, opts...) }
}

// WithTemplateDir renders pages from directory instead of the embedded
// templates, reloading them when the directory changes.
func WithTemplateDir(directory string) Option {
	return func(s *Server) { s.templateDir = directory }
}

func New(
	creds *credentials.Credentials,
	backend session.Backend,
	opts ...Option,
) (
	*Server,
	error,
) {
	s := &Server{
		creds:   creds,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.templates = newTemplates(s.templateDir, s.logger)
	if err := s.templates.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCredentials swaps the credentials used by subsequent requests.
func (s *Server) SetCredentials(creds *credentials.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

func (s *Server) Credentials() *credentials.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Close stops the template watcher, if any.
func (s *Server) Close() error {
	return s.templates.close()
}

// facebookApp builds the request-scoped facade. The returned writer must be
// used in place of w so cookie writes are refused once the body starts.
func (s *Server) facebookApp(
	w http.ResponseWriter,
	r *http.Request,
) (
	*facebook.App,
	http.ResponseWriter,
	error,
) {
	creds := s.Credentials()
	if creds == nil {
		return nil, w, ErrNoCredentials
	}

	req, rw := webctx.FromHTTP(w, r)
	if req.FormErr != nil {
		s.logger.Warn("ignoring malformed request parameters", "path", r.URL.Path, "error", req.FormErr)
	}
	backend := visitorBackend(s.backend, req)

	clientOpts := append([]client.Option{
		client.WithRedirectURL(baseURL(r) + "/"),
	}, s.clientOptions...)

	fb, err := facebook.New(creds.AppID(), creds.APISecret(), req, backend,
		facebook.WithLogger(s.logger),
		facebook.WithSharedSession(s.sharedSession),
		facebook.WithClientOptions(clientOpts...),
	)
	if err != nil {
		return nil, rw, err
	}
	fb.SetRequestParams(map[string]string{
		"scope":        strings.Join(s.scope, ","),
		"redirect_uri": baseURL(r) + "/",
		"next":         baseURL(r) + "/",
	})
	return fb, rw, nil
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
