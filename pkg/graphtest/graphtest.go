// Package graphtest provides a fake Graph API server and helpers that mint
// signed requests and legacy session cookies for tests.
package graphtest

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
	"git.sr.ht/~jakintosh/fbclient/pkg/signedrequest"
	"github.com/gorilla/mux"
)

// Aliases lists every domain alias the client knows.
var Aliases = []string{"graph", "graph-video", "www", "api", "api-video", "api-read"}

// Request is one call received by the server.
type Request struct {
	Path        string
	Form        url.Values
	Files       map[string][]byte
	ContentType string
	UserAgent   string
	Expect      string
}

// HandlerFunc scripts a response. The body is JSON encoded unless it is a
// string, which is written as is.
type HandlerFunc func(r Request) (status int, body any)

// User is an account the fake server knows.
type User struct {
	ID         string
	Name       string
	PictureURL string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	graph    map[string]HandlerFunc
	legacy   map[string]HandlerFunc
	users    map[string]User
	codes    map[string]string
}

// NewServer starts a plain HTTP fake server closed when t ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// NewTLSServer starts a fake server over TLS with a self-signed
// certificate. Clients trust it only through the server's Certificate.
func NewTLSServer(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.Server = httptest.NewTLSServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func newServer() *Server {
	return &Server{
		graph:  make(map[string]HandlerFunc),
		legacy: make(map[string]HandlerFunc),
		users:  make(map[string]User),
		codes:  make(map[string]string),
	}
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/oauth/access_token", s.handleAccessToken)
	r.HandleFunc("/restserver.php", s.handleLegacy).Methods(http.MethodPost)
	r.HandleFunc("/{path:.*}", s.handleGraph).Methods(http.MethodPost)
	return r
}

// Domains maps every alias to this server.
func (s *Server) Domains() map[string]string {
	domains := make(map[string]string, len(Aliases))
	for _, alias := range Aliases {
		domains[alias] = s.URL + "/"
	}
	return domains
}

// Handle scripts the response for a Graph path such as "/me/feed".
func (s *Server) Handle(path string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph[path] = fn
}

// HandleLegacy scripts the response for a legacy REST method.
func (s *Server) HandleLegacy(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[strings.ToLower(method)] = fn
}

// AddUser makes accessToken resolve to user on /me.
func (s *Server) AddUser(accessToken string, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[accessToken] = user
}

// AddCode makes the token endpoint exchange code for accessToken.
func (s *Server) AddCode(code string, accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = accessToken
}

// Requests returns a snapshot of the received calls.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent call, or a zero Request.
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) record(r *http.Request) Request {
	req := Request{
		Path:        r.URL.Path,
		Files:       make(map[string][]byte),
		ContentType: r.Header.Get("Content-Type"),
		UserAgent:   r.Header.Get("User-Agent"),
		Expect:      r.Header.Get("Expect"),
	}

	mediaType, _, _ := mime.ParseMediaType(req.ContentType)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			req.Form = url.Values(r.MultipartForm.Value)
			for name, headers := range r.MultipartForm.File {
				if len(headers) == 0 {
					continue
				}
				f, err := headers[0].Open()
				if err != nil {
					continue
				}
				data, _ := io.ReadAll(f)
				f.Close()
				req.Files[name] = data
			}
		}
	} else if err := r.ParseForm(); err == nil {
		req.Form = r.PostForm
	}
	if req.Form == nil {
		req.Form = url.Values{}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return req
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	req := s.record(r)

	s.mu.Lock()
	fn, scripted := s.graph[req.Path]
	s.mu.Unlock()
	if scripted {
		status, body := fn(req)
		writeResponse(w, status, body)
		return
	}

	if req.Path == "/me" {
		status, body := s.me(req)
		writeResponse(w, status, body)
		return
	}
	writeResponse(w, http.StatusNotFound, graphError("GraphMethodException", "Unsupported get request.", 100))
}

func (s *Server) me(req Request) (int, any) {
	s.mu.Lock()
	user, ok := s.users[req.Form.Get("access_token")]
	s.mu.Unlock()
	if !ok {
		return http.StatusBadRequest, graphError("OAuthException", "Invalid OAuth access token.", 190)
	}

	if req.Form.Get("fields") == "picture" {
		return http.StatusOK, map[string]any{
			"id": user.ID,
			"picture": map[string]any{
				"data": map[string]any{
					"url":  user.PictureURL + "?type=" + req.Form.Get("type"),
					"type": req.Form.Get("type"),
				},
			},
		}
	}
	return http.StatusOK, map[string]any{"id": user.ID, "name": user.Name}
}

func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	req := s.record(r)

	s.mu.Lock()
	fn, scripted := s.legacy[strings.ToLower(req.Form.Get("method"))]
	s.mu.Unlock()
	if scripted {
		status, body := fn(req)
		writeResponse(w, status, body)
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{
		"error_code": 3,
		"error_msg":  "Unknown method",
	})
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	req := s.record(r)

	s.mu.Lock()
	token, ok := s.codes[req.Form.Get("code")]
	s.mu.Unlock()
	if !ok {
		writeResponse(w, http.StatusBadRequest, graphError("OAuthException", "Invalid verification code format.", 100))
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func graphError(errType string, message string, code int) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": message,
			"code":    code,
		},
	}
}

func writeResponse(w http.ResponseWriter, status int, body any) {
	if raw, ok := body.(string); ok {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, raw)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SignedRequest mints a signed_request token for payload, adding the
// algorithm and issued_at fields.
func SignedRequest(t testing.TB, secret string, payload map[string]any) string {
	t.Helper()
	token, err := signedrequest.Make(payload, secret, time.Now())
	if err != nil {
		t.Fatalf("failed to sign request: %v", err)
	}
	return token
}

// LegacySession returns a signed legacy session object for uid and
// accessToken, expiring at expires.
func LegacySession(secret string, uid string, accessToken string, expires time.Time) map[string]string {
	sess := map[string]string{
		"uid":          uid,
		"access_token": accessToken,
		"expires":      strconv.FormatInt(expires.Unix(), 10),
	}
	sess["sig"] = signature.Generate(sess, secret)
	return sess
}

// LegacySessionCookie encodes sess as a legacy session cookie value.
func LegacySessionCookie(sess map[string]string) string {
	values := url.Values{}
	for k, v := range sess {
		values.Set(k, v)
	}
	return `"` + values.Encode() + `"`
}

