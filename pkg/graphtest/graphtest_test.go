package graphtest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
	"git.sr.ht/~jakintosh/fbclient/pkg/signedrequest"
)

func postForm(t *testing.T, rawURL string, form url.Values) map[string]any {
	t.Helper()
	resp, err := http.PostForm(rawURL, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", rawURL, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body
}

func TestServer_Me(t *testing.T) {
	t.Parallel()
	s := NewServer(t)
	s.AddUser("tok", User{ID: "42", Name: "Ada"})

	// known tokens resolve to their user
	body := postForm(t, s.URL+"/me", url.Values{"access_token": {"tok"}})
	if body["id"] != "42" || body["name"] != "Ada" {
		t.Errorf("unexpected /me body: %v", body)
	}

	// unknown tokens get an OAuthException
	body = postForm(t, s.URL+"/me", url.Values{"access_token": {"nope"}})
	errObj, _ := body["error"].(map[string]any)
	if errObj["type"] != "OAuthException" {
		t.Errorf("expected OAuthException, got %v", body)
	}
}

func TestServer_RecordsRequests(t *testing.T) {
	t.Parallel()
	s := NewServer(t)
	s.Handle("/me/feed", func(r Request) (int, any) {
		return http.StatusOK, map[string]any{"id": "post-1"}
	})

	body := postForm(t, s.URL+"/me/feed", url.Values{"message": {"hi"}, "method": {"POST"}})
	if body["id"] != "post-1" {
		t.Errorf("unexpected body: %v", body)
	}

	last := s.LastRequest()
	if last.Path != "/me/feed" {
		t.Errorf("Path = %q, want /me/feed", last.Path)
	}
	if last.Form.Get("message") != "hi" || last.Form.Get("method") != "POST" {
		t.Errorf("unexpected form: %v", last.Form)
	}
	if len(s.Requests()) != 1 {
		t.Errorf("expected 1 recorded request, got %d", len(s.Requests()))
	}
}

func TestServer_AccessToken(t *testing.T) {
	t.Parallel()
	s := NewServer(t)
	s.AddCode("c0de", "tok")

	body := postForm(t, s.URL+"/oauth/access_token", url.Values{"code": {"c0de"}})
	if body["access_token"] != "tok" {
		t.Errorf("unexpected token body: %v", body)
	}

	body = postForm(t, s.URL+"/oauth/access_token", url.Values{"code": {"bad"}})
	if _, ok := body["error"]; !ok {
		t.Errorf("expected error for unknown code, got %v", body)
	}
}

func TestServer_LegacyDefault(t *testing.T) {
	t.Parallel()
	s := NewServer(t)

	body := postForm(t, s.URL+"/restserver.php", url.Values{"method": {"nope.nope"}})
	if _, ok := body["error_code"]; !ok {
		t.Errorf("expected error_code, got %v", body)
	}
}

func TestServer_Domains(t *testing.T) {
	t.Parallel()
	s := NewServer(t)

	domains := s.Domains()
	for _, alias := range Aliases {
		if !strings.HasSuffix(domains[alias], "/") || !strings.HasPrefix(domains[alias], s.URL) {
			t.Errorf("alias %s = %q", alias, domains[alias])
		}
	}
}

func TestSignedRequest(t *testing.T) {
	t.Parallel()

	token := SignedRequest(t, "s3cr3t", map[string]any{"user_id": "42"})
	payload, err := signedrequest.Parse(token, "s3cr3t")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if payload.UserID() != "42" {
		t.Errorf("UserID = %q, want 42", payload.UserID())
	}
}

func TestLegacySession(t *testing.T) {
	t.Parallel()

	sess := LegacySession("s3cr3t", "42", "tok", time.Unix(1700000000, 0))
	if sess["expires"] != "1700000000" {
		t.Errorf("expires = %q", sess["expires"])
	}

	// sig covers every other field
	withoutSig := map[string]string{"uid": "42", "access_token": "tok", "expires": "1700000000"}
	if sess["sig"] != signature.Generate(withoutSig, "s3cr3t") {
		t.Error("sig does not match the other fields")
	}

	cookie := LegacySessionCookie(sess)
	if !strings.HasPrefix(cookie, `"`) || !strings.HasSuffix(cookie, `"`) {
		t.Errorf("cookie value not quoted: %s", cookie)
	}
}
