package app_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/fbclient/cmd/fbclient/app"
	"git.sr.ht/~jakintosh/fbclient/pkg/graphtest"
	"git.sr.ht/~jakintosh/fbclient/pkg/signature"
)

const testSecret = "s3cr3t"

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	contents := "appId: \"1234\"\nsecret: \"" + testSecret + "\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	return path
}

// run executes the root command with a credentials file and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := app.NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--credentials", writeCredentials(t)}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestSign(t *testing.T) {
	t.Parallel()

	out, err := run(t, "sign", "uid=42", "access_token=tok")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	want := signature.Generate(map[string]string{"uid": "42", "access_token": "tok"}, testSecret)
	if strings.TrimSpace(out) != want {
		t.Errorf("sign = %q, want %q", out, want)
	}

	// malformed pair
	if _, err := run(t, "sign", "uid"); err == nil {
		t.Error("expected error for argument without '='")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	token := graphtest.SignedRequest(t, testSecret, map[string]any{"user_id": "42"})

	out, err := run(t, "parse", token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if payload["user_id"] != "42" || payload["algorithm"] != "HMAC-SHA256" {
		t.Errorf("unexpected payload: %v", payload)
	}

	// signed with another secret
	forged := graphtest.SignedRequest(t, "other", map[string]any{"user_id": "42"})
	if _, err := run(t, "parse", forged); err == nil || !strings.Contains(err.Error(), "invalid signed request") {
		t.Errorf("expected invalid signed request error, got %v", err)
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	out, err := run(t, "url", "graph", "/me", "fields=id")
	if err != nil {
		t.Fatalf("url failed: %v", err)
	}
	if strings.TrimSpace(out) != "https://graph.facebook.com/me?fields=id" {
		t.Errorf("url = %q", out)
	}

	if _, err := run(t, "url", "nope", "/me"); err == nil {
		t.Error("expected error for unknown alias")
	}
}

func TestCall(t *testing.T) {
	t.Parallel()
	server := graphtest.NewServer(t)
	server.AddUser("tok", graphtest.User{ID: "42", Name: "Ada"})

	out, err := run(t, "call", "/me", "--token", "tok", "--base-url", server.URL)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	var me map[string]any
	if err := json.Unmarshal([]byte(out), &me); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if me["id"] != "42" || me["name"] != "Ada" {
		t.Errorf("unexpected result: %v", me)
	}

	// API errors surface as command errors
	if _, err := run(t, "call", "/me", "--token", "bad", "--base-url", server.URL); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestCall_Legacy(t *testing.T) {
	t.Parallel()
	server := graphtest.NewServer(t)
	server.HandleLegacy("users.getinfo", func(r graphtest.Request) (int, any) {
		return http.StatusOK, []any{map[string]any{"uid": r.Form.Get("uids")}}
	})

	out, err := run(t, "call", "users.getInfo", "uids=42", "--legacy", "--base-url", server.URL)
	if err != nil {
		t.Fatalf("legacy call failed: %v", err)
	}
	if !strings.Contains(out, `"uid": "42"`) {
		t.Errorf("unexpected output: %s", out)
	}
	if got := server.LastRequest().Form.Get("format"); got != "json-strings" {
		t.Errorf("format = %q", got)
	}
}

func TestServe_UnknownStore(t *testing.T) {
	t.Parallel()

	_, err := run(t, "serve", "--store", "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown store") {
		t.Errorf("expected unknown store error, got %v", err)
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("FB_APP_ID", "")
	t.Setenv("FB_APP_SECRET", "")

	cmd := app.NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sign", "a=b"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("FB_APP_ID", "1234")
	t.Setenv("FB_APP_SECRET", testSecret)

	cmd := app.NewRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sign", "a=b"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != signature.Generate(map[string]string{"a": "b"}, testSecret) {
		t.Errorf("unexpected signature %q", stdout.String())
	}
}
