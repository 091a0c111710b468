package credentials_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
)

func ptr[T any](v T) *T { return &v }

func TestNew_RequiredOnly(t *testing.T) {
	t.Parallel()

	creds, err := credentials.New(credentials.Config{AppID: "123", Secret: "abc"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// required fields are kept, optional fields use defaults
	if creds.AppID() != "123" || creds.APISecret() != "abc" {
		t.Errorf("unexpected id/secret: %q %q", creds.AppID(), creds.APISecret())
	}
	if creds.CookieSupport() {
		t.Error("cookie support should default to off")
	}
	if creds.BaseDomain() != "" {
		t.Errorf("base domain should default to empty, got %q", creds.BaseDomain())
	}
	if creds.FileUploadSupport() {
		t.Error("file upload support should default to off")
	}
}

func TestNew_Optionals(t *testing.T) {
	t.Parallel()

	creds, err := credentials.New(credentials.Config{
		AppID:      "123",
		Secret:     "abc",
		Cookie:     ptr(true),
		Domain:     ptr("example.com"),
		FileUpload: ptr(true),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// provided optional fields are applied
	if !creds.CookieSupport() || creds.BaseDomain() != "example.com" || !creds.FileUploadSupport() {
		t.Errorf("optional config not applied: %+v", creds)
	}
}

func TestNew_MissingRequired(t *testing.T) {
	t.Parallel()

	cases := []credentials.Config{
		{AppID: "123"},
		{Secret: "abc"},
		{},
	}
	for _, config := range cases {
		// missing app id or secret is rejected
		if _, err := credentials.New(config); !errors.Is(err, credentials.ErrInvalidConfig) {
			t.Errorf("New(%+v) error = %v, want ErrInvalidConfig", config, err)
		}
	}
}

func TestSetters_Fluent(t *testing.T) {
	t.Parallel()
	creds, err := credentials.New(credentials.Config{AppID: "123", Secret: "abc"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// setters return the same instance
	same := creds.
		SetCookieSupport(true).
		SetBaseDomain("example.org").
		SetFileUploadSupport(true).
		SetAppID("456").
		SetAPISecret("def")
	if same != creds {
		t.Fatal("setters should return the receiver")
	}
	if creds.AppID() != "456" || creds.APISecret() != "def" || creds.BaseDomain() != "example.org" {
		t.Errorf("setters did not apply: %+v", creds)
	}
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, "appId: \"123\"\nsecret: abc\ncookie: true\ndomain: example.com\n")

	creds, err := credentials.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// yaml fields map onto the config
	if creds.AppID() != "123" || !creds.CookieSupport() || creds.BaseDomain() != "example.com" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if creds.FileUploadSupport() {
		t.Error("absent fileUpload should keep default")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// missing file
	if _, err := credentials.LoadFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	// missing secret
	path := filepath.Join(dir, "partial.yaml")
	writeFile(t, path, "appId: \"123\"\n")
	if _, err := credentials.LoadFile(path); !errors.Is(err, credentials.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	// invalid yaml
	path = filepath.Join(dir, "broken.yaml")
	writeFile(t, path, "appId: [\n")
	if _, err := credentials.LoadFile(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestWatch_Reloads(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, "appId: \"1\"\nsecret: first\n")

	reloaded := make(chan *credentials.Credentials, 4)
	stop, err := credentials.Watch(path, nil, func(c *credentials.Credentials) {
		reloaded <- c
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	t.Cleanup(func() { _ = stop() })

	// rewriting the file delivers the new credentials
	writeFile(t, path, "appId: \"1\"\nsecret: second\n")
	select {
	case creds := <-reloaded:
		if creds.APISecret() != "second" {
			t.Errorf("expected reloaded secret, got %q", creds.APISecret())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatch_StopTwice(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, "appId: \"1\"\nsecret: first\n")

	stop, err := credentials.Watch(path, nil, func(*credentials.Credentials) {})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// the second stop is a no-op
	if err := stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if err := stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}
