package client_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/graphtest"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	env.server.AddUser("tok", graphtest.User{ID: "42"})
	env.server.Handle("/expired", func(r graphtest.Request) (int, any) {
		return http.StatusBadRequest, map[string]any{
			"error": map[string]any{"type": "OAuthException", "message": "Expired"},
		}
	})

	reg := prometheus.NewRegistry()
	c := env.client(client.WithMetrics(client.NewMetrics(reg)))
	ctx := context.Background()

	// one success, one session-invalidating failure
	env.store.SetPersistentData(session.KeyAccessToken, "tok")
	if _, err := c.CallGraph(ctx, "/me", "GET", nil); err != nil {
		t.Fatalf("CallGraph failed: %v", err)
	}
	_, _ = c.CallGraph(ctx, "/expired", "GET", nil)

	expected := `
# HELP fbclient_api_calls_total Total number of API calls
# TYPE fbclient_api_calls_total counter
fbclient_api_calls_total{alias="graph",kind="graph",outcome="api_error"} 1
fbclient_api_calls_total{alias="graph",kind="graph",outcome="ok"} 1
# HELP fbclient_session_invalidations_total Sessions cleared because the API rejected the access token
# TYPE fbclient_session_invalidations_total counter
fbclient_session_invalidations_total 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"fbclient_api_calls_total",
		"fbclient_session_invalidations_total",
	)
	if err != nil {
		t.Error(err)
	}

	// both calls were timed
	n, err := testutil.GatherAndCount(reg, "fbclient_api_call_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	env.server.AddUser("tok", graphtest.User{ID: "42"})
	c := env.client(client.WithMetrics(nil))

	if _, err := c.SetAccessToken("tok").CallGraph(context.Background(), "/me", "GET", nil); err != nil {
		t.Fatalf("CallGraph failed: %v", err)
	}
}
