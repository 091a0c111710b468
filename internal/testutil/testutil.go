// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"git.sr.ht/~jakintosh/fbclient/internal/app"
	"git.sr.ht/~jakintosh/fbclient/internal/routing"
	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/database"
	"git.sr.ht/~jakintosh/fbclient/pkg/graphtest"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	TestAppID  = "1234"
	TestSecret = "test-secret"
)

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB       *database.SQLiteStore
	Graph    *graphtest.Server
	Server   *app.Server
	Router   http.Handler
	Registry *prometheus.Registry
}

// SetupTestEnv creates an isolated test environment with in-memory SQLite
// sessions sealed with the test secret and a fake Graph server.
func SetupTestEnv(
	t *testing.T,
	opts ...app.Option,
) *TestEnv {
	t.Helper()

	// create in-memory SQLite database
	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	backend, err := session.NewSealedBackend(db.SessionBackend(), TestSecret)
	if err != nil {
		t.Fatalf("failed to seal session backend: %v", err)
	}

	creds, err := credentials.New(credentials.Config{AppID: TestAppID, Secret: TestSecret})
	if err != nil {
		t.Fatalf("failed to build credentials: %v", err)
	}

	graph := graphtest.NewServer(t)
	registry := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts = append([]app.Option{
		app.WithLogger(logger),
		app.WithScope("email"),
		app.WithClientOptions(
			client.WithDomains(graph.Domains()),
			client.WithMetrics(client.NewMetrics(registry)),
		),
	}, opts...)
	server, err := app.New(creds, backend, opts...)
	if err != nil {
		t.Fatalf("failed to create app server: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Close()
	})

	return &TestEnv{
		DB:       db,
		Graph:    graph,
		Server:   server,
		Router:   routing.BuildRouter(server, registry, logger),
		Registry: registry,
	}
}

// AddTestUser registers a user on the fake Graph server reachable with
// accessToken, and an authorization code that exchanges for it.
func (env *TestEnv) AddTestUser(
	t *testing.T,
	code string,
	accessToken string,
	user graphtest.User,
) {
	t.Helper()
	env.Graph.AddUser(accessToken, user)
	env.Graph.AddCode(code, accessToken)
}
