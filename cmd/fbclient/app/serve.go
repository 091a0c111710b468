package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	webapp "git.sr.ht/~jakintosh/fbclient/internal/app"
	"git.sr.ht/~jakintosh/fbclient/internal/routing"
	"git.sr.ht/~jakintosh/fbclient/pkg/client"
	"git.sr.ht/~jakintosh/fbclient/pkg/credentials"
	"git.sr.ht/~jakintosh/fbclient/pkg/database"
	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
)

const (
	defaultGracefulTimeout = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 90 * time.Second
	serverIdleTimeout      = 60 * time.Second

	sessionRetention = 30 * 24 * time.Hour
	purgeInterval    = time.Hour
)

type serveConfig struct {
	address       string
	store         string
	dbPath        string
	redisAddr     string
	redisPassword string
	redisDB       int
	templateDir   string
	scope         string
	sharedSession bool
}

func newServeCmd() *cobra.Command {
	cfg := &serveConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo web application",
		Long: `Serve a demo web application that logs visitors in through the OAuth
dialog and shows their profile. Sessions are sealed with the application
secret before they reach the store. A credentials file given with
--credentials is reloaded when it changes.

PORT and DB_PATH provide defaults for --addr and --db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.address, "addr", defaultAddress(), "Address to listen on")
	cmd.Flags().StringVar(&cfg.store, "store", "sqlite", "Session store: sqlite, bolt or redis")
	cmd.Flags().StringVar(&cfg.dbPath, "db", envOr("DB_PATH", "fbclient.db"), "Database file for the sqlite and bolt stores")
	cmd.Flags().StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "Redis address for the redis store")
	cmd.Flags().StringVar(&cfg.redisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&cfg.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&cfg.templateDir, "templates", "", "Directory of page templates, reloaded on change")
	cmd.Flags().StringVar(&cfg.scope, "scope", "", "Comma separated permissions requested at login")
	cmd.Flags().BoolVar(&cfg.sharedSession, "shared-session", false, "Enable the shared session cookie")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *serveConfig) error {
	logger := newLogger(cmd)

	creds, err := loadCredentials(cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	backend, err := session.NewSealedBackend(store, creds.APISecret())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	opts := []webapp.Option{
		webapp.WithLogger(logger),
		webapp.WithSharedSession(cfg.sharedSession),
		webapp.WithClientOptions(
			client.WithLogger(logger),
			client.WithMetrics(client.NewMetrics(registry)),
		),
	}
	if cfg.scope != "" {
		opts = append(opts, webapp.WithScope(splitScope(cfg.scope)...))
	}
	if cfg.templateDir != "" {
		opts = append(opts, webapp.WithTemplateDir(cfg.templateDir))
	}
	server, err := webapp.New(creds, backend, opts...)
	if err != nil {
		return err
	}
	defer server.Close()

	// the sealing key stays bound to the secret the server started with
	if path, _ := cmd.Flags().GetString("credentials"); path != "" {
		stop, err := credentials.Watch(path, logger, func(next *credentials.Credentials) {
			if next.APISecret() != creds.APISecret() {
				logger.Warn("secret changed; restart to reseal sessions", "path", path)
				return
			}
			server.SetCredentials(next)
		})
		if err != nil {
			return fmt.Errorf("failed to watch credentials: %v", err)
		}
		defer stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.address,
		Handler:      routing.BuildRouter(server, registry, logger),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	errC := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.address, "store", cfg.store, "app_id", creds.AppID())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore opens the configured session store. The sqlite store is purged
// of stale sessions in the background until ctx ends.
func openStore(
	ctx context.Context,
	cfg *serveConfig,
	logger *slog.Logger,
) (
	session.Backend,
	func(),
	error,
) {
	var store interface {
		session.Backend
		io.Closer
	}
	switch cfg.store {
	case "sqlite":
		sqlite, err := database.NewSQLiteStore(cfg.dbPath)
		if err != nil {
			return nil, nil, err
		}
		purgeCtx, cancel := context.WithCancel(ctx)
		go purgeSessions(purgeCtx, sqlite, logger)
		return sqlite, func() { cancel(); closeLogged(sqlite, logger) }, nil
	case "bolt":
		bolt, err := database.NewBoltStore(cfg.dbPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, err
		}
		store = bolt
	case "redis":
		redis, err := database.NewRedisStore(cfg.redisAddr, cfg.redisPassword, cfg.redisDB, "fbclient:", sessionRetention)
		if err != nil {
			return nil, nil, err
		}
		store = redis
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.store)
	}
	return store, func() { closeLogged(store, logger) }, nil
}

func purgeSessions(
	ctx context.Context,
	store *database.SQLiteStore,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeBefore(now.Add(-sessionRetention))
			if err != nil {
				logger.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged stale sessions", "count", n)
			}
		}
	}
}

func closeLogged(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close session store", "error", err)
	}
}

func splitScope(raw string) []string {
	var scope []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scope = append(scope, s)
		}
	}
	return scope
}

func defaultAddress() string {
	if port, ok := os.LookupEnv("PORT"); ok {
		return ":" + port
	}
	return ":8080"
}

func envOr(name string, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}
