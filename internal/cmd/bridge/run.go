package bridge

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/tresorgate/internal/platform/id"
	server "github.com/louisbranch/tresorgate/internal/services/bridge/app"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/api/httpapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/approval"
	"github.com/louisbranch/tresorgate/internal/services/bridge/oidc"
	"github.com/louisbranch/tresorgate/internal/services/bridge/policy"
	"github.com/louisbranch/tresorgate/internal/services/bridge/session"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage/postgres"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage/sqlite"
)

// Run assembles the bridge and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		HTTPAddr: cfg.HTTPAddr,
		GRPCAddr: cfg.GRPCAddr,
		Handler:  app.Handler.Routes(),
		Closers:  app.Closers,
	})
	if err != nil {
		app.Close()
		return err
	}
	return srv.Serve(ctx)
}

// App is an assembled bridge ready to be served.
type App struct {
	Handler *httpapi.Handler
	Bridge  *approval.Bridge
	Logins  *oidc.Service
	Closers []io.Closer
}

// Close releases the stores held by the app.
func (a *App) Close() {
	for _, closer := range a.Closers {
		if err := closer.Close(); err != nil {
			log.Printf("close resource: %v", err)
		}
	}
}

// Build opens storage and sessions and wires every bridge component.
func Build(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	signer, err := adminapi.NewSigner(cfg.AdminUserID, cfg.AdminKey)
	if err != nil {
		return nil, fmt.Errorf("admin key: %w", err)
	}
	client, err := adminapi.NewClient(cfg.ServiceURL, cfg.SDKVersion, signer)
	if err != nil {
		return nil, err
	}
	client.Timeout = cfg.remoteTimeout()

	rules, err := policy.LoadRules(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	hooks := rules.Hooks()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Closers = append(app.Closers, store)

	sessions, closer, err := openSessions(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		app.Closers = append(app.Closers, closer)
	}

	app.Bridge, err = approval.New(approval.Config{
		Remote:     adminapi.NewGateway(client),
		Identities: store,
		Tresors:    store,
		Data:       store,
		Policy:     hooks,
	})
	if err != nil {
		return fail(err)
	}

	clients, err := idpClients(cfg)
	if err != nil {
		return fail(err)
	}
	app.Logins, err = oidc.NewService(oidc.Config{
		Clients:    clients,
		Validator:  oidc.Validator{IATSkew: cfg.IATSkew},
		Identities: app.Bridge,
		Verifier:   hooks,
		Sessions:   sessions,
		TokenTTL:   cfg.tokenTTL(),
	})
	if err != nil {
		return fail(err)
	}

	cookies, err := cookieCodec(cfg)
	if err != nil {
		return fail(err)
	}
	app.Handler, err = httpapi.New(httpapi.Config{
		Bridge:   app.Bridge,
		Logins:   app.Logins,
		Sessions: sessions,
		Cookies:  cookies,
		Origins:  cfg.AppOrigins,
		Debug:    cfg.Debug,
	})
	if err != nil {
		return fail(err)
	}
	log.Printf("bridge configured for %s with %d idp clients", cfg.ServiceURL, len(clients))
	return app, nil
}

func openStore(ctx context.Context, cfg Config) (storage.Store, error) {
	if url := strings.TrimSpace(cfg.PostgresURL); url != "" {
		store, err := postgres.Open(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	path := strings.TrimSpace(cfg.DBPath)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

func openSessions(ctx context.Context, cfg Config) (session.Store, io.Closer, error) {
	url := strings.TrimSpace(cfg.RedisURL)
	if url == "" {
		return session.NewMemoryStore(nil), nil, nil
	}
	client, err := session.OpenRedis(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewRedisStore(client, session.DefaultKeyPrefix, nil)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, client, nil
}

func idpClients(cfg Config) ([]*oidc.Client, error) {
	configs, err := oidc.ParseClients(cfg.IDPClients)
	if err != nil {
		return nil, err
	}
	clients := make([]*oidc.Client, 0, len(configs))
	for _, clientCfg := range configs {
		if clientCfg.CallbackURL == "" {
			clientCfg.CallbackURL = cfg.tenant().ClientCallbackURL(clientCfg.ClientID)
		}
		client, err := oidc.NewClient(clientCfg.WithDefaults(cfg.ServiceURL))
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// cookieCodec builds the redirect login cookie codec. Without a configured
// key a random one is used, so cookie sessions end with the process.
func cookieCodec(cfg Config) (*httpapi.CookieCodec, error) {
	key := strings.TrimSpace(cfg.SessionCookieKey)
	if key == "" {
		generated, err := id.NewToken(32)
		if err != nil {
			return nil, fmt.Errorf("generate cookie key: %w", err)
		}
		log.Printf("session cookie key not configured; cookie sessions will not survive restarts")
		key = generated
	}
	return httpapi.NewCookieCodec(key, cfg.tokenTTL(), cfg.SecureCookies)
}
