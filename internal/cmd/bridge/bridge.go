// Package bridge parses bridge command configuration and launches the
// bridge service.
package bridge

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/tresorgate/internal/platform/cmd"
	"github.com/louisbranch/tresorgate/internal/platform/timeouts"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/session"
)

// Config holds bridge command configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":8081"`

	// TenantID derives ServiceURL and AdminUserID when they are unset.
	TenantID    string `env:"TENANT_ID"`
	ServiceURL  string `env:"SERVICE_URL"`
	AdminUserID string `env:"ADMIN_USER_ID"`
	AdminKey    string `env:"ADMIN_KEY"`
	SDKVersion  string `env:"SDK_VERSION" envDefault:"4"`

	// IDPClients is a JSON array of identity provider clients.
	IDPClients    string        `env:"IDP_CLIENTS"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	IATSkew       time.Duration `env:"IAT_SKEW" envDefault:"5m"`
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"10s"`

	DBPath      string `env:"DB_PATH" envDefault:"data/tresorgate.db"`
	PostgresURL string `env:"POSTGRES_URL"`
	RedisURL    string `env:"REDIS_URL"`
	PolicyFile  string `env:"POLICY_FILE"`

	SessionCookieKey string   `env:"SESSION_COOKIE_KEY"`
	SecureCookies    bool     `env:"SECURE_COOKIES" envDefault:"true"`
	AppOrigins       []string `env:"APP_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3002"`
	Debug            bool     `env:"DEBUG"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The bridge HTTP API address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The bridge gRPC health address (empty disables it)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sqlite database path")
	fs.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "The YAML policy rules file")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Attach error causes to API responses")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.applyTenantDefaults()
	return cfg, nil
}

// applyTenantDefaults fills the service url and admin user from the tenant
// id, and the tenant id from a tenant service url.
func (c *Config) applyTenantDefaults() {
	tenant := c.tenant().WithDefaults()
	c.TenantID, c.ServiceURL, c.AdminUserID = tenant.ID, tenant.ServiceURL, tenant.AdminUserID
}

func (c Config) tenant() adminapi.Tenant {
	return adminapi.Tenant{ID: c.TenantID, ServiceURL: c.ServiceURL, AdminUserID: c.AdminUserID}
}

// Validate reports configuration the bridge cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.ServiceURL == "" {
		errs = append(errs, errors.New("service url or tenant id is required"))
	}
	if strings.TrimSpace(c.AdminUserID) == "" {
		errs = append(errs, errors.New("admin user id is required"))
	}
	if strings.TrimSpace(c.AdminKey) == "" {
		errs = append(errs, errors.New("admin key is required"))
	}
	if _, err := strconv.Atoi(strings.TrimSpace(c.SDKVersion)); err != nil {
		errs = append(errs, fmt.Errorf("sdk version %q should be a number", c.SDKVersion))
	}
	if c.PostgresURL == "" && strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db path or postgres url is required"))
	}
	return errors.Join(errs...)
}

func (c Config) tokenTTL() time.Duration {
	if c.TokenTTL <= 0 {
		return session.DefaultTTL
	}
	return c.TokenTTL
}

func (c Config) remoteTimeout() time.Duration {
	if c.RemoteTimeout <= 0 {
		return timeouts.RemoteCall
	}
	return c.RemoteTimeout
}
