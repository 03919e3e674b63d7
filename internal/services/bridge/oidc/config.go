package oidc

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ClientConfig describes one client registered with the identity provider.
type ClientConfig struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	AuthURL      string   `json:"authorizationUrl,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty"`
	CallbackURL  string   `json:"callbackUrl"`
	Issuer       string   `json:"issuer,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	// VerificationKeys maps key ids to PEM encoded RSA public keys. When
	// present, ID token signatures are verified as well.
	VerificationKeys map[string]string `json:"verificationKeys,omitempty"`
}

// ParseClients decodes the JSON client list used in configuration.
func ParseClients(raw string) ([]ClientConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var clients []ClientConfig
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil, fmt.Errorf("parse idp clients: %w", err)
	}
	return clients, nil
}

// WithDefaults fills provider endpoints from the service url. The provider
// lives under {serviceURL}/idp.
func (c ClientConfig) WithDefaults(serviceURL string) ClientConfig {
	base := strings.TrimRight(serviceURL, "/") + "/idp"
	if c.Issuer == "" {
		c.Issuer = base
	}
	if c.AuthURL == "" {
		c.AuthURL = base + "/connect/authorize"
	}
	if c.TokenURL == "" {
		c.TokenURL = base + "/connect/token"
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "profile"}
	}
	return c
}

// Client is a configured provider client.
type Client struct {
	Config ClientConfig
	oauth  *oauth2.Config
	keys   map[string]*rsa.PublicKey
}

// NewClient validates cfg and prepares its OAuth2 configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("client id is required")
	}
	if cfg.TokenURL == "" || cfg.Issuer == "" {
		return nil, fmt.Errorf("client %s: token url and issuer are required", cfg.ClientID)
	}
	keys := make(map[string]*rsa.PublicKey, len(cfg.VerificationKeys))
	for kid, pem := range cfg.VerificationKeys {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("client %s: parse key %q: %w", cfg.ClientID, kid, err)
		}
		keys[kid] = key
	}
	return &Client{
		Config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		keys: keys,
	}, nil
}

// VerifiesSignatures reports whether the client has verification keys.
func (c *Client) VerifiesSignatures() bool {
	return len(c.keys) > 0
}
