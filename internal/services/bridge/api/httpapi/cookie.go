package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// SessionCookieName is the cookie that carries a redirect login session.
const SessionCookieName = "tresorgate_session"

const cookieKeyInfo = "tresorgate session cookie v1"

var errBadCookie = errors.New("invalid session cookie")

// CookieCodec signs and verifies session cookies.
type CookieCodec struct {
	key    []byte
	ttl    time.Duration
	secure bool
	clock  func() time.Time
}

// NewCookieCodec derives the signing key from a hex encoded secret of at
// least 16 bytes.
func NewCookieCodec(hexSecret string, ttl time.Duration, secure bool) (*CookieCodec, error) {
	secret, err := hex.DecodeString(strings.TrimSpace(hexSecret))
	if err != nil {
		return nil, fmt.Errorf("decode cookie key: %w", err)
	}
	if len(secret) < 16 {
		return nil, errors.New("cookie key must be at least 16 bytes")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CookieCodec{key: key, ttl: ttl, secure: secure, clock: time.Now}, nil
}

type cookiePayload struct {
	User      identity.Identity `json:"user"`
	ExpiresAt int64             `json:"exp"`
}

func (c *CookieCodec) sign(data string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode returns a signed cookie value for ident.
func (c *CookieCodec) Encode(ident identity.Identity) (string, error) {
	payload, err := json.Marshal(cookiePayload{
		User:      ident.Public(),
		ExpiresAt: c.clock().Add(c.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + c.sign(data), nil
}

// Decode verifies value and returns the identity it carries.
func (c *CookieCodec) Decode(value string) (identity.Identity, error) {
	data, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(c.sign(data))) {
		return identity.Identity{}, errBadCookie
	}
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return identity.Identity{}, errBadCookie
	}
	var payload cookiePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return identity.Identity{}, errBadCookie
	}
	if c.clock().Unix() >= payload.ExpiresAt {
		return identity.Identity{}, errBadCookie
	}
	return payload.User, nil
}

// Set writes the session cookie for ident.
func (c *CookieCodec) Set(w http.ResponseWriter, ident identity.Identity) error {
	value, err := c.Encode(ident)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
