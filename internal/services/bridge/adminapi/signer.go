package adminapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Header names used by the AdminKey scheme.
const (
	HeaderUserID        = "UserId"
	HeaderDate          = "TresoritDate"
	HeaderContentType   = "Content-Type"
	HeaderContentSHA256 = "Content-SHA256"
	HeaderHMACHeaders   = "HMACHeaders"
	HeaderAuthorization = "Authorization"

	authorizationScheme = "AdminKey "
	contentTypeJSON     = "application/json"
	dateLayout          = "2006-01-02T15:04:05Z"
)

// Header is a single name/value pair. Order matters for signing.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the value of the first header with name.
func (h Headers) Get(name string) string {
	for _, header := range h {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

// Apply copies the headers onto an outgoing request header map without
// canonicalizing names.
func (h Headers) Apply(dst http.Header) {
	for _, header := range h {
		dst[header.Name] = []string{header.Value}
	}
}

// Signer produces AdminKey headers for the configured administrator.
type Signer struct {
	UserID string
	Key    []byte
	Now    func() time.Time
}

// NewSigner builds a signer from the administrator id and hex-encoded key.
func NewSigner(userID, hexKey string) (*Signer, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("admin user id is required")
	}
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, errors.New("admin key is required")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode admin key: %w", err)
	}
	return &Signer{UserID: userID, Key: key, Now: time.Now}, nil
}

// Method returns the verb used for a call: POST when a body is sent, GET otherwise.
func Method(body []byte) string {
	if body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// Headers builds the signed header list for a request along with the
// canonical string that was signed. body must be the exact bytes sent, or
// nil for a bodiless request.
func (s *Signer) Headers(verb, path string, body []byte) (Headers, string, error) {
	if s == nil || len(s.Key) == 0 {
		return nil, "", errors.New("signer key is required")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	headers := Headers{
		{Name: HeaderUserID, Value: s.UserID},
		{Name: HeaderDate, Value: now().UTC().Format(dateLayout)},
		{Name: HeaderContentType, Value: contentTypeJSON},
	}
	if body != nil {
		sum := sha256.Sum256(body)
		headers = append(headers, Header{Name: HeaderContentSHA256, Value: hex.EncodeToString(sum[:])})
	}

	signed := make([]string, 0, len(headers)+1)
	for _, header := range headers {
		signed = append(signed, header.Name)
	}
	signed = append(signed, HeaderHMACHeaders)
	headers = append(headers, Header{Name: HeaderHMACHeaders, Value: strings.Join(signed, ",")})

	canonical := CanonicalString(verb, path, headers, signed)
	headers = append(headers, Header{
		Name:  HeaderAuthorization,
		Value: authorizationScheme + Sign(s.Key, canonical),
	})
	return headers, canonical, nil
}

// CanonicalString joins the verb, the path and the name:value pairs of
// every signed header except the trailing HMACHeaders entry.
func CanonicalString(verb, path string, headers Headers, signed []string) string {
	if n := len(signed); n > 0 && signed[n-1] == HeaderHMACHeaders {
		signed = signed[:n-1]
	}
	lines := make([]string, 0, len(signed))
	for _, name := range signed {
		lines = append(lines, name+":"+headers.Get(name))
	}
	return verb + "\n" + path + "\n" + strings.Join(lines, "\n")
}

// Sign returns the base64 HMAC-SHA256 of canonical under key.
func Sign(key []byte, canonical string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
