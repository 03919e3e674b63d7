package oidc

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
)

// SigningAlg is the only accepted ID token signing algorithm.
const SigningAlg = "RS256"

// DefaultIATSkew is how old an ID token may be when it is presented.
const DefaultIATSkew = 5 * time.Minute

// Claims is a validated ID token payload.
type Claims struct {
	Subject string
	Issuer  string
	Raw     map[string]any
}

// Validator checks ID tokens returned by the token endpoint.
type Validator struct {
	Clock   func() time.Time
	IATSkew time.Duration
}

func (v Validator) now() time.Time {
	if v.Clock == nil {
		return time.Now()
	}
	return v.Clock()
}

func (v Validator) skew() time.Duration {
	if v.IATSkew <= 0 {
		return DefaultIATSkew
	}
	return v.IATSkew
}

// ValidateIDToken runs the ID token checks for client in order: issuer,
// audience, signing algorithm, expiry, then issue time. The first failing
// check decides the error code. Signatures are verified last, and only
// when the client has verification keys.
func (v Validator) ValidateIDToken(client *Client, raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMissingIDToken, nil)
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	token, _, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMalformedToken, err)
	}

	if issuer, _ := claims.GetIssuer(); issuer != client.Config.Issuer {
		return Claims{}, apperrors.Forbidden(apperrors.CodeInvalidIssuer, nil)
	}
	audience, _ := claims.GetAudience()
	if len(audience) != 1 || audience[0] != client.Config.ClientID {
		return Claims{}, apperrors.Forbidden(apperrors.CodeInvalidAudience, nil)
	}
	if alg, _ := token.Header["alg"].(string); alg != SigningAlg {
		return Claims{}, apperrors.Forbidden(apperrors.CodeInvalidSigningAlg, nil)
	}

	now := v.now()
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMalformedToken, err)
	}
	if exp.Time.Before(now) {
		return Claims{}, apperrors.Forbidden(apperrors.CodeTokenExpired, nil)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMalformedToken, err)
	}
	if iat.Time.Before(now.Add(-v.skew())) {
		return Claims{}, apperrors.Forbidden(apperrors.CodeTokenTooOld, nil)
	}
	if iat.Time.After(now) {
		return Claims{}, apperrors.Forbidden(apperrors.CodeTokenIssuedInFuture, nil)
	}

	if client.VerifiesSignatures() {
		if err := verifySignature(client, raw); err != nil {
			return Claims{}, apperrors.Forbidden(apperrors.CodeInvalidSignature, err)
		}
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMalformedToken, errors.New("missing subject"))
	}
	issuer, _ := claims.GetIssuer()
	return Claims{Subject: subject, Issuer: issuer, Raw: map[string]any(claims)}, nil
}

func verifySignature(client *Client, raw string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{SigningAlg}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.Parse(raw, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if key, ok := client.keys[kid]; ok {
			return key, nil
		}
		if kid == "" && len(client.keys) == 1 {
			for _, key := range client.keys {
				return key, nil
			}
		}
		return nil, errors.New("no verification key for token")
	})
	return err
}
