// Package tokenvalidator provides local, trust-establishing JWT validation
// against a JWKS key source, and a multi-issuer wrapper for resource-server
// use. Validation failures carry distinct, machine-distinguishable kinds.
package tokenvalidator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	autherrors "github.com/terravista/authkit/pkg/errors"
)

// Validation failure kinds. Each is distinct so callers can tell "expired"
// from "untrusted" from "malformed" with errors.Is.
var (
	ErrExpired           = errors.New("token is expired")
	ErrNotYetValid       = errors.New("token is not yet valid")
	ErrUnknownSigningKey = errors.New("token signing key is not in the key set")
	ErrInvalidAlgorithm  = errors.New("token signing algorithm is not permitted")
	ErrInvalidSignature  = errors.New("token signature is invalid")
	ErrWrongIssuer       = errors.New("token issuer does not match the expected issuer")
	ErrWrongAudience     = errors.New("token audience does not include the required audience")
	ErrMissingScope      = errors.New("token holds none of the required scopes")
	ErrMalformedToken    = errors.New("token or validation argument is malformed")
	ErrUntrustedIssuer   = errors.New("token issuer is not a trusted issuer")
)

// ClockSkewLeeway is the tolerance applied to exp and nbf checks.
const ClockSkewLeeway = 30 * time.Second

// KeySource resolves signing keys by key ID. Implemented by the JWKS client.
type KeySource interface {
	KeyByID(ctx context.Context, kid string) (jwk.Key, bool, error)
}

// Validator validates JWTs against an issuer, audience and key source. It is
// stateless apart from the key source's own cache.
type Validator struct {
	keys KeySource
	now  func() time.Time
}

// New creates a validator over the given key source.
func New(keys KeySource) *Validator {
	return &Validator{
		keys: keys,
		now:  time.Now,
	}
}

func validationError(kind error, detail string) error {
	return autherrors.NewValidationError(detail, kind)
}

func (v *Validator) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
		default:
			return nil, validationError(ErrInvalidAlgorithm,
				fmt.Sprintf("unexpected signing method %v", token.Header["alg"]))
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, validationError(ErrMalformedToken, "token header is missing the kid field")
		}

		key, found, err := v.keys.KeyByID(ctx, kid)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, validationError(ErrUnknownSigningKey,
				fmt.Sprintf("key ID %q not found in JWKS", kid))
		}

		var rawKey any
		if err := jwk.Export(key, &rawKey); err != nil {
			return nil, validationError(ErrMalformedToken,
				fmt.Sprintf("failed to export signing key %q", kid))
		}
		return rawKey, nil
	}
}

// ValidateToken validates an access token: signature against the key source,
// exact issuer match, required audience membership, time bounds with a small
// clock-skew allowance, and optionally an any-of scope check. The decoded
// claims are returned on success.
func (v *Validator) ValidateToken(
	ctx context.Context,
	tokenString, issuer, audience string,
	scopesAnyOf []string,
) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, validationError(ErrMalformedToken, "no token provided")
	}
	if audience == "" {
		return nil, validationError(ErrMalformedToken, "no required audience provided")
	}

	claims, err := v.verifySignature(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	if err := v.validateClaims(claims, issuer, audience, scopesAnyOf); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateIDToken validates an OIDC ID token. The required audience is the
// client ID; a non-empty nonce must match the token's nonce claim.
func (v *Validator) ValidateIDToken(
	ctx context.Context,
	tokenString, issuer, clientID, nonce string,
) (jwt.MapClaims, error) {
	claims, err := v.ValidateToken(ctx, tokenString, issuer, clientID, nil)
	if err != nil {
		return nil, err
	}

	if nonce != "" {
		tokenNonce, _ := claims["nonce"].(string)
		if tokenNonce != nonce {
			return nil, validationError(ErrMalformedToken, "ID token nonce does not match")
		}
	}
	return claims, nil
}

// verifySignature parses the token and verifies its signature, mapping
// parser failures onto the validation kinds. Claim validation is done
// separately so each failure keeps its specific kind.
func (v *Validator) verifySignature(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.Parse(tokenString, v.keyFunc(ctx))
	if err != nil {
		// Surface errors from our own keyfunc unchanged.
		if autherrors.IsValidation(err) || autherrors.IsTransport(err) {
			return nil, err
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, validationError(ErrMalformedToken, err.Error())
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, validationError(ErrInvalidSignature, err.Error())
		}
		return nil, validationError(ErrMalformedToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, validationError(ErrMalformedToken, "failed to read claims from token")
	}
	return claims, nil
}

func (v *Validator) validateClaims(claims jwt.MapClaims, issuer, audience string, scopesAnyOf []string) error {
	issuerClaim, err := claims.GetIssuer()
	if err != nil || issuerClaim == "" {
		return validationError(ErrWrongIssuer, "token is missing the iss claim")
	}
	if issuerClaim != issuer {
		return validationError(ErrWrongIssuer,
			fmt.Sprintf("expected issuer %q, got %q", issuer, issuerClaim))
	}

	audiences, err := claims.GetAudience()
	if err != nil {
		return validationError(ErrWrongAudience, "token is missing the aud claim")
	}
	found := false
	for _, aud := range audiences {
		if aud == audience {
			found = true
			break
		}
	}
	if !found {
		return validationError(ErrWrongAudience,
			fmt.Sprintf("token audience does not include %q", audience))
	}

	now := v.now()

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return validationError(ErrExpired, "token is missing the exp claim")
	}
	if now.After(expiry.Add(ClockSkewLeeway)) {
		return validationError(ErrExpired,
			fmt.Sprintf("token expired at %s", expiry.Format(time.RFC3339)))
	}

	notBefore, err := claims.GetNotBefore()
	if err == nil && notBefore != nil {
		if now.Before(notBefore.Add(-ClockSkewLeeway)) {
			return validationError(ErrNotYetValid,
				fmt.Sprintf("token is not valid before %s", notBefore.Format(time.RFC3339)))
		}
	}

	if len(scopesAnyOf) > 0 {
		if !scopeIntersects(tokenScopes(claims), scopesAnyOf) {
			return validationError(ErrMissingScope,
				fmt.Sprintf("token holds none of the scopes %v", scopesAnyOf))
		}
	}

	return nil
}

// tokenScopes extracts the granted scopes from the scope claim, accepting
// both the space-separated string form and the array form seen in the wild.
func tokenScopes(claims jwt.MapClaims) []string {
	switch scope := claims["scope"].(type) {
	case string:
		return strings.Fields(scope)
	case []any:
		scopes := make([]string, 0, len(scope))
		for _, s := range scope {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}
	if scp, ok := claims["scp"].([]any); ok {
		scopes := make([]string, 0, len(scp))
		for _, s := range scp {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}
	return nil
}

// scopeIntersects reports whether any granted scope appears in the required
// set (ANY semantics, not ALL).
func scopeIntersects(granted, required []string) bool {
	for _, r := range required {
		for _, g := range granted {
			if g == r {
				return true
			}
		}
	}
	return false
}
