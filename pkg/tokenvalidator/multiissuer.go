package tokenvalidator

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	autherrors "github.com/terravista/authkit/pkg/errors"
)

// TrustedIssuer binds one issuer to the audience and key source tokens from
// that issuer must satisfy.
type TrustedIssuer struct {
	// Issuer is the expected iss claim value, matched exactly.
	Issuer string

	// Audience is the audience tokens from this issuer must carry.
	Audience string

	// Keys resolves this issuer's signing keys.
	Keys KeySource
}

// MultiIssuerValidator validates tokens from a closed set of trusted
// issuers. The token's unverified iss claim selects the trust entry; a token
// from any other issuer is rejected before signature checking.
type MultiIssuerValidator struct {
	entries    map[string]TrustedIssuer
	validators map[string]*Validator
}

// NewMultiIssuer creates a validator trusting exactly the given issuers.
func NewMultiIssuer(trusted []TrustedIssuer) (*MultiIssuerValidator, error) {
	if len(trusted) == 0 {
		return nil, autherrors.NewConfigError("at least one trusted issuer is required", nil)
	}

	entries := make(map[string]TrustedIssuer, len(trusted))
	validators := make(map[string]*Validator, len(trusted))
	for _, entry := range trusted {
		if entry.Issuer == "" {
			return nil, autherrors.NewConfigError("trusted issuer entry is missing the issuer", nil)
		}
		if entry.Audience == "" {
			return nil, autherrors.NewConfigError(
				fmt.Sprintf("trusted issuer %q is missing the audience", entry.Issuer), nil)
		}
		if entry.Keys == nil {
			return nil, autherrors.NewConfigError(
				fmt.Sprintf("trusted issuer %q is missing a key source", entry.Issuer), nil)
		}
		if _, dup := entries[entry.Issuer]; dup {
			return nil, autherrors.NewConfigError(
				fmt.Sprintf("issuer %q is configured more than once", entry.Issuer), nil)
		}
		entries[entry.Issuer] = entry
		validators[entry.Issuer] = New(entry.Keys)
	}

	return &MultiIssuerValidator{
		entries:    entries,
		validators: validators,
	}, nil
}

// ValidateToken validates a token from any of the trusted issuers. The
// issuer claim is read without verification to select the trust entry, then
// full validation runs against that entry's keys and audience.
func (m *MultiIssuerValidator) ValidateToken(
	ctx context.Context,
	tokenString string,
	scopesAnyOf []string,
) (jwt.MapClaims, error) {
	issuer, err := UnverifiedIssuer(tokenString)
	if err != nil {
		return nil, err
	}

	entry, ok := m.entries[issuer]
	if !ok {
		return nil, validationError(ErrUntrustedIssuer,
			fmt.Sprintf("issuer %q is not a trusted issuer", issuer))
	}

	return m.validators[issuer].ValidateToken(ctx, tokenString, entry.Issuer, entry.Audience, scopesAnyOf)
}
