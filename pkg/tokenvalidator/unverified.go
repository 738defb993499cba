package tokenvalidator

import (
	"github.com/golang-jwt/jwt/v5"

	autherrors "github.com/terravista/authkit/pkg/errors"
)

// UnverifiedClaims decodes a token's claims WITHOUT verifying its signature
// or any claim. It establishes no trust and must never gate access; it exists
// for self-inspection, such as a client reading the expiry out of its own
// token to schedule a refresh.
func UnverifiedClaims(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, autherrors.NewValidationError("no token provided", ErrMalformedToken)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, autherrors.NewValidationError("failed to decode token", ErrMalformedToken)
	}
	return claims, nil
}

// UnverifiedIssuer returns the token's iss claim without verifying anything.
func UnverifiedIssuer(tokenString string) (string, error) {
	claims, err := UnverifiedClaims(tokenString)
	if err != nil {
		return "", err
	}
	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return "", autherrors.NewValidationError("token is missing the iss claim", ErrMalformedToken)
	}
	return issuer, nil
}
