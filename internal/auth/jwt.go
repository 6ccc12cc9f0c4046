package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// AccessClaims are the claims of an auth service access token
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseAccessToken reads the claims of an access token. With a secret the HS256
// signature is verified; without one the claims are read unverified and the
// caller must confirm the token with the auth service. Expiry is not checked here.
func ParseAccessToken(tokenString string, secret []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}

	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("%w: malformed access token: %v", ErrInvalidCredentials, err)
		}
	} else {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		)
		_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: access token has no subject", ErrInvalidCredentials)
	}
	return claims, nil
}
