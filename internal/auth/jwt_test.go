package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-testing")

func signToken(t *testing.T, subject, email string, exp time.Time, secret []byte) string {
	t.Helper()
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestParseAccessToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, "user-1", "a@example.com", exp, testSecret)

	tests := []struct {
		name    string
		token   string
		secret  []byte
		wantErr bool
	}{
		{name: "verified", token: token, secret: testSecret},
		{name: "unverified without secret", token: token, secret: nil},
		{name: "wrong secret", token: token, secret: []byte("other"), wantErr: true},
		{name: "malformed", token: "not-a-jwt", secret: nil, wantErr: true},
		{name: "malformed with secret", token: "a.b.c", secret: testSecret, wantErr: true},
		{name: "no subject", token: signToken(t, "", "a@example.com", exp, testSecret), secret: testSecret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseAccessToken(tt.token, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.Subject)
			assert.Equal(t, "a@example.com", claims.Email)
			assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
		})
	}
}

func TestParseAccessToken_ExpiredIsStillParsed(t *testing.T) {
	token := signToken(t, "user-1", "", time.Now().Add(-time.Hour), testSecret)

	claims, err := ParseAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Before(time.Now()))
}

func TestParseAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
