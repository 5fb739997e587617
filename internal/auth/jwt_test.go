package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator_RoundTrip(t *testing.T) {
	v, err := NewJWTValidator("s3cret", "eventory")
	require.NoError(t, err)

	token, err := v.Issue("org-42", time.Hour)
	require.NoError(t, err)

	subject, err := v.Validate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "org-42", subject)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v, err := NewJWTValidator("s3cret", "eventory")
	require.NoError(t, err)
	other, err := NewJWTValidator("other", "eventory")
	require.NoError(t, err)
	foreign, err := NewJWTValidator("s3cret", "someone-else")
	require.NoError(t, err)

	expired, err := v.Issue("org-42", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := other.Issue("org-42", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue("org-42", time.Hour)
	require.NoError(t, err)
	noSubject, err := v.Issue("", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "org-42",
		Issuer:  "eventory",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"bearer only":  "Bearer ",
		"garbage":      "not.a.token",
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), token)
			assert.Error(t, err)
		})
	}
}

func TestJWTValidator_RejectsNoneAlgorithm(t *testing.T) {
	v, err := NewJWTValidator("s3cret", "")
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "org-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator(" ", "")
	assert.Error(t, err)
}

func TestExtractTokenFromAuthHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromAuthHeader("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromAuthHeader("bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromAuthHeader("abc"))
	assert.Equal(t, "", ExtractTokenFromAuthHeader(""))
}
