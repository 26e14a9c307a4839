package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 7*24*time.Hour)

	token, exp, err := tm.Generate("65f0c0ffee", "patient")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 5*time.Second)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee", claims.UserID)
	assert.Equal(t, "patient", claims.Role)
}

func TestTokenExpired(t *testing.T) {
	issued := time.Now().Add(-8 * 24 * time.Hour)
	tm := NewTokenManager("secret", 7*24*time.Hour).WithClock(func() time.Time { return issued })

	token, _, err := tm.Generate("abc", "doctor")
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 0).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongKey(t *testing.T) {
	token, _, err := NewTokenManager("one", time.Hour).Generate("abc", "patient")
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		UserID: "abc",
		Role:   "patient",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMalformed(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := tm.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestGenerateWithoutSecret(t *testing.T) {
	_, _, err := NewTokenManager("", time.Hour).Generate("abc", "patient")
	assert.Error(t, err)
}
