package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserId = "da1a1b86-b109-4a48-a0ea-c2b92a0407ae"

func newKeyPair(t *testing.T) (*rsa.PrivateKey, *Verifier) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, NewVerifier(&key.PublicKey)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerifier_Verify(t *testing.T) {
	key, verifier := newKeyPair(t)

	token := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUserId,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		IsAdmin: true,
	})

	actor, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testUserId, actor.UserID)
	assert.True(t, actor.IsAdmin)
}

func TestVerifier_Verify_RejectsExpired(t *testing.T) {
	key, verifier := newKeyPair(t)

	token := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUserId,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_Verify_RejectsForeignSignature(t *testing.T) {
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, verifier := newKeyPair(t)

	token := signToken(t, foreign, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUserId},
	})

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_Verify_RequiresSubject(t *testing.T) {
	key, verifier := newKeyPair(t)

	token := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_Verify_RejectsHMAC(t *testing.T) {
	_, verifier := newKeyPair(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUserId},
	}).SignedString([]byte("shared secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
