package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("token is invalid")

// Actor is the identity the platform's auth service resolved for a request.
// The chat core trusts these fields as-is.
type Actor struct {
	UserID  string
	IsAdmin bool
}

type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin"`
}

type Verifier struct {
	key *rsa.PublicKey
}

func NewVerifierFromFile(path string) (*Verifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read public key: %w", err)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("can't parse public key: %w", err)
	}

	return &Verifier{key: key}, nil
}

func NewVerifier(key *rsa.PublicKey) *Verifier {
	return &Verifier{key: key}
}

func (v *Verifier) Verify(token string) (*Actor, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %s", ErrInvalidToken, t.Method.Alg())
		}
		return v.key, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Actor{
		UserID:  claims.Subject,
		IsAdmin: claims.IsAdmin,
	}, nil
}
