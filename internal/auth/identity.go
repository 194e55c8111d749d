package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/imitation/backend/internal/model"
)

// DefaultAudience is the "aud" claim hosted identity providers (Supabase and
// friends) put on tokens issued to signed-in users.
const DefaultAudience = "authenticated"

// IdentityVerifier validates bearer JWTs issued by an external identity
// provider and turns them into a model.Identity.
//
// The provider and this server share an HMAC secret. A token is accepted
// only when:
//   - it is signed with HS256 using that secret
//   - it has not expired (and carries an "exp" at all)
//   - its audience matches
//   - it names a subject
//
// Pinning the method list to HS256 blocks the "alg: none" and
// RSA-public-key-as-HMAC-secret tricks.
type IdentityVerifier struct {
	secret   []byte
	audience string
}

// identityClaims is the token payload. "sub" and "aud" come from the
// registered claims; "email" is provider specific.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewIdentityVerifier returns a verifier for the given shared secret.
// An empty audience falls back to DefaultAudience.
func NewIdentityVerifier(secret, audience string) (*IdentityVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: identity secret must be at least 16 characters")
	}
	if audience == "" {
		audience = DefaultAudience
	}
	return &IdentityVerifier{secret: []byte(secret), audience: audience}, nil
}

// Verify checks the token and returns the identity it asserts.
func (v *IdentityVerifier) Verify(tokenStr string) (model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&identityClaims{},
		func(token *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, fmt.Errorf("auth: token expired")
		}
		return model.Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return model.Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return model.Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return model.Identity{Subject: c.Subject, Email: c.Email}, nil
}
