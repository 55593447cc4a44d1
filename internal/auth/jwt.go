// Package auth mints and verifies the bearer JWTs that carry owner_id,
// agent_id and roles, and provides the middleware that enforces
// tenant isolation and role gates on every route. Adapted from the
// teacher's bearer-token handling in cmd/bd/serve, generalized from a
// single-user daemon token to a multi-tenant signed claim set.
package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/types"
)

// Claims is the JWT payload minted by POST /auth/token.
type Claims struct {
	OwnerID uuid.UUID    `json:"owner_id"`
	AgentID uuid.UUID    `json:"agent_id"`
	Roles   []types.Role `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(r types.Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Minter signs tokens with an RS256 private key.
type Minter struct {
	priv *rsa.PrivateKey
	ttl  time.Duration
}

func NewMinter(priv *rsa.PrivateKey, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Minter{priv: priv, ttl: ttl}
}

func (m *Minter) Mint(ownerID, agentID uuid.UUID, roles []types.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		AgentID: agentID,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(m.priv)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens against the RS256 public key.
type Verifier struct {
	pub *rsa.PublicKey
}

func NewVerifier(pub *rsa.PublicKey) *Verifier {
	return &Verifier{pub: pub}
}

func (v *Verifier) Parse(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuthRequired, err)
	}
	if !tok.Valid {
		return nil, types.ErrAuthRequired
	}
	return &claims, nil
}
