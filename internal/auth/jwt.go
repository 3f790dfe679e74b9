package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gudangmitra/gudang/internal/model"
)

// Claims represents the JWT claims.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenExpiry is the default token lifetime.
const TokenExpiry = 24 * time.Hour

// Issuer signs and verifies tokens for one service.
type Issuer struct {
	Secret []byte
	Name   string        // iss claim
	TTL    time.Duration // TokenExpiry when zero
}

// NewIssuer returns an Issuer with the default lifetime.
func NewIssuer(secret, name string) *Issuer {
	return &Issuer{Secret: []byte(secret), Name: name, TTL: TokenExpiry}
}

// Issue creates a signed token for u with a unique JTI.
func (i *Issuer) Issue(u *model.User) (string, *Claims, error) {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = TokenExpiry
	}
	now := time.Now()

	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.Name,
			Subject:   fmt.Sprint(u.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates a token and returns its claims. Tokens from another
// issuer or signed with anything but HS256 are rejected.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.Name),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
