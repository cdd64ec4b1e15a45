package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// TokenManager signs and validates the tokens the platform gateway attaches
// to every forwarded interaction.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Claims describes the actor vouched for by the gateway.
type Claims struct {
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	RoleIDs     []string `json:"role_ids,omitempty"`
	Admin       bool     `json:"admin,omitempty"`
	TenantOwner bool     `json:"owner,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims to the domain actor.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{
		TenantID:      c.TenantID,
		UserID:        c.UserID,
		UserName:      c.UserName,
		RoleIDs:       append([]string(nil), c.RoleIDs...),
		Administrator: c.Admin,
		TenantOwner:   c.TenantOwner,
	}
}

// GenerateToken signs a token for actor. The gateway does this in
// production; the service uses it for tooling and tests.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		TenantID:    actor.TenantID,
		UserID:      actor.UserID,
		UserName:    actor.UserName,
		RoleIDs:     actor.RoleIDs,
		Admin:       actor.Administrator,
		TenantOwner: actor.TenantOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TenantID == "" || claims.UserID == "" {
		return nil, errors.New("token missing tenant or user")
	}
	return claims, nil
}
