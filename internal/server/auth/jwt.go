// Package auth mints and validates the signed session tokens (HS256 JWTs)
// handed out at login.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// RefreshID is the refresh token's jti, recorded server-side so the token can
// be revoked.
type TokenPair struct {
	AccessToken    string
	RefreshToken   string
	RefreshID      string
	RefreshExpires time.Time
}

// Codec signs and verifies session tokens.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// MintPair issues an access and a refresh token carrying sc.
func (c *Codec) MintPair(sc SessionClaims) (*TokenPair, error) {
	now := c.now()

	access, err := c.sign(sc, TokenTypeAccess, uuid.NewString(), now, now.Add(c.accessTTL))
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refreshExpires := now.Add(c.refreshTTL)
	refresh, err := c.sign(sc, TokenTypeRefresh, refreshID, now, refreshExpires)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:    access,
		RefreshToken:   refresh,
		RefreshID:      refreshID,
		RefreshExpires: refreshExpires,
	}, nil
}

func (c *Codec) sign(sc SessionClaims, tokenType, id string, issuedAt, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   sc.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType:     tokenType,
		SessionClaims: sc,
	})

	return token.SignedString(c.secret)
}

// ParseAccess validates an access token and returns its claims.
func (c *Codec) ParseAccess(tokenString string) (*Claims, error) {
	return c.parse(tokenString, TokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (c *Codec) ParseRefresh(tokenString string) (*Claims, error) {
	return c.parse(tokenString, TokenTypeRefresh)
}

// parse returns common.ErrTokenExpired for an expired but otherwise valid
// token and common.ErrInvalidToken for everything else.
func (c *Codec) parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != tokenType {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
