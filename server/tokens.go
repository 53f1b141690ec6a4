package server

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// claims carries the user and the session id (jti) so logout can revoke it
type claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl}
}

// sign returns a token, its session id and its expiry
func (t *tokenIssuer) sign(userID int64) (token, sessionID string, expiresAt time.Time, err error) {
	sessionID = uuid.NewString()
	issued := time.Now()
	expiresAt = issued.Add(t.ttl)
	c := &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	return token, sessionID, expiresAt, err
}

func (t *tokenIssuer) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := token.Claims.(*claims); ok && token.Valid && c.ID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}
