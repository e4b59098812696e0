package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-relay/domain"
)

// Claims is the structure of the data stored inside the JWT.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates bearer tokens. The secret comes from
// configuration, never from source.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenIssuer(secret string, lifetime time.Duration) TokenIssuer {
	return TokenIssuer{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed HS256 token for a user.
func (t TokenIssuer) Generate(userID domain.UserID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: int64(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-relay",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses a token string and returns the authenticated user id.
func (t TokenIssuer) Validate(token string) (domain.UserID, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, jwt.ErrSignatureInvalid
	}
	return domain.UserID(claims.UserID), nil
}
