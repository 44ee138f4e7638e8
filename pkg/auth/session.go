package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSession = errors.New("no active session")

// SessionProvider yields the identity of the signed-in user, if any.
type SessionProvider interface {
	UserID(ctx context.Context) (string, bool)
}

// GenerateJWT creates a token for a given user ID.
func GenerateJWT(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT validates token and extracts user ID.
func ParseJWT(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenMalformed
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", jwt.ErrTokenMalformed
	}

	return userID, nil
}

func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// TokenSession is a session backed by a stored JWT; it lapses when the token expires.
type TokenSession struct {
	token  string
	secret string
}

func NewTokenSession(token, secret string) *TokenSession {
	return &TokenSession{token: token, secret: secret}
}

func (s *TokenSession) UserID(context.Context) (string, bool) {
	if s.token == "" || s.secret == "" {
		return "", false
	}
	userID, err := ParseJWT(s.token, s.secret)
	if err != nil {
		return "", false
	}
	return userID, true
}

// StaticSession always reports the same user. An empty ID means signed out.
type StaticSession struct {
	ID string
}

func (s StaticSession) UserID(context.Context) (string, bool) {
	return s.ID, s.ID != ""
}

type contextKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// ContextSession reads the user id placed in the request context by middleware.
type ContextSession struct{}

func (ContextSession) UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}
