package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("user-1", "secret", time.Hour)
	require.NoError(t, err)

	userID, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestTokenSession_Expired(t *testing.T) {
	token, err := GenerateJWT("user-1", "secret", -time.Minute)
	require.NoError(t, err)

	_, ok := NewTokenSession(token, "secret").UserID(context.Background())
	assert.False(t, ok)
}

func TestTokenSession_Active(t *testing.T) {
	token, err := GenerateJWT("user-1", "secret", time.Hour)
	require.NoError(t, err)

	userID, ok := NewTokenSession(token, "secret").UserID(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestExtractToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractToken(r))
}

func TestStaticAndContextSession(t *testing.T) {
	_, ok := StaticSession{}.UserID(context.Background())
	assert.False(t, ok)

	ctx := WithUserID(context.Background(), "u2")
	userID, ok := ContextSession{}.UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u2", userID)
}
