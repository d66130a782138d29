package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndAuthenticate(t *testing.T) {
	m, err := NewManager("s3cret", "wes-io-chat", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateToken("user-a", "alice")
	require.NoError(t, err)

	id, err := m.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: "user-a", Username: "alice"}, id)
}

func TestValidateTokenRejects(t *testing.T) {
	m, err := NewManager("s3cret", "wes-io-chat", time.Hour)
	require.NoError(t, err)

	other, err := NewManager("different", "wes-io-chat", time.Hour)
	require.NoError(t, err)
	foreign, err := other.GenerateToken("user-a", "alice")
	require.NoError(t, err)

	_, err = m.ValidateToken(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewManager("s3cret", "someone-else", time.Hour)
	require.NoError(t, err)
	tok, err := wrongIssuer.GenerateToken("user-a", "alice")
	require.NoError(t, err)
	_, err = m.ValidateToken(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	m, err := NewManager("s3cret", "", time.Minute)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.GenerateToken("user-a", "alice")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", "x", time.Hour)
	require.ErrorIs(t, err, ErrEmptySecret)
}
