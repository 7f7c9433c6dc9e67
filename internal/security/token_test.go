package security

import (
	"testing"
	"time"

	"rentalshop-trusted/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *domain.User {
	return &domain.User{ID: 7, Username: "sara", Name: "Sara", RawRole: "Branch Manager", BranchID: 2}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 0)

	token, err := m.GenerateAccessToken(testUser())
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, int64(2), claims.BranchID)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, domain.RoleBranchManager, claims.NormalizedRole())
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, 0).(*tokenManager)
	base := time.Now()
	m.now = func() time.Time { return base.Add(-2 * time.Hour) }
	token, err := m.GenerateAccessToken(testUser())
	require.NoError(t, err)

	m.now = func() time.Time { return base }
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", 0, 0).GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = NewTokenManager("two", 0, 0).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "sara", claims.Username)
}

func TestParseUnverified_Garbage(t *testing.T) {
	_, err := ParseUnverified("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
