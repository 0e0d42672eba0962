package warehouse_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	warehouse "github.com/goliatone/go-warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTokenUser = warehouse.TokenUser{
	Email: "picker@example.com",
	UID:   "8a2e9f7c-1a24-4a8e-9e57-2c9f5a3d1b11",
	Role:  "user",
}

func newTestTokenService() warehouse.TokenService {
	return warehouse.NewTokenService([]byte("test-signing-key"), time.Hour, 48*time.Hour, nil)
}

func TestTokenService_IssueAndDecode(t *testing.T) {
	service := newTestTokenService()

	raw, err := service.Issue(testTokenUser, warehouse.TokenKindAccess, 0)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := service.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, warehouse.TokenKindAccess, claims.Kind())
	assert.False(t, claims.IsRefresh())
	assert.Equal(t, testTokenUser.Email, claims.Email())
	assert.Equal(t, testTokenUser.UID, claims.UserID())
	assert.Equal(t, warehouse.RoleUser, claims.Role())
	assert.NotEmpty(t, claims.TokenID())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expires(), time.Minute)
}

func TestTokenService_RefreshTokensCarryNoRole(t *testing.T) {
	service := newTestTokenService()

	raw, err := service.Issue(testTokenUser, warehouse.TokenKindRefresh, 0)
	require.NoError(t, err)

	claims, err := service.Decode(raw)
	require.NoError(t, err)

	assert.True(t, claims.IsRefresh())
	assert.Equal(t, warehouse.TokenKindRefresh, claims.Kind())
	assert.Empty(t, string(claims.Role()))
	assert.Equal(t, testTokenUser.Email, claims.Email())
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenService_UniqueTokenIDs(t *testing.T) {
	service := newTestTokenService()

	first, err := service.Issue(testTokenUser, warehouse.TokenKindAccess, 0)
	require.NoError(t, err)
	second, err := service.Issue(testTokenUser, warehouse.TokenKindAccess, 0)
	require.NoError(t, err)

	firstClaims, err := service.Decode(first)
	require.NoError(t, err)
	secondClaims, err := service.Decode(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.TokenID(), secondClaims.TokenID())
}

func TestTokenService_DecodeRejectsWrongKey(t *testing.T) {
	service := newTestTokenService()
	other := warehouse.NewTokenService([]byte("a-different-key"), time.Hour, 48*time.Hour, nil)

	raw, err := other.Issue(testTokenUser, warehouse.TokenKindAccess, 0)
	require.NoError(t, err)

	_, err = service.Decode(raw)
	assert.Error(t, err)
}

func TestTokenService_DecodeRejectsGarbage(t *testing.T) {
	service := newTestTokenService()

	_, err := service.Decode("not-a-token")
	assert.Error(t, err)
}

func TestTokenService_DecodeRejectsExpired(t *testing.T) {
	service := newTestTokenService()

	raw, err := service.Issue(testTokenUser, warehouse.TokenKindAccess, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = service.Decode(raw)
	require.Error(t, err)
	assert.Equal(t, warehouse.ErrTokenExpired, err)
}

func TestTokenService_DecodeRejectsUnexpectedAlg(t *testing.T) {
	service := newTestTokenService()

	// Unsigned token with alg=none must never validate
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &warehouse.TokenClaims{
		User: testTokenUser,
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.Decode(raw)
	assert.Error(t, err)
}
