package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bullion-backend/pkg/config"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "bullion-identity"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	payload := AccessTokenPayload{UserID: uuid.New(), TenantID: uuid.New(), Role: enums.UserRoleAdmin}

	token, err := MintAccessToken(testJWT, now, 30*time.Minute, payload)
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, payload.UserID, claims.UserID)
	assert.Equal(t, payload.TenantID, claims.TenantID)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.Equal(t, testJWT.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), TenantID: uuid.New(), Role: enums.UserRoleCustomer}
	token, err := MintAccessToken(testJWT, time.Now(), time.Minute, payload)
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: testJWT.Issuer}, token)
	require.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}, token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), TenantID: uuid.New(), Role: enums.UserRoleCustomer}
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, payload)
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseAccessTokenRequiresTenant(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.UserRoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.Error(t, err)
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(testJWT, time.Now(), time.Minute, AccessTokenPayload{UserID: uuid.New(), TenantID: uuid.New(), Role: "OWNER"})
	require.Error(t, err)

	_, err = MintAccessToken(testJWT, time.Now(), 0, AccessTokenPayload{UserID: uuid.New(), TenantID: uuid.New(), Role: enums.UserRoleAdmin})
	require.Error(t, err)
}
