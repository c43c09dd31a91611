package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// AccessTokenPayload captures the identity the upstream auth service vouches for.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     enums.UserRole
	JTI      string
}

// AccessTokenClaims is the JWT shape shared with the identity service.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	TenantID uuid.UUID      `json:"tenant_id"`
	Role     enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
