package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bullion-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
)

type identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     string
}

func identityFromRequest(r *http.Request) (identity, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	rawTenant := middleware.TenantIDFromContext(r.Context())
	if rawUser == "" || rawTenant == "" {
		return identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil {
		return identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid tenant id")
	}
	return identity{UserID: userID, TenantID: tenantID, Role: middleware.RoleFromContext(r.Context())}, nil
}
