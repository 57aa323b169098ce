package state

import (
	"context"
)

const (
	CurrentOrgId  = "CurrentOrgId"
	CurrentUserIP = "CurrentIP"
	AuthKind      = "AuthKind"
)

// Auth kinds set by the middleware for the current request.
const (
	AuthKindUser     = "user"
	AuthKindClient   = "client"
	AuthKindInstance = "instance"
)

// CurrentOrg returns the current organization's ID as uint from the context.
func CurrentOrg(ctx context.Context) uint {
	value := ctx.Value(CurrentOrgId)
	if value == nil {
		return 0
	}

	orgID, ok := value.(uint)
	if !ok {
		return 0
	}

	return orgID
}

func SetCurrentOrg(ctx context.Context, orgID uint) context.Context {
	return context.WithValue(ctx, CurrentOrgId, orgID)
}
