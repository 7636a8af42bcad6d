package common

import "context"

type ctxKey string

const (
	guardianIDKey ctxKey = "auth/guardian-id"
	rolesKey      ctxKey = "auth/roles"
)

// WithGuardianID stores the authenticated guardian identifier on the provided context.
func WithGuardianID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, guardianIDKey, id)
}

// GuardianID extracts the authenticated guardian identifier from the context if present.
func GuardianID(ctx context.Context) (string, bool) {
	v := ctx.Value(guardianIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithRoles stores the authenticated guardian's roles on the provided context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

// HasRole reports whether the context carries the given role.
func HasRole(ctx context.Context, role string) bool {
	v := ctx.Value(rolesKey)
	if v == nil {
		return false
	}
	roles, ok := v.([]string)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
