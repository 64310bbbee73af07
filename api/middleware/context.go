package middleware

import "context"

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxAccessID  contextKey = "access_id"
	ctxCartOwner contextKey = "cart_owner"
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxUserID) }

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, ctxRole) }

// AccessIDFromContext returns the session id (jti) of the presented token.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxAccessID) }

// CartOwnerFromContext returns the cart key resolved by CartOwner: the user id
// for signed-in shoppers, the X-Cart-Id value for guests.
func CartOwnerFromContext(ctx context.Context) string { return stringValue(ctx, ctxCartOwner) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, ctxRole, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withString(ctx, ctxAccessID, accessID)
}

func WithCartOwner(ctx context.Context, owner string) context.Context {
	return withString(ctx, ctxCartOwner, owner)
}
