// Package auth carries the authenticated principal through request
// contexts and issues the twin server's access tokens.
package auth

import "context"

type contextKey struct{}

type Principal struct {
	UserID string
	Email  string
	Admin  bool
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func UserID(ctx context.Context) string {
	p, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return p.UserID
}

func IsAdmin(ctx context.Context) bool {
	p, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return p.Admin
}

// CanAccess reports whether the principal in ctx may act on userID's data.
func CanAccess(ctx context.Context, userID string) bool {
	p, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return p.Admin || p.UserID == userID
}
