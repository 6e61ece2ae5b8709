package tenant

import (
	"context"

	"github.com/ariefcatur/optica-engine/internal/apperr"
)

// Context is the explicit tenant scope passed to every core operation.
type Context struct {
	StoreID string
	OwnerID string
	UserID  string
	Role    string
}

const RoleAdmin = "admin"

func (c Context) IsAdmin() bool { return c.Role == RoleAdmin }

// RequireStore fails when the request carries no active store.
func (c Context) RequireStore() error {
	fields := map[string]string{}
	if c.StoreID == "" {
		fields["storeId"] = "missing store context"
	}
	if c.OwnerID == "" {
		fields["ownerId"] = "missing owner context"
	}
	if len(fields) > 0 {
		return apperr.Validation("missing store context", fields)
	}
	return nil
}

type ctxKey struct{}

func With(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func From(ctx context.Context) Context {
	c, _ := ctx.Value(ctxKey{}).(Context)
	return c
}
