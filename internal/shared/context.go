package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor id in context. The ledger
// records the actor on every voucher for audit; it never authenticates.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the actor id, returning 0 when absent.
func ActorFromContext(ctx context.Context) int64 {
	actor, _ := ctx.Value(actorContextKey{}).(int64)
	return actor
}
