package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting administrator's user ID in context.
// The ID arrives from the authentication layer, which is outside this
// service; handlers read it from the X-Actor-Id header.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user's ID from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}
