// Package auth carries the acting identity through request contexts.
package auth

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated identity a request runs as.
type Actor struct {
	Name string
	// CanViewSensitiveData permits reading unmasked sample data for
	// columns tagged as sensitive.
	CanViewSensitiveData bool
}

// ContextWithActor returns a new context that carries the acting identity.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the acting identity from the context, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok || actor.Name == "" {
		return Actor{}, false
	}
	return actor, true
}

// ActorName returns the acting identity's name, or "system" for unattributed
// internal calls.
func ActorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Name
	}
	return "system"
}
