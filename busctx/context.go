// Package busctx carries per-call bus options through a context.
package busctx

import "context"

type ctxIndex int

const ctxIndexTrace ctxIndex = iota

// IsTrace reports whether every protocol step of a transaction should be logged.
func IsTrace(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexTrace).(bool)
	return ok && val
}

func SetTrace(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexTrace, value)
}
