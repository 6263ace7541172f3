package book

import "context"

type freshLookupKey struct{}

// WithFreshLookup marks ctx so enrichers query their source directly and
// replace any cached answer instead of serving it.
func WithFreshLookup(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshLookupKey{}, true)
}

// IsFreshLookup reports whether ctx was marked by WithFreshLookup.
func IsFreshLookup(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshLookupKey{}).(bool)
	return fresh
}
