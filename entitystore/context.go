package entitystore

import "context"

type bypassCacheContextKey struct{}

// WithoutCache marks ctx so hydration skips the cache read and loads from
// storage. The fresh snapshot is still written back to the cache.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassCacheContextKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	bypass, _ := ctx.Value(bypassCacheContextKey{}).(bool)
	return bypass
}
