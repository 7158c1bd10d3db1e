package gate

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedResolver wraps a ProfileResolver with an expiring LRU cache.
// Profile changes must call Invalidate or InvalidateAll.
type CachedResolver struct {
	inner ProfileResolver
	cache *expirable.LRU[uint, cachedProfile]
}

// cachedProfile lets "no profile" be cached like any other result.
type cachedProfile struct {
	profile Profile
}

// NewCachedResolver keeps at most size entries for ttl each.
func NewCachedResolver(inner ProfileResolver, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: expirable.NewLRU[uint, cachedProfile](size, nil, ttl),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID uint) (Profile, error) {
	if entry, ok := r.cache.Get(userID); ok {
		return entry.profile, nil
	}
	profile, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(userID, cachedProfile{profile: profile})
	return profile, nil
}

// Invalidate drops the cached profile of one user.
func (r *CachedResolver) Invalidate(userID uint) {
	r.cache.Remove(userID)
}

// InvalidateAll empties the cache.
func (r *CachedResolver) InvalidateAll() {
	r.cache.Purge()
}

// Authorize checks that userID's profile grants action on resourceType.
func Authorize(ctx context.Context, resolver ProfileResolver, userID uint, resourceType string, action Action) error {
	if userID == 0 {
		return ErrUnauthorized
	}
	profile, err := resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrForbidden
	}
	return nil
}
