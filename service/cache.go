// file: service/cache.go

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICacheClient defines the contract for a cache client.
// This abstraction decouples the services from a concrete Redis
// implementation, enabling easier testing and future flexibility.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const accountsCacheTTL = 10 * time.Minute

func ownerAccountsCacheKey(ownerID int) string {
	return fmt.Sprintf("accounts:%d", ownerID)
}

// invalidateAccountsCache drops the cached account listing for an owner.
// Called after account creation and after every committed balance mutation,
// so a cached listing never survives a write that changes it.
func invalidateAccountsCache(ctx context.Context, cache ICacheClient, ownerID int) {
	if cache == nil {
		return
	}
	cache.Del(ctx, ownerAccountsCacheKey(ownerID))
}
