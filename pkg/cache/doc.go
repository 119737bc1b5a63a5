// Package cache provides an optional Redis-backed cache for Jira GET
// responses.
//
// Jira does not send cache-control metadata on API v2 responses, so
// entries use a fixed, configurable TTL. Caching is most useful for
// search pages when the same projects are scraped repeatedly in short
// succession (development, recovery after a crash before the first
// periodic state save).
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	key := cache.Key{
//		Endpoint:    "/rest/api/2/search",
//		QueryParams: url.Values{"jql": []string{"project = KAFKA"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from Jira, then manager.Set(ctx, key, entry)
//	}
package cache
