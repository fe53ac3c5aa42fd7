// Package cache provides a generic in-memory LRU cache with optional idle
// expiry. The paywall keeps its open screens in one, keyed by screen id.
//
//	screens := cache.NewLRUCache[string, *Screen](10000,
//		cache.WithIdleTTL[string, *Screen](30*time.Minute),
//		cache.WithEvictCallback(func(_ string, s *Screen) { s.close() }),
//	)
package cache
