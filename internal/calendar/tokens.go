package calendar

import (
	"time"

	"golang.org/x/oauth2"

	"usaha/internal/cache"
)

// TokenCache holds each owner's calendar access token for the length of a
// session. Tokens are never persisted.
type TokenCache struct {
	lru *cache.LRUCache[*oauth2.Token]
}

func NewTokenCache(maxOwners int, ttl time.Duration) *TokenCache {
	return &TokenCache{lru: cache.NewLRUCache[*oauth2.Token](maxOwners, ttl)}
}

// Put stores tok for owner until the token's own expiry, capped by the
// cache TTL.
func (c *TokenCache) Put(owner string, tok *oauth2.Token) {
	if tok == nil || tok.AccessToken == "" {
		c.Drop(owner)
		return
	}
	c.lru.SetUntil(owner, tok, tok.Expiry)
}

func (c *TokenCache) Get(owner string) (*oauth2.Token, bool) {
	return c.lru.Get(owner)
}

func (c *TokenCache) Drop(owner string) {
	c.lru.Delete(owner)
}

// Cleaner exposes the underlying cache to a cache.Manager sweep.
func (c *TokenCache) Cleaner() cache.Cleaner {
	return c.lru
}
