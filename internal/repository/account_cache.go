package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	domrepo "github.com/OSINTfan/sso-1/internal/domain/repository"
	"github.com/OSINTfan/sso-1/internal/domain/schema"
	pkgcache "github.com/OSINTfan/sso-1/pkg/cache"
)

// EncodedAccountCache keeps the latest encoded account per key for the read
// path, on any cache backend (memory, Redis, or layered). Values are the
// 304-byte canonical encoding, hex-armored because the cache layer stores
// strings.
type EncodedAccountCache struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewEncodedAccountCache(cache pkgcache.Service, ttl time.Duration) *EncodedAccountCache {
	return &EncodedAccountCache{cache: cache, ttl: ttl}
}

func cacheKey(key schema.Digest) string {
	return pkgcache.GenerateKey("acct", key.String())
}

func (c *EncodedAccountCache) Put(ctx context.Context, key schema.Digest, encoded []byte) error {
	return c.cache.Set(ctx, cacheKey(key), hex.EncodeToString(encoded), c.ttl)
}

func (c *EncodedAccountCache) Get(ctx context.Context, key schema.Digest) ([]byte, error) {
	var armored string
	if err := c.cache.Get(ctx, cacheKey(key), &armored); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, domrepo.ErrCacheMiss
		}
		return nil, err
	}
	raw, err := hex.DecodeString(armored)
	if err != nil {
		return nil, fmt.Errorf("corrupt cached account: %w", err)
	}
	return raw, nil
}

func (c *EncodedAccountCache) Invalidate(ctx context.Context, key schema.Digest) error {
	return c.cache.Delete(ctx, cacheKey(key))
}
