package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// InfoCache keeps the details of recently opened plugins so the preset menu
// does not re-run lv2info on every click.
type InfoCache struct {
	source Source
	cache  *lru.Cache[string, *Info]

	hits   atomic.Int64
	misses atomic.Int64
}

func NewInfoCache(source Source, size int) (*InfoCache, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, *Info](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create info cache: %w", err)
	}
	return &InfoCache{source: source, cache: cache}, nil
}

func (c *InfoCache) Plugins(ctx context.Context) ([]Plugin, error) {
	return c.source.Plugins(ctx)
}

func (c *InfoCache) Info(ctx context.Context, uri string) (*Info, error) {
	if info, ok := c.cache.Get(uri); ok {
		c.hits.Add(1)
		return info, nil
	}
	c.misses.Add(1)

	info, err := c.source.Info(ctx, uri)
	if err != nil {
		return nil, err
	}
	c.cache.Add(uri, info)
	log.Debugf("[CATALOG] Cached info for %s (%d presets)", uri, len(info.Presets))
	return info, nil
}

// Purge drops every cached entry, e.g. after the plugin list is refreshed.
func (c *InfoCache) Purge() {
	c.cache.Purge()
}

func (c *InfoCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
