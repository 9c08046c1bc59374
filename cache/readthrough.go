// Package cache fronts expensive listing queries with a process-local tier
// and a shared tier.
package cache

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
)

const (
	DefaultSharedTTL = 10 * time.Minute
	DefaultJitter    = 3 * time.Minute
)

// Loader computes the value of a missing entry.
type Loader func(ctx context.Context) ([]byte, error)

// Broadcaster tells other instances to drop a namespace from their local tier.
type Broadcaster interface {
	Broadcast(ctx context.Context, namespace string) error
}

type Options struct {
	// SharedTTL is the base expiry of shared entries, randomized by ±Jitter.
	SharedTTL   time.Duration
	Jitter      time.Duration
	Broadcaster Broadcaster
	Scope       tally.Scope
}

// ReadThrough caches the results of one namespace of queries. Concurrent
// misses on a key may each run the loader; the last write wins.
type ReadThrough struct {
	namespace string
	local     *LocalCache
	shared    SharedStore

	sharedTTL   time.Duration
	jitter      time.Duration
	broadcaster Broadcaster
	scope       tally.Scope
}

// NewReadThrough returns a cache for namespace. Either tier may be nil.
func NewReadThrough(namespace string, local *LocalCache, shared SharedStore, opts Options) *ReadThrough {
	if opts.SharedTTL <= 0 {
		opts.SharedTTL = DefaultSharedTTL
	}
	if opts.Jitter < 0 || opts.Jitter >= opts.SharedTTL {
		opts.Jitter = 0
	}
	// local entries must expire strictly before the shortest shared expiry
	if local != nil {
		if margin := opts.SharedTTL - local.TTL(); opts.Jitter >= margin {
			narrowed := max(margin/2, 0)
			log.Warn("narrow shared cache jitter", log.SourceCache,
				zap.String("namespace", namespace),
				zap.Duration("jitter", opts.Jitter),
				zap.Duration("narrowed", narrowed))
			opts.Jitter = narrowed
		}
	}
	if opts.Scope == nil {
		opts.Scope = tally.NoopScope
	}

	return &ReadThrough{
		namespace:   namespace,
		local:       local,
		shared:      shared,
		sharedTTL:   opts.SharedTTL,
		jitter:      opts.Jitter,
		broadcaster: opts.Broadcaster,
		scope:       opts.Scope.SubScope("cache").Tagged(map[string]string{"namespace": namespace}),
	}
}

func (c *ReadThrough) Namespace() string {
	return c.namespace
}

// Get returns the cached value for params, calling load and filling both
// tiers on a miss. A hit in the shared tier is copied into the local tier.
func (c *ReadThrough) Get(ctx context.Context, params interface{}, load Loader) ([]byte, error) {
	key, err := Key(c.namespace, params)
	if err != nil {
		return nil, err
	}

	if c.local != nil {
		if data, ok := c.local.Get(key); ok {
			c.hit("local")
			return data, nil
		}
	}

	if c.shared != nil {
		data, ok, err := c.shared.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("fail to read shared cache", log.SourceCache, zap.String("key", key), zap.Error(err))
		case ok:
			c.hit("shared")
			if c.local != nil {
				c.local.Set(key, data)
			}
			return data, nil
		}
	}

	c.scope.Counter("miss").Inc(1)

	data, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if c.local != nil {
		c.local.Set(key, data)
	}
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, data, c.ttl()); err != nil {
			log.Warn("failed to save cache data", log.SourceCache, zap.String("key", key), zap.Error(err))
		}
	}

	return data, nil
}

// InvalidateAll removes every key of the namespace from both tiers and asks
// other instances to drop their local copies.
func (c *ReadThrough) InvalidateAll(ctx context.Context) error {
	prefix := c.namespace + ":"

	localRemoved := 0
	if c.local != nil {
		localRemoved = c.local.RemovePrefix(prefix)
	}

	sharedRemoved := 0
	if c.shared != nil {
		n, err := c.shared.DeleteByPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		sharedRemoved = n
	}

	if c.broadcaster != nil {
		if err := c.broadcaster.Broadcast(ctx, c.namespace); err != nil {
			log.Warn("fail to broadcast cache invalidation", log.SourceCache,
				zap.String("namespace", c.namespace), zap.Error(err))
		}
	}

	c.scope.Counter("invalidate").Inc(1)
	log.Debug("cache invalidated", log.SourceCache,
		zap.String("namespace", c.namespace),
		zap.Int("local", localRemoved),
		zap.Int("shared", sharedRemoved))

	return nil
}

func (c *ReadThrough) hit(tier string) {
	c.scope.Tagged(map[string]string{"tier": tier}).Counter("hit").Inc(1)
}

// ttl spreads expiries over [SharedTTL-Jitter, SharedTTL+Jitter].
func (c *ReadThrough) ttl() time.Duration {
	if c.jitter == 0 {
		return c.sharedTTL
	}
	return c.sharedTTL - c.jitter + rand.N(2*c.jitter+1)
}
