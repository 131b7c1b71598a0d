package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
)

// Closer is implemented by values that hold timers or goroutines.
type Closer interface {
	Close()
}

type entry[V Closer] struct {
	value    V
	lastSeen time.Time
}

// SessionCache keeps per-browser values keyed by session id and evicts
// those idle for longer than the TTL.
type SessionCache[V Closer] struct {
	mu      sync.RWMutex
	cache   map[string]*entry[V]
	factory func(id string) V
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewSessionCache[V Closer](factory func(id string) V, ttl time.Duration, logger *zap.Logger) *SessionCache[V] {
	return &SessionCache[V]{
		cache:   make(map[string]*entry[V]),
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *SessionCache[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.cache[id]
	if !found {
		var zero V
		return zero, false
	}
	e.lastSeen = c.now()
	return e.value, true
}

// GetOrCreate returns the value for id, building it on first use. The
// second result reports whether it was created.
func (c *SessionCache[V]) GetOrCreate(id string) (V, bool) {
	if v, ok := c.Get(id); ok {
		return v, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, found := c.cache[id]; found {
		e.lastSeen = c.now()
		return e.value, false
	}

	v := c.factory(id)
	c.cache[id] = &entry[V]{value: v, lastSeen: c.now()}
	metrics.ActiveSessions.Set(float64(len(c.cache)))
	c.logger.Debug("session created", zap.String("session", id))
	return v, true
}

func (c *SessionCache[V]) Delete(id string) {
	c.mu.Lock()
	e, found := c.cache[id]
	if found {
		delete(c.cache, id)
		metrics.ActiveSessions.Set(float64(len(c.cache)))
	}
	c.mu.Unlock()

	if found {
		e.value.Close()
		c.logger.Debug("session deleted", zap.String("session", id))
	}
}

// EvictIdle closes and removes values not seen within the TTL.
func (c *SessionCache[V]) EvictIdle() int {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	var evicted []V
	for id, e := range c.cache {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.value)
			delete(c.cache, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(c.cache)))
	c.mu.Unlock()

	for _, v := range evicted {
		v.Close()
	}
	if len(evicted) > 0 {
		c.logger.Info("evicted idle sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (c *SessionCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Close closes every value and empties the cache.
func (c *SessionCache[V]) Close() {
	c.mu.Lock()
	values := make([]V, 0, len(c.cache))
	for id, e := range c.cache {
		values = append(values, e.value)
		delete(c.cache, id)
	}
	metrics.ActiveSessions.Set(0)
	c.mu.Unlock()

	for _, v := range values {
		v.Close()
	}
}
