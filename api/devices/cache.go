package devices

import (
	"context"
	"sync"
	"time"

	"github.com/jd-116/pushnotifier/types"
)

// Cache is a Lister that serves the last device list
// from its source until it is older than the TTL
type Cache struct {
	sync.Mutex
	source   Lister
	ttl      time.Duration
	now      func() time.Time
	loaded   bool
	loadedAt time.Time
	devices  []types.Device
}

// NewCache wraps the source lister
func NewCache(source Lister, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetDevices returns the cached list, reloading it from the source when stale.
// Failed loads are not cached
func (c *Cache) GetDevices(ctx context.Context) ([]types.Device, error) {
	c.Lock()
	defer c.Unlock()

	now := c.now()
	if !c.loaded || now.Sub(c.loadedAt) >= c.ttl {
		devices, err := c.source.GetDevices(ctx)
		if err != nil {
			return nil, err
		}

		c.loaded = true
		c.loadedAt = now
		c.devices = devices
	}

	// Callers filter the slice they get back
	devices := make([]types.Device, len(c.devices))
	copy(devices, c.devices)
	return devices, nil
}

// Invalidate drops the cached list so the next call reloads it
func (c *Cache) Invalidate() {
	c.Lock()
	defer c.Unlock()
	c.loaded = false
	c.devices = nil
}
