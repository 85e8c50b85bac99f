// Package catalog keeps the booking service's local copy of services, professionals and
// blocked time in sync with the catalog and scheduling events, and caches lookups.
package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 30 * time.Second
)

// Cache is a read-through LRU in front of a booking.Catalog. Misses and errors are not cached.
// Entries expire after the TTL, which bounds staleness on replicas that did not consume an update.
type Cache struct {
	next          booking.Catalog
	services      *expirable.LRU[string, model.Service]
	professionals *expirable.LRU[string, model.Professional]
}

func NewCache(next booking.Catalog, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		next:          next,
		services:      expirable.NewLRU[string, model.Service](size, nil, ttl),
		professionals: expirable.NewLRU[string, model.Professional](size, nil, ttl),
	}
}

func (c *Cache) ServiceByID(ctx context.Context, id string) (model.Service, error) {
	if svc, ok := c.services.Get(id); ok {
		return svc, nil
	}
	svc, err := c.next.ServiceByID(ctx, id)
	if err != nil {
		return model.Service{}, err
	}
	c.services.Add(id, svc)
	return svc, nil
}

func (c *Cache) ProfessionalByID(ctx context.Context, id string) (model.Professional, error) {
	if p, ok := c.professionals.Get(id); ok {
		return p, nil
	}
	p, err := c.next.ProfessionalByID(ctx, id)
	if err != nil {
		return model.Professional{}, err
	}
	c.professionals.Add(id, p)
	return p, nil
}

func (c *Cache) InvalidateService(id string) {
	c.services.Remove(id)
}

func (c *Cache) InvalidateProfessional(id string) {
	c.professionals.Remove(id)
}
