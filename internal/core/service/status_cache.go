package service

import (
	"sync"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ThrottledStatusCache shares one outlet table between all outlets of a relay
// unit. QueryAll is called at most once per minInterval and never twice
// concurrently. Failed queries count against the interval too.
type ThrottledStatusCache struct {
	client      port.RelayClient
	minInterval time.Duration
	logger      *zap.Logger
	now         func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  domain.StatusSnapshot
	fetchedAt time.Time
	failedAt  time.Time
	failure   error
}

func NewThrottledStatusCache(client port.RelayClient, minInterval time.Duration, logger *zap.Logger) *ThrottledStatusCache {
	return &ThrottledStatusCache{
		client:      client,
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// Refresh returns the cached snapshot while it is younger than minInterval,
// otherwise queries the unit. A failed query keeps the previous snapshot and
// returns it with a *domain.StaleSnapshotError. When there is no previous
// snapshot the query error is returned as is. Until minInterval has passed
// since a failure, callers get the same answer without a new query.
func (c *ThrottledStatusCache) Refresh() (domain.StatusSnapshot, error) {
	if snapshot, ok, err := c.fresh(); ok {
		return snapshot, err
	}
	v, err, shared := c.group.Do("query", func() (interface{}, error) {
		// a flight that just finished may have refreshed it
		if snapshot, ok, err := c.fresh(); ok {
			return snapshot, err
		}
		return c.query()
	})
	if shared {
		c.logger.Debug("status_cache: shared in-flight query")
	}
	snapshot, _ := v.(domain.StatusSnapshot)
	return snapshot, err
}

// Snapshot returns the last good snapshot without querying.
func (c *ThrottledStatusCache) Snapshot() (domain.StatusSnapshot, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.fetchedAt
}

// fresh answers from memory while the latest query attempt, good or failed,
// is younger than minInterval.
func (c *ThrottledStatusCache) fresh() (domain.StatusSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	if !c.failedAt.IsZero() {
		if now.Sub(c.failedAt) >= c.minInterval {
			return nil, false, nil
		}
		return c.staleLocked(c.failure)
	}
	if c.fetchedAt.IsZero() || now.Sub(c.fetchedAt) >= c.minInterval {
		return nil, false, nil
	}
	return c.snapshot, true, nil
}

func (c *ThrottledStatusCache) staleLocked(err error) (domain.StatusSnapshot, bool, error) {
	if c.fetchedAt.IsZero() {
		return nil, true, err
	}
	return c.snapshot, true, &domain.StaleSnapshotError{Err: err, FetchedAt: c.fetchedAt}
}

func (c *ThrottledStatusCache) query() (domain.StatusSnapshot, error) {
	snapshot, err := c.client.QueryAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failedAt = c.now()
		c.failure = err
		if !c.fetchedAt.IsZero() {
			c.logger.Warn("status_cache: query failed, keeping previous snapshot",
				zap.Time("fetched_at", c.fetchedAt), zap.Error(err))
		}
		snapshot, _, err := c.staleLocked(err)
		return snapshot, err
	}
	c.snapshot = snapshot
	c.fetchedAt = c.now()
	c.failedAt = time.Time{}
	c.failure = nil
	return snapshot, nil
}

// ensure interface compliance
var _ port.StatusCache = (*ThrottledStatusCache)(nil)
