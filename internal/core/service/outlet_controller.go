package service

import (
	"sync"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"
)

// OutletController reads one outlet out of the shared cache and commands it
// directly on the unit. A command is not reflected by GetState until the
// cache is allowed to query again.
type OutletController struct {
	index  int
	client port.RelayClient
	cache  port.StatusCache

	mu   sync.RWMutex
	last domain.OutletState
}

func NewOutletController(initial domain.OutletState, client port.RelayClient, cache port.StatusCache) *OutletController {
	return &OutletController{
		index:  initial.Index,
		client: client,
		cache:  cache,
		last:   initial,
	}
}

func (c *OutletController) Index() int {
	return c.index
}

// GetState refreshes through the cache. A stale snapshot still updates the
// last known state and its error is returned alongside.
func (c *OutletController) GetState() (domain.OutletState, error) {
	snapshot, err := c.cache.Refresh()
	if snapshot == nil {
		return c.Last(), err
	}
	state, ok := snapshot.Outlet(c.index)
	if !ok {
		return c.Last(), domain.InvalidOutletError(c.index, len(snapshot))
	}
	c.mu.Lock()
	c.last = state
	c.mu.Unlock()
	return state, err
}

func (c *OutletController) SetState(on bool) error {
	return c.client.SetOutlet(c.index, on)
}

func (c *OutletController) Cycle() error {
	return c.client.CycleOutlet(c.index)
}

// Last is the state seen by the latest GetState, without any device call.
func (c *OutletController) Last() domain.OutletState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
