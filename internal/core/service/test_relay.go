package service

import (
	"sync"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"
)

// TestRelayClient is an in-memory relay unit. Commands apply immediately.
type TestRelayClient struct {
	mu       sync.Mutex
	host     string
	labels   []string
	states   []domain.PowerState
	queryErr error
	cmdErr   error
	commands []string
}

func NewTestRelayClient(host string, labels ...string) *TestRelayClient {
	states := make([]domain.PowerState, len(labels))
	for i := range states {
		states[i] = domain.PowerOff
	}
	return &TestRelayClient{
		host:   host,
		labels: labels,
		states: states,
	}
}

func (c *TestRelayClient) Hostname() string {
	return c.host
}

func (c *TestRelayClient) Verify() error {
	_, err := c.QueryAll()
	return err
}

func (c *TestRelayClient) QueryAll() (domain.StatusSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	snapshot := make(domain.StatusSnapshot, len(c.labels))
	for i := range c.labels {
		snapshot[i] = domain.OutletState{Index: i + 1, Label: c.labels[i], State: c.states[i]}
	}
	return snapshot, nil
}

func (c *TestRelayClient) SetOutlet(index int, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 1 || index > len(c.states) {
		return domain.InvalidOutletError(index, len(c.states))
	}
	if c.cmdErr != nil {
		return c.cmdErr
	}
	c.states[index-1] = domain.PowerStateFromBool(on)
	c.commands = append(c.commands, domain.OutletObjectId(index)+"="+domain.PowerStateFromBool(on).String())
	return nil
}

func (c *TestRelayClient) CycleOutlet(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 1 || index > len(c.states) {
		return domain.InvalidOutletError(index, len(c.states))
	}
	if c.cmdErr != nil {
		return c.cmdErr
	}
	c.states[index-1] = domain.PowerOn
	c.commands = append(c.commands, domain.OutletObjectId(index)+"=CYCLE")
	return nil
}

func (c *TestRelayClient) Close() error {
	return nil
}

// SetState changes an outlet as if switched at the unit.
func (c *TestRelayClient) SetState(index int, state domain.PowerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[index-1] = state
}

func (c *TestRelayClient) SetQueryError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryErr = err
}

// SetCommandError makes every following command fail with err.
func (c *TestRelayClient) SetCommandError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmdErr = err
}

func (c *TestRelayClient) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// ensure interface compliance
var _ port.RelayClient = (*TestRelayClient)(nil)
