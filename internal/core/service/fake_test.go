package service

import (
	"sync"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeRelay keeps outlet states in memory. QueryAll blocks on gate when set.
type fakeRelay struct {
	mu         sync.Mutex
	labels     []string
	states     []bool
	queries    int
	queryErr   error
	verifyErr  error
	gate       chan struct{}
	inQuery    chan struct{}
	concurrent int
	maxConc    int
}

func newFakeRelay(labels ...string) *fakeRelay {
	return &fakeRelay{
		labels: labels,
		states: make([]bool, len(labels)),
	}
}

func (f *fakeRelay) Hostname() string {
	return "relay.lan"
}

func (f *fakeRelay) Verify() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyErr
}

func (f *fakeRelay) QueryAll() (domain.StatusSnapshot, error) {
	f.mu.Lock()
	f.queries++
	f.concurrent++
	if f.concurrent > f.maxConc {
		f.maxConc = f.concurrent
	}
	gate, inQuery := f.gate, f.inQuery
	f.mu.Unlock()

	if inQuery != nil {
		inQuery <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.concurrent--
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	snapshot := make(domain.StatusSnapshot, len(f.labels))
	for i := range f.labels {
		snapshot[i] = domain.OutletState{
			Index: i + 1,
			Label: f.labels[i],
			State: domain.PowerStateFromBool(f.states[i]),
		}
	}
	return snapshot, nil
}

func (f *fakeRelay) SetOutlet(index int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 1 || index > len(f.states) {
		return domain.InvalidOutletError(index, len(f.states))
	}
	f.states[index-1] = on
	return nil
}

func (f *fakeRelay) CycleOutlet(index int) error {
	return f.SetOutlet(index, true)
}

func (f *fakeRelay) Close() error {
	return nil
}

func (f *fakeRelay) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) Hostname() string {
	return m.Called().String(0)
}

func (m *mockRelay) Verify() error {
	return m.Called().Error(0)
}

func (m *mockRelay) QueryAll() (domain.StatusSnapshot, error) {
	args := m.Called()
	snapshot, _ := args.Get(0).(domain.StatusSnapshot)
	return snapshot, args.Error(1)
}

func (m *mockRelay) SetOutlet(index int, on bool) error {
	return m.Called(index, on).Error(0)
}

func (m *mockRelay) CycleOutlet(index int) error {
	return m.Called(index).Error(0)
}

func (m *mockRelay) Close() error {
	return m.Called().Error(0)
}
