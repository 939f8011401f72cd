package modbusrelay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// coilBank serves a fixed number of coils and records every write.
type coilBank struct {
	mu     sync.Mutex
	coils  []bool
	writes []string
}

func (b *coilBank) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(req.Addr)+int(req.Quantity) > len(b.coils) {
		return nil, modbus.ErrIllegalDataAddress
	}
	if req.IsWrite {
		for i, v := range req.Args {
			b.coils[int(req.Addr)+i] = v
			b.writes = append(b.writes, fmt.Sprintf("%d=%v", int(req.Addr)+i, v))
		}
		return nil, nil
	}
	res := make([]bool, req.Quantity)
	copy(res, b.coils[req.Addr:int(req.Addr)+int(req.Quantity)])
	return res, nil
}

func (b *coilBank) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *coilBank) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *coilBank) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func freePort(t *testing.T) uint {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint(port)
}

func startServer(t *testing.T, bank *coilBank) uint {
	port := freePort(t)
	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://127.0.0.1:%d", port),
		Timeout:    10 * time.Second,
		MaxClients: 2,
	}, bank)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return port
}

func newTestRelay(t *testing.T, port uint, outlets int) *CoilRelay {
	relay, err := NewCoilRelay(CoilRelayConfig{
		Host:        "127.0.0.1",
		Port:        port,
		UnitId:      1,
		OutletCount: outlets,
		Timeout:     time.Second,
		CycleTime:   time.Second,
	}, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { relay.Close() })
	return relay
}

func TestQueryAll(t *testing.T) {

	assert := assert.New(t)

	bank := &coilBank{coils: []bool{true, false, true, false}}
	relay := newTestRelay(t, startServer(t, bank), 4)

	require.NoError(t, relay.Verify())
	snapshot, err := relay.QueryAll()
	require.NoError(t, err)

	require.Len(t, snapshot, 4)
	assert.Equal(domain.OutletState{Index: 1, State: domain.PowerOn}, snapshot[0])
	assert.Equal(domain.PowerOff, snapshot[1].State)
	assert.False(snapshot[2].HasLabel())
	assert.Equal("3", snapshot[2].DisplayLabel())
}

func TestSetOutlet(t *testing.T) {

	assert := assert.New(t)

	bank := &coilBank{coils: make([]bool, 8)}
	relay := newTestRelay(t, startServer(t, bank), 8)

	require.NoError(t, relay.SetOutlet(3, true))
	snapshot, err := relay.QueryAll()
	require.NoError(t, err)
	assert.True(snapshot[2].IsOn())

	require.NoError(t, relay.SetOutlet(3, false))
	assert.Equal([]string{"2=true", "2=false"}, bank.writes)
}

func TestCycleOutlet(t *testing.T) {

	assert := assert.New(t)

	bank := &coilBank{coils: []bool{true, true}}
	relay := newTestRelay(t, startServer(t, bank), 2)

	var slept time.Duration
	relay.sleep = func(d time.Duration) {
		slept = d
		bank.mu.Lock()
		defer bank.mu.Unlock()
		assert.False(bank.coils[1], "coil is off during the cycle delay")
	}

	require.NoError(t, relay.CycleOutlet(2))
	assert.Equal(time.Second, slept)
	assert.Equal([]string{"1=false", "1=true"}, bank.writes)
	assert.True(bank.coils[1])
}

func TestInvalidOutlet(t *testing.T) {

	bank := &coilBank{coils: make([]bool, 2)}
	relay := newTestRelay(t, startServer(t, bank), 2)

	for _, index := range []int{0, 3, -1} {
		assert.True(t, errors.Is(relay.SetOutlet(index, true), domain.ErrInvalidOutlet), "index %d", index)
		assert.True(t, errors.Is(relay.CycleOutlet(index), domain.ErrInvalidOutlet), "index %d", index)
	}
	assert.Empty(t, bank.writes)
}

func TestUnreachable(t *testing.T) {

	relay := newTestRelay(t, freePort(t), 2)

	err := relay.Verify()
	assert.True(t, errors.Is(err, domain.ErrConnectivity))

	_, err = relay.QueryAll()
	assert.True(t, errors.Is(err, domain.ErrCommunication))
}

func TestNewCoilRelayRejectsNoOutlets(t *testing.T) {
	_, err := NewCoilRelay(CoilRelayConfig{Host: "127.0.0.1", Port: 502}, zap.NewNop(), nil)
	assert.Error(t, err)
}
