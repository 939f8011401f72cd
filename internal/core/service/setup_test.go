package service

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		Host:                     "relay.lan",
		Name:                     "DINRelay",
		Username:                 "admin",
		Password:                 "admin",
		Protocol:                 config.PROTOCOL_HTTP,
		TimeoutSeconds:           20,
		CycleSeconds:             2,
		MinRefreshIntervalMillis: 5000,
	}
}

func TestSetupOutlets(t *testing.T) {

	assert := assert.New(t)

	relay := newFakeRelay("Server", "", "Router")
	switches, err := SetupOutlets(testRelayConfig(), relay, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, switches, 3)

	assert.Equal("DINRelay_Server", switches[0].Name())
	assert.Equal("DINRelay_2", switches[1].Name(), "unnamed outlet uses its index")
	assert.Equal("relay.lan_3", switches[2].UniqueId())
	assert.Equal("outlet_3", switches[2].ObjectId())
	assert.True(switches[0].ShouldPoll())
	assert.Equal(domain.PowerOff, switches[0].State())
}

func TestSetupOutletsIgnoreUnnamed(t *testing.T) {

	cfg := testRelayConfig()
	cfg.IgnoreUnnamedOutlets = true

	for _, labels := range [][]string{
		{"a", "b", "c"},
		{"a", "", "c"},
		{"", "", ""},
		{"", "b"},
	} {
		unnamed := 0
		for _, l := range labels {
			if l == "" {
				unnamed++
			}
		}
		switches, err := SetupOutlets(cfg, newFakeRelay(labels...), zap.NewNop())
		require.NoError(t, err)
		assert.LessOrEqual(t, len(switches), len(labels))
		assert.Len(t, switches, len(labels)-unnamed, "labels %v", labels)
		for _, s := range switches {
			assert.NotEmpty(t, s.Label())
		}
	}
}

func TestSetupOutletsVerifyFailsClosed(t *testing.T) {

	client := &mockRelay{}
	client.On("Hostname").Return("relay.lan")
	client.On("Verify").Return(domain.ErrConnectivity)

	switches, err := SetupOutlets(testRelayConfig(), client, zap.NewNop())
	assert.Empty(t, switches)
	assert.True(t, errors.Is(err, domain.ErrConnectivity))
	client.AssertNotCalled(t, "QueryAll")
}

func TestSetupOutletsInitialQueryFails(t *testing.T) {

	relay := newFakeRelay("a")
	relay.queryErr = domain.ErrCommunication

	switches, err := SetupOutlets(testRelayConfig(), relay, zap.NewNop())
	assert.Empty(t, switches)
	assert.True(t, errors.Is(err, domain.ErrConnectivity))
}

func TestRelaySwitchFollowsRelabel(t *testing.T) {

	assert := assert.New(t)

	relay := newFakeRelay("old")
	cache, clock := newTestCache(relay)
	switches, err := setupOutlets(testRelayConfig(), relay, cache, zap.NewNop())
	require.NoError(t, err)
	sw := switches[0]
	assert.Equal("DINRelay_old", sw.Name())

	relay.mu.Lock()
	relay.labels[0] = "new"
	relay.mu.Unlock()
	clock.Advance(testMinInterval)

	require.NoError(t, sw.Refresh())
	assert.Equal("DINRelay_new", sw.Name())
	assert.Equal("relay.lan_1", sw.UniqueId(), "identity does not follow the label")
}

func TestRelaySwitchCommands(t *testing.T) {

	assert := assert.New(t)

	relay := newFakeRelay("a")
	cache, clock := newTestCache(relay)
	switches, err := setupOutlets(testRelayConfig(), relay, cache, zap.NewNop())
	require.NoError(t, err)
	sw := switches[0]

	require.NoError(t, sw.Execute(domain.OUTLET_COMMAND_ON))
	clock.Advance(testMinInterval)
	require.NoError(t, sw.Refresh())
	assert.True(sw.IsOn())

	require.NoError(t, sw.TurnOff())
	clock.Advance(testMinInterval)
	require.NoError(t, sw.Refresh())
	assert.False(sw.IsOn())

	assert.Error(sw.Execute(domain.OutletCommand("toggle")))

	info := sw.Info()
	assert.Equal("outlet_1", info.ObjectId)
	assert.Equal(domain.PowerOff, info.State)
}

func TestRelaySwitchRefreshKeepsLastState(t *testing.T) {

	relay := newFakeRelay("a")
	relay.states[0] = true
	cache, clock := newTestCache(relay)
	switches, err := setupOutlets(testRelayConfig(), relay, cache, zap.NewNop())
	require.NoError(t, err)

	relay.queryErr = domain.ErrCommunication
	clock.Advance(time.Minute)

	assert.Error(t, switches[0].Refresh())
	assert.True(t, switches[0].IsOn())
}

func TestNewRelayClient(t *testing.T) {

	cfg := testRelayConfig()
	client, err := NewRelayClient(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "relay.lan", client.Hostname())

	cfg.Protocol = config.PROTOCOL_MODBUS
	cfg.OutletCount = 4
	cfg.UnitId = 1
	client, err = NewRelayClient(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "relay.lan", client.Hostname())

	cfg.Protocol = "snmp"
	_, err = NewRelayClient(cfg, zap.NewNop())
	assert.Error(t, err)
}
