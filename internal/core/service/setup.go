package service

import (
	"fmt"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"
	"github.com/berfenger/dinrelay2mqtt/pkg/dlipower"
	"github.com/berfenger/dinrelay2mqtt/pkg/modbusrelay"

	"go.uber.org/zap"
)

const DEFAULT_MODBUS_PORT = 502

// NewRelayClient builds the device client for the configured protocol. No
// connection is made.
func NewRelayClient(cfg config.RelayConfig, logger *zap.Logger) (port.RelayClient, error) {
	switch cfg.Protocol {
	case config.PROTOCOL_MODBUS:
		p := cfg.Port
		if p == 0 {
			p = DEFAULT_MODBUS_PORT
		}
		client, err := modbusrelay.NewCoilRelay(modbusrelay.CoilRelayConfig{
			Host:        cfg.Host,
			Port:        p,
			UnitId:      uint8(cfg.UnitId),
			OutletCount: int(cfg.OutletCount),
			Timeout:     cfg.Timeout(),
			CycleTime:   cfg.CycleTime(),
		}, logger, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.PROTOCOL_HTTP, "":
		client, err := dlipower.NewPowerSwitch(dlipower.PowerSwitchConfig{
			Host:      cfg.Host,
			Port:      cfg.Port,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Timeout:   cfg.Timeout(),
			CycleTime: cfg.CycleTime(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported relay protocol %q", cfg.Protocol)
	}
}

// SetupOutlets verifies the unit and registers one switch per outlet. A
// failed verification registers nothing.
func SetupOutlets(cfg config.RelayConfig, client port.RelayClient, logger *zap.Logger) ([]*RelaySwitch, error) {
	cache := NewThrottledStatusCache(client, cfg.MinRefreshInterval(), logger)
	return setupOutlets(cfg, client, cache, logger)
}

func setupOutlets(cfg config.RelayConfig, client port.RelayClient, cache *ThrottledStatusCache, logger *zap.Logger) ([]*RelaySwitch, error) {
	if err := client.Verify(); err != nil {
		logger.Error("setup: could not verify relay unit", zap.String("host", client.Hostname()), zap.Error(err))
		return nil, fmt.Errorf("relay %s verification failed: %w", client.Hostname(), err)
	}

	snapshot, err := cache.Refresh()
	if err != nil {
		return nil, fmt.Errorf("%w: initial status query: %w", domain.ErrConnectivity, err)
	}

	switches := make([]*RelaySwitch, 0, len(snapshot))
	for _, outlet := range snapshot {
		if cfg.IgnoreUnnamedOutlets && !outlet.HasLabel() {
			logger.Debug("setup: ignoring unnamed outlet", zap.Int("outlet", outlet.Index))
			continue
		}
		controller := NewOutletController(outlet, client, cache)
		switches = append(switches, NewRelaySwitch(controller, cfg.Name, client.Hostname(), logger))
	}
	logger.Info("setup: registered outlets", zap.Int("outlets", len(switches)), zap.Int("total", len(snapshot)))
	return switches, nil
}
