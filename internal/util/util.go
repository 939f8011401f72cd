package util

import (
	"github.com/berfenger/dinrelay2mqtt/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns a valid configuration with short intervals, for
// wiring actors against in-memory relays and a dummy MQTT actor.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Relay: config.RelayConfig{
			Host:                     "relay.lan",
			Name:                     "DINRelay",
			Username:                 "admin",
			Password:                 "1234",
			Protocol:                 config.PROTOCOL_HTTP,
			TimeoutSeconds:           2,
			CycleSeconds:             1,
			MinRefreshIntervalMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "dinrelay",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 1000,
		},
		Port: 8080,
	}
}
