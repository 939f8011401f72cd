package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validConfig() Config {
	return Config{
		Relay: RelayConfig{
			Host:                     "192.168.0.100",
			Name:                     "DINRelay",
			Username:                 "admin",
			Password:                 "admin",
			Protocol:                 PROTOCOL_HTTP,
			TimeoutSeconds:           20,
			CycleSeconds:             2,
			MinRefreshIntervalMillis: 5000,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "DinRelay",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: MonitorConfig{
			PollIntervalMillis: 10000,
		},
	}
}

func TestLoadDefaults(t *testing.T) {

	require := require.New(t)
	viper.Reset()
	t.Setenv("DINRELAY_RELAY_HOST", "10.0.0.9")

	cfg, err := Load("")
	require.NoError(err)

	assert := assert.New(t)
	assert.Equal("10.0.0.9", cfg.Relay.Host)
	assert.Equal("DINRelay", cfg.Relay.Name, "default name")
	assert.Equal("admin", cfg.Relay.Username, "default username")
	assert.Equal("admin", cfg.Relay.Password, "default password")
	assert.Equal(uint(20), cfg.Relay.TimeoutSeconds, "default timeout")
	assert.Equal(uint(2), cfg.Relay.CycleSeconds, "default cycle time")
	assert.False(cfg.Relay.IgnoreUnnamedOutlets, "default ignore unnamed")
	assert.Equal(PROTOCOL_HTTP, cfg.Relay.Protocol)
	assert.Equal(uint32(5000), cfg.Relay.MinRefreshIntervalMillis)
	assert.Equal("dinrelay", cfg.MQTT.BaseTopic)
	assert.Equal(zap.WarnLevel, cfg.LogLevel)
}

func TestLoadFromFileAndEnv(t *testing.T) {

	require := require.New(t)
	viper.Reset()

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(cfgFile, []byte(`
log_level: debug
relay:
  host: relay.lan
  name: Rack
  timeout_seconds: 5
  ignore_unnamed_outlets: true
mqtt:
  host: broker.lan
  base_topic: rack_power
`), 0o600)
	require.NoError(err)
	t.Setenv("DINRELAY_RELAY_CYCLE_SECONDS", "9")

	cfg, err := Load(cfgFile)
	require.NoError(err)

	assert := assert.New(t)
	assert.Equal("relay.lan", cfg.Relay.Host)
	assert.Equal("Rack", cfg.Relay.Name)
	assert.Equal(uint(5), cfg.Relay.TimeoutSeconds)
	assert.Equal(uint(9), cfg.Relay.CycleSeconds, "env overrides file")
	assert.True(cfg.Relay.IgnoreUnnamedOutlets)
	assert.Equal("broker.lan", cfg.MQTT.Host)
	assert.Equal("rack_power", cfg.MQTT.BaseTopic)
	assert.Equal(zap.DebugLevel, cfg.LogLevel)
}

func TestLoadRequiresHost(t *testing.T) {
	viper.Reset()
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateNormalisesTopics(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, "dinrelay", cfg.MQTT.BaseTopic)
}

func TestValidateBounds(t *testing.T) {

	cases := map[string]func(cfg *Config){
		"timeout too low":    func(cfg *Config) { cfg.Relay.TimeoutSeconds = 0 },
		"timeout too high":   func(cfg *Config) { cfg.Relay.TimeoutSeconds = 601 },
		"cycle too low":      func(cfg *Config) { cfg.Relay.CycleSeconds = 0 },
		"cycle too high":     func(cfg *Config) { cfg.Relay.CycleSeconds = 601 },
		"refresh too fast":   func(cfg *Config) { cfg.Relay.MinRefreshIntervalMillis = 10 },
		"poll too fast":      func(cfg *Config) { cfg.MonitorConfig.PollIntervalMillis = 10 },
		"unknown protocol":   func(cfg *Config) { cfg.Relay.Protocol = "telnet" },
		"bad base topic":     func(cfg *Config) { cfg.MQTT.BaseTopic = "din/relay" },
		"modbus no outlets":  func(cfg *Config) { cfg.Relay.Protocol = PROTOCOL_MODBUS },
		"influx no bucket":   func(cfg *Config) { cfg.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://influx:8086"} },
		"missing relay host": func(cfg *Config) { cfg.Relay.Host = "" },
		"bad discovery cron": func(cfg *Config) { cfg.MQTT.HADiscoveryCron = "every hour" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}

	cfg := validConfig()
	cfg.Relay.TimeoutSeconds = 600
	cfg.Relay.CycleSeconds = 1
	cfg.MQTT.HADiscoveryCron = "0 0 * * * *"
	assert.NoError(t, Validate(&cfg), "bounds are inclusive")
}

func TestSafeCopy(t *testing.T) {
	cfg := validConfig()
	cfg.MQTT.Password = "secret"
	safe := SafeCopy(cfg)
	assert.Equal(t, "*redacted*", safe.Relay.Password)
	assert.Equal(t, "*redacted*", safe.MQTT.Password)
	assert.Equal(t, "secret", cfg.MQTT.Password, "original untouched")
}
