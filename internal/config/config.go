package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap/zapcore"
)

const (
	PROTOCOL_HTTP   = "http"
	PROTOCOL_MODBUS = "modbus"
)

type Config struct {
	LogLevel      zapcore.Level
	Relay         RelayConfig    `mapstructure:"relay"`
	MQTT          MQTTConfig     `mapstructure:"mqtt"`
	MonitorConfig MonitorConfig  `mapstructure:"monitor"`
	InfluxDB      InfluxDBConfig `mapstructure:"influxdb"`
	Port          uint           `mapstructure:"port"`
	HttpLog       bool           `mapstructure:"http_log"`
}

type RelayConfig struct {
	Host                     string
	Name                     string
	Username                 string
	Password                 string
	Protocol                 string
	Port                     uint
	UnitId                   uint   `mapstructure:"unit_id"`
	OutletCount              uint   `mapstructure:"outlet_count"`
	TimeoutSeconds           uint   `mapstructure:"timeout_seconds"`
	CycleSeconds             uint   `mapstructure:"cycle_seconds"`
	IgnoreUnnamedOutlets     bool   `mapstructure:"ignore_unnamed_outlets"`
	MinRefreshIntervalMillis uint32 `mapstructure:"min_refresh_interval_millis"`
}

func (c RelayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c RelayConfig) CycleTime() time.Duration {
	return time.Duration(c.CycleSeconds) * time.Second
}

func (c RelayConfig) MinRefreshInterval() time.Duration {
	return time.Duration(c.MinRefreshIntervalMillis) * time.Millisecond
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
	HADiscoveryCron   string `mapstructure:"ha_discovery_cron"`
}

type InfluxDBConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds and normalises topics in place. Out of range values
// are rejected, never clamped.
func Validate(cfg *Config) error {
	if cfg.Relay.Host == "" {
		return errors.New("config param relay.host is required")
	}
	if cfg.Relay.TimeoutSeconds < 1 || cfg.Relay.TimeoutSeconds > 600 {
		return fmt.Errorf("config param relay.timeout_seconds should be in [1, 600], got %d", cfg.Relay.TimeoutSeconds)
	}
	if cfg.Relay.CycleSeconds < 1 || cfg.Relay.CycleSeconds > 600 {
		return fmt.Errorf("config param relay.cycle_seconds should be in [1, 600], got %d", cfg.Relay.CycleSeconds)
	}
	if cfg.Relay.MinRefreshIntervalMillis < 1000 {
		return errors.New("config param relay.min_refresh_interval_millis should be >= 1000")
	}
	switch cfg.Relay.Protocol {
	case PROTOCOL_HTTP:
	case PROTOCOL_MODBUS:
		if cfg.Relay.UnitId > 255 {
			return errors.New("config param relay.unit_id should be <= 255")
		}
		if cfg.Relay.OutletCount < 1 || cfg.Relay.OutletCount > 64 {
			return errors.New("config param relay.outlet_count should be in [1, 64]")
		}
	default:
		return fmt.Errorf("config param relay.protocol should be %s or %s", PROTOCOL_HTTP, PROTOCOL_MODBUS)
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if cfg.MQTT.HADiscoveryCron != "" {
		if _, err := quartz.NewCronTrigger(cfg.MQTT.HADiscoveryCron); err != nil {
			return fmt.Errorf("config param mqtt.ha_discovery_cron is not a valid cron expression: %w", err)
		}
	}

	if cfg.InfluxDB.Enabled && (cfg.InfluxDB.URL == "" || cfg.InfluxDB.Bucket == "") {
		return errors.New("config params influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	return nil
}

// SafeCopy returns a copy with every credential redacted, for logging.
func SafeCopy(cfg Config) Config {
	cfg.Relay.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.InfluxDB.Token = "*redacted*"
	return cfg
}
