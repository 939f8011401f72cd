package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ENV_PREFIX = "dinrelay"
)

func SetDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("relay.name", "DINRelay")
	viper.SetDefault("relay.username", "admin")
	viper.SetDefault("relay.password", "admin")
	viper.SetDefault("relay.protocol", PROTOCOL_HTTP)
	viper.SetDefault("relay.port", 0)
	viper.SetDefault("relay.unit_id", 1)
	viper.SetDefault("relay.outlet_count", 8)
	viper.SetDefault("relay.timeout_seconds", 20)
	viper.SetDefault("relay.cycle_seconds", 2)
	viper.SetDefault("relay.ignore_unnamed_outlets", false)
	viper.SetDefault("relay.min_refresh_interval_millis", 5000)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "dinrelay")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.ha_discovery_cron", "")
	viper.SetDefault("monitor.poll_interval_millis", 10000)
	viper.SetDefault("influxdb.enabled", false)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

// Load reads defaults, the optional yaml file and the environment into a
// validated Config. cfgFile overrides the CONFIG_FILE environment variable.
func Load(cfgFile string) (*Config, error) {

	// alias PORT => DINRELAY_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("DINRELAY_PORT", port)
	}

	SetDefaults()

	viper.SetEnvPrefix(ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvKeys()

	// if defined, try to load config from yaml file
	if cfgFile == "" {
		cfgFile = os.Getenv("CONFIG_FILE")
	}
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = ParseLogLevel(viper.GetString("log_level"))

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// viper only resolves nested keys from the environment once they are known,
// either through a default or an explicit bind.
func bindEnvKeys() {
	for _, key := range []string{"relay.host", "mqtt.host", "mqtt.username", "mqtt.password",
		"influxdb.url", "influxdb.token", "influxdb.org", "influxdb.bucket"} {
		_ = viper.BindEnv(key)
	}
}
