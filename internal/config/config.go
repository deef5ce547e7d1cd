// Package config loads plugmirror settings from plugmirror.yaml and
// PLUGMIRROR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// FileName is the config file name searched for, without extension.
const FileName = "plugmirror"

// EnvPrefix prefixes every environment override, e.g.
// PLUGMIRROR_DATABASE_PATH.
const EnvPrefix = "PLUGMIRROR"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Retention RetentionConfig `mapstructure:"retention"`
	Events    EventsConfig    `mapstructure:"events"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MQTTConfig configures the ephemeral-store feed. An empty broker disables
// the bridge.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

// KafkaConfig configures emergency alerts. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// HTTPConfig configures the ops API. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScheduleConfig struct {
	Snapshot   string        `mapstructure:"snapshot"`
	Retention  string        `mapstructure:"retention"`
	Timezone   string        `mapstructure:"timezone"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type RetentionConfig struct {
	Window   time.Duration `mapstructure:"window"`
	PageSize int           `mapstructure:"page_size"`
}

type EventsConfig struct {
	FallbackDevice string `mapstructure:"fallback_device"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "plugmirror.db")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "plugmirror")
	v.SetDefault("mqtt.topic_prefix", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "plug-emergencies")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("schedule.snapshot", "@every 2m")
	v.SetDefault("schedule.retention", "0 0 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.job_timeout", "9m")
	v.SetDefault("retention.window", "168h")
	v.SetDefault("retention.page_size", 500)
	v.SetDefault("events.fallback_device", "plug1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads plugmirror.yaml from dir (or the working directory when dir
// is empty), applies environment overrides and validates the result.
// A missing config file is not an error; defaults apply.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	if c.Retention.Window <= 0 {
		errs = append(errs, fmt.Errorf("retention.window must be positive, got %s", c.Retention.Window))
	}
	if c.Retention.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("retention.page_size must be positive, got %d", c.Retention.PageSize))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.Schedule.JobTimeout < 0 {
		errs = append(errs, fmt.Errorf("schedule.job_timeout must not be negative"))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	for key, spec := range map[string]string{
		"schedule.snapshot":  c.Schedule.Snapshot,
		"schedule.retention": c.Schedule.Retention,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic must be set when brokers are configured"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
