// Package config loads application configuration from config.yaml,
// .env, and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"growrack/internal/logging"
)

// Config holds application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      logging.Config `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	MDNS     MDNSConfig     `mapstructure:"mdns"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type AppConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MQTTConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	ClientID  string `mapstructure:"client_id"`
	Namespace string `mapstructure:"namespace"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

type MDNSConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	LocalName string `mapstructure:"local_name"`
}

// JobsConfig tunes the background liveness sweep and reading
// retention prune.
type JobsConfig struct {
	OfflineAfterSecs int    `mapstructure:"offline_after_secs"`
	LivenessCron     string `mapstructure:"liveness_cron"`
	RetentionDays    int    `mapstructure:"retention_days"`
	RetentionCron    string `mapstructure:"retention_cron"`
}

// LoadConfig reads configuration from config.yaml, .env, and env vars.
func LoadConfig() (*Config, error) {
	// .env is optional; env vars win over it either way.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Defaults cover everything that can sensibly default; required
// secrets and endpoints default to empty and are caught by Validate.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "growrack-backend")
	v.SetDefault("mqtt.namespace", "growrack")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl_minutes", 60)

	v.SetDefault("mdns.enabled", true)
	v.SetDefault("mdns.local_name", "growrack.local")

	v.SetDefault("jobs.offline_after_secs", 120)
	v.SetDefault("jobs.liveness_cron", "@every 1m")
	v.SetDefault("jobs.retention_days", 90)
	v.SetDefault("jobs.retention_cron", "0 3 * * *")
}

// Validate checks every required field and reports all missing ones
// in a single error so a broken deployment is fixed in one pass.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "database.url")
	}
	if c.Redis.Addr == "" {
		missing = append(missing, "redis.addr")
	}
	if c.MQTT.Host == "" {
		missing = append(missing, "mqtt.host")
	}
	if c.MQTT.Port <= 0 {
		missing = append(missing, "mqtt.port")
	}
	if c.MQTT.ClientID == "" {
		missing = append(missing, "mqtt.client_id")
	}
	if c.MQTT.Namespace == "" {
		missing = append(missing, "mqtt.namespace")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if (c.MQTT.Username == "") != (c.MQTT.Password == "") {
		missing = append(missing, "mqtt.username/mqtt.password (both or neither)")
	}
	if c.App.Port <= 0 {
		missing = append(missing, "app.port")
	}
	if c.Jobs.OfflineAfterSecs <= 0 {
		missing = append(missing, "jobs.offline_after_secs")
	}
	if c.Jobs.RetentionDays <= 0 {
		missing = append(missing, "jobs.retention_days")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing or invalid: %s", strings.Join(missing, ", "))
	}

	return nil
}

// BrokerURL renders the MQTT endpoint in the form paho expects.
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}
