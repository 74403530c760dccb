package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "IM"

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Push      PushConfig      `mapstructure:"push"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`

	v  *viper.Viper
	mu sync.Mutex
}

type ServiceConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"oneof=development staging production test"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	PingInterval    time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"gtfield=PingInterval"`
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" validate:"gt=0"`
}

type LogConfig struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format   string `mapstructure:"format" validate:"oneof=json text"`
	Exporter string `mapstructure:"exporter" validate:"oneof=stdout otel"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret" validate:"required"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

type RegistryConfig struct {
	Shards           int           `mapstructure:"shards" validate:"gte=1"`
	MailboxSize      int           `mapstructure:"mailbox_size" validate:"gte=1"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
}

type NotifyConfig struct {
	BatchSize     int `mapstructure:"batch_size" validate:"gte=1"`
	Concurrency   int `mapstructure:"concurrency" validate:"gte=1"`
	RetentionDays int `mapstructure:"retention_days" validate:"gte=1"`
	PreviewLength int `mapstructure:"preview_length" validate:"gte=1"`
	PartnerLimit  int `mapstructure:"partner_limit" validate:"gte=0"`
}

type PushConfig struct {
	Provider           string        `mapstructure:"provider" validate:"oneof=log http"`
	Endpoint           string        `mapstructure:"endpoint" validate:"required_if=Provider http"`
	APIKey             string        `mapstructure:"api_key"`
	MaxBatch           int           `mapstructure:"max_batch" validate:"gte=1,lte=1000"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures" validate:"gte=1"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout" validate:"gt=0"`
}

type AMQPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
}

type SchedulerConfig struct {
	DueSpec       string `mapstructure:"due_spec" validate:"required"`
	RetentionSpec string `mapstructure:"retention_spec" validate:"required"`
	ReconcileSpec string `mapstructure:"reconcile_spec" validate:"required"`
}

type ProfilesConfig struct {
	CacheSize int           `mapstructure:"cache_size" validate:"gte=1"`
	TTL       time.Duration `mapstructure:"ttl"`
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "im-realtime-service")
	v.SetDefault("service.id", "")
	v.SetDefault("service.env", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.ping_interval", 25*time.Second)
	v.SetDefault("http.pong_wait", 60*time.Second)
	v.SetDefault("http.write_wait", 10*time.Second)
	v.SetDefault("http.max_message_size", 64*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.exporter", "stdout")

	v.SetDefault("database.dsn", "im-realtime.db")
	v.SetDefault("database.max_open_conns", 1)

	// keys without a default still need registering so env overrides reach Unmarshal
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("registry.shards", 32)
	v.SetDefault("registry.mailbox_size", 256)
	v.SetDefault("registry.eviction_interval", 15*time.Minute)
	v.SetDefault("registry.idle_timeout", 30*time.Minute)

	v.SetDefault("notify.batch_size", 100)
	v.SetDefault("notify.concurrency", 8)
	v.SetDefault("notify.retention_days", 30)
	v.SetDefault("notify.preview_length", 100)
	v.SetDefault("notify.partner_limit", 50)

	v.SetDefault("push.provider", "log")
	v.SetDefault("push.endpoint", "")
	v.SetDefault("push.api_key", "")
	v.SetDefault("push.max_batch", 500)
	v.SetDefault("push.timeout", 5*time.Second)
	v.SetDefault("push.breaker_max_failures", 5)
	v.SetDefault("push.breaker_open_timeout", 30*time.Second)

	v.SetDefault("amqp.enabled", false)
	v.SetDefault("amqp.url", "")

	v.SetDefault("scheduler.due_spec", "@every 30s")
	v.SetDefault("scheduler.retention_spec", "0 3 * * *")
	v.SetDefault("scheduler.reconcile_spec", "@every 5m")

	v.SetDefault("profiles.cache_size", 4096)
	v.SetDefault("profiles.ttl", 5*time.Minute)
}

// Flags returns a flag set mirroring the config keys that are commonly
// overridden from the command line.
func Flags() *pflag.FlagSet {
	set := pflag.NewFlagSet("config", pflag.ContinueOnError)
	set.String("http.addr", ":8080", "HTTP listen address")
	set.String("log.level", "info", "Log level (debug, info, warn, error)")
	set.String("database.dsn", "im-realtime.db", "SQLite database path or DSN")
	set.String("push.provider", "log", "Push gateway provider (log, http)")
	set.Bool("amqp.enabled", false, "Consume and export domain events over AMQP")
	return set
}

// LoadConfig reads configuration from defaults, an optional .env file, an
// optional config file, IM_* environment variables and flags, in increasing
// order of precedence.
func LoadConfig(configFile string, args []string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("dotenv not loaded", slog.String("error", err.Error()))
	}

	v := viper.New()
	applyDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flags := Flags()
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	// only flags that were set explicitly override lower layers
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{v: v}
	if err := cfg.decode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode() error {
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Watch reloads the config file on change and hands the log level to onLevel.
// It is a no-op when no config file was loaded.
func (c *Config) Watch(onLevel func(slog.Level)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.mu.Lock()
		level := c.v.GetString("log.level")
		c.Log.Level = level
		c.mu.Unlock()

		slog.Info("CONFIG_RELOADED", slog.String("file", e.Name), slog.String("log_level", level))
		onLevel(ParseLevel(level))
	})
	c.v.WatchConfig()
}

// ParseLevel maps a config level name onto slog; unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
