package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cursor store backends.
const (
	CursorStoreFile     = "file"
	CursorStoreSQLite   = "sqlite"
	CursorStorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Manifest          string
	Contracts         []string
	BatchSize         uint64
	Out               string
	Errors            string
	Checkpoint        string
	CursorStore       string
	SQLitePath        string
	PGDSN             string
	RedisAddr         string
	SeenTTL           time.Duration
	NATSURL           string
	NATSSubjectPrefix string
	PollInterval      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("manifest", "./manifest.yaml")
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("checkpoint", "./data/cursors.json")
		v.SetDefault("cursor-store", CursorStoreFile)
		v.SetDefault("sqlite-path", "./data/events.db")
		v.SetDefault("seen-ttl", 24*time.Hour)
		v.SetDefault("nats-subject-prefix", "events")
		v.SetDefault("poll-interval", 15*time.Second)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Manifest:          v.GetString("manifest"),
		Contracts:         getStringSlice(v, "contracts"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CursorStore:       strings.ToLower(v.GetString("cursor-store")),
		SQLitePath:        v.GetString("sqlite-path"),
		PGDSN:             v.GetString("pg-dsn"),
		RedisAddr:         v.GetString("redis-addr"),
		SeenTTL:           v.GetDuration("seen-ttl"),
		NATSURL:           v.GetString("nats-url"),
		NATSSubjectPrefix: v.GetString("nats-subject-prefix"),
		PollInterval:      v.GetDuration("poll-interval"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c Config) Validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	switch c.CursorStore {
	case CursorStoreFile:
		if c.Checkpoint == "" {
			return fmt.Errorf("checkpoint path is required for the file cursor store")
		}
	case CursorStoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite-path is required for the sqlite cursor store")
		}
	case CursorStorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres cursor store")
		}
	default:
		return fmt.Errorf("unsupported cursor-store: %s", c.CursorStore)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
