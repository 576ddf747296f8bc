// Package config selects and configures a graphstore backend from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/abstract-base-method/graphstore"
	"github.com/abstract-base-method/graphstore/kv"
	"github.com/abstract-base-method/graphstore/memory"
	"github.com/abstract-base-method/graphstore/redis"
	"github.com/abstract-base-method/graphstore/sqlite"
	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Backend  string       `yaml:"backend"`
	LogLevel string       `yaml:"log_level"`
	Badger   BadgerConfig `yaml:"badger"`
	Redis    RedisConfig  `yaml:"redis"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

type BadgerConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	DB         int    `yaml:"db"`
	Password   string `yaml:"password"`
	Prefix     string `yaml:"prefix"`
	SaveOnSync bool   `yaml:"save_on_sync"`
}

type SQLiteConfig struct {
	Path         string `yaml:"path"`
	PoolSize     int    `yaml:"pool_size"`
	SecureIDs    bool   `yaml:"secure_ids"`
	CreateSchema bool   `yaml:"create_schema"`
}

func Default() Config {
	return Config{
		Backend:  BackendMemory,
		LogLevel: "info",
		Badger:   BadgerConfig{Path: "./data"},
		Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "graphstore"},
		SQLite:   SQLiteConfig{Path: "./graph.db", SecureIDs: true},
	}
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults, so omitted settings keep their
// default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	switch c.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			return fmt.Errorf("badger.path is required unless badger.in_memory is set")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
		if c.SQLite.PoolSize < 0 {
			return fmt.Errorf("sqlite.pool_size must not be negative")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// Logger returns a logger at the configured level with the backend as
// prefix.
func (c Config) Logger() *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, Prefix: c.Backend})
	return logger
}

// Open builds the configured datastore.
func (c Config) Open() (graphstore.Datastore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := c.Logger()
	log.SetLevel(logger.GetLevel())

	var ds graphstore.Datastore
	switch c.Backend {
	case BackendBadger:
		badger, err := kv.OpenBadgerDatastore(kv.BadgerOptions{
			Path:       c.Badger.Path,
			InMemory:   c.Badger.InMemory,
			SyncWrites: c.Badger.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		ds = badger
	case BackendRedis:
		rds, err := redis.NewDatastore(&goredis.Options{
			Addr:     c.Redis.Addr,
			DB:       c.Redis.DB,
			Password: c.Redis.Password,
		}, redis.Options{
			Prefix:     c.Redis.Prefix,
			SaveOnSync: c.Redis.SaveOnSync,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		ds = rds
	case BackendSQLite:
		relational, err := sqlite.Open(sqlite.Options{
			Path:         c.SQLite.Path,
			PoolSize:     c.SQLite.PoolSize,
			SecureIDs:    c.SQLite.SecureIDs,
			CreateSchema: c.SQLite.CreateSchema,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		ds = relational
	default:
		ds = memory.NewDatastore()
	}
	logger.Debug("opened datastore", "backend", c.Backend)
	return ds, nil
}
