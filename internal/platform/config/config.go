// Package config loads process configuration for the control and data
// planes via viper, the same env-var-first style internal/config uses
// for its own settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything both cmd/controlplane and cmd/dataplane need.
// A given process only reads the fields it cares about.
type Config struct {
	Database DatabaseConfig
	Runtime  RuntimeConfig
	HTTP     HTTPConfig
}

type DatabaseConfig struct {
	Driver   string // postgres | mysql | sqlite3
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RuntimeConfig holds the executor/worker-pool tunables.
type RuntimeConfig struct {
	EnvsRoot          string        // filesystem root for materialized deployments
	WorkerCount       int           // fixed worker thread count
	SnapshotCacheSize int           // LRU capacity, design default 100
	HeapLimitBytes    int64         // interpreter heap bound, design default 512 MiB
	InvocationTimeout time.Duration // wall-clock timeout, design default 5s
}

type HTTPConfig struct {
	ControlPlaneAddr string
	DataPlaneAddr    string
}

// DSN builds the driver-specific connection string database.Open expects.
// SQLite ignores every field but Name, which is taken as a file path (or
// ":memory:").
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name)
	default:
		return d.Name
	}
}

// Load reads configuration from environment variables (prefixed DARX_)
// and an optional config file, applying the design defaults from the
// specification where a value is unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DARX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.name", "darx.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("runtime.envsroot", "./envs")
	v.SetDefault("runtime.workercount", 4)
	v.SetDefault("runtime.snapshotcachesize", 100)
	v.SetDefault("runtime.heaplimitbytes", int64(512*1024*1024))
	v.SetDefault("runtime.invocationtimeout", 5*time.Second)
	v.SetDefault("http.controlplaneaddr", ":8080")
	v.SetDefault("http.dataplaneaddr", ":8081")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:   v.GetString("database.driver"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			Name:     v.GetString("database.name"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Runtime: RuntimeConfig{
			EnvsRoot:          v.GetString("runtime.envsroot"),
			WorkerCount:       v.GetInt("runtime.workercount"),
			SnapshotCacheSize: v.GetInt("runtime.snapshotcachesize"),
			HeapLimitBytes:    v.GetInt64("runtime.heaplimitbytes"),
			InvocationTimeout: v.GetDuration("runtime.invocationtimeout"),
		},
		HTTP: HTTPConfig{
			ControlPlaneAddr: v.GetString("http.controlplaneaddr"),
			DataPlaneAddr:    v.GetString("http.dataplaneaddr"),
		},
	}
	return cfg, nil
}
