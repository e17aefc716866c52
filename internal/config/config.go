package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Game      GameConfig      `toml:"game"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress      string        `toml:"bind_address"`
	OutQueueSize     int           `toml:"out_queue_size"`
	PacketsPerSecond int           `toml:"packets_per_second"` // 0 = unlimited
	WriteTimeout     time.Duration `toml:"write_timeout"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	MaxFrameSize     int           `toml:"max_frame_size"` // 0 = 65535
}

type GameConfig struct {
	SpawnTable string `toml:"spawn_table"` // empty = built-in list
	MaxGames   int    `toml:"max_games"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the event log
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	EventQueueSize  int           `toml:"event_queue_size"`
	FlushInterval   time.Duration `toml:"flush_interval"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty disables Lua hooks
}

type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"` // empty disables the endpoint
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
	Output string `toml:"output"` // "stderr", "stdout" or a file path
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "innernet",
			ID:   1,
		},
		Network: NetworkConfig{
			BindAddress:      "0.0.0.0:22023",
			OutQueueSize:     256,
			PacketsPerSecond: 120,
			WriteTimeout:     10 * time.Second,
			ReadTimeout:      60 * time.Second,
		},
		Game: GameConfig{
			MaxGames: 1000,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			EventQueueSize:  1024,
			FlushInterval:   2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}
