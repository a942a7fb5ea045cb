// Package config loads the process configuration from YAML with sane
// defaults for every field, so an empty file and no file at all both yield a
// runnable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML values like "30s" or "1m" into a time.Duration.
// Bare integers are taken as nanoseconds, matching yaml.v3's native decoding.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		var ns int64
		if decErr := value.Decode(&ns); decErr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		parsed = time.Duration(ns)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig tunes the simulation core.
type EngineConfig struct {
	TargetFPS   int     `yaml:"target_fps"`
	MaxEntities int     `yaml:"max_entities"`
	MoveSpeed   float64 `yaml:"move_speed"`
}

// ServerConfig tunes the network boundary.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	BroadcastHz    int      `yaml:"broadcast_hz"`
	MaxClients     int      `yaml:"max_clients"`
	ClientTimeout  Duration `yaml:"client_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	MaxMessageSize int64    `yaml:"max_message_size"`
}

// LogConfig tunes logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			TargetFPS:   60,
			MaxEntities: 10_000,
			MoveSpeed:   200,
		},
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:8080",
			BroadcastHz:    30,
			MaxClients:     256,
			ClientTimeout:  Duration(60 * time.Second),
			WriteTimeout:   Duration(10 * time.Second),
			MaxMessageSize: 64 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Engine.TargetFPS <= 0 {
		return fmt.Errorf("engine.target_fps must be positive, got %d", c.Engine.TargetFPS)
	}
	if c.Engine.MaxEntities <= 0 {
		return fmt.Errorf("engine.max_entities must be positive, got %d", c.Engine.MaxEntities)
	}
	if c.Server.BroadcastHz <= 0 {
		return fmt.Errorf("server.broadcast_hz must be positive, got %d", c.Server.BroadcastHz)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	return nil
}
