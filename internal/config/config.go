// Package config loads sidecar settings.
//
// Values are layered: built-in defaults, then the YAML file named by --config
// (or HSCS_CONFIG), then HSCS_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "HSCS_"

// DefaultBotNamePattern matches AI traffic slots such as "[AI] Driver 3".
const DefaultBotNamePattern = `(?i)^\[(ai|bot)\]`

type Config struct {
	Directory DirectoryConfig `yaml:"directory" envPrefix:"DIRECTORY_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Sync      SyncConfig      `yaml:"sync" envPrefix:"SYNC_"`
	API       APIConfig       `yaml:"api" envPrefix:"API_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

// DirectoryConfig locates the remote directory. All three fields are required.
type DirectoryConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
	Port    int    `yaml:"port" env:"PORT"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
}

// ServerConfig describes the game server being advertised.
type ServerConfig struct {
	Name     string `yaml:"name" env:"NAME"`
	Port     int    `yaml:"port" env:"PORT"`
	HTTPPort int    `yaml:"http_port" env:"HTTP_PORT"`
	Track    string `yaml:"track" env:"TRACK"`
}

type SyncConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	PingTimeout       time.Duration `yaml:"ping_timeout" env:"PING_TIMEOUT"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	BotNamePattern    string        `yaml:"bot_name_pattern" env:"BOT_NAME_PATTERN"`
	QueueSize         int           `yaml:"queue_size" env:"QUEUE_SIZE"`
}

type APIConfig struct {
	ListenAddr string  `yaml:"listen_addr" env:"LISTEN_ADDR"`
	RateLimit  float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst  int     `yaml:"rate_burst" env:"RATE_BURST"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:     "Assetto Corsa Server",
			Port:     9600,
			HTTPPort: 8081,
		},
		Sync: SyncConfig{
			HeartbeatInterval: 4 * time.Second,
			PingTimeout:       1 * time.Second,
			RequestTimeout:    5 * time.Second,
			BotNamePattern:    DefaultBotNamePattern,
			QueueSize:         256,
		},
		API: APIConfig{
			ListenAddr: ":8090",
			RateLimit:  5,
			RateBurst:  20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from every source and validates it.
func Load(args []string) (Config, error) {
	path, err := configPath(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := newFlagSet(&cfg, new(string))
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configPath runs a throwaway flag pass just to find --config.
func configPath(args []string) (string, error) {
	scratch := Default()
	path := os.Getenv(envPrefix + "CONFIG")
	fs := newFlagSet(&scratch, &path)
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parse flags: %w", err)
	}
	return path, nil
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ParseEnv overlays HSCS_* environment variables onto target.
func ParseEnv(target *Config) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func newFlagSet(c *Config, path *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("hscsupdater", pflag.ContinueOnError)
	fs.StringVar(path, "config", *path, "path to a YAML config file")

	fs.StringVar(&c.Directory.Address, "directory-address", c.Directory.Address, "directory service host")
	fs.IntVar(&c.Directory.Port, "directory-port", c.Directory.Port, "directory service port")
	fs.StringVar(&c.Directory.APIKey, "api-key", c.Directory.APIKey, "directory API key")

	fs.StringVar(&c.Server.Name, "server-name", c.Server.Name, "advertised server name")
	fs.IntVar(&c.Server.Port, "server-port", c.Server.Port, "game server port used to identify this server")
	fs.IntVar(&c.Server.HTTPPort, "server-http-port", c.Server.HTTPPort, "game server HTTP port")
	fs.StringVar(&c.Server.Track, "track", c.Server.Track, "track identifier")

	fs.DurationVar(&c.Sync.HeartbeatInterval, "heartbeat-interval", c.Sync.HeartbeatInterval, "directory ping interval")
	fs.DurationVar(&c.Sync.PingTimeout, "ping-timeout", c.Sync.PingTimeout, "directory ping timeout")
	fs.DurationVar(&c.Sync.RequestTimeout, "request-timeout", c.Sync.RequestTimeout, "timeout for register and roster updates")
	fs.StringVar(&c.Sync.BotNamePattern, "bot-name-pattern", c.Sync.BotNamePattern, "regexp matching synthetic client names")
	fs.IntVar(&c.Sync.QueueSize, "queue-size", c.Sync.QueueSize, "pending roster update capacity")

	fs.StringVar(&c.API.ListenAddr, "listen", c.API.ListenAddr, "local API listen address")
	fs.Float64Var(&c.API.RateLimit, "rate-limit", c.API.RateLimit, "local API requests per second per IP")
	fs.IntVar(&c.API.RateBurst, "rate-burst", c.API.RateBurst, "local API burst per IP")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.BoolVar(&c.Log.Development, "log-dev", c.Log.Development, "human-readable console logs")
	return fs
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Directory.Address) == "" {
		errs = append(errs, errors.New("directory address is required"))
	}
	if c.Directory.Port <= 0 || c.Directory.Port > 65535 {
		errs = append(errs, fmt.Errorf("directory port %d is invalid", c.Directory.Port))
	}
	if strings.TrimSpace(c.Directory.APIKey) == "" {
		errs = append(errs, errors.New("directory API key is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d is invalid", c.Server.Port))
	}
	if c.Sync.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat interval must be positive"))
	}
	if c.Sync.PingTimeout <= 0 {
		errs = append(errs, errors.New("ping timeout must be positive"))
	}
	if c.Sync.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if _, err := regexp.Compile(c.Sync.BotNamePattern); err != nil {
		errs = append(errs, fmt.Errorf("bot name pattern: %w", err))
	}
	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		errs = append(errs, errors.New("rate limit and burst must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
