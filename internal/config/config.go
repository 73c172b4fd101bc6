// Package config loads desktop app settings from a YAML file in the OS config
// directory and applies environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppDirName is the per-user directory holding config and databases.
	AppDirName = "oracle-game"
	// FileName is the config file inside AppDir.
	FileName = "config.yaml"

	DefaultEndpoint     = "https://studio.genlayer.com/api"
	DefaultAPIPort      = 17889
	DefaultPollInterval = 3 * time.Second
)

// Config is the resolved application configuration.
type Config struct {
	// ContractAddress of the deployed OracleGame contract. Empty means the
	// app runs unconfigured and every mutation reports a setup error.
	ContractAddress string `yaml:"contractAddress"`
	Endpoint        string `yaml:"endpoint"`
	// EndpointAPIKey is the bearer token used when no wallet profile key is set.
	EndpointAPIKey    string  `yaml:"endpointApiKey"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	ExplorerURL       string  `yaml:"explorerUrl"`

	API   APIConfig   `yaml:"api"`
	Cache CacheConfig `yaml:"cache"`

	// PollInterval drives the background watcher.
	PollInterval time.Duration `yaml:"pollInterval"`
	// DataDir holds the SQLite databases. Defaults to AppDir().
	DataDir string `yaml:"dataDir"`
}

// APIConfig configures the loopback HTTP API.
type APIConfig struct {
	Port int `yaml:"port"`
	// Token, when set, is required as a bearer token on /api/v1.
	Token string `yaml:"token"`
}

// CacheConfig overrides query stale times. Zero keeps the defaults.
type CacheConfig struct {
	Rooms             time.Duration `yaml:"rooms"`
	RoomLeaderboard   time.Duration `yaml:"roomLeaderboard"`
	GlobalLeaderboard time.Duration `yaml:"globalLeaderboard"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		API:          APIConfig{Port: DefaultAPIPort},
		PollInterval: DefaultPollInterval,
		DataDir:      AppDir(),
	}
}

// Configured reports whether a contract address is set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.ContractAddress) != ""
}

// AppDir returns an OS-appropriate writable directory.
func AppDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, AppDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+AppDirName)
	}
	return "."
}

// DefaultPath is the config file location inside AppDir.
func DefaultPath() string {
	return filepath.Join(AppDir(), FileName)
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		Merge(&cfg, parsed)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge copies the non-zero fields of src into dst.
func Merge(dst *Config, src Config) {
	if src.ContractAddress != "" {
		dst.ContractAddress = strings.TrimSpace(src.ContractAddress)
	}
	if src.Endpoint != "" {
		dst.Endpoint = strings.TrimSpace(src.Endpoint)
	}
	if src.EndpointAPIKey != "" {
		dst.EndpointAPIKey = src.EndpointAPIKey
	}
	if src.RequestsPerSecond != 0 {
		dst.RequestsPerSecond = src.RequestsPerSecond
	}
	if src.ExplorerURL != "" {
		dst.ExplorerURL = src.ExplorerURL
	}
	if src.API.Port != 0 {
		dst.API.Port = src.API.Port
	}
	if src.API.Token != "" {
		dst.API.Token = src.API.Token
	}
	if src.Cache.Rooms != 0 {
		dst.Cache.Rooms = src.Cache.Rooms
	}
	if src.Cache.RoomLeaderboard != 0 {
		dst.Cache.RoomLeaderboard = src.Cache.RoomLeaderboard
	}
	if src.Cache.GlobalLeaderboard != 0 {
		dst.Cache.GlobalLeaderboard = src.Cache.GlobalLeaderboard
	}
	if src.PollInterval != 0 {
		dst.PollInterval = src.PollInterval
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
}

// ApplyEnvOverrides applies ORACLE_* and GENLAYER_* variables.
func ApplyEnvOverrides(cfg *Config) error {
	if v := env("ORACLE_CONTRACT_ADDRESS"); v != "" {
		cfg.ContractAddress = v
	}
	if v := env("GENLAYER_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := env("GENLAYER_API_KEY"); v != "" {
		cfg.EndpointAPIKey = v
	}
	if v := env("ORACLE_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := env("ORACLE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := env("ORACLE_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("config: ORACLE_API_PORT %q is not a valid port", v)
		}
		cfg.API.Port = port
	}
	if v := env("ORACLE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: ORACLE_POLL_INTERVAL %q is not a positive duration", v)
		}
		cfg.PollInterval = d
	}
	return nil
}

func env(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}

// WriteTemplate writes a commented starter config to path unless it exists.
func WriteTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return false, fmt.Errorf("config: write template: %w", err)
	}
	return true, nil
}

const template = `# Oracle Game desktop settings.
# Address of the deployed OracleGame contract (0x + 40 hex digits).
contractAddress: ""
endpoint: "` + DefaultEndpoint + `"
# endpointApiKey: ""
# requestsPerSecond: 5
# explorerUrl: "https://explorer.genlayer.com"
api:
  port: 17889
  # token: ""
# pollInterval: 3s
`
