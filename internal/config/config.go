// Package config loads dosecore's runtime configuration from a YAML file,
// environment variables, and built-in defaults, the same layered approach
// the teacher repo uses for its own viper-backed Config.
package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the dose lifecycle engine.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Security   SecurityConfig   `mapstructure:"security"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Correlator CorrelatorConfig `mapstructure:"correlator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// SecurityConfig holds auth settings.
type SecurityConfig struct {
	JWTSecret        string   `mapstructure:"jwt_secret"`
	SessionTTLHours  int      `mapstructure:"session_ttl_hours"`
	APIKeyTTLDays    int      `mapstructure:"api_key_ttl_days"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	DeviceEventRPM   int      `mapstructure:"device_event_rpm"`
	DeviceEventBurst int      `mapstructure:"device_event_burst"`
}

// SweeperConfig holds the timeout sweeper's tick interval and the dose
// timeout it enforces.
type SweeperConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TimeoutMinutes  int `mapstructure:"timeout_minutes"`
}

// Period returns the sweeper's wake interval as a time.Duration.
func (s SweeperConfig) Period() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Timeout returns the dose retrieval timeout as a time.Duration.
func (s SweeperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// CorrelatorConfig holds the event correlator's scheduling tolerance.
type CorrelatorConfig struct {
	ToleranceMinutes int `mapstructure:"tolerance_minutes"`
}

// Tolerance returns the correlation window as a time.Duration.
func (c CorrelatorConfig) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// Load loads configuration from file, env, and defaults, the same
// file-then-env-then-defaults precedence the teacher's config.Load uses.
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "dosecore.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "dosecore.yaml")
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("DOSECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Security.JWTSecret == "" {
		secret, err := generateRandomString(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		cfg.Security.JWTSecret = secret
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("security.session_ttl_hours", 168) // 7 days
	v.SetDefault("security.api_key_ttl_days", 14)
	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.device_event_rpm", 120)
	v.SetDefault("security.device_event_burst", 20)

	v.SetDefault("sweeper.interval_seconds", 30)
	v.SetDefault("sweeper.timeout_minutes", 30)

	v.SetDefault("correlator.tolerance_minutes", 5)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "dosecore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "dosecore")
}

// generateRandomString returns a cryptographically random string of n
// characters, the same crypto/rand.Int-per-character construction
// auth.GenerateAPIKey uses, so a deployment that omits
// DOSECORE_SECURITY_JWT_SECRET still boots with an unguessable signing
// secret instead of a fixed, predictable one.
func generateRandomString(n int) (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		b[i] = letters[idx.Int64()]
	}
	return string(b), nil
}
