// Package config resolves settings from flags, environment variables, an
// optional .env file and an optional config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "AGRASANDHANI"
	dirName    = ".agrasandhani"
	configName = "config"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	DataPath       string `mapstructure:"data_path" validate:"required"`
	Backend        string `mapstructure:"backend" validate:"oneof=json sqlite memory"`
	Format         string `mapstructure:"format" validate:"omitempty,oneof=json yaml toml"`
	SQLitePath     string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	SnapshotPath   string `mapstructure:"snapshot_path"`
	Watch          bool   `mapstructure:"watch"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogDevelopment bool   `mapstructure:"log_development"`
	HTTPAddr       string `mapstructure:"http_addr" validate:"required"`
	ListOrder      string `mapstructure:"list_order"`
}

// Dir is where the task file and config live by default.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// SetDefaults registers every key so environment variables are picked up by
// Unmarshal even when no file mentions them.
func SetDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("data_path", filepath.Join(dir, "tasks.json"))
	v.SetDefault("backend", BackendJSON)
	v.SetDefault("format", "")
	v.SetDefault("sqlite_path", filepath.Join(dir, "tasks.db"))
	v.SetDefault("snapshot_path", "")
	v.SetDefault("watch", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("http_addr", "127.0.0.1:8765")
	v.SetDefault("list_order", "newest")
}

// Load reads configuration into a Config. cfgFile overrides the search for
// config.yaml in ./.agrasandhani and then ~/.agrasandhani. A missing file is
// not an error.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dirName)
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DataPath = expandHome(cfg.DataPath)
	cfg.SQLitePath = expandHome(cfg.SQLitePath)
	cfg.SnapshotPath = expandHome(cfg.SnapshotPath)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := models.ValidateStruct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
