package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	StorageModeOS     = "os"
	StorageModeMemory = "memory"
)

type SlotDBConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Mode    string `mapstructure:"mode"`
		Workdir string `mapstructure:"workdir"`
	} `mapstructure:"storage"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Client struct {
		History string `mapstructure:"history"`
		Prompt  string `mapstructure:"prompt"`
	} `mapstructure:"client"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "slotdb")
	v.SetDefault("storage.mode", StorageModeOS)
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("client.history", "")
	v.SetDefault("client.prompt", "slotdb> ")
}

// LoadConfig reads a YAML file at path on top of the defaults. An empty path
// uses defaults only. SLOTDB_* environment variables override both, e.g.
// SLOTDB_STORAGE_WORKDIR.
func LoadConfig(path string) (*SlotDBConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SLOTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg SlotDBConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.LogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FileSystem builds the file provider the storage layer runs on.
func (c *SlotDBConfig) FileSystem() (afero.Fs, error) {
	switch strings.ToLower(c.Storage.Mode) {
	case StorageModeOS, "":
		if err := os.MkdirAll(c.Storage.Workdir, 0o755); err != nil {
			return nil, fmt.Errorf("create workdir: %w", err)
		}
		return afero.NewBasePathFs(afero.NewOsFs(), c.Storage.Workdir), nil
	case StorageModeMemory:
		return afero.NewMemMapFs(), nil
	default:
		return nil, fmt.Errorf("invalid storage mode: %s", c.Storage.Mode)
	}
}

func (c *SlotDBConfig) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
