// Config loading for the stowage CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/stowage/internal/paths"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFormat     = "log_format"
	cfgKeyStartDate     = "start_date"
	cfgKeyRearrangement = "rearrangement"
)

// configFile is the structure of config.yaml.
type configFile struct {
	Backend       string `yaml:"backend" mapstructure:"backend"`
	DataDir       string `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	LogLevel      string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat     string `yaml:"log_format" mapstructure:"log_format"`
	StartDate     string `yaml:"start_date,omitempty" mapstructure:"start_date"`
	Rearrangement bool   `yaml:"rearrangement" mapstructure:"rearrangement"`
}

func defaultConfig() configFile {
	return configFile{
		Backend:       types.BackendSQLite,
		LogLevel:      "warn",
		LogFormat:     "text",
		Rearrangement: true,
	}
}

// startDate parses start_date, returning a zero Date when it is unset.
func (c configFile) startDate() (types.Date, error) {
	if c.StartDate == "" {
		return types.Date{}, nil
	}
	return types.ParseDate(c.StartDate)
}

// resolvedConfig is the configuration a command runs with.
type resolvedConfig struct {
	configDir string
	dataDir   string
	file      configFile
}

// loadConfig resolves the config directory, reads config.yaml with viper
// and resolves the data directory. A missing config.yaml is not an error.
// The --log-level flag overrides log_level.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (resolvedConfig, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return resolvedConfig{}, sysError("resolve config dir: %w", err)
	}

	def := defaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, def.LogFormat)
	v.SetDefault(cfgKeyRearrangement, def.Rearrangement)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyStartDate, "")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag(cfgKeyLogLevel, f); err != nil {
			return resolvedConfig{}, sysError("bind log-level: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return resolvedConfig{}, sysError("read config: %w", err)
		}
	}

	var file configFile
	if err := v.Unmarshal(&file); err != nil {
		return resolvedConfig{}, sysError("decode config: %w", err)
	}
	if _, err := file.startDate(); err != nil {
		return resolvedConfig{}, fmt.Errorf("config %s: %w", cfgKeyStartDate, err)
	}
	switch strings.ToLower(file.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return resolvedConfig{}, fmt.Errorf("config %s: unknown level %q", cfgKeyLogLevel, file.LogLevel)
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, file.DataDir)
	if err != nil {
		return resolvedConfig{}, sysError("resolve data dir: %w", err)
	}
	return resolvedConfig{configDir: configDir, dataDir: dataDir, file: file}, nil
}

// storeConfig returns the backend configuration for the store.
func (r resolvedConfig) storeConfig() types.Config {
	return types.Config{Backend: r.file.Backend, DataDir: r.dataDir}
}

// writeConfigIfMissing creates config.yaml with cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(configDir string, cfg configFile) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
