package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Database DatabaseConfig
	Capture  CaptureConfig
	MCP      MCPConfig
	Log      LogConfig
}

// LLMConfig holds the completion provider configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ServerConfig holds the local HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds the conversation history database configuration.
// An empty Path resolves to <user config dir>/glimpse/history.db.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CaptureConfig holds the screenshot capture command. Defaults to the
// macOS interactive screencapture utility.
type CaptureConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// MCPConfig controls the optional MCP history server.
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "4848")
	viper.SetDefault("capture.command", "screencapture")
	viper.SetDefault("capture.args", []string{"-i"})
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Database.Path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		config.Database.Path = filepath.Join(base, "glimpse", "history.db")
	}

	return &config, nil
}
