// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	Proxy    string `mapstructure:"proxy"`
	Database struct {
		Path     string `mapstructure:"path"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"database"`
	Emby struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		APIKey  string `mapstructure:"api_key"`
	} `mapstructure:"emby"`
	TMDB struct {
		Enabled bool   `mapstructure:"enabled"`
		APIKey  string `mapstructure:"api_key"`
	} `mapstructure:"tmdb"`
	OneBot struct {
		URL         string `mapstructure:"url"`
		AccessToken string `mapstructure:"access_token"`
	} `mapstructure:"onebot"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with an "ANIPUSH_"
	// prefix. e.g., ANIPUSH_EMBY_HOST overrides the `emby.host` key.
	viper.SetEnvPrefix("ANIPUSH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8777)
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("proxy", "")
	viper.SetDefault("database.path", "./data/anipush.db")
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("emby.enabled", false)
	viper.SetDefault("emby.host", "")
	viper.SetDefault("emby.api_key", "")
	viper.SetDefault("tmdb.enabled", false)
	viper.SetDefault("tmdb.api_key", "")
	viper.SetDefault("onebot.url", "ws://127.0.0.1:6700")
	viper.SetDefault("onebot.access_token", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
