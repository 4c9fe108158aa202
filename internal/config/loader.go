// Package config loads service configuration from config.yaml with
// environment overrides.
package config

import (
	"github.com/rmorley/dqcheck/internal/db"
	"github.com/rmorley/dqcheck/internal/search"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Search   search.Config
	Server   ServerConfig
	LogMode  string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string
}

// Load reads config.yaml from the given path, falling back to defaults and
// environment variables when the file is absent.
func Load(configPath string) (Config, bool, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Search:   search.DefaultConfig(),
		Server:   ServerConfig{Addr: ":8080"},
		LogMode:  "production",
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DQ")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("search.addr")
	v.BindEnv("search.password")
	v.BindEnv("search.db")
	v.BindEnv("server.addr")
	v.BindEnv("log.mode")

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		fileLoaded = false
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("search.addr") {
		cfg.Search.Addr = v.GetString("search.addr")
	}
	if v.IsSet("search.password") {
		cfg.Search.Password = v.GetString("search.password")
	}
	if v.IsSet("search.db") {
		cfg.Search.DB = v.GetInt("search.db")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("log.mode") {
		cfg.LogMode = v.GetString("log.mode")
	}

	return cfg, fileLoaded, nil
}
