package config

import (
	"fmt"
	"time"

	"docsync/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is shared by the server and the docctl client. Each side reads only
// the keys it needs.
type Config struct {
	HTTPAddr         string        `mapstructure:"http_addr" yaml:"http_addr"`
	DatabaseURL      string        `mapstructure:"database_url" yaml:"database_url"`
	JWTSecret        string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level"`
	DBConnectRetries int           `mapstructure:"db_connect_retries" yaml:"db_connect_retries"`
	DBRetryDelay     time.Duration `mapstructure:"db_retry_delay" yaml:"db_retry_delay"`
	AllowedOrigin    string        `mapstructure:"allowed_origin" yaml:"allowed_origin"`

	APIURL   string `mapstructure:"api_url" yaml:"api_url"`
	Token    string `mapstructure:"token" yaml:"token"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// Load reads an optional .env file, then DOCSYNC_* environment variables, then
// cfgFile when given. Environment wins over the file.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Debug("No .env file found, using environment variables from OS")
	}

	v := viper.New()
	v.SetEnvPrefix("DOCSYNC")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":4000")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_connect_retries", 5)
	v.SetDefault("db_retry_delay", 2*time.Second)
	v.SetDefault("allowed_origin", "*")
	v.SetDefault("api_url", "http://localhost:4000/api")
	v.SetDefault("token", "")
	v.SetDefault("client_id", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DBConnectRetries < 1 {
		c.DBConnectRetries = 1
	}
	return &c, nil
}
