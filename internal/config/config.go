package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Exchanges Exchanges `mapstructure:"exchanges"`
	Trading   Trading   `mapstructure:"trading"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
}

// ExchangeKeys holds API credentials and client limits for one exchange.
type ExchangeKeys struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Exchanges holds the configuration for all supported trading platforms.
type Exchanges struct {
	Binance ExchangeKeys `mapstructure:"binance"`
	Kraken  ExchangeKeys `mapstructure:"kraken"`
}

// Server holds the ports for the dashboard web server and the trader's
// metrics listener.
type Server struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the configuration for the micro-processing loop.
type Trading struct {
	UserID          string   `mapstructure:"user_id"`
	Symbols         []string `mapstructure:"symbols"`
	TickInterval    int      `mapstructure:"tick_interval"`     // seconds between batch runs
	LockExpiry      int      `mapstructure:"lock_expiry"`       // seconds until a lock is considered abandoned
	InitialBalance  float64  `mapstructure:"initial_balance"`   // seeds the user account on first run
	DefaultTestMode bool     `mapstructure:"default_test_mode"` // seeded into new asset settings
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("exchanges.binance.rate_limit", 20) // requests per second
	viper.SetDefault("exchanges.binance.rate_limit_burst", 5)
	viper.SetDefault("exchanges.kraken.rate_limit", 1)
	viper.SetDefault("exchanges.kraken.rate_limit_burst", 1)
	viper.SetDefault("trading.tick_interval", 10)
	viper.SetDefault("trading.lock_expiry", 300)
	viper.SetDefault("trading.default_test_mode", true)
	viper.SetDefault("server.metrics_port", 9100)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
