// Package config provides configuration management for the supervision system.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SupervisorConfig holds supervisor and capital-target configuration.
type SupervisorConfig struct {
	TargetEquity        float64       `mapstructure:"target_equity"`
	InitialInvestment   float64       `mapstructure:"initial_investment"`
	TimeframeYears      int           `mapstructure:"timeframe_years"`
	HealthCheckTick     time.Duration `mapstructure:"health_check_tick"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	MaxDrawdownPercent     float64 `mapstructure:"max_drawdown_percent"`
	RiskPerTradePercent    float64 `mapstructure:"risk_per_trade_percent"`
	PositionSizePercent    float64 `mapstructure:"position_size_percent"`
	MaxPositionSizePercent float64 `mapstructure:"max_position_size_percent"`
	MaxCorrelatedPositions int     `mapstructure:"max_correlated_positions"`
	MaxCorrelation         float64 `mapstructure:"max_correlation"`
	MinSharpe              float64 `mapstructure:"min_sharpe"`
	LookbackPeriod         int     `mapstructure:"lookback_period"`
	MinConfidence          float64 `mapstructure:"min_confidence"`
}

// LedgerConfig holds position ledger limits.
type LedgerConfig struct {
	MaxPositions int     `mapstructure:"max_positions"`
	MaxExposure  float64 `mapstructure:"max_exposure"`
	ReopenPolicy string  `mapstructure:"reopen_policy"` // reject, replace
}

// MonitorConfig holds metrics collector configuration.
type MonitorConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	MaxHistory     int           `mapstructure:"max_history"`
	CPUPercent     float64       `mapstructure:"cpu_percent"`
	MemoryPercent  float64       `mapstructure:"memory_percent"`
	DiskPercent    float64       `mapstructure:"disk_percent"`
	NetworkErrors  float64       `mapstructure:"network_errors"`
	LatencyMS      float64       `mapstructure:"latency_ms"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds postgres and journal configuration.
type DatabaseConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"ssl_mode"`
	JournalPath string `mapstructure:"journal_path"`
	RedisURL    string `mapstructure:"redis_url"`
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ExchangeConfig holds exchange credential configuration.
type ExchangeConfig struct {
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`
	PaperTrading bool   `mapstructure:"paper_trading"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/master-agent"
	}
	return filepath.Join(home, ".config", "master-agent")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config
// file is not an error; defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supervisor.target_equity", 1_000_000.0)
	v.SetDefault("supervisor.initial_investment", 500.0)
	v.SetDefault("supervisor.timeframe_years", 5)
	v.SetDefault("supervisor.health_check_tick", time.Minute)
	v.SetDefault("supervisor.health_check_interval", 5*time.Minute)

	v.SetDefault("risk.max_drawdown_percent", 20.0)
	v.SetDefault("risk.risk_per_trade_percent", 1.0)
	v.SetDefault("risk.position_size_percent", 2.0)
	v.SetDefault("risk.max_position_size_percent", 20.0)
	v.SetDefault("risk.max_correlated_positions", 3)
	v.SetDefault("risk.max_correlation", 0.7)
	v.SetDefault("risk.min_sharpe", 1.5)
	v.SetDefault("risk.lookback_period", 90)
	v.SetDefault("risk.min_confidence", 0.75)

	v.SetDefault("ledger.max_positions", 10)
	v.SetDefault("ledger.max_exposure", 100_000.0)
	v.SetDefault("ledger.reopen_policy", "reject")

	v.SetDefault("monitor.sample_interval", time.Minute)
	v.SetDefault("monitor.max_history", 1000)
	v.SetDefault("monitor.cpu_percent", 80.0)
	v.SetDefault("monitor.memory_percent", 80.0)
	v.SetDefault("monitor.disk_percent", 80.0)
	v.SetDefault("monitor.network_errors", 100.0)
	v.SetDefault("monitor.latency_ms", 1000.0)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "masteragent")
	v.SetDefault("database.password", "masteragent")
	v.SetDefault("database.name", "masteragent")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.journal_path", filepath.Join(DefaultConfigDir(), "journal.db"))
	v.SetDefault("database.redis_url", "redis://localhost:6379/0")

	v.SetDefault("exchange.paper_trading", true)

	v.SetDefault("logging.level", "info")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Database.RedisURL = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("EXCHANGE_PAPER_TRADING"); v != "" {
		cfg.Exchange.PaperTrading = v == "true"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Supervisor.InitialInvestment <= 0 {
		return fmt.Errorf("initial_investment must be positive")
	}
	if c.Supervisor.HealthCheckTick <= 0 || c.Supervisor.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check intervals must be positive")
	}
	if c.Risk.RiskPerTradePercent < 0 || c.Risk.RiskPerTradePercent > 100 {
		return fmt.Errorf("risk_per_trade_percent must be between 0 and 100")
	}
	if c.Risk.PositionSizePercent <= 0 || c.Risk.PositionSizePercent > 100 {
		return fmt.Errorf("position_size_percent must be between 0 and 100")
	}
	if c.Ledger.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive")
	}
	if c.Ledger.MaxExposure <= 0 {
		return fmt.Errorf("max_exposure must be positive")
	}
	if c.Ledger.ReopenPolicy != "reject" && c.Ledger.ReopenPolicy != "replace" {
		return fmt.Errorf("reopen_policy must be 'reject' or 'replace'")
	}
	if c.Monitor.MaxHistory <= 0 {
		return fmt.Errorf("max_history must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	return nil
}
