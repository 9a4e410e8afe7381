package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Inference    InferenceConfig    `mapstructure:"inference"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Security     SecurityConfig     `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RiskConfig struct {
	MaxPositionPct float64 `mapstructure:"max_position_pct"`
	MaxDrawdownPct float64 `mapstructure:"max_drawdown_pct"`
	MaxDailyLoss   float64 `mapstructure:"max_daily_loss"`
	StopLossPct    float64 `mapstructure:"stop_loss_pct"`
	MaxPositions   int     `mapstructure:"max_positions"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
}

type OrchestratorConfig struct {
	Symbol       string `mapstructure:"symbol"`
	CycleTimeout string `mapstructure:"cycle_timeout"`
	AgentTimeout string `mapstructure:"agent_timeout"`
	LockTTL      string `mapstructure:"lock_ttl"`
}

type InferenceConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"` // seconds
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry string `mapstructure:"jwt_expiry"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	environment := strings.ToLower(config.Environment)

	// The emergency-reset endpoint is useless without a verifiable token.
	if environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	for name, raw := range map[string]string{
		"cycle_timeout": config.Orchestrator.CycleTimeout,
		"agent_timeout": config.Orchestrator.AgentTimeout,
		"lock_ttl":      config.Orchestrator.LockTTL,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid orchestrator %s: %w", name, err)
		}
	}

	if config.Risk.MaxDrawdownPct <= 0 || config.Risk.MaxDrawdownPct >= 1 {
		return nil, fmt.Errorf("risk max_drawdown_pct must be in (0,1), got %v", config.Risk.MaxDrawdownPct)
	}
	if config.Risk.MinConfidence < 0 || config.Risk.MinConfidence > 1 {
		return nil, fmt.Errorf("risk min_confidence must be in [0,1], got %v", config.Risk.MinConfidence)
	}

	config.Environment = environment

	return &config, nil
}

// Duration parses one of the orchestrator duration fields; Load already
// validated them.
func Duration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "quantara")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Risk
	viper.SetDefault("risk.max_position_pct", 0.10)
	viper.SetDefault("risk.max_drawdown_pct", 0.25)
	viper.SetDefault("risk.max_daily_loss", 5000.0)
	viper.SetDefault("risk.stop_loss_pct", 0.05)
	viper.SetDefault("risk.max_positions", 20)
	viper.SetDefault("risk.min_confidence", 0.6)
	viper.SetDefault("risk.risk_free_rate", 0.05)

	// Orchestrator
	viper.SetDefault("orchestrator.symbol", "BTC/USDT")
	viper.SetDefault("orchestrator.cycle_timeout", "25s")
	viper.SetDefault("orchestrator.agent_timeout", "10s")
	viper.SetDefault("orchestrator.lock_ttl", "30s")

	// Inference
	viper.SetDefault("inference.service_url", "")
	viper.SetDefault("inference.timeout", 10)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
}
