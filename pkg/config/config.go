package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"StockPulse/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8085"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Backend string `yaml:"backend" default:"file" validate:"oneof=file redis memory"`
		Dir     string `yaml:"dir" default:"cache"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		PredictionTTL time.Duration `yaml:"prediction_ttl" default:"24h"`
		BacktestTTL   time.Duration `yaml:"backtest_ttl" default:"24h"`
		CalendarTTL   time.Duration `yaml:"calendar_ttl" default:"168h"`
		UniverseTTL   time.Duration `yaml:"universe_ttl" default:"24h"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"stockpulse.signals"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	} `yaml:"kafka"`
	Primary struct {
		BaseURL     string        `yaml:"base_url" validate:"required"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		RetryDelay  time.Duration `yaml:"retry_delay" default:"2s"`
		EpochDate   string        `yaml:"epoch_date" default:"2010-01-01"`
		RatePerSec  float64       `yaml:"rate_per_sec" default:"5"`
		RateBurst   float64       `yaml:"rate_burst" default:"10"`
	} `yaml:"primary"`
	Secondary struct {
		GatewayURL     string        `yaml:"gateway_url" validate:"required"`
		User           string        `yaml:"user"`
		Password       string        `yaml:"password"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
		MaxAttempts    int           `yaml:"max_attempts" default:"3"`
		RetryDelay     time.Duration `yaml:"retry_delay" default:"2s"`
		TrailingYears  int           `yaml:"trailing_years" default:"3"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"1s"`
	} `yaml:"secondary"`
	Sentiment struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		Pages   int           `yaml:"pages" default:"2"`
	} `yaml:"sentiment"`
	Calendar struct {
		SourceURL  string        `yaml:"source_url"`
		StartYear  int           `yaml:"start_year" default:"2020"`
		EndYear    int           `yaml:"end_year" default:"2030"`
		RefreshTTL time.Duration `yaml:"refresh_ttl" default:"168h"`
	} `yaml:"calendar"`
	Predict struct {
		TrainWindow int       `yaml:"train_window" default:"200"`
		WatchList   []Watched `yaml:"watch_list"`
	} `yaml:"predict"`
	Backtest struct {
		InitialCapital  float64 `yaml:"initial_capital" default:"100000"`
		TransactionCost float64 `yaml:"transaction_cost" default:"0.001"`
		MaxSymbols      int     `yaml:"max_symbols" default:"100"`
	} `yaml:"backtest"`
	Retention struct {
		KeepDays int `yaml:"keep_days" default:"1825"`
	} `yaml:"retention"`
	Scheduler struct {
		UniverseInterval time.Duration `yaml:"universe_interval" default:"24h"`
		PredictInterval  time.Duration `yaml:"predict_interval" default:"1h"`
		CalendarInterval time.Duration `yaml:"calendar_interval" default:"24h"`
	} `yaml:"scheduler"`
}

// Watched is one entry of the auto-prediction watch list.
type Watched struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Name   string `yaml:"name"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = "redis"
	}
	if v := os.Getenv("SECONDARY_USER"); v != "" {
		c.Secondary.User = v
	}
	if v := os.Getenv("SECONDARY_PASSWORD"); v != "" {
		c.Secondary.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("PRIMARY_RATE_PER_SEC"); v != "" {
		c.Primary.RatePerSec = util.ParseFloatDefault(v, c.Primary.RatePerSec)
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Calendar.StartYear >= c.Calendar.EndYear {
		return fmt.Errorf("calendar.start_year must be before calendar.end_year")
	}
	if c.Predict.TrainWindow < 60 {
		return fmt.Errorf("predict.train_window must be at least 60, got %d", c.Predict.TrainWindow)
	}
	return nil
}
