package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/pkg/database"
)

// EnvPrefix prefixes every environment override, e.g. HYDRO_DATABASE_HOST
const EnvPrefix = "HYDRO"

// Config is the dashboard server configuration
type Config struct {
	Server      ServerConfig               `mapstructure:"server"`
	Database    DatabaseConfig             `mapstructure:"database"`
	Logging     LoggingConfig              `mapstructure:"logging"`
	Dashboard   DashboardConfig            `mapstructure:"dashboard"`
	Alerts      AlertsConfig               `mapstructure:"alerts"`
	Constraints []evaluator.ConstraintRule `mapstructure:"constraints"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DashboardConfig tunes the data access gateway and its cache
type DashboardConfig struct {
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	AllowedColumns []string      `mapstructure:"allowed_columns"`
}

// AlertsConfig holds the alert thresholds and the background sweep schedule
type AlertsConfig struct {
	Thresholds    evaluator.Thresholds `mapstructure:"thresholds"`
	SweepEnabled  bool                 `mapstructure:"sweep_enabled"`
	SweepSchedule string               `mapstructure:"sweep_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", database.DriverMySQL)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "may_2025_data")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)

	v.SetDefault("logging.level", "info")

	v.SetDefault("dashboard.fetch_timeout", repository.DefaultFetchTimeout)
	v.SetDefault("dashboard.cache_ttl", 300*time.Second)
	v.SetDefault("dashboard.allowed_columns", repository.DefaultAllowedColumns)

	th := evaluator.DefaultThresholds()
	v.SetDefault("alerts.thresholds.battery_min_volts", th.BatteryMinVolts)
	v.SetDefault("alerts.thresholds.gate_max_opening", th.GateMaxOpening)
	v.SetDefault("alerts.thresholds.epan_min_depth", th.EPANMinDepth)
	v.SetDefault("alerts.thresholds.aws_max_rainfall", th.AWSMaxRainfall)
	v.SetDefault("alerts.thresholds.aws_max_wind_speed", th.AWSMaxWindSpeed)
	v.SetDefault("alerts.thresholds.aws_max_temperature", th.AWSMaxTemperature)
	v.SetDefault("alerts.sweep_enabled", true)
	v.SetDefault("alerts.sweep_schedule", "*/15 * * * *")
}

// LoadConfig reads config.yaml from the working directory or ./config,
// then applies HYDRO_* environment overrides. A missing file is fine.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(cfg.Constraints) == 0 {
		cfg.Constraints = evaluator.DefaultConstraintRules()
	}

	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverMySQL:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for driver %s", c.Database.Driver)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for driver %s", c.Database.Driver)
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection pool sizes must not be negative")
	}

	if c.Dashboard.FetchTimeout <= 0 {
		return fmt.Errorf("dashboard.fetch_timeout must be positive")
	}
	if c.Dashboard.CacheTTL < 0 {
		return fmt.Errorf("dashboard.cache_ttl must not be negative")
	}
	if _, err := repository.NewColumnAllowList(c.Dashboard.AllowedColumns); err != nil {
		return fmt.Errorf("dashboard.allowed_columns: %w", err)
	}

	if c.Alerts.SweepEnabled {
		if _, err := cron.ParseStandard(c.Alerts.SweepSchedule); err != nil {
			return fmt.Errorf("alerts.sweep_schedule: %w", err)
		}
	}

	if _, err := evaluator.NewConstraintRegistry(c.Constraints); err != nil {
		return fmt.Errorf("constraints: %w", err)
	}

	return nil
}

// DatabaseConfig converts the database section for pkg/database
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
