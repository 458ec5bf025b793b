package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	Logging   logging.Config    `mapstructure:"logging"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler"`
	Moralis   MoralisConfig     `mapstructure:"moralis"`
	Chains    map[string]string `mapstructure:"chains"`
	Email     EmailConfig       `mapstructure:"email"`
	Alerting  AlertingConfig    `mapstructure:"alerting"`
	API       APIConfig         `mapstructure:"api"`
	Export    ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MoralisConfig captures quote provider connectivity.
type MoralisConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// EmailConfig covers the outbound SMTP transport.
type EmailConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	From           string        `mapstructure:"from"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	OperatorEmail     string        `mapstructure:"operator_email"`
	TrendWindow       time.Duration `mapstructure:"trend_window"`
	TrendThresholdPct float64       `mapstructure:"trend_threshold_pct"`
}

// APIConfig governs the HTTP surface.
type APIConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICETRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricetracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// The upstream requirement stated five minutes while the deployed trigger
	// fired every thirty seconds; thirty seconds is the behaviour we keep.
	v.SetDefault("scheduler.interval", "30s")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70726963))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("moralis.base_url", "https://deep-index.moralis.io/api/v2.2")
	v.SetDefault("moralis.request_timeout", "10s")
	v.SetDefault("moralis.user_agent", "pricetracker/1.0")

	// WETH on Ethereum mainnet, WMATIC on Polygon.
	v.SetDefault("chains.ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("chains.polygon", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")

	v.SetDefault("email.host", "smtp.gmail.com")
	v.SetDefault("email.port", 465)
	v.SetDefault("email.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.trend_window", "1h")
	v.SetDefault("alerting.trend_threshold_pct", 3.0)

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for chain, address := range c.Chains {
		if !common.IsHexAddress(address) {
			return fmt.Errorf("chains.%s: %q is not a valid token contract address", chain, address)
		}
	}
	if c.Alerting.TrendWindow <= 0 {
		return fmt.Errorf("alerting.trend_window must be greater than zero")
	}
	if c.Alerting.TrendThresholdPct <= 0 {
		return fmt.Errorf("alerting.trend_threshold_pct must be greater than zero")
	}
	if c.Alerting.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email.host must be configured when alerting is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from must be configured when alerting is enabled")
		}
		if c.Alerting.OperatorEmail == "" {
			return fmt.Errorf("alerting.operator_email must be configured when alerting is enabled")
		}
	}
	return nil
}

// ChainNames returns the configured chain identifiers in deterministic order.
func (c *Config) ChainNames() []string {
	names := make([]string, 0, len(c.Chains))
	for name := range c.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
