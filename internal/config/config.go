package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"creditpulse/internal/merton"
)

// Config represents the complete application configuration.
// Precedence: environment variables override the YAML file, which
// overrides the struct defaults.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Providers ProvidersConfig `yaml:"providers" envconfig:"PROVIDERS"`
	Analysis  merton.Config   `yaml:"analysis" envconfig:"ANALYSIS"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// AnalysisTimeout bounds a single analysis or sensitivity request.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" envconfig:"ANALYSIS_TIMEOUT" default:"60s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/creditpulse.log"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// ProvidersConfig configures the external market data providers.
type ProvidersConfig struct {
	Equity EquityProviderConfig `yaml:"equity" envconfig:"EQUITY"`
	FRED   FREDConfig           `yaml:"fred" envconfig:"FRED"`
}

// EquityProviderConfig configures the equity data source used to
// assemble solver inputs from a ticker symbol.
type EquityProviderConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://query1.finance.yahoo.com"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
	// RPS throttles outbound requests to stay inside the provider's
	// published limits.
	RPS   float64 `yaml:"rps" envconfig:"RPS" default:"2"`
	Burst int     `yaml:"burst" envconfig:"BURST" default:"4"`
}

// FREDConfig configures the FRED benchmark spread source. The series
// map is keyed by rating bucket; defaults are the ICE BofA option
// adjusted spread indices.
type FREDConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.stlouisfed.org/fred"`
	APIKey  string        `yaml:"api_key" envconfig:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
	RPS     float64       `yaml:"rps" envconfig:"RPS" default:"1"`
	Burst   int           `yaml:"burst" envconfig:"BURST" default:"2"`
	// Series maps a rating bucket to a FRED series ID. Omitted entries
	// fall back to DefaultSpreadSeries.
	Series map[string]string `yaml:"series" envconfig:"SERIES"`
}

// ExportConfig configures report export output.
type ExportConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR" default:"reports"`
}

// DefaultSpreadSeries maps rating buckets to the ICE BofA OAS indices
// published on FRED.
func DefaultSpreadSeries() map[string]string {
	return map[string]string{
		"AAA": "BAMLC0A1CAAA",
		"AA":  "BAMLC0A2CAA",
		"A":   "BAMLC0A3CA",
		"BBB": "BAMLC0A4CBBB",
		"BB":  "BAMLH0A1HYBB",
		"B":   "BAMLH0A2HYB",
		"CCC": "BAMLH0A3HYC",
	}
}

// Load loads configuration from the environment and an optional YAML
// file. The file path comes from CREDITPULSE_CONFIG_FILE, defaulting
// to config.yaml in the working directory; a missing file is not an
// error.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CREDITPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	configFile := os.Getenv("CREDITPULSE_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config from file %s: %w", configFile, err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge layers the file config under the env config. Fields with
// struct defaults are always non-zero after envconfig.Process, so the
// file value wins unless the corresponding variable was explicitly set
// in the environment.
func merge(fileCfg, envCfg Config) Config {
	if fileCfg.Server.Port != 0 && !envSet("CREDITPULSE_SERVER_PORT") {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if fileCfg.Server.ReadTimeout != 0 && !envSet("CREDITPULSE_SERVER_READ_TIMEOUT") {
		envCfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if fileCfg.Server.WriteTimeout != 0 && !envSet("CREDITPULSE_SERVER_WRITE_TIMEOUT") {
		envCfg.Server.WriteTimeout = fileCfg.Server.WriteTimeout
	}
	if fileCfg.Server.AnalysisTimeout != 0 && !envSet("CREDITPULSE_SERVER_ANALYSIS_TIMEOUT") {
		envCfg.Server.AnalysisTimeout = fileCfg.Server.AnalysisTimeout
	}
	if fileCfg.Logging.Level != "" && !envSet("CREDITPULSE_LOGGING_LEVEL") {
		envCfg.Logging.Level = fileCfg.Logging.Level
	}
	if fileCfg.Logging.Output != "" && !envSet("CREDITPULSE_LOGGING_OUTPUT") {
		envCfg.Logging.Output = fileCfg.Logging.Output
	}
	if envCfg.Providers.FRED.APIKey == "" {
		envCfg.Providers.FRED.APIKey = fileCfg.Providers.FRED.APIKey
	}
	if len(envCfg.Providers.FRED.Series) == 0 {
		envCfg.Providers.FRED.Series = fileCfg.Providers.FRED.Series
	}
	if len(envCfg.Security.AllowedOrigins) == 0 {
		envCfg.Security.AllowedOrigins = fileCfg.Security.AllowedOrigins
	}
	if len(envCfg.Analysis.StressScenarios) == 0 {
		envCfg.Analysis.StressScenarios = fileCfg.Analysis.StressScenarios
	}
	return envCfg
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// applyDefaults fills sections envconfig cannot default (maps, nested
// slices, and the analysis calibration).
func (c *Config) applyDefaults() {
	if c.Providers.FRED.Series == nil {
		c.Providers.FRED.Series = DefaultSpreadSeries()
	}
	if c.Analysis.RecoveryRate == 0 && c.Analysis.Solver.Tolerance == 0 {
		c.Analysis = merton.DefaultConfig()
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.AnalysisTimeout <= 0 {
		return fmt.Errorf("analysis timeout must be positive, got %s", c.Server.AnalysisTimeout)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}
	return nil
}
