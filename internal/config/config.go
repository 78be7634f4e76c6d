package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/engagestack/engagement-intel/internal/engine"
)

// Config captures the settings required to boot the engagement service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Clients     ClientsConfig     `yaml:"clients"`
	Source      SourceConfig      `yaml:"source"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Report      ReportConfig      `yaml:"report"`
	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// ClientsConfig groups remote integrations.
type ClientsConfig struct {
	Dashboard DashboardClientConfig `yaml:"dashboard"`
}

// DashboardClientConfig configures access to the dashboard backend.
type DashboardClientConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	DataPath          string        `yaml:"dataPath"`
	HealthPath        string        `yaml:"healthPath"`
	CommitPath        string        `yaml:"commitPath"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// SourceConfig configures the local sample-data source used when no
// backend URL is set.
type SourceConfig struct {
	SamplePath string `yaml:"samplePath"`
	Watch      bool   `yaml:"watch"`
}

// AggregationConfig holds the sentiment classification policy.
type AggregationConfig struct {
	PositiveThreshold float64 `yaml:"positiveThreshold"`
	NegativeThreshold float64 `yaml:"negativeThreshold"`
	NeutralBaseline   float64 `yaml:"neutralBaseline"`
}

// Thresholds converts the section into the engine policy.
func (a AggregationConfig) Thresholds() engine.Thresholds {
	return engine.Thresholds{
		Positive: a.PositiveThreshold,
		Negative: a.NegativeThreshold,
		Baseline: a.NeutralBaseline,
	}
}

// ReportConfig controls the recommendation report.
type ReportConfig struct {
	RulesPath    string       `yaml:"rulesPath"`
	NotebookPath string       `yaml:"notebookPath"`
	OpenAI       OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig enables the model-backed narrative summary.
type OpenAIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"apiKey"`
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of backend responses.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	PayloadTTL   time.Duration `yaml:"payloadTTL"`
	HealthTTL    time.Duration `yaml:"healthTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ENGAGEMENT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Aggregation.Thresholds().Validate(); err != nil {
		return fmt.Errorf("aggregation: %w", err)
	}
	if c.Clients.Dashboard.BaseURL == "" && c.Source.SamplePath == "" {
		return errors.New("either clients.dashboard.baseURL or source.samplePath must be set")
	}
	if c.Report.OpenAI.Enabled && c.Report.OpenAI.APIKey == "" {
		return errors.New("report.openai.enabled requires an API key")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.enabled requires cache.addr")
	}
	return nil
}

// Default returns the built-in configuration without file or environment
// overrides.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	thresholds := engine.DefaultThresholds()
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Dashboard: DashboardClientConfig{
				DataPath:          "/api/dashboard/data",
				HealthPath:        "/health",
				CommitPath:        "/api/notebooks/commit",
				Timeout:           5 * time.Second,
				RequestsPerSecond: 5,
				Burst:             2,
			},
		},
		Source: SourceConfig{SamplePath: "sample_data/engagements_sample.json"},
		Aggregation: AggregationConfig{
			PositiveThreshold: thresholds.Positive,
			NegativeThreshold: thresholds.Negative,
			NeutralBaseline:   thresholds.Baseline,
		},
		Report: ReportConfig{
			RulesPath:    "configs/rules/default.yaml",
			NotebookPath: "/Shared/Engagement_Analysis",
			OpenAI: OpenAIConfig{
				Model:   "gpt-4o-mini",
				Timeout: 30 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			KeyPrefix:    "engagement-intel:",
			HealthTTL:    30 * time.Second,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENGAGEMENT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ENGAGEMENT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ENGAGEMENT_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RefreshInterval = d
		}
	}
	if v := os.Getenv("ENGAGEMENT_API_BASE_URL"); v != "" {
		cfg.Clients.Dashboard.BaseURL = v
	}
	if v := os.Getenv("ENGAGEMENT_API_DATA_PATH"); v != "" {
		cfg.Clients.Dashboard.DataPath = v
	}
	if v := os.Getenv("ENGAGEMENT_API_HEALTH_PATH"); v != "" {
		cfg.Clients.Dashboard.HealthPath = v
	}
	if v := os.Getenv("ENGAGEMENT_API_COMMIT_PATH"); v != "" {
		cfg.Clients.Dashboard.CommitPath = v
	}
	if v := os.Getenv("ENGAGEMENT_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Dashboard.Timeout = d
		}
	}
	if v := os.Getenv("ENGAGEMENT_API_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Clients.Dashboard.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("ENGAGEMENT_SAMPLE_PATH"); v != "" {
		cfg.Source.SamplePath = v
	}
	if v := os.Getenv("ENGAGEMENT_SAMPLE_WATCH"); v != "" {
		cfg.Source.Watch = parseBool(v)
	}
	if v := os.Getenv("ENGAGEMENT_POSITIVE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Aggregation.PositiveThreshold = f
		}
	}
	if v := os.Getenv("ENGAGEMENT_NEGATIVE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Aggregation.NegativeThreshold = f
		}
	}
	if v := os.Getenv("ENGAGEMENT_NEUTRAL_BASELINE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Aggregation.NeutralBaseline = f
		}
	}
	if v := os.Getenv("ENGAGEMENT_RULES_PATH"); v != "" {
		cfg.Report.RulesPath = v
	}
	if v := os.Getenv("ENGAGEMENT_NOTEBOOK_PATH"); v != "" {
		cfg.Report.NotebookPath = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Report.OpenAI.APIKey = v
	}
	if v := os.Getenv("ENGAGEMENT_OPENAI_ENABLED"); v != "" {
		cfg.Report.OpenAI.Enabled = parseBool(v)
	}
	if v := os.Getenv("ENGAGEMENT_OPENAI_MODEL"); v != "" {
		cfg.Report.OpenAI.Model = v
	}
	if v := os.Getenv("ENGAGEMENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ENGAGEMENT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_PAYLOAD_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PayloadTTL = d
		}
	}
	if v := os.Getenv("ENGAGEMENT_CACHE_HEALTH_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.HealthTTL = d
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
