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
)

// Config captures the settings required to boot the trust engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Collector  CollectorConfig  `yaml:"collector"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Weights    WeightsConfig    `yaml:"weights"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Playbooks  PlaybooksConfig  `yaml:"playbooks"`
	History    HistoryConfig    `yaml:"history"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// CollectorConfig configures access to the external metrics snapshot source.
type CollectorConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	SnapshotPath string        `yaml:"snapshotPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MonitorConfig controls the periodic governance loop.
type MonitorConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

// ThresholdsConfig centralises detection thresholds. Each rule compares a
// snapshot field against exactly one of these values; no threshold is ever
// embedded at a call site.
type ThresholdsConfig struct {
	AccuracyDropCritical float64 `yaml:"accuracyDropCritical"`
	BiasCritical         float64 `yaml:"biasCritical"`
	DailyCostLimitUSD    float64 `yaml:"dailyCostLimitUSD"`
	HallucinationLimit   float64 `yaml:"hallucinationLimit"`
	LatencyLimitMs       float64 `yaml:"latencyLimitMs"`
	SystemUsagePercent   float64 `yaml:"systemUsagePercent"`
}

// WeightsConfig controls trust score penalty weights.
type WeightsConfig struct {
	DriftModerate  float64 `yaml:"driftModerate"`
	DriftHigh      float64 `yaml:"driftHigh"`
	AccuracyFactor float64 `yaml:"accuracyFactor"`
	BiasFactor     float64 `yaml:"biasFactor"`
	OverrideFactor float64 `yaml:"overrideFactor"`
}

// AlertingConfig configures recipients, transports and the dedup window.
type AlertingConfig struct {
	CooldownWindow time.Duration `yaml:"cooldownWindow"`
	Recipients     Recipients    `yaml:"recipients"`
	SMTP           SMTPConfig    `yaml:"smtp"`
	SMSGateway     SMSConfig     `yaml:"smsGateway"`
}

// Recipients lists notification targets per channel. SMS may be empty; that
// is a valid silent no-op, not an error.
type Recipients struct {
	Email []string `yaml:"email"`
	SMS   []string `yaml:"sms"`
}

// SMTPConfig configures the outbound mail relay.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SMSConfig configures the HTTP SMS gateway.
type SMSConfig struct {
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Sender  string        `yaml:"sender"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlaybooksConfig controls playbook-pack loading for the executor.
type PlaybooksConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig selects the audit store backend.
type HistoryConfig struct {
	Backend     string `yaml:"backend"` // "memory" or "postgres"
	PostgresDSN string `yaml:"postgresDSN"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls the Redis-backed cooldown/cache provider. Disabled
// means cooldown state stays in process memory.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment
// overrides, then validates it. Validation failures abort startup: a silent
// wrong threshold would be worse than a crash on boot.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GOVERN_TRUST_CONFIG")
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

// Validate enforces the fail-fast configuration contract.
func (c *Config) Validate() error {
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.pollInterval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Alerting.CooldownWindow <= 0 {
		return fmt.Errorf("alerting.cooldownWindow must be positive, got %s", c.Alerting.CooldownWindow)
	}
	if c.Thresholds.AccuracyDropCritical <= 0 {
		return errors.New("thresholds.accuracyDropCritical is required")
	}
	if c.Thresholds.BiasCritical <= 0 || c.Thresholds.BiasCritical > 1 {
		return fmt.Errorf("thresholds.biasCritical must be in (0,1], got %g", c.Thresholds.BiasCritical)
	}
	if c.Thresholds.DailyCostLimitUSD <= 0 {
		return errors.New("thresholds.dailyCostLimitUSD is required")
	}
	if c.Thresholds.HallucinationLimit <= 0 || c.Thresholds.HallucinationLimit > 1 {
		return fmt.Errorf("thresholds.hallucinationLimit must be in (0,1], got %g", c.Thresholds.HallucinationLimit)
	}
	if c.Thresholds.LatencyLimitMs <= 0 {
		return errors.New("thresholds.latencyLimitMs is required")
	}
	for _, addr := range c.Alerting.Recipients.Email {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("alerting.recipients.email entry %q is not an address", addr)
		}
	}
	if len(c.Alerting.Recipients.Email) > 0 && c.Alerting.SMTP.Host == "" {
		return errors.New("alerting.smtp.host is required when email recipients are configured")
	}
	if len(c.Alerting.Recipients.SMS) > 0 && c.Alerting.SMSGateway.BaseURL == "" {
		return errors.New("alerting.smsGateway.baseURL is required when sms recipients are configured")
	}
	switch c.History.Backend {
	case "", "memory":
	case "postgres":
		if c.History.PostgresDSN == "" {
			return errors.New("history.postgresDSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("history.backend %q is not supported", c.History.Backend)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8700",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Collector: CollectorConfig{
			SnapshotPath: "/api/v1/monitoring/snapshot",
			Timeout:      5 * time.Second,
		},
		Monitor: MonitorConfig{PollInterval: 5 * time.Minute},
		Thresholds: ThresholdsConfig{
			AccuracyDropCritical: 0.10,
			BiasCritical:         0.30,
			DailyCostLimitUSD:    5.0,
			HallucinationLimit:   0.10,
			LatencyLimitMs:       5000,
			SystemUsagePercent:   80,
		},
		Weights: WeightsConfig{
			DriftModerate:  15,
			DriftHigh:      30,
			AccuracyFactor: 25,
			BiasFactor:     20,
			OverrideFactor: 10,
		},
		Alerting: AlertingConfig{
			CooldownWindow: 5 * time.Minute,
			SMTP:           SMTPConfig{Port: 587, Timeout: 10 * time.Second},
			SMSGateway:     SMSConfig{Timeout: 5 * time.Second},
		},
		Playbooks: PlaybooksConfig{Path: "configs/playbooks/default.yaml"},
		History:   HistoryConfig{Backend: "memory"},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOVERN_TRUST_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GOVERN_TRUST_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("GOVERN_TRUST_COLLECTOR_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("GOVERN_TRUST_COLLECTOR_SNAPSHOT_PATH"); v != "" {
		cfg.Collector.SnapshotPath = v
	}
	if v := os.Getenv("GOVERN_TRUST_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.PollInterval = d
		}
	}
	if v := os.Getenv("GOVERN_TRUST_COOLDOWN_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alerting.CooldownWindow = d
		}
	}
	if v := os.Getenv("GOVERN_TRUST_EMAIL_RECIPIENTS"); v != "" {
		cfg.Alerting.Recipients.Email = splitList(v)
	}
	if v := os.Getenv("GOVERN_TRUST_SMS_RECIPIENTS"); v != "" {
		cfg.Alerting.Recipients.SMS = splitList(v)
	}
	if v := os.Getenv("GOVERN_TRUST_SMTP_HOST"); v != "" {
		cfg.Alerting.SMTP.Host = v
	}
	if v := os.Getenv("GOVERN_TRUST_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Alerting.SMTP.Port = port
		}
	}
	if v := os.Getenv("GOVERN_TRUST_SMTP_USERNAME"); v != "" {
		cfg.Alerting.SMTP.Username = v
	}
	if v := os.Getenv("GOVERN_TRUST_SMTP_PASSWORD"); v != "" {
		cfg.Alerting.SMTP.Password = v
	}
	if v := os.Getenv("GOVERN_TRUST_SMTP_FROM"); v != "" {
		cfg.Alerting.SMTP.From = v
	}
	if v := os.Getenv("GOVERN_TRUST_SMS_GATEWAY_URL"); v != "" {
		cfg.Alerting.SMSGateway.BaseURL = v
	}
	if v := os.Getenv("GOVERN_TRUST_SMS_GATEWAY_API_KEY"); v != "" {
		cfg.Alerting.SMSGateway.APIKey = v
	}
	if v := os.Getenv("GOVERN_TRUST_PLAYBOOKS_PATH"); v != "" {
		cfg.Playbooks.Path = v
	}
	if v := os.Getenv("GOVERN_TRUST_HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("GOVERN_TRUST_POSTGRES_DSN"); v != "" {
		cfg.History.PostgresDSN = v
	}
	if v := os.Getenv("GOVERN_TRUST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GOVERN_TRUST_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("GOVERN_TRUST_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
