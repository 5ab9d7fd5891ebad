package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AmountLimitConfig bounds a single currency, decimal strings.
type AmountLimitConfig struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

// LimitsConfig holds the validation policy knobs.
type LimitsConfig struct {
	PerCurrency       map[string]AmountLimitConfig `yaml:"per_currency"`
	EnabledNetworks   []string                     `yaml:"enabled_networks"`
	MaxDescriptionLen int                          `yaml:"max_description_len"`
}

// FeesConfig configures the fee rate sources.
type FeesConfig struct {
	ProviderURL     string `yaml:"provider_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

func (f FeesConfig) Timeout() time.Duration  { return time.Duration(f.TimeoutSeconds) * time.Second }
func (f FeesConfig) CacheTTL() time.Duration { return time.Duration(f.CacheTTLSeconds) * time.Second }

// RateLimitConfig is the per-IP request limit on the HTTP surface.
type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
		DLQTopic         string `yaml:"dlq_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	ClickHouse struct {
		Addr string `yaml:"addr"`
	} `yaml:"clickhouse"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	OIDC struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"oidc"`
	Fees      FeesConfig      `yaml:"fees"`
	Limits    LimitsConfig    `yaml:"limits"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// VelocityCaps maps currency code to the per-user daily cap, as a
	// decimal string. Currencies left out are uncapped.
	VelocityCaps map[string]string `yaml:"velocity_caps"`
	Compliance   struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"compliance"`
	Settlement struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"settlement"`
	Chain struct {
		GatewayURL       string `yaml:"gateway_url"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		MinConfirmations int    `yaml:"min_confirmations"`
		PollSeconds      int    `yaml:"poll_seconds"`
	} `yaml:"chain"`
}

// Load reads the YAML file at configPath, expanding ${VAR} references from
// the environment before parsing, so secrets stay out of the file itself.
func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(file))

	config := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return config, nil
}
