package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// Config is the full runtime configuration of the mirror.
type Config struct {
	Mirror  MirrorConfig  `yaml:"mirror"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// MirrorConfig controls who is copied and how.
type MirrorConfig struct {
	// Target is the wallet to mirror: 0x address, profile URL or slug.
	Target string `yaml:"target"`

	// MonitoringMode selects the detection channels: mempool, polling
	// or hybrid.
	MonitoringMode string `yaml:"monitoring_mode"`

	IntervalSeconds  int     `yaml:"interval_seconds"`
	MinOrderUSD      float64 `yaml:"min_order_usd"`
	CopyMultiplier   float64 `yaml:"copy_multiplier"`
	Simulate         bool    `yaml:"simulate"`
	PollGraceSeconds int     `yaml:"poll_grace_seconds"`

	// PrivateKey signs live orders. Only read from the environment,
	// never from YAML.
	PrivateKey string `yaml:"-"`
}

// APIConfig holds the upstream base URLs.
type APIConfig struct {
	CLOBBase    string `yaml:"clob_base"`
	GammaBase   string `yaml:"gamma_base"`
	DataBase    string `yaml:"data_base"`
	SubgraphURL string `yaml:"subgraph_url"`
	RPCURL      string `yaml:"rpc_url"`
	AdvisorURL  string `yaml:"advisor_url"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, ":memory:", or "" to disable
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// values override YAML for the keys that map to them.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// TickInterval returns the engine tick interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Mirror.IntervalSeconds) * time.Second
}

// PollGrace returns how far back the first poll window reaches.
func (c *Config) PollGrace() time.Duration {
	return time.Duration(c.Mirror.PollGraceSeconds) * time.Second
}

// Mode returns the monitoring mode as its domain type.
func (c *Config) Mode() domain.MonitoringMode {
	return domain.MonitoringMode(c.Mirror.MonitoringMode)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Mirror.Target == "" {
		return fmt.Errorf("mirror.target is required")
	}
	if !c.Mode().Valid() {
		return fmt.Errorf("mirror.monitoring_mode %q: must be mempool, polling or hybrid", c.Mirror.MonitoringMode)
	}
	if c.Mirror.CopyMultiplier < 0 {
		return fmt.Errorf("mirror.copy_multiplier must not be negative")
	}
	if !c.Mirror.Simulate && c.Mirror.PrivateKey == "" {
		return fmt.Errorf("live mode needs POLY_PRIVATE_KEY set")
	}
	if c.Mode().Mempool() && c.API.RPCURL == "" {
		return fmt.Errorf("mempool monitoring needs api.rpc_url")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRROR_TARGET"); v != "" {
		cfg.Mirror.Target = v
	}
	if v := os.Getenv("MIRROR_MODE"); v != "" {
		cfg.Mirror.MonitoringMode = v
	}
	if v := os.Getenv("MIRROR_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Mirror.Simulate = b
		}
	}
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.Mirror.PrivateKey = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Mirror.MonitoringMode == "" {
		cfg.Mirror.MonitoringMode = string(domain.ModeHybrid)
	}
	if cfg.Mirror.IntervalSeconds <= 0 {
		cfg.Mirror.IntervalSeconds = 2
	}
	if cfg.Mirror.CopyMultiplier == 0 {
		cfg.Mirror.CopyMultiplier = 1
	}
	if cfg.Mirror.PollGraceSeconds <= 0 {
		cfg.Mirror.PollGraceSeconds = 30
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.SubgraphURL == "" {
		cfg.API.SubgraphURL = "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/positions-subgraph/prod/gn"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "mirror.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
