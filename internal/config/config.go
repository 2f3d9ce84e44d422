package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Deploy    DeployConfig    `toml:"deploy"`
	Redis     RedisConfig     `toml:"redis"`
	Retention RetentionConfig `toml:"retention"`
	Paths     PathsConfig     `toml:"paths"`

	// Runtime flags (not from TOML)
	Dev bool `toml:"-"`
}

type ServerConfig struct {
	Listen string `toml:"listen" validate:"required"`
}

type AuthConfig struct {
	// Token guards /api. Empty disables auth (dev only).
	Token       string `toml:"token"`
	StreamToken string `toml:"stream_token"` // read-only token for websocket progress streams
}

type DeployConfig struct {
	// TimeScale multiplies every simulated step duration.
	TimeScale float64 `toml:"time_scale" validate:"gte=0"`
	Workers   int     `toml:"workers" validate:"gte=1,lte=64"`
	QueueSize int     `toml:"queue_size" validate:"gte=1"`

	ConnectionDelay       Duration `toml:"connection_delay"`
	ConnectionFailureRate float64  `toml:"connection_failure_rate" validate:"gte=0,lte=1"`

	// ProbeEndpoints switches the connection tester from simulation to real
	// HTTP probes, keyed by provider id.
	ProbeEndpoints map[string]string `toml:"probe_endpoints" validate:"dive,keys,oneof=vercel netlify github-pages download,endkeys,url"`
	// ProbeTokens are the provider API tokens sent with connectivity checks.
	ProbeTokens map[string]string `toml:"probe_tokens" validate:"dive,keys,oneof=vercel netlify github-pages download,endkeys,required"`
}

type RedisConfig struct {
	// Addr enables the Redis-backed deployment lock. Empty uses the
	// in-process lock.
	Addr     string   `toml:"addr" validate:"omitempty,hostname_port"`
	Password string   `toml:"password"`
	DB       int      `toml:"db" validate:"gte=0"`
	LockTTL  Duration `toml:"lock_ttl"`
}

type RetentionConfig struct {
	Schedule string   `toml:"schedule" validate:"required"`
	MaxAge   Duration `toml:"max_age"`
}

type PathsConfig struct {
	StateFile string `toml:"state_file"`
}

// Duration decodes TOML strings such as "30s" or "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func DefaultDev() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Dev: true,
		Server: ServerConfig{
			Listen: "localhost:7890",
		},
		Deploy: DeployConfig{
			TimeScale:             0.25,
			Workers:               2,
			QueueSize:             16,
			ConnectionDelay:       Duration{time.Second},
			ConnectionFailureRate: 0.1,
		},
		Redis: RedisConfig{
			LockTTL: Duration{2 * time.Minute},
		},
		Retention: RetentionConfig{
			Schedule: "@every 10m",
			MaxAge:   Duration{24 * time.Hour},
		},
		Paths: PathsConfig{
			StateFile: filepath.Join(home, ".shipd", "deployments.json"),
		},
	}
}

func DefaultProd() *Config {
	return &Config{
		Dev: false,
		Server: ServerConfig{
			Listen: "0.0.0.0:7890",
		},
		Deploy: DeployConfig{
			TimeScale:             1,
			Workers:               4,
			QueueSize:             100,
			ConnectionDelay:       Duration{time.Second},
			ConnectionFailureRate: 0.1,
		},
		Redis: RedisConfig{
			LockTTL: Duration{2 * time.Minute},
		},
		Retention: RetentionConfig{
			Schedule: "@every 10m",
			MaxAge:   Duration{24 * time.Hour},
		},
		Paths: PathsConfig{
			StateFile: "/var/lib/shipd/deployments.json",
		},
	}
}

func Load(path string, dev bool) (*Config, error) {
	var cfg *Config
	if dev {
		cfg = DefaultDev()
	} else {
		cfg = DefaultProd()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the merged config. Call it after command-line overrides
// have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !c.Dev && c.Auth.Token == "" {
		return fmt.Errorf("config: auth.token is required outside dev mode")
	}
	return nil
}

func (c *Config) EnsureDirs() error {
	if c.Paths.StateFile == "" {
		return nil
	}
	dir := filepath.Dir(c.Paths.StateFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create dir %s: %w", dir, err)
	}
	return nil
}
