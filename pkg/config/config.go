package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nestlab/hutch/pkg/log"
)

// Config is hutch's complete runtime configuration: where durable
// state lives on disk, how long the cache and storage throttle last,
// and where drivers and package files are discovered/installed.
type Config struct {
	// BaseDir is the directory holding store.json, index.json, and
	// pool.json. Required.
	BaseDir string `yaml:"base_dir" validate:"required"`

	// DriversDir is the directory of driver stub YAML files consulted
	// by driver.Discover. An empty or nonexistent directory yields no
	// stubs, so only the GitHub fallback is registered.
	DriversDir string `yaml:"drivers_dir"`

	// RootDir is the directory installed package files are
	// materialized under.
	RootDir string `yaml:"root_dir" validate:"required"`

	// TrashDir is where removed package files are staged so a rollback
	// can restore them; nothing empties it after a successful remove.
	TrashDir string `yaml:"trash_dir" validate:"required"`

	// CacheTTL bounds how long a fetched RepositoryIndex is served
	// from cache before a repository.Fetch call re-hits the driver.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	// StorageTTL bounds how often LoadIfExpired re-reads the on-disk
	// JSON files inside a single process.
	StorageTTL time.Duration `yaml:"storage_ttl" validate:"gte=0"`

	// LogLevel and LogJSON configure pkg/log.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default TTLs for the cache and storage throttle.
const (
	DefaultCacheTTL   = 300 * time.Second
	DefaultStorageTTL = 5 * time.Second
)

// Defaults returns a Config with every field set to its default,
// rooted at base. Callers typically load a file over this to override
// individual fields.
func Defaults(base string) Config {
	return Config{
		BaseDir:    base,
		DriversDir: filepath.Join(base, "drivers"),
		RootDir:    filepath.Join(base, "root"),
		TrashDir:   filepath.Join(base, "trash"),
		CacheTTL:   DefaultCacheTTL,
		StorageTTL: DefaultStorageTTL,
		LogLevel:   string(log.InfoLevel),
		LogJSON:    false,
	}
}

// Load reads a YAML config file at path, applying it over Defaults
// for whatever base directory the file itself specifies (or the
// directory containing path, if the file is silent on base_dir), then
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	base := filepath.Dir(path)
	var probe struct {
		BaseDir string `yaml:"base_dir"`
	}
	if err := yaml.Unmarshal(data, &probe); err == nil && probe.BaseDir != "" {
		base = probe.BaseDir
	}
	cfg := Defaults(base)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets a small set of environment variables win over
// whatever the YAML file set, without requiring a full env-to-struct
// decoder for a handful of knobs.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUTCH_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("HUTCH_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv("HUTCH_STORAGE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StorageTTL = d
		}
	}
	if v := os.Getenv("HUTCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks struct tags via go-playground/validator and a
// handful of cross-field rules the tags can't express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: cache_ttl must be non-negative")
	}
	if c.StorageTTL < 0 {
		return fmt.Errorf("config: storage_ttl must be non-negative")
	}
	return nil
}
