package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config models stargate.yml.
type Config struct {
	RetirementTitle string `yaml:"retirement_title"`
	Log             struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Audit struct {
		QueueSize   int    `yaml:"queue_size"`
		Environment string `yaml:"environment"`
	} `yaml:"audit"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Archive Archive `yaml:"archive"`
	Seed    struct {
		People []SeedPerson `yaml:"people"`
	} `yaml:"seed"`
}

type Archive struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	Dir             string `yaml:"dir"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// SeedPerson is a demo person created by `stargate seed`.
type SeedPerson struct {
	Name   string     `yaml:"name"`
	Duties []SeedDuty `yaml:"duties"`
}

type SeedDuty struct {
	RankID      int64  `yaml:"rank_id"`
	DutyTitleID int64  `yaml:"duty_title_id"`
	StartDate   string `yaml:"start_date"`
}

// Load reads and validates config from workspace, falling back to defaults
// when stargate.yml is absent.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RetirementTitle) == "" {
		return fmt.Errorf("config.retirement_title is required")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("config.audit.queue_size must be positive")
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Archive.Bucket != "" && c.Archive.Dir != "" {
		return fmt.Errorf("config.archive: set bucket or dir, not both")
	}
	for i, p := range c.Seed.People {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("config.seed.people[%d] has empty name", i)
		}
		for j, d := range p.Duties {
			if d.RankID <= 0 || d.DutyTitleID <= 0 || d.StartDate == "" {
				return fmt.Errorf("seed person %s duty %d needs rank_id, duty_title_id and start_date", p.Name, j)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stargate.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	// Seed people are replaced, not merged, when the file lists any.
	cfg.Seed.People = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Seed.People == nil {
		cfg.Seed.People = Default().Seed.People
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `retirement_title: RETIRED

log:
  level: info
  format: text

audit:
  queue_size: 256
  environment: development

database:
  driver: sqlite
  dsn: ""

archive:
  prefix: rosters/

seed:
  people:
    - name: John Doe
      duties:
        - rank_id: 2
          duty_title_id: 1
          start_date: "2020-01-01"
    - name: Jane Doe
`
