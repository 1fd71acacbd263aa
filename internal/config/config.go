// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider selects the position source and its parameters.
type Provider struct {
	// Kind is "sim" or "nmea".
	Kind      string  `yaml:"kind"`
	Port      string  `yaml:"port"`
	Baud      int     `yaml:"baud"`
	CenterLat float64 `yaml:"center_lat"`
	CenterLng float64 `yaml:"center_lng"`
}

// Collector is the remote endpoint sessions and fixes are reported to.
type Collector struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// Control configures the local control API.
type Control struct {
	Addr string `yaml:"addr"`
}

// Duration parses YAML duration strings like "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Dashboard configures the feed poller behind the TUI.
type Dashboard struct {
	PollInterval Duration `yaml:"poll_interval"`
}

// Archive configures local and remote sample sinks.
type Archive struct {
	LogFile  string `yaml:"log_file"`
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// TrackerConfig is the root configuration for the tracking agent.
type TrackerConfig struct {
	DeviceID  string    `yaml:"device_id"`
	RouteType string    `yaml:"route_type"`
	Provider  Provider  `yaml:"provider"`
	Collector Collector `yaml:"collector"`
	Control   Control   `yaml:"control"`
	Dashboard Dashboard `yaml:"dashboard"`
	Archive   Archive   `yaml:"archive"`
}

// Load loads YAML config, validates it against a CUE schema, and applies
// environment overrides.
func Load(configPath, cueSchemaPath string) (*TrackerConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg TrackerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)

	if cfg.Collector.BaseURL == "" {
		return nil, fmt.Errorf("collector.base_url is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *TrackerConfig) {
	if cfg.RouteType == "" {
		cfg.RouteType = "standard"
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "sim"
	}
	if cfg.Provider.Baud == 0 {
		cfg.Provider.Baud = 9600
	}
	if cfg.Control.Addr == "" {
		cfg.Control.Addr = ":8080"
	}
	if cfg.Dashboard.PollInterval == 0 {
		cfg.Dashboard.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Archive.Database == "" {
		cfg.Archive.Database = "public"
	}
	if cfg.Archive.Table == "" {
		cfg.Archive.Table = "location_samples"
	}
}

func applyEnv(cfg *TrackerConfig) {
	if v := os.Getenv("DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv("COLLECTOR_URL"); v != "" {
		cfg.Collector.BaseURL = v
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		cfg.Archive.Table = v
	}
	if v := os.Getenv("NMEA_PORT"); v != "" {
		cfg.Provider.Kind = "nmea"
		cfg.Provider.Port = v
	}
}
