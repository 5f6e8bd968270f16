package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RoomSpec describes one bookable room.
type RoomSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CottageSpec describes one bookable cottage with its flat per-day rate.
type CottageSpec struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	DayRate int64  `yaml:"day_rate"`
}

// HallSpec describes one function hall tier.
type HallSpec struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	BasePrice           int64  `yaml:"base_price"`
	RecommendedCapacity int    `yaml:"recommended_capacity"`
	MaxCapacity         int    `yaml:"max_capacity"`
}

type Config struct {
	Server struct {
		Port       int     `yaml:"port"`
		APIKey     string  `yaml:"api_key"`
		RatePerSec float64 `yaml:"rate_per_sec"`
		RateBurst  int     `yaml:"rate_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Backend struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"backend"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Sweeper struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes"`
		PendingTTLHours int  `yaml:"pending_ttl_hours"`
	} `yaml:"sweeper"`

	Pricing struct {
		RoomNightlyRate     int64 `yaml:"room_nightly_rate"`
		SoundSystem         int64 `yaml:"sound_system"`
		Projector           int64 `yaml:"projector"`
		LEDLighting         int64 `yaml:"led_lighting"`
		ExtraSeatingFlat    int64 `yaml:"extra_seating_flat"`
		ExtraSeatingPerUnit int64 `yaml:"extra_seating_per_unit"`
		CateringPerHead     int64 `yaml:"catering_per_head"`
	} `yaml:"pricing"`

	Catalog struct {
		Rooms    []RoomSpec    `yaml:"rooms"`
		Cottages []CottageSpec `yaml:"cottages"`
		Halls    []HallSpec    `yaml:"halls"`
	} `yaml:"catalog"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders and
// filling defaults for anything left unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if cfg.Database.Path != "" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Default returns a config with all defaults applied, for tests and for
// running without a config file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero-valued fields with the built-in defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RatePerSec <= 0 {
		c.Server.RatePerSec = 20
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 40
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/costamar.db"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Sweeper.IntervalMinutes <= 0 {
		c.Sweeper.IntervalMinutes = 15
	}
	if c.Sweeper.PendingTTLHours <= 0 {
		c.Sweeper.PendingTTLHours = 48
	}

	if c.Pricing.RoomNightlyRate == 0 {
		c.Pricing.RoomNightlyRate = 2500
	}
	if c.Pricing.SoundSystem == 0 {
		c.Pricing.SoundSystem = 3000
	}
	if c.Pricing.Projector == 0 {
		c.Pricing.Projector = 1500
	}
	if c.Pricing.LEDLighting == 0 {
		c.Pricing.LEDLighting = 2000
	}
	if c.Pricing.ExtraSeatingFlat == 0 {
		c.Pricing.ExtraSeatingFlat = 1000
	}
	if c.Pricing.ExtraSeatingPerUnit == 0 {
		c.Pricing.ExtraSeatingPerUnit = 70
	}
	if c.Pricing.CateringPerHead == 0 {
		c.Pricing.CateringPerHead = 350
	}

	if len(c.Catalog.Rooms) == 0 {
		c.Catalog.Rooms = []RoomSpec{
			{ID: "room-01", Name: "Room 01"},
			{ID: "room-02", Name: "Room 02"},
			{ID: "room-03", Name: "Room 03"},
			{ID: "room-04", Name: "Room 04"},
		}
	}
	if len(c.Catalog.Cottages) == 0 {
		c.Catalog.Cottages = []CottageSpec{
			{ID: "family-cottage", Name: "Family Cottage", DayRate: 1800},
			{ID: "garden-cottage", Name: "Garden Cottage", DayRate: 1500},
			{ID: "seaside-cottage", Name: "Seaside Cottage", DayRate: 2000},
		}
	}
	if len(c.Catalog.Halls) == 0 {
		c.Catalog.Halls = []HallSpec{
			{ID: "grand-pavilion", Name: "Grand Pavilion", BasePrice: 15000, RecommendedCapacity: 100, MaxCapacity: 200},
			{ID: "palm-hall", Name: "Palm Hall", BasePrice: 9000, RecommendedCapacity: 60, MaxCapacity: 120},
		}
	}
}
