// Package config loads the service configuration from a YAML file, applies
// defaults and validates required fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase is one (radius, TTL) round of offer broadcasting.
type Phase struct {
	RadiusKm   float64 `yaml:"radius_km"`
	TTLSeconds int     `yaml:"ttl_seconds"`
}

// TTL returns the phase window as a duration.
func (p Phase) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// Config contains all configuration of the dispatch service.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	HTTP struct {
		Port          int `yaml:"port"`
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"http"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`

	Dispatch struct {
		Phases            []Phase `yaml:"phases"`
		OffersActiveLimit int     `yaml:"offers_active_read_limit"`
		RidesHistoryLimit int     `yaml:"rides_history_read_limit"`
		InitialStatus     string  `yaml:"initial_status"`
		EarthRadiusKm     float64 `yaml:"earth_radius_km"`
		RecoveryOnStartup *bool   `yaml:"recovery_on_startup"`
	} `yaml:"dispatch"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and validates
// required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied; used by tests and by
// deployments that configure everything through the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults sets safe defaults for unset fields.
func (c *Config) ApplyDefaults() {
	// Database
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	// RabbitMQ
	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = "localhost"
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}

	// HTTP
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.HTTP.MaxConcurrent == 0 {
		c.HTTP.MaxConcurrent = 256
	}

	// Dispatch: three broadcast phases, 5km/15s then 5km/7s then 10km/12s.
	if len(c.Dispatch.Phases) == 0 {
		c.Dispatch.Phases = []Phase{
			{RadiusKm: 5, TTLSeconds: 15},
			{RadiusKm: 5, TTLSeconds: 7},
			{RadiusKm: 10, TTLSeconds: 12},
		}
	}
	if c.Dispatch.OffersActiveLimit == 0 {
		c.Dispatch.OffersActiveLimit = 20
	}
	if c.Dispatch.RidesHistoryLimit == 0 {
		c.Dispatch.RidesHistoryLimit = 50
	}
	if c.Dispatch.InitialStatus == "" {
		c.Dispatch.InitialStatus = "SEARCHING"
	}
	if c.Dispatch.EarthRadiusKm == 0 {
		c.Dispatch.EarthRadiusKm = 6371
	}
	if c.Dispatch.RecoveryOnStartup == nil {
		t := true
		c.Dispatch.RecoveryOnStartup = &t
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.name is required")
	}

	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, "http.port must be in 1..65535")
	}

	if c.JWT.SecretKey == "" {
		problems = append(problems, "jwt.secret_key is required")
	}

	for i, p := range c.Dispatch.Phases {
		if p.RadiusKm <= 0 {
			problems = append(problems, fmt.Sprintf("dispatch.phases[%d].radius_km must be positive", i))
		}
		if p.TTLSeconds <= 0 {
			problems = append(problems, fmt.Sprintf("dispatch.phases[%d].ttl_seconds must be positive", i))
		}
	}
	switch strings.ToUpper(c.Dispatch.InitialStatus) {
	case "OPEN", "SEARCHING":
	default:
		problems = append(problems, "dispatch.initial_status must be OPEN or SEARCHING")
	}
	if c.Dispatch.EarthRadiusKm <= 0 {
		problems = append(problems, "dispatch.earth_radius_km must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
