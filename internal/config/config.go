package config

import (
	"os"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Challenge struct {
		TTL string `yaml:"ttl"`
	} `yaml:"challenge"`
	Auth struct {
		Secret   string `yaml:"secret"`
		Domain   string `yaml:"domain"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Scoring struct {
		Easy   int `yaml:"easy"`
		Medium int `yaml:"medium"`
		Hard   int `yaml:"hard"`
	} `yaml:"scoring"`
	Live struct {
		Interval string `yaml:"interval"`
		Limit    int    `yaml:"limit"`
	} `yaml:"live"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PointsTable builds the scoring policy, falling back to the default scaled
// table for any tier left unset.
func (c Config) PointsTable() domain.PointsTable {
	table := domain.DefaultPointsTable()
	if c.Scoring.Easy > 0 {
		table[domain.DifficultyEasy] = c.Scoring.Easy
	}
	if c.Scoring.Medium > 0 {
		table[domain.DifficultyMedium] = c.Scoring.Medium
	}
	if c.Scoring.Hard > 0 {
		table[domain.DifficultyHard] = c.Scoring.Hard
	}
	return table
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
