package config

import (
	"os"
	"time"

	"daily-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Timezone   string `yaml:"timezone"`
		CatalogTTL string `yaml:"catalog_ttl"`
		Fixtures   string `yaml:"fixtures"`
	} `yaml:"quiz"`
	Rewards struct {
		PerCorrect      int64 `yaml:"per_correct"`
		CompletionBonus int64 `yaml:"completion_bonus"`
	} `yaml:"rewards"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
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

// Location resolves the quiz timezone; day boundaries are computed in it.
func (c Config) Location() (*time.Location, error) {
	if c.Quiz.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Quiz.Timezone)
}

// DefaultRewards returns the configured seed rates.
func (c Config) DefaultRewards() domain.RewardSettings {
	return domain.RewardSettings{
		PerCorrect:      c.Rewards.PerCorrect,
		CompletionBonus: c.Rewards.CompletionBonus,
	}
}
