package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Address        string   `yaml:"address"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		IntentRPS      float64  `yaml:"intent_rps"`
		IntentBurst    int      `yaml:"intent_burst"`
	} `yaml:"http"`

	Database struct {
		Path     string `yaml:"path"`
		Timezone string `yaml:"timezone"`
	} `yaml:"database"`

	Storage struct {
		ReadRetries int `yaml:"read_retries"`
	} `yaml:"storage"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Notifications struct {
		Telegram struct {
			BotToken    string  `yaml:"bot_token"`
			ChatIDs     []int64 `yaml:"chat_ids"`
			DailyDigest bool    `yaml:"daily_digest"`
			DigestHour  int     `yaml:"digest_hour"` // 0-23, local to database.timezone
		} `yaml:"telegram"`
	} `yaml:"notifications"`

	Events struct {
		NATS struct {
			URL           string `yaml:"url"`
			SubjectPrefix string `yaml:"subject_prefix"`
		} `yaml:"nats"`
	} `yaml:"events"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`

	TechniciansPath string `yaml:"technicians_path"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${VAR} placeholders can reference it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8000"
	}
	if c.HTTP.IntentRPS <= 0 {
		c.HTTP.IntentRPS = 5
	}
	if c.HTTP.IntentBurst <= 0 {
		c.HTTP.IntentBurst = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/bookings.db"
	}
	if c.Storage.ReadRetries < 0 {
		c.Storage.ReadRetries = 0
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Events.NATS.SubjectPrefix == "" {
		c.Events.NATS.SubjectPrefix = "techsched.events"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.TechniciansPath == "" {
		c.TechniciansPath = "configs/technicians.yaml"
	}
}

// Location resolves database.timezone, falling back to the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Database.Timezone == "" || c.Database.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Database.Timezone)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}
