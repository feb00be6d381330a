package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/models"
)

type Config struct {
	LinkedIn struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"linkedin"`
	Run struct {
		Keywords           string `yaml:"keywords"`
		ScoreThreshold     int    `yaml:"score_threshold"`
		MaxProfiles        int    `yaml:"max_profiles"`
		MaxDurationMinutes int    `yaml:"max_duration_minutes"`
		EnableConnect      bool   `yaml:"enable_connect"`
		EnableFollow       bool   `yaml:"enable_follow"`
	} `yaml:"run"`
	Pacing struct {
		MinDelayMs        int    `yaml:"min_delay_ms"`
		MaxDelayMs        int    `yaml:"max_delay_ms"`
		Headless          bool   `yaml:"headless"`
		UserAgent         string `yaml:"user_agent"`
		ViewportWidthMin  int    `yaml:"viewport_width_min"`
		ViewportWidthMax  int    `yaml:"viewport_width_max"`
		ViewportHeightMin int    `yaml:"viewport_height_min"`
		ViewportHeightMax int    `yaml:"viewport_height_max"`
		ActiveStart       string `yaml:"active_start"`
		ActiveEnd         string `yaml:"active_end"`
	} `yaml:"pacing"`
	Intel struct {
		BaseURL       string `yaml:"base_url"`
		Model         string `yaml:"model"`
		MaxMessageLen int    `yaml:"max_message_len"`
	} `yaml:"intel"`
	Trigger struct {
		Enabled  bool     `yaml:"enabled"`
		Times    []string `yaml:"times"`
		Days     []string `yaml:"days"`
		Keywords string   `yaml:"keywords"`
	} `yaml:"trigger"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Templates struct {
		ConnectionNote string `yaml:"connection_note_template"`
	} `yaml:"templates"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional
	cfg := defaultConfig()
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, &bot.ValidationError{Field: "config", Msg: err.Error()}
		}
	}
	applyEnvOverrides(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.LinkedIn.BaseURL = "https://www.linkedin.com/"
	cfg.Run.Keywords = ""
	cfg.Run.ScoreThreshold = 75
	cfg.Run.MaxProfiles = 25
	cfg.Run.MaxDurationMinutes = 45
	cfg.Run.EnableConnect = true
	cfg.Run.EnableFollow = false
	cfg.Pacing.MinDelayMs = 1500
	cfg.Pacing.MaxDelayMs = 6000
	cfg.Pacing.Headless = false
	cfg.Pacing.ViewportWidthMin = 1280
	cfg.Pacing.ViewportWidthMax = 1680
	cfg.Pacing.ViewportHeightMin = 720
	cfg.Pacing.ViewportHeightMax = 1050
	cfg.Pacing.ActiveStart = "09:00"
	cfg.Pacing.ActiveEnd = "18:00"
	cfg.Intel.BaseURL = "https://api.openai.com/v1"
	cfg.Intel.Model = "gpt-4o-mini"
	cfg.Intel.MaxMessageLen = 280
	cfg.Server.Port = 8080
	cfg.Templates.ConnectionNote = "Hi {{Name}}, came across your profile while looking into {{Keywords}} and would love to connect."
	cfg.Database.Path = "reachbot.db"
	cfg.Logging.Level = "info"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REACHBOT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REACHBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REACHBOT_HEADLESS"); v == "1" || v == "true" {
		cfg.Pacing.Headless = true
	}
}

// Validate checks the fields the engine refuses to start without.
func Validate(cfg *Config) error {
	if cfg.LinkedIn.BaseURL == "" {
		return &bot.ValidationError{Field: "linkedin.base_url", Msg: "required"}
	}
	if cfg.Run.ScoreThreshold < 0 || cfg.Run.ScoreThreshold > 100 {
		return &bot.ValidationError{Field: "run.score_threshold", Msg: "must be 0-100"}
	}
	if cfg.Run.MaxProfiles <= 0 {
		return &bot.ValidationError{Field: "run.max_profiles", Msg: "must be > 0"}
	}
	if cfg.Run.MaxDurationMinutes <= 0 {
		return &bot.ValidationError{Field: "run.max_duration_minutes", Msg: "must be > 0"}
	}
	if cfg.Pacing.MinDelayMs <= 0 || cfg.Pacing.MaxDelayMs < cfg.Pacing.MinDelayMs {
		return &bot.ValidationError{Field: "pacing", Msg: "delay bounds must satisfy 0 < min <= max"}
	}
	for _, t := range cfg.Trigger.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return &bot.ValidationError{Field: "trigger.times", Msg: "bad time " + t}
		}
	}
	if _, err := ParseDays(cfg.Trigger.Days); err != nil {
		return err
	}
	return nil
}

// RunConfig builds the immutable per-run snapshot from the loaded defaults.
// keywords overrides the configured default when non-empty.
func (c *Config) RunConfig(keywords string) models.RunConfig {
	kw := strings.TrimSpace(keywords)
	if kw == "" {
		kw = c.Run.Keywords
	}
	return models.RunConfig{
		Keywords:       kw,
		ScoreThreshold: c.Run.ScoreThreshold,
		MaxProfiles:    c.Run.MaxProfiles,
		MaxDuration:    time.Duration(c.Run.MaxDurationMinutes) * time.Minute,
		MinDelay:       time.Duration(c.Pacing.MinDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.Pacing.MaxDelayMs) * time.Millisecond,
		EnableConnect:  c.Run.EnableConnect,
		EnableFollow:   c.Run.EnableFollow,
	}
}

// WithinActiveHours reports whether t falls inside the configured active
// window. An unparsable bound disables the check.
func (c *Config) WithinActiveHours(t time.Time) bool {
	start, err1 := time.Parse("15:04", c.Pacing.ActiveStart)
	end, err2 := time.Parse("15:04", c.Pacing.ActiveEnd)
	if err1 != nil || err2 != nil {
		return true
	}
	minutes := t.Hour()*60 + t.Minute()
	lo := start.Hour()*60 + start.Minute()
	hi := end.Hour()*60 + end.Minute()
	if lo <= hi {
		return minutes >= lo && minutes < hi
	}
	// Window wraps midnight.
	return minutes >= lo || minutes < hi
}

// TriggerRule builds the initial rule from config. The persisted rule in the
// store, when present, wins over this one.
func (c *Config) TriggerRule() (models.TriggerRule, error) {
	days, err := ParseDays(c.Trigger.Days)
	if err != nil {
		return models.TriggerRule{}, err
	}
	return models.TriggerRule{
		Enabled:  c.Trigger.Enabled,
		Times:    append([]string(nil), c.Trigger.Times...),
		Days:     days,
		Keywords: c.Trigger.Keywords,
	}, nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParseDays maps day names ("mon", "tuesday", ...) to weekdays.
func ParseDays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := dayNames[key]
		if !ok {
			return nil, &bot.ValidationError{Field: "trigger.days", Msg: "bad day " + n}
		}
		out = append(out, d)
	}
	return out, nil
}
