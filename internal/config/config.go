package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Telegram contains the bot frontend settings.
type Telegram struct {
	Token string `toml:"token"`
	// ChatID is the learner's chat. Zero means "whoever wrote last".
	ChatID int64 `toml:"chat_id"`
}

// Gemini contains the generative-language API connection settings.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// CooldownMinutes is how long AI features stay off after quota exhaustion.
	CooldownMinutes int `toml:"cooldown_minutes"`
}

// Database selects the SQL backend holding persisted state.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Import contains bulk file import settings.
type Import struct {
	CallDelaySeconds int `toml:"call_delay_seconds"`
}

// Reminder contains the daily goal reminder settings.
type Reminder struct {
	Enabled bool   `toml:"enabled"`
	At      string `toml:"at"`
}

// Config is the complete runtime configuration.
type Config struct {
	LogMode  string   `toml:"log_mode"`
	Telegram Telegram `toml:"telegram"`
	Gemini   Gemini   `toml:"gemini"`
	Database Database `toml:"database"`
	Import   Import   `toml:"import"`
	Reminder Reminder `toml:"reminder"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogMode: "development",
		Gemini: Gemini{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-1.5-flash",
			TimeoutSeconds:  30,
			CooldownMinutes: 15,
		},
		Database: Database{
			Driver: "sqlite3",
			DSN:    "data/wordmate.db",
		},
		Import: Import{CallDelaySeconds: 6},
		Reminder: Reminder{
			Enabled: true,
			At:      "19:00",
		},
	}
}

// Load reads the optional TOML file at path, then .env, then the process
// environment. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.LogMode, "LOG_MODE")
	setString(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setInt64(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setInt(&cfg.Gemini.TimeoutSeconds, "GEMINI_TIMEOUT_SECONDS")
	setInt(&cfg.Gemini.CooldownMinutes, "GEMINI_COOLDOWN_MINUTES")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "DB_DSN")
	setInt(&cfg.Import.CallDelaySeconds, "IMPORT_CALL_DELAY_SECONDS")
	setString(&cfg.Reminder.At, "REMINDER_AT")
	if v := strings.TrimSpace(os.Getenv("REMINDER_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Reminder.Enabled = b
		}
	}
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = i
		}
	}
}

// Validate checks the settings every command needs. The Telegram token and
// Gemini key are checked by the components that use them.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		return errors.New("gemini.timeout_seconds must be positive")
	}
	if c.Gemini.CooldownMinutes <= 0 {
		return errors.New("gemini.cooldown_minutes must be positive")
	}
	if c.Import.CallDelaySeconds < 0 {
		return errors.New("import.call_delay_seconds must not be negative")
	}
	if c.Reminder.Enabled {
		if _, err := time.Parse("15:04", c.Reminder.At); err != nil {
			return fmt.Errorf("reminder.at must be HH:MM: %w", err)
		}
	}
	return nil
}

// HTTPTimeout returns the Gemini request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// Cooldown returns the quota cooldown window.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Gemini.CooldownMinutes) * time.Minute
}

// CallDelay returns the pause between bulk import AI calls.
func (c Config) CallDelay() time.Duration {
	return time.Duration(c.Import.CallDelaySeconds) * time.Second
}
