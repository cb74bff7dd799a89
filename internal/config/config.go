// Package config loads the service configuration from YAML with
// SEATSNIPER_* environment overrides for secrets and deploy-time knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	LogLevel string `yaml:"log_level"` // debug/info/warn/error

	Cities       []string          `yaml:"cities"`         // lowercased at load
	CityStateMap map[string]string `yaml:"city_state_map"` // city -> state code

	PostgresURL string `yaml:"postgres_url"`
	RedisURL    string `yaml:"redis_url"`

	HTTPAddr string `yaml:"http_addr"` // metrics + health, default :8080

	Adapters  AdaptersConfig  `yaml:"adapters"`
	Notifiers NotifiersConfig `yaml:"notifiers"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// AdaptersConfig carries per-marketplace credentials. An adapter with no
// credentials is skipped at startup.
type AdaptersConfig struct {
	Ticketmaster TicketmasterConfig `yaml:"ticketmaster"`
	StubHub      StubHubConfig      `yaml:"stubhub"`
	SeatGeek     SeatGeekConfig     `yaml:"seatgeek"`
	GigFinder    GigFinderConfig    `yaml:"gigfinder"`
}

type TicketmasterConfig struct {
	APIKey     string `yaml:"api_key"`
	DailyQuota int    `yaml:"daily_quota"`
}

type StubHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type SeatGeekConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type GigFinderConfig struct {
	APIToken string `yaml:"api_token"`
	ActorID  string `yaml:"actor_id"`
}

// NotifiersConfig carries transport credentials. A notifier with no
// credentials is skipped at startup.
type NotifiersConfig struct {
	TelegramBotToken string       `yaml:"telegram_bot_token"`
	Twilio           TwilioConfig `yaml:"twilio"`
}

type TwilioConfig struct {
	AccountSID   string `yaml:"account_sid"`
	AuthToken    string `yaml:"auth_token"`
	SMSFrom      string `yaml:"sms_from"`      // E.164
	WhatsAppFrom string `yaml:"whatsapp_from"` // E.164, no whatsapp: prefix
}

// MonitorConfig tunes the scheduler and dispatcher.
type MonitorConfig struct {
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
	HighInterval      time.Duration `yaml:"high_interval"`
	MediumInterval    time.Duration `yaml:"medium_interval"`
	LowInterval       time.Duration `yaml:"low_interval"`
	MaxEventsPerCycle int           `yaml:"max_events_per_cycle"`
	TopPicks          int           `yaml:"top_picks"`
	ScoreThreshold    int           `yaml:"score_threshold"`
	AlertCooldown     time.Duration `yaml:"alert_cooldown"`
	ScanSampleSize    int           `yaml:"scan_sample_size"`
}

// Load reads path (optional), applies environment overrides, normalizes,
// and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays SEATSNIPER_* variables on top of the file values.
func (c *Config) applyEnv() {
	setString(&c.LogLevel, "SEATSNIPER_LOG_LEVEL")
	setString(&c.PostgresURL, "SEATSNIPER_POSTGRES_URL")
	setString(&c.RedisURL, "SEATSNIPER_REDIS_URL")
	setString(&c.HTTPAddr, "SEATSNIPER_HTTP_ADDR")

	if v := os.Getenv("SEATSNIPER_CITIES"); v != "" {
		c.Cities = strings.Split(v, ",")
	}

	setString(&c.Adapters.Ticketmaster.APIKey, "SEATSNIPER_TICKETMASTER_API_KEY")
	setInt(&c.Adapters.Ticketmaster.DailyQuota, "SEATSNIPER_TICKETMASTER_DAILY_QUOTA")
	setString(&c.Adapters.StubHub.ClientID, "SEATSNIPER_STUBHUB_CLIENT_ID")
	setString(&c.Adapters.StubHub.ClientSecret, "SEATSNIPER_STUBHUB_CLIENT_SECRET")
	setString(&c.Adapters.SeatGeek.ClientID, "SEATSNIPER_SEATGEEK_CLIENT_ID")
	setString(&c.Adapters.SeatGeek.ClientSecret, "SEATSNIPER_SEATGEEK_CLIENT_SECRET")
	setString(&c.Adapters.GigFinder.APIToken, "SEATSNIPER_GIGFINDER_API_TOKEN")
	setString(&c.Adapters.GigFinder.ActorID, "SEATSNIPER_GIGFINDER_ACTOR_ID")

	setString(&c.Notifiers.TelegramBotToken, "SEATSNIPER_TELEGRAM_BOT_TOKEN")
	setString(&c.Notifiers.Twilio.AccountSID, "SEATSNIPER_TWILIO_ACCOUNT_SID")
	setString(&c.Notifiers.Twilio.AuthToken, "SEATSNIPER_TWILIO_AUTH_TOKEN")
	setString(&c.Notifiers.Twilio.SMSFrom, "SEATSNIPER_TWILIO_SMS_FROM")
	setString(&c.Notifiers.Twilio.WhatsAppFrom, "SEATSNIPER_TWILIO_WHATSAPP_FROM")

	setDuration(&c.Monitor.DiscoveryInterval, "SEATSNIPER_DISCOVERY_INTERVAL")
	setDuration(&c.Monitor.HighInterval, "SEATSNIPER_HIGH_INTERVAL")
	setDuration(&c.Monitor.MediumInterval, "SEATSNIPER_MEDIUM_INTERVAL")
	setDuration(&c.Monitor.LowInterval, "SEATSNIPER_LOW_INTERVAL")
	setDuration(&c.Monitor.AlertCooldown, "SEATSNIPER_ALERT_COOLDOWN")
	setInt(&c.Monitor.ScoreThreshold, "SEATSNIPER_SCORE_THRESHOLD")
	setInt(&c.Monitor.ScanSampleSize, "SEATSNIPER_SCAN_SAMPLE_SIZE")
}

// normalize lowercases and trims the city list and state map keys.
func (c *Config) normalize() {
	cities := make([]string, 0, len(c.Cities))
	for _, city := range c.Cities {
		if city = strings.ToLower(strings.TrimSpace(city)); city != "" {
			cities = append(cities, city)
		}
	}
	c.Cities = cities

	if len(c.CityStateMap) > 0 {
		normalized := make(map[string]string, len(c.CityStateMap))
		for city, state := range c.CityStateMap {
			normalized[strings.ToLower(strings.TrimSpace(city))] = strings.ToUpper(strings.TrimSpace(state))
		}
		c.CityStateMap = normalized
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if len(c.Cities) == 0 {
		return errors.New("config: at least one city is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.Monitor.ScoreThreshold < 0 || c.Monitor.ScoreThreshold > 100 {
		return fmt.Errorf("config: score threshold %d outside [0,100]", c.Monitor.ScoreThreshold)
	}
	if !c.HasAnyAdapter() {
		return errors.New("config: no adapter credentials configured")
	}
	return nil
}

// HasAnyAdapter reports whether at least one marketplace has credentials.
func (c *Config) HasAnyAdapter() bool {
	return c.Adapters.Ticketmaster.APIKey != "" ||
		c.Adapters.StubHub.ClientID != "" ||
		c.Adapters.SeatGeek.ClientID != "" ||
		c.Adapters.GigFinder.APIToken != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
