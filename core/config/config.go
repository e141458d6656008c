package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// PlaceholderToken is the value shipped in sample .env files.
	PlaceholderToken = "YOUR_BOT_TOKEN_HERE"
	// PlaceholderChatID is the value shipped in sample .env files.
	PlaceholderChatID = "YOUR_CHAT_ID_HERE"

	DefaultPort     = 10000
	DefaultListen   = "0.0.0.0"
	DefaultTimezone = "Asia/Seoul"
	DefaultWeekday  = "monday"
	DefaultTime     = "09:00"

	// RunModeLongpoll selects long polling for Telegram updates.
	RunModeLongpoll = "longpoll"
	// RunModeWebhook selects webhook delivery on the HTTP listener.
	RunModeWebhook = "webhook"

	// DefaultWebhookPath is used when the public URL has no path.
	DefaultWebhookPath = "/telegram/webhook"

	defaultKeepAlive       = time.Hour
	defaultLongPollTimeout = 10
)

var (
	// ErrMissingToken is returned when TELEGRAM_BOT_TOKEN is not configured.
	ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is required")
	// ErrMissingChatID is returned when TELEGRAM_CHAT_ID is not configured.
	ErrMissingChatID = errors.New("TELEGRAM_CHAT_ID is required")
)

// TelegramConfig holds bot credentials and the destination chat.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID  string `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// Commands enables long polling for the interactive command set.
	Commands bool `yaml:"commands" envconfig:"TELEGRAM_COMMANDS"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Offline skips the getMe round trip when the bot is created.
	Offline bool `yaml:"offline" envconfig:"TELEGRAM_OFFLINE"`
	// RunMode is "longpoll" (default) or "webhook".
	RunMode string        `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig specifies webhook settings. Updates are served on the
// HTTP listener under Path.
type WebhookConfig struct {
	URL         string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Path        string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// PublicURL is the address registered with Telegram. A URL without a
// path gets Path appended.
func (w WebhookConfig) PublicURL() string {
	u, err := url.Parse(w.URL)
	if err != nil || (u.Path != "" && u.Path != "/") {
		return w.URL
	}
	return strings.TrimRight(w.URL, "/") + w.Path
}

// UsesWebhook reports whether updates arrive through the webhook.
func (t TelegramConfig) UsesWebhook() bool { return t.RunMode == RunModeWebhook }

// HTTPConfig specifies the liveness listener.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
}

// ScheduleConfig describes the weekly trigger.
type ScheduleConfig struct {
	Timezone          string         `yaml:"timezone" envconfig:"TZ"`
	Weekday           string         `yaml:"weekday" envconfig:"SCHEDULE_WEEKDAY"`
	Time              string         `yaml:"time" envconfig:"SCHEDULE_TIME"`
	KeepAliveInterval *time.Duration `yaml:"keepalive_interval" envconfig:"KEEPALIVE_INTERVAL"`
	StartupNotice     *bool          `yaml:"startup_notice" envconfig:"STARTUP_NOTICE"`
	RunOnStart        bool           `yaml:"run_on_start" envconfig:"RUN_ON_START"`

	location     *time.Location
	weekday      time.Weekday
	hour, minute int
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	Dir    string `yaml:"dir" envconfig:"LOG_DIR"`
	File   string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles command updates per user.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// DatabaseConfig holds optional PostgreSQL settings for run history.
// An empty Host keeps history in memory.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Enabled reports whether a database host is configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// Config aggregates the whole process configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	HTTP      HTTPConfig      `yaml:"http"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
}

// Load reads .env, an optional YAML file and environment variables, in that order.
// An empty path skips the YAML layer.
func Load(path string) (*Config, error) {
	// .env is a convenience for local runs; hosted deployments set real env vars.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" || cfg.Telegram.Token == PlaceholderToken {
		return ErrMissingToken
	}
	cfg.Telegram.ChatID = strings.TrimSpace(cfg.Telegram.ChatID)
	if cfg.Telegram.ChatID == "" || cfg.Telegram.ChatID == PlaceholderChatID {
		return ErrMissingChatID
	}
	if !validChatID(cfg.Telegram.ChatID) {
		return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q; expected a numeric id or @channel", cfg.Telegram.ChatID)
	}
	if err := normalizeRunMode(&cfg.Telegram); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = DefaultPort
	}
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid PORT %d; allowed: 1..65535", cfg.HTTP.Port)
	}

	if err := normalizeSchedule(&cfg.Schedule); err != nil {
		return err
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	if cfg.Database.Enabled() {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
		if strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.name is required when database.host is set")
		}
	}
	return nil
}

func normalizeRunMode(t *TelegramConfig) error {
	rm := strings.ToLower(strings.TrimSpace(t.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if !t.Commands {
			return fmt.Errorf("telegram.run_mode 'webhook' requires telegram.commands")
		}
		if err := normalizeWebhook(&t.Webhook); err != nil {
			return err
		}
	case RunModeLongpoll:
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	t.RunMode = rm

	if t.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if t.LongPollTimeoutSeconds == 0 {
		t.LongPollTimeoutSeconds = defaultLongPollTimeout
	}
	return nil
}

func normalizeWebhook(w *WebhookConfig) error {
	w.URL = strings.TrimSpace(w.URL)
	if w.URL == "" {
		return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
	}
	u, err := url.Parse(w.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid webhook.url %q; expected an https URL", w.URL)
	}
	path := strings.TrimSpace(w.Path)
	if path == "" {
		path = u.Path
	}
	if path == "" || path == "/" {
		path = DefaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "/health" {
		return fmt.Errorf("webhook.path %q collides with the health endpoint", path)
	}
	w.Path = path
	w.SecretToken = strings.TrimSpace(w.SecretToken)
	return nil
}

func normalizeSchedule(s *ScheduleConfig) error {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	s.Timezone = tz
	s.location = loc

	wd := strings.ToLower(strings.TrimSpace(s.Weekday))
	if wd == "" {
		wd = DefaultWeekday
	}
	day, ok := parseWeekday(wd)
	if !ok {
		return fmt.Errorf("invalid schedule weekday %q", s.Weekday)
	}
	s.Weekday = wd
	s.weekday = day

	at := strings.TrimSpace(s.Time)
	if at == "" {
		at = DefaultTime
	}
	hour, minute, err := parseClock(at)
	if err != nil {
		return err
	}
	s.Time = at
	s.hour, s.minute = hour, minute

	if s.KeepAliveInterval == nil {
		d := defaultKeepAlive
		s.KeepAliveInterval = &d
	}
	if *s.KeepAliveInterval < 0 {
		return fmt.Errorf("schedule.keepalive_interval must be >= 0")
	}
	if s.StartupNotice == nil {
		on := true
		s.StartupNotice = &on
	}
	return nil
}

// Location returns the parsed schedule timezone.
func (s ScheduleConfig) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Day returns the parsed weekday.
func (s ScheduleConfig) Day() time.Weekday { return s.weekday }

// Clock returns the parsed hour and minute.
func (s ScheduleConfig) Clock() (int, int) { return s.hour, s.minute }

// KeepAlive returns the keep-alive log interval; 0 disables it.
func (s ScheduleConfig) KeepAlive() time.Duration {
	if s.KeepAliveInterval == nil {
		return defaultKeepAlive
	}
	return *s.KeepAliveInterval
}

// NoticeEnabled reports whether the startup notice should be sent.
func (s ScheduleConfig) NoticeEnabled() bool {
	return s.StartupNotice == nil || *s.StartupNotice
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdays[s]
	return d, ok
}

func parseClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid schedule time %q; expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid schedule time %q; hour must be 0..23", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid schedule time %q; minute must be 0..59", s)
	}
	return hour, minute, nil
}

func validChatID(id string) bool {
	if strings.HasPrefix(id, "@") {
		return len(id) > 1
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}
