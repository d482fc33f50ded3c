// Package config loads the service configuration with viper: defaults,
// an optional file and SIGNALSENSE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

const EnvPrefix = "SIGNALSENSE"

var (
	ErrNoBaseURL     = errors.New("api.base_url is required")
	ErrInvalidPort   = errors.New("server.port must be between 1 and 65535")
	ErrNoBotToken    = errors.New("telegram.token is required when telegram is enabled")
	ErrNoMailAddress = errors.New("mail.smtp_host, mail.from and mail.to are required when mail is enabled")
)

// Config is the whole configuration tree.
type Config struct {
	API      APIConfig
	Server   ServerConfig
	Prefs    PrefsConfig
	UI       UIConfig
	Features FeaturesConfig
	Poll     PollConfig
	Telegram TelegramConfig
	Mail     MailConfig
	Log      LogConfig
}

type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	HistoryCacheTTL time.Duration
}

type ServerConfig struct {
	Port           int
	Debug          bool
	Title          string
	RequestTimeout time.Duration
}

// PrefsConfig locates the preference store; ":memory:" keeps nothing.
type PrefsConfig struct {
	Path string
}

type UIConfig struct {
	DefaultRange  core.Range
	FrameInterval time.Duration
	AnimateStep   int
	Container     string
	ChartWidth    int
	ChartHeight   int
}

type FeaturesConfig struct {
	Splash        time.Duration
	Glossary      bool
	AnimateSeries bool
	Polling       bool
}

type PollConfig struct {
	Interval time.Duration
	Retries  int
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	Users   []int
}

type MailConfig struct {
	Enabled  bool
	SMTPHost string
	SMTPPort int
	From     string
	To       string
	Password string
}

type LogConfig struct {
	Level      string
	TimeFormat string
	Colored    bool
	JSON       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.history_cache_ttl", "1m")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.title", "SignalSense")
	v.SetDefault("server.request_timeout", "30s")

	v.SetDefault("prefs.path", "signalsense.db")

	v.SetDefault("ui.default_range", string(core.DefaultRange))
	v.SetDefault("ui.frame_interval", "16ms")
	v.SetDefault("ui.animate_step", 1)
	v.SetDefault("ui.container", "chart")
	v.SetDefault("ui.chart_width", 800)
	v.SetDefault("ui.chart_height", 400)

	v.SetDefault("features.splash", "0s")
	v.SetDefault("features.glossary", true)
	v.SetDefault("features.animate_series", true)
	v.SetDefault("features.polling", false)

	v.SetDefault("poll.interval", "5m")
	v.SetDefault("poll.retries", 3)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.users", []string{})

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", "")
	v.SetDefault("mail.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("log.colored", true)
	v.SetDefault("log.json", false)
}

// New returns a viper instance with defaults and environment binding but
// no file. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, when given, into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var errs []error
	duration := func(key string) time.Duration {
		d, err := str2duration.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:         strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout:         duration("api.timeout"),
			HistoryCacheTTL: duration("api.history_cache_ttl"),
		},
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			Debug:          v.GetBool("server.debug"),
			Title:          v.GetString("server.title"),
			RequestTimeout: duration("server.request_timeout"),
		},
		Prefs: PrefsConfig{
			Path: v.GetString("prefs.path"),
		},
		UI: UIConfig{
			FrameInterval: duration("ui.frame_interval"),
			AnimateStep:   max(v.GetInt("ui.animate_step"), 1),
			Container:     v.GetString("ui.container"),
			ChartWidth:    v.GetInt("ui.chart_width"),
			ChartHeight:   v.GetInt("ui.chart_height"),
		},
		Features: FeaturesConfig{
			Splash:        duration("features.splash"),
			Glossary:      v.GetBool("features.glossary"),
			AnimateSeries: v.GetBool("features.animate_series"),
			Polling:       v.GetBool("features.polling"),
		},
		Poll: PollConfig{
			Interval: duration("poll.interval"),
			Retries:  v.GetInt("poll.retries"),
		},
		Telegram: TelegramConfig{
			Enabled: v.GetBool("telegram.enabled"),
			Token:   v.GetString("telegram.token"),
		},
		Mail: MailConfig{
			Enabled:  v.GetBool("mail.enabled"),
			SMTPHost: v.GetString("mail.smtp_host"),
			SMTPPort: v.GetInt("mail.smtp_port"),
			From:     v.GetString("mail.from"),
			To:       v.GetString("mail.to"),
			Password: v.GetString("mail.password"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			TimeFormat: v.GetString("log.time_format"),
			Colored:    v.GetBool("log.colored"),
			JSON:       v.GetBool("log.json"),
		},
	}

	rng, err := core.ParseRange(v.GetString("ui.default_range"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ui.default_range: %w", err))
	}
	cfg.UI.DefaultRange = rng

	users, err := userIDs(v.GetStringSlice("telegram.users"))
	if err != nil {
		errs = append(errs, fmt.Errorf("telegram.users: %w", err))
	}
	cfg.Telegram.Users = users

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// userIDs accepts a YAML list or a comma/space separated env value.
func userIDs(raw []string) ([]int, error) {
	var ids []int
	for _, item := range raw {
		for _, field := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid user id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return ErrNoBaseURL
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return ErrInvalidPort
	case c.Telegram.Enabled && c.Telegram.Token == "":
		return ErrNoBotToken
	case c.Mail.Enabled && (c.Mail.SMTPHost == "" || c.Mail.From == "" || c.Mail.To == ""):
		return ErrNoMailAddress
	}
	return nil
}
