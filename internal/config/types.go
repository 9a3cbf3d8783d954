package config

import (
	"time"

	logx "seattlehumus/pkg/logx"
)

// Config is the full service configuration. Environment variables override
// the optional config file; see Load.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	LitterRobot LitterRobotConfig `json:"litter_robot"`
	Telegram    TelegramConfig    `json:"telegram"`
	OpenAI      OpenAIConfig      `json:"openai"`
	Poll        PollConfig        `json:"poll"`
	Logging     LoggingConfig     `json:"logging"`
	Notifier    NotifierConfig    `json:"notifier"`
	Storage     StorageConfig     `json:"storage"`
	Metrics     MetricsConfig     `json:"metrics"`
	Report      ReportConfig      `json:"report"`

	// Stickers overrides the built-in sticker pools, keyed by cat name.
	// It can be changed while the service runs.
	Stickers map[string][]string `json:"stickers,omitempty"`

	// Warnings collects lenient-parse fallbacks so they can be logged once the
	// logger exists.
	Warnings []string `json:"-"`
}

type LitterRobotConfig struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	ClientID     string `json:"client_id,omitempty"`
	HistoryLimit int    `json:"history_limit,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	BotToken   string  `json:"bot_token"`
	ChatID     string  `json:"chat_id"`
	LogChatID  string  `json:"log_chat_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

type PollConfig struct {
	IntervalSeconds int `json:"interval_seconds,omitempty"`
}

type LoggingConfig struct {
	Level    string              `json:"level"`
	Console  *bool               `json:"console,omitempty"`
	File     FileLoggingConfig   `json:"file"`
	Telegram TelegramLogSettings `json:"telegram"`
}

type FileLoggingConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type TelegramLogSettings struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// NotifierConfig controls send retries. Retries are off unless retry_max > 0.
type NotifierConfig struct {
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MetricsConfig controls the Prometheus listener. Pprof mounts the runtime
// profiler on the same listener; binding beyond loopback needs PprofToken.
type MetricsConfig struct {
	Addr       string `json:"addr,omitempty"`
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"`
}

// ReportConfig schedules the latest-weights report inside the watch
// process. Schedule accepts a cron expression, a duration such as "24h",
// or an "HH:MM" interval.
type ReportConfig struct {
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

const DefaultPollInterval = 60 * time.Second

// PollInterval returns the configured interval, or the default.
func (c *Config) PollInterval() time.Duration {
	if c == nil || c.Poll.IntervalSeconds <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// ConsoleEnabled defaults to true.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// Logx converts the logging section for the logging service.
func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.ConsoleEnabled(),
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}
