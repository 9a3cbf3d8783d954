package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"seattlehumus/internal/litter"
)

// EnvConfigPath names an optional YAML or JSON config file.
const EnvConfigPath = "SEATTLEHUMUS_CONFIG"

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the optional config file at path, overlays the environment
// and validates the result. An empty path skips the file.
func Load(path string, lookup LookupFunc) (*Config, error) {
	return load(path, lookup, Validate)
}

// LoadOffline is Load for commands that only read local state: the device
// account and chat credentials are not required.
func LoadOffline(path string, lookup LookupFunc) (*Config, error) {
	return load(path, lookup, func(cfg *Config) error { return validate(cfg, false) })
}

func load(path string, lookup LookupFunc, check func(*Config) error) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		var err error
		if cfg, err = ParseFile(path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg, lookup)
	if err := check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFile decodes a YAML or JSON config file. Unknown keys are rejected.
func ParseFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, format, err := toJSON(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s config %s: %w", format, path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s config %s: trailing data", format, path)
		}
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("LITTERROBOT_USERNAME", &cfg.LitterRobot.Username)
	if v, ok := lookup("LITTERROBOT_PASSWORD"); ok && v != "" {
		// Passwords keep their whitespace.
		cfg.LitterRobot.Password = v
	}
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	str("TELEGRAM_LOG_CHAT_ID", &cfg.Telegram.LogChatID)
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_MODEL", &cfg.OpenAI.Model)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	str("LOG_LEVEL", &cfg.Logging.Level)
	if v, ok := lookup("LOG_FILE"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.File.Enabled = true
		cfg.Logging.File.Path = strings.TrimSpace(v)
	}
	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("REPORT_SCHEDULE", &cfg.Report.Schedule)
	str("REPORT_TIMEZONE", &cfg.Report.Timezone)

	if raw, ok := lookup("POLL_INTERVAL_SECONDS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		switch {
		case err != nil:
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("POLL_INTERVAL_SECONDS=%q is not an integer; using %s", raw, DefaultPollInterval))
			cfg.Poll.IntervalSeconds = 0
		case n <= 0:
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("POLL_INTERVAL_SECONDS=%d must be positive; using %s", n, DefaultPollInterval))
			cfg.Poll.IntervalSeconds = 0
		default:
			cfg.Poll.IntervalSeconds = n
		}
	}
}

// Validate reports every missing required key and every malformed value in
// one ConfigError.
func Validate(cfg *Config) error { return validate(cfg, true) }

func validate(cfg *Config, needCreds bool) error {
	e := &ConfigError{}
	required := []struct {
		key string
		val string
	}{
		{"LITTERROBOT_USERNAME", cfg.LitterRobot.Username},
		{"LITTERROBOT_PASSWORD", cfg.LitterRobot.Password},
		{"TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", cfg.Telegram.ChatID},
	}
	for _, r := range required {
		if needCreds && strings.TrimSpace(r.val) == "" {
			e.Missing = append(e.Missing, r.key)
		}
	}

	durations := []struct {
		path string
		raw  string
	}{
		{"litter_robot.timeout", cfg.LitterRobot.Timeout},
		{"openai.timeout", cfg.OpenAI.Timeout},
		{"notifier.retry_base", cfg.Notifier.RetryBase},
		{"notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay},
		{"notifier.send_timeout", cfg.Notifier.SendTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			e.Invalid = append(e.Invalid, err.Error())
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			e.Missing = append(e.Missing, "STORAGE_PATH")
		}
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	for cat, ids := range cfg.Stickers {
		if !validCat(cat) {
			e.Invalid = append(e.Invalid, fmt.Sprintf("stickers: unknown cat %q", cat))
		} else if len(ids) == 0 {
			e.Invalid = append(e.Invalid, fmt.Sprintf("stickers.%s: empty sticker pool", cat))
		}
	}

	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

func validCat(name string) bool {
	for _, c := range litter.Cats() {
		if string(c) == name {
			return true
		}
	}
	return false
}
