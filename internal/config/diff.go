package config

import (
	"reflect"
	"sort"

	logx "seattlehumus/pkg/logx"
)

// Live sections take effect without a restart. Changes elsewhere are logged
// and applied on the next start.
var liveSections = map[string]bool{"logging": true, "stickers": true}

// IsLive reports whether a section applies without a restart.
func IsLive(section string) bool { return liveSections[section] }

// SummarizeChange lists the changed sections and returns log fields that
// never include secrets.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	attrs := make([]logx.Field, 0, 8)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Stickers, newCfg.Stickers) {
		changed = append(changed, "stickers")
		for cat, ids := range newCfg.Stickers {
			attrs = append(attrs, logx.Int("stickers."+cat, len(ids)))
		}
	}
	if oldCfg.LitterRobot != newCfg.LitterRobot {
		changed = append(changed, "litter_robot")
	}
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
	}
	if oldCfg.OpenAI != newCfg.OpenAI {
		changed = append(changed, "openai")
		attrs = append(attrs, logx.Bool("openai.key_set", newCfg.OpenAI.APIKey != ""))
	}
	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if oldCfg.Report != newCfg.Report {
		changed = append(changed, "report")
	}
	sort.Strings(changed)

	var restart []string
	for _, s := range changed {
		if !liveSections[s] {
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		attrs = append(attrs, logx.Any("restart_required", restart))
	}
	return changed, attrs
}
