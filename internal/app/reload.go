package app

import (
	"context"
	"slices"
	"strings"

	"seattlehumus/internal/config"
	logx "seattlehumus/pkg/logx"
)

// applyConfig takes a reloaded config live. Only logging and stickers can
// change at runtime; other sections are reported and wait for a restart.
func (a *App) applyConfig(old, cfg *config.Config) {
	sections, attrs := config.SummarizeChange(old, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	if slices.Contains(sections, "logging") {
		a.logs.Apply(cfg.Logging.Logx())
	}
	if slices.Contains(sections, "stickers") {
		a.disp.SetStickers(stickerTable(cfg.Stickers))
	}
	var pending []string
	for _, s := range sections {
		if !config.IsLive(s) {
			pending = append(pending, s)
		}
	}
	if len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(pending, ",")))
	}
	a.log.Debug("config applied", append(attrs, logx.String("changed", strings.Join(sections, ",")))...)
}

// followConfig applies every config the manager publishes until ctx is done.
func (a *App) followConfig(ctx context.Context) {
	sub, unsubscribe := a.cfgm.Subscribe()
	defer unsubscribe()
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}
